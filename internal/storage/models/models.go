package models

import (
	"time"
)

// 注意：不使用 gorm.Model，显式声明每个字段，避免隐式 DeletedAt

// CommandLog 映射 command_logs 表，记录每条已生成的指令
type CommandLog struct {
	// 主键（uuid）
	ID string `gorm:"column:id;type:uuid;primaryKey"`
	// 指令名，例如 clock、text-packet
	Name string `gorm:"column:name;type:varchar(32);not null;index"`
	// 目标设备地址，可空
	Device *string `gorm:"column:device;type:varchar(64);index"`
	// 指令十六进制文本
	Hex  string `gorm:"column:hex;type:text;not null"`
	Size int    `gorm:"column:size;not null"`
	// 出站优先级，数值越小越先发送
	Priority int `gorm:"column:priority;not null"`
	// 是否已推入出站队列
	QueuedAt *time.Time `gorm:"column:queued_at"`
	// 审计字段
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index"`
}

func (CommandLog) TableName() string { return "command_logs" }

// Queued 是否已推入出站队列
func (c CommandLog) Queued() bool { return c.QueuedAt != nil }
