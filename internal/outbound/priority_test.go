package outbound

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetCommandPriority(t *testing.T) {
	tests := []struct {
		name     string
		cmd      string
		expected int
	}{
		{"关屏=紧急优先级", "led", PriorityEmergency},
		{"清屏=紧急优先级", "clear", PriorityEmergency},
		{"亮度=高优先级", "brightness", PriorityHigh},
		{"校时=高优先级", "time", PriorityHigh},
		{"时钟=普通优先级", "clock", PriorityNormal},
		{"文本包=普通优先级", "text-packet", PriorityNormal},
		{"动画=低优先级", "gif", PriorityLow},
		{"删除屏幕=后台", "delete-screen", PriorityBackground},
		{"未知指令=普通优先级", "reboot", PriorityNormal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetCommandPriority(tt.cmd),
				"指令 %s 的优先级应该是 %d", tt.cmd, tt.expected)
		})
	}
}

func TestPriorityValues(t *testing.T) {
	// 数值越小=优先级越高
	assert.Less(t, PriorityEmergency, PriorityHigh, "紧急 < 高")
	assert.Less(t, PriorityHigh, PriorityNormal, "高 < 普通")
	assert.Less(t, PriorityNormal, PriorityLow, "普通 < 低")
	assert.Less(t, PriorityLow, PriorityBackground, "低 < 后台")
}
