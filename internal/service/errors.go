package service

import "errors"

// ErrHistoryDisabled 未配置数据库，指令日志不可用
var ErrHistoryDisabled = errors.New("command history disabled")
