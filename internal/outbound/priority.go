package outbound

// 下行指令优先级定义
// 注意: 数值越小=优先级越高（Redis ZPOPMIN取最小score）
const (
	// PriorityEmergency 紧急指令（立即执行）
	// 场景: 关屏、清屏
	PriorityEmergency = 1

	// PriorityHigh 高优先级指令
	// 场景: 亮度、速度、方向等即时生效的设置
	PriorityHigh = 2

	// PriorityNormal 普通优先级指令
	// 场景: 时钟、节奏模式、文本
	PriorityNormal = 3

	// PriorityLow 低优先级指令
	// 场景: 图片、动画等大数据量传输
	PriorityLow = 4

	// PriorityBackground 后台任务
	// 场景: 删除已保存的屏幕
	PriorityBackground = 5
)

// GetCommandPriority 根据指令名返回优先级
func GetCommandPriority(name string) int {
	switch name {
	case "led", "clear":
		return PriorityEmergency

	case "brightness", "speed", "orientation", "fun", "pixel", "time":
		return PriorityHigh

	case "clock", "rhythm", "rhythm2", "text", "text-packet":
		return PriorityNormal

	case "png", "gif":
		return PriorityLow

	case "delete-screen":
		return PriorityBackground

	default:
		return PriorityNormal
	}
}
