package ipixel

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// mediaFamily 静态图片与动画共用外层结构，仅族标记与子标记不同
type mediaFamily struct {
	name      string
	ext       string
	marker    string // 3 字节族标记（外层长度字段之后）
	subMarker string // 2 字节子标记
}

var (
	familyPNG = mediaFamily{name: "png", ext: ".png", marker: "020000", subMarker: "0065"}
	familyGIF = mediaFamily{name: "gif", ext: ".gif", marker: "030000", subMarker: "0201"}
)

const (
	// outerSizePlaceholder 外层长度字段在计算自身所覆盖范围时的占位
	outerSizePlaceholder = "ffff"
	innerSizeDigits      = 8
	outerSizeDigits      = 4
)

// SendPNG 构造静态图片指令，参数为 .png 文件路径或已十六进制编码的数据
func SendPNG(pathOrHex string) (Command, error) {
	return sendMedia(familyPNG, pathOrHex)
}

// SendAnimation 构造 GIF 动画指令，参数为 .gif 文件路径或已十六进制编码的数据
func SendAnimation(pathOrHex string) (Command, error) {
	return sendMedia(familyGIF, pathOrHex)
}

// sendMedia 布局: outer(2B) + marker(3B) + inner(4B) + crc(4B) + subMarker(2B) + payload
// inner 覆盖 payload；outer 覆盖包括自身在内的全部字节。
func sendMedia(f mediaFamily, pathOrHex string) (Command, error) {
	payload, err := loadMediaHex(f, pathOrHex)
	if err != nil {
		return nil, err
	}
	checksum, err := ChecksumHex(payload)
	if err != nil {
		return nil, err
	}
	inner := FrameSizeHex(payload, innerSizeDigits)
	body := f.marker + inner + checksum + f.subMarker + payload

	total := len(outerSizePlaceholder+body) / 2
	if err := ValidateRange(total, 0, 0xFFFF, f.name+" command size"); err != nil {
		return nil, err
	}
	outer := FrameSizeHex(outerSizePlaceholder+body, outerSizeDigits)
	return hexCommand(outer, body)
}

// loadMediaHex 按扩展名识别文件路径，否则视为十六进制文本
func loadMediaHex(f mediaFamily, pathOrHex string) (string, error) {
	if strings.EqualFold(filepath.Ext(pathOrHex), f.ext) {
		data, err := os.ReadFile(pathOrHex)
		if err != nil {
			return "", fmt.Errorf("%w: read %s: %v", ErrResourceUnavailable, pathOrHex, err)
		}
		return hex.EncodeToString(data), nil
	}
	h := strings.ToLower(strings.TrimSpace(pathOrHex))
	if _, err := hex.DecodeString(h); err != nil {
		return "", fmt.Errorf("%w: %s payload is neither a %s path nor hex: %v", ErrInvalidInput, f.name, f.ext, err)
	}
	return h, nil
}
