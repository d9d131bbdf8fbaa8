package ipixel

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash/crc32"
	"math/bits"
	"strings"
)

// InvertBits 对每个字节按位取反（位图中点亮/熄灭互换）
func InvertBits(data []byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = ^b
	}
	return out
}

// SwitchEndian 反转整个缓冲区的字节序
func SwitchEndian(data []byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[len(data)-1-i] = b
	}
	return out
}

// ReverseBitOrder 镜像每个字节内的位顺序（MSB <-> LSB）
func ReverseBitOrder(data []byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = bits.Reverse8(b)
	}
	return out
}

// SwitchEndianHex 以两位十六进制为单位反转字符串
func SwitchEndianHex(h string) string {
	if len(h)%2 == 1 {
		h = "0" + h
	}
	var sb strings.Builder
	sb.Grow(len(h))
	for i := len(h); i > 0; i -= 2 {
		sb.WriteString(h[i-2 : i])
	}
	return sb.String()
}

// ChecksumBinary 计算原始字节的 CRC32(IEEE)
func ChecksumBinary(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// ChecksumHex 对十六进制文本解码后的字节计算 CRC32，返回 8 位小端十六进制文本
func ChecksumHex(h string) (string, error) {
	data, err := hex.DecodeString(h)
	if err != nil {
		return "", fmt.Errorf("%w: checksum input is not hex: %v", ErrInvalidInput, err)
	}
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], ChecksumBinary(data))
	return hex.EncodeToString(b[:]), nil
}

// FrameSizeHex 返回十六进制文本所代表的字节数，补零至 digits 位后按小端输出
func FrameSizeHex(h string, digits int) string {
	size := fmt.Sprintf("%0*x", digits, len(h)/2)
	return SwitchEndianHex(size)
}

// intToHex 两位十六进制
func intToHex(n int) string {
	return fmt.Sprintf("%02x", n)
}

// leHex16 两字节小端十六进制文本
func leHex16(n int) string {
	return SwitchEndianHex(fmt.Sprintf("%04x", n))
}

// hexCommand 拼接十六进制片段并转换为原始字节
func hexCommand(parts ...string) (Command, error) {
	out, err := hex.DecodeString(strings.Join(parts, ""))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return out, nil
}
