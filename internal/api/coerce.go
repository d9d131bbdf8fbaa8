package api

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/taoyao-code/ipixel-server/internal/protocol/ipixel"
)

// JSON 请求中的数值与开关允许写成字符串，统一经 ipixel.ToInt/ToBool 规范化

func intOr(v any, name string, def int) (int, error) {
	if v == nil {
		return def, nil
	}
	return ipixel.ToInt(v, name)
}

func boolOr(v any, name string, def bool) (bool, error) {
	if v == nil {
		return def, nil
	}
	return ipixel.ToBool(v, name)
}

func optInt(v any, name string) (*int, error) {
	if v == nil {
		return nil, nil
	}
	n, err := ipixel.ToInt(v, name)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func optBool(v any, name string) (*bool, error) {
	if v == nil {
		return nil, nil
	}
	b, err := ipixel.ToBool(v, name)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func stringOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func decodeBitmap(s string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: bitmap must be hex: %v", ipixel.ErrInvalidInput, err)
	}
	return b, nil
}

// intField 可选整数字段，缺省时保留 dst 原值
type intField struct {
	value any
	name  string
	dst   *int
}

// assignInts 依次转换多个可选整数字段，遇到第一个错误即返回
func assignInts(fields ...intField) error {
	for _, f := range fields {
		n, err := intOr(f.value, f.name, *f.dst)
		if err != nil {
			return err
		}
		*f.dst = n
	}
	return nil
}
