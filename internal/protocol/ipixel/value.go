package ipixel

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ToBool 将 bool 或其字符串形式（true/1/yes、false/0/no）规范化为 bool
func ToBool(value any, name string) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no":
			return false, nil
		}
	}
	return false, fmt.Errorf("%w: invalid boolean value for %s: %v", ErrInvalidInput, name, value)
}

// ToInt 将整数或其十进制字符串形式规范化为 int
func ToInt(value any, name string) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int8:
		return int(v), nil
	case int16:
		return int(v), nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case uint8:
		return int(v), nil
	case uint16:
		return int(v), nil
	case uint32:
		return int(v), nil
	case float64:
		// JSON 数字
		if v == float64(int(v)) {
			return int(v), nil
		}
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err == nil {
			return n, nil
		}
	}
	return 0, fmt.Errorf("%w: invalid integer value for %s: %v", ErrInvalidInput, name, value)
}

// ValidateRange 校验 value 位于闭区间 [min, max]
func ValidateRange(value, min, max int, name string) error {
	if value < min || value > max {
		return fmt.Errorf("%w: %s must be between %d and %d, got %d", ErrOutOfRange, name, min, max, value)
	}
	return nil
}

// ValidateMembership 校验 value 属于 allowed，错误信息中按升序列出允许值
func ValidateMembership[T cmp.Ordered](value T, allowed []T, name string) error {
	if slices.Contains(allowed, value) {
		return nil
	}
	sorted := slices.Clone(allowed)
	slices.Sort(sorted)
	parts := make([]string, len(sorted))
	for i, v := range sorted {
		parts[i] = fmt.Sprint(v)
	}
	return fmt.Errorf("%w: %s must be one of %s not %v", ErrNotAllowed, name, strings.Join(parts, ","), value)
}

type rangeCheck struct {
	value, min, max int
	name            string
}

// validateRanges 依次校验，返回第一个失败
func validateRanges(checks ...rangeCheck) error {
	for _, c := range checks {
		if err := ValidateRange(c.value, c.min, c.max, c.name); err != nil {
			return err
		}
	}
	return nil
}
