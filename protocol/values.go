package protocol

import "math"

// Number 从通用解码结果中取数值。JSON 解出 float64/int64，
// msgpack 可能解出任意宽度的整数或 float32。NaN/Inf 视为非法。
func Number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// NumberOr 取数值，缺失或非法时返回 def
func NumberOr(m map[string]any, key string, def float64) float64 {
	if f, ok := Number(m[key]); ok {
		return f
	}
	return def
}

// StringOr 取字符串，缺失时返回 def
func StringOr(m map[string]any, key, def string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return def
}

// BoolOr 取布尔值，缺失时返回 def
func BoolOr(m map[string]any, key string, def bool) bool {
	if b, ok := m[key].(bool); ok {
		return b
	}
	return def
}

// VecOr 取 {x,y} 子对象
func VecOr(m map[string]any, key string) Vec {
	sub, ok := m[key].(map[string]any)
	if !ok {
		return Vec{}
	}
	return Vec{X: NumberOr(sub, "x", 0), Y: NumberOr(sub, "y", 0)}
}
