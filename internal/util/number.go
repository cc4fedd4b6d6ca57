package util

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var leadingInt = regexp.MustCompile(`^\s*(\d+)`)

func IntPtr(v int) *int { return &v }

// ParseLeadingInt reads the integer prefix of input ("10 min" -> 10).
func ParseLeadingInt(input string) (int, bool) {
	m := leadingInt.FindStringSubmatch(input)
	if len(m) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// LooseInt accepts a JSON number or a string with a numeric prefix.
func LooseInt(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), true
	case int:
		return t, true
	case json.Number:
		i, err := t.Int64()
		return int(i), err == nil
	case string:
		return ParseLeadingInt(strings.TrimSpace(t))
	default:
		return 0, false
	}
}
