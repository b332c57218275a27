package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Claims maps field names to the values claimed for them.
type Claims map[string]any

// Fields returns the claimed field names in sorted order.
func (c Claims) Fields() []string {
	fields := make([]string, 0, len(c))
	for field := range c {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// ClaimString converts a claimed value to the string searched for in the
// document. Lists, objects and nil are rendered as compact JSON. Values that
// cannot be encoded, such as functions or channels, have no string form.
func ClaimString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case json.Number:
		return v.String(), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(v), true
	case fmt.Stringer:
		return v.String(), true
	default:
		return jsonString(value)
	}
}

func jsonString(value any) (string, bool) {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return "", false
	}
	return strings.TrimSuffix(b.String(), "\n"), true
}

// Compare checks every claim against the document text with a
// case-insensitive substring test and returns the claims not found.
func Compare(text string, claims Claims) (map[string]Mismatch, error) {
	haystack := strings.ToLower(text)
	mismatches := make(map[string]Mismatch)

	for _, field := range claims.Fields() {
		value := claims[field]

		needle, ok := ClaimString(value)
		if !ok {
			return nil, &ClaimValueError{Field: field, Value: value}
		}

		if !strings.Contains(haystack, strings.ToLower(needle)) {
			mismatches[field] = Mismatch{Expected: value, Found: NotFound}
		}
	}

	return mismatches, nil
}
