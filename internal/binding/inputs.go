package binding

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Inputs holds the values of one rule's declared inputs.
type Inputs map[InputID]any

// String returns the value of id as text. Numbers are formatted without
// exponent so that a year sent as 1952.0 reads as "1952".
func (in Inputs) String(id InputID) string {
	switch v := in[id].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Int returns the value of id as an integer. Strings are parsed and
// integral floats accepted; anything else reports false.
func (in Inputs) Int(id InputID) (int, bool) {
	switch v := in[id].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			f, ferr := v.Float64()
			if ferr != nil || f != math.Trunc(f) {
				return 0, false
			}
			return int(f), true
		}
		return int(n), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
