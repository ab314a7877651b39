package records

import (
	"cmp"
	"fmt"
	"strings"
	"time"
)

// rank orders values of different kinds: NULL first, then booleans, numbers,
// timestamps, text, and everything else.
func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return 2
	case time.Time:
		return 3
	case string, []byte:
		return 4
	default:
		return 5
	}
}

// Compare orders two column values. It returns a negative number when a
// sorts before b, zero when they are equal and a positive number otherwise.
// Values of different kinds order by kind; NULL sorts first.
func Compare(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch ra {
	case 0:
		return 0
	case 1:
		ab, bb := a.(bool), b.(bool)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		default:
			return 1
		}
	case 2:
		ai, aok := asInt(a)
		bi, bok := asInt(b)
		if aok && bok {
			return cmp.Compare(ai, bi)
		}
		return cmp.Compare(asFloat(a), asFloat(b))
	case 3:
		return a.(time.Time).Compare(b.(time.Time))
	case 4:
		return strings.Compare(asString(a), asString(b))
	default:
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	}
	return 0, false
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float32:
		return float64(n)
	case float64:
		return n
	case uint:
		return float64(n)
	case uint64:
		return float64(n)
	}
	i, _ := asInt(v)
	return float64(i)
}

func asString(v any) string {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v.(string)
}
