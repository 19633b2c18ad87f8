package tool

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/syllabus/pkg/domain/model"
)

// StringArg returns a trimmed string argument. ok is false when absent or empty.
func StringArg(args map[string]any, key string) (string, bool, error) {
	v, exists := args[key]
	if !exists || v == nil {
		return "", false, nil
	}
	s, isString := v.(string)
	if !isString {
		return "", false, goerr.Wrap(model.ErrInvalidArgument, "argument must be a string",
			goerr.V("key", key), goerr.V("type", typeName(v)))
	}
	s = strings.TrimSpace(s)
	return s, s != "", nil
}

// IntArg returns an integer argument. LLM providers deliver JSON numbers as
// float64 or json.Number, and some send numeric strings.
func IntArg(args map[string]any, key string) (int, bool, error) {
	v, exists := args[key]
	if !exists || v == nil {
		return 0, false, nil
	}

	invalid := func() (int, bool, error) {
		return 0, false, goerr.Wrap(model.ErrInvalidArgument, "argument must be an integer",
			goerr.V("key", key), goerr.V("value", v))
	}

	switch n := v.(type) {
	case int:
		return n, true, nil
	case int64:
		return int(n), true, nil
	case float64:
		if n != math.Trunc(n) {
			return invalid()
		}
		return int(n), true, nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return invalid()
		}
		return int(i), true, nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return invalid()
		}
		return i, true, nil
	default:
		return invalid()
	}
}

func typeName(v any) string {
	switch v.(type) {
	case bool:
		return "bool"
	case float64, int, int64, json.Number:
		return "number"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return "unknown"
	}
}
