package transform

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// concatToken matches a "$.path" token embedded in a Concat template.
var concatToken = regexp.MustCompile(`\$\.[A-Za-z0-9_.]+`)

// timeLayouts are tried in order when OperatorFormat's source value is a
// string; the first that parses wins.
var timeLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// deepCopy returns an independent copy of v, so that OperatorDirect never
// lets a caller mutate the source document through the produced value.
func deepCopy(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = deepCopy(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = deepCopy(item)
		}
		return out
	default:
		return val
	}
}

// stringify renders v as the string OperatorMap and OperatorLookup key
// against.
func stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// formatValue reformats value per format. If value parses as a timestamp,
// format is treated as a Go time layout. Otherwise if value parses as a
// decimal, format selects "integer" (truncate) or passes the original
// numeric value through. Anything else passes through unchanged.
func formatValue(value interface{}, format string) interface{} {
	if s, ok := value.(string); ok {
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.Format(format)
			}
		}
	}

	switch num := value.(type) {
	case float64:
		return formatNumber(num, format)
	case string:
		if f, err := strconv.ParseFloat(num, 64); err == nil {
			return formatNumber(f, format)
		}
	}

	return value
}

func formatNumber(f float64, format string) interface{} {
	switch format {
	case "integer":
		return int64(f)
	case "string":
		return strconv.FormatFloat(f, 'f', -1, 64)
	default:
		return f
	}
}

// expandConcatTemplate replaces every "$.path" token in template with the
// stringified value found at that path in source, then returns the
// concatenated result.
func expandConcatTemplate(template string, source map[string]interface{}) string {
	return concatToken.ReplaceAllStringFunc(template, func(token string) string {
		value, ok := getPath(source, token)
		if !ok {
			return ""
		}
		return stringify(value)
	})
}
