// Package template provides best-effort variable substitution for dynamic
// node configuration.
package template

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/SanketsMane/Flowversal-sub007/pkg/models"
)

// placeholderPattern matches {{key}} and ${key} with an optional dotted path.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.-]+)\s*\}\}|\$\{\s*([A-Za-z0-9_.-]+)\s*\}`)

// Resolve substitutes {{key}} and ${key} placeholders in input against, in
// order of precedence: node-local variables, prior step results
// (JSON-stringified when the referenced value is non-scalar), then input
// fields namespaced as input.*. Unresolved placeholders are left verbatim;
// substitution is best-effort and never fails.
func Resolve(input string, ec *models.ExecutionContext) string {
	if input == "" || ec == nil {
		return input
	}

	return placeholderPattern.ReplaceAllStringFunc(input, func(match string) string {
		key := placeholderKey(match)
		if key == "" {
			return match
		}

		value, ok := lookup(key, ec)
		if !ok {
			return match
		}

		return Stringify(value)
	})
}

// ResolveMap resolves every string value in config, recursing into nested
// maps and slices. Non-string values pass through untouched.
func ResolveMap(config map[string]any, ec *models.ExecutionContext) map[string]any {
	if config == nil {
		return nil
	}

	resolved := make(map[string]any, len(config))
	for k, v := range config {
		resolved[k] = resolveValue(v, ec)
	}

	return resolved
}

func resolveValue(value any, ec *models.ExecutionContext) any {
	switch v := value.(type) {
	case string:
		return Resolve(v, ec)
	case map[string]any:
		return ResolveMap(v, ec)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = resolveValue(item, ec)
		}

		return out
	default:
		return value
	}
}

func placeholderKey(match string) string {
	groups := placeholderPattern.FindStringSubmatch(match)
	if groups == nil {
		return ""
	}

	if groups[1] != "" {
		return groups[1]
	}

	return groups[2]
}

func lookup(key string, ec *models.ExecutionContext) (any, bool) {
	if v, ok := ec.Variables[key]; ok {
		return v, true
	}

	if result, ok := ec.StepResults[key]; ok && result != nil {
		return result.Output, true
	}

	// Step result field access: "<nodeID>.<field>".
	if nodeID, field, found := strings.Cut(key, "."); found && nodeID != "input" {
		if result, ok := ec.StepResults[nodeID]; ok && result != nil {
			if v, ok := result.Output[field]; ok {
				return v, true
			}
		}
	}

	if field, ok := strings.CutPrefix(key, "input."); ok {
		if v, exists := ec.Input[field]; exists {
			return v, true
		}
	}

	return nil, false
}

// Stringify renders scalars plainly and JSON-encodes everything else.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}

		return string(encoded)
	}
}
