package workflow

import (
	"fmt"
	"strings"
)

// ResolveParameters substitutes template placeholders in a step's parameter
// map against the workflow's input parameters and the accumulated context of
// prior steps. Placeholders take two forms:
//
//	{{params.<key>}}          workflow input parameter
//	{{steps.<name>.<path>}}   dotted path into a prior step's result
//
// A string value that is exactly one placeholder resolves to the referenced
// value with its type preserved; placeholders embedded in a longer string
// are stringified. An unresolvable placeholder is an error.
func ResolveParameters(tmpl, params, context map[string]any) (map[string]any, error) {
	if tmpl == nil {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(tmpl))
	for k, v := range tmpl {
		rv, err := resolveValue(v, params, context)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", k, err)
		}
		out[k] = rv
	}
	return out, nil
}

func resolveValue(v any, params, context map[string]any) (any, error) {
	switch val := v.(type) {
	case string:
		return resolveString(val, params, context)
	case map[string]any:
		return ResolveParameters(val, params, context)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			rv, err := resolveValue(item, params, context)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	default:
		return v, nil
	}
}

func resolveString(s string, params, context map[string]any) (any, error) {
	// Whole-string placeholder keeps the referenced value's type.
	if strings.HasPrefix(s, "{{") && strings.HasSuffix(s, "}}") && strings.Count(s, "{{") == 1 {
		return lookup(strings.TrimSpace(s[2:len(s)-2]), params, context)
	}

	var b strings.Builder
	rest := s
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		end := strings.Index(rest[start:], "}}")
		if end < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		b.WriteString(rest[:start])
		ref := strings.TrimSpace(rest[start+2 : start+end])
		val, err := lookup(ref, params, context)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&b, "%v", val)
		rest = rest[start+end+2:]
	}
}

func lookup(ref string, params, context map[string]any) (any, error) {
	parts := strings.Split(ref, ".")
	switch {
	case len(parts) >= 2 && parts[0] == "params":
		return walk(params, parts[1:], ref)
	case len(parts) >= 2 && parts[0] == "steps":
		return walk(context, parts[1:], ref)
	default:
		return nil, fmt.Errorf("%w: {{%s}}", ErrUnknownPlaceholder, ref)
	}
}

func walk(m map[string]any, path []string, ref string) (any, error) {
	var cur any = m
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: {{%s}}", ErrUnknownPlaceholder, ref)
		}
		cur, ok = obj[key]
		if !ok {
			return nil, fmt.Errorf("%w: {{%s}}", ErrUnknownPlaceholder, ref)
		}
	}
	return cur, nil
}
