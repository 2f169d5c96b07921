package transform

import (
	"fmt"
	"strconv"
	"strings"
)

// pathStep is one segment of a parsed "$."-rooted field path: either a
// named object key or a numeric array index.
type pathStep struct {
	field string
	index int
	isIdx bool
}

// parsePath parses a "$."-rooted path such as "$.customer.addresses.0.city"
// into its steps. Unsupported constructs are rejected here, at mapping
// registration time, rather than at transform time.
func parsePath(path string) ([]pathStep, error) {
	if !strings.HasPrefix(path, "$") {
		return nil, fmt.Errorf("path %q must be rooted at \"$\"", path)
	}
	rest := strings.TrimPrefix(path, "$")
	if rest == "" {
		return nil, nil
	}
	if !strings.HasPrefix(rest, ".") {
		return nil, fmt.Errorf("path %q: expected \".\" after \"$\"", path)
	}
	rest = strings.TrimPrefix(rest, ".")
	if rest == "" {
		return nil, fmt.Errorf("path %q: empty path after \"$.\"", path)
	}

	parts := strings.Split(rest, ".")
	steps := make([]pathStep, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			return nil, fmt.Errorf("path %q: empty segment", path)
		}
		if idx, err := strconv.Atoi(part); err == nil {
			if idx < 0 {
				return nil, fmt.Errorf("path %q: negative array index %d", path, idx)
			}
			steps = append(steps, pathStep{index: idx, isIdx: true})
			continue
		}
		steps = append(steps, pathStep{field: part})
	}
	return steps, nil
}

// getPath resolves path against doc, returning (nil, false) if any
// intermediate step is missing or of the wrong shape.
func getPath(doc map[string]interface{}, path string) (interface{}, bool) {
	steps, err := parsePath(path)
	if err != nil || len(steps) == 0 {
		return nil, false
	}

	var current interface{} = doc
	for _, step := range steps {
		if step.isIdx {
			arr, ok := current.([]interface{})
			if !ok || step.index >= len(arr) {
				return nil, false
			}
			current = arr[step.index]
			continue
		}
		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		value, ok := obj[step.field]
		if !ok {
			return nil, false
		}
		current = value
	}
	return current, true
}

// setPath writes value into root at path, creating empty map containers
// for missing intermediate object steps. Writing into an array beyond its
// current length is an error.
func setPath(root map[string]interface{}, path string, value interface{}) error {
	steps, err := parsePath(path)
	if err != nil {
		return err
	}
	if len(steps) == 0 {
		return fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}

	var current interface{} = root
	for i, step := range steps {
		last := i == len(steps)-1

		if step.isIdx {
			arr, ok := current.([]interface{})
			if !ok {
				return fmt.Errorf("%w: %q: expected array at segment %d", ErrInvalidPath, path, i)
			}
			if step.index >= len(arr) {
				return fmt.Errorf("%w: %q: index %d out of bounds", ErrInvalidPath, path, step.index)
			}
			if last {
				arr[step.index] = value
				return nil
			}
			current = arr[step.index]
			continue
		}

		obj, ok := current.(map[string]interface{})
		if !ok {
			return fmt.Errorf("%w: %q: expected object at segment %d", ErrInvalidPath, path, i)
		}
		if last {
			obj[step.field] = value
			return nil
		}
		next, exists := obj[step.field]
		if !exists {
			next = make(map[string]interface{})
			obj[step.field] = next
		}
		current = next
	}
	return nil
}
