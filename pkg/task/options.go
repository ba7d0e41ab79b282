package task

import (
	"fmt"
	"time"
)

// Options provides typed access to the free-form options map of a task
// configuration. JSON numbers arrive as float64 and are converted here.
type Options map[string]interface{}

// String returns the string value for key (ok is false when absent or not a string)
func (o Options) String(key string) (string, bool) {
	v, ok := o[key].(string)
	return v, ok
}

// StringDefault returns the string value for key, or def when absent
func (o Options) StringDefault(key, def string) string {
	if v, ok := o.String(key); ok {
		return v
	}
	return def
}

// Int returns the integer value for key
func (o Options) Int(key string) (int, bool) {
	switch v := o[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}

// IntDefault returns the integer value for key, or def when absent
func (o Options) IntDefault(key string, def int) int {
	if v, ok := o.Int(key); ok {
		return v
	}
	return def
}

// Bool returns the boolean value for key
func (o Options) Bool(key string) (bool, bool) {
	v, ok := o[key].(bool)
	return v, ok
}

// BoolDefault returns the boolean value for key, or def when absent
func (o Options) BoolDefault(key string, def bool) bool {
	if v, ok := o.Bool(key); ok {
		return v
	}
	return def
}

// StringSlice returns the string list for key (nil when absent)
func (o Options) StringSlice(key string) ([]string, error) {
	raw, ok := o[key]
	if !ok {
		return nil, nil
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("option %q: expected a list of strings: %w", key, ErrInvalidConfig)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("option %q: expected a list of strings: %w", key, ErrInvalidConfig)
		}
		out = append(out, s)
	}
	return out, nil
}

// IntSlice returns the integer list for key (nil when absent)
func (o Options) IntSlice(key string) ([]int, error) {
	raw, ok := o[key]
	if !ok {
		return nil, nil
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("option %q: expected a list of integers: %w", key, ErrInvalidConfig)
	}
	out := make([]int, 0, len(items))
	for _, item := range items {
		switch n := item.(type) {
		case float64:
			out = append(out, int(n))
		case int:
			out = append(out, n)
		default:
			return nil, fmt.Errorf("option %q: expected a list of integers: %w", key, ErrInvalidConfig)
		}
	}
	return out, nil
}

// DurationDefault returns the duration value for key parsed from a string
// like "5m", or def when absent
func (o Options) DurationDefault(key string, def time.Duration) (time.Duration, error) {
	raw, ok := o[key]
	if !ok {
		return def, nil
	}
	s, ok := raw.(string)
	if !ok {
		return 0, fmt.Errorf("option %q: expected a duration string: %w", key, ErrInvalidConfig)
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("option %q: %v: %w", key, err, ErrInvalidConfig)
	}
	return d, nil
}

// Require returns an error when any of the given keys is absent
func (o Options) Require(keys ...string) error {
	for _, key := range keys {
		if _, ok := o[key]; !ok {
			return fmt.Errorf("missing required option %q: %w", key, ErrInvalidConfig)
		}
	}
	return nil
}
