package method

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
)

// Rule constrains one named parameter.
type Rule struct {
	Required bool
	Validate func(v any) bool
}

// Schema maps parameter names to rules. Names are checked in sorted order so
// the reported failure is deterministic.
type Schema map[string]Rule

// check runs the required pass to completion before the validate pass.
func (s Schema) check(method string, params any) (err error) {
	if len(s) == 0 {
		return nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("method %s: validator panicked: %v", method, rec)
		}
	}()

	values := keyed(params)
	for _, name := range slices.Sorted(maps.Keys(s)) {
		if !s[name].Required {
			continue
		}
		if _, ok := values[name]; !ok {
			return &ParamError{Code: CodeMissingParameter, Name: name, Method: method}
		}
	}
	for _, name := range slices.Sorted(maps.Keys(values)) {
		rule, ok := s[name]
		if !ok || rule.Validate == nil {
			continue
		}
		if !rule.Validate(values[name]) {
			return &ParamError{Code: CodeInvalidParameter, Name: name, Method: method}
		}
	}
	return nil
}

// keyed views string-keyed maps as map[string]any; anything else has no
// named parameters.
func keyed(params any) map[string]any {
	if m, ok := params.(map[string]any); ok {
		return m
	}
	rv := reflect.ValueOf(params)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out
}

// clone makes the shallow copy a call works on, so hooks never mutate the
// caller's maps or slices in place.
func clone(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case map[string]any:
		return maps.Clone(t)
	case []any:
		return slices.Clone(t)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), iter.Value())
		}
		return out.Interface()
	case reflect.Slice:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		reflect.Copy(out, rv)
		return out.Interface()
	}
	return v
}
