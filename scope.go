package docximage

import (
	"reflect"
	"strconv"
	"strings"
)

// valuesScope looks keys up in the values passed to Apply. Keys may be
// dotted paths ("company.logo") through maps, structs, pointers and, with
// numeric segments, slices.
type valuesScope struct {
	root any
}

// NewScope returns a Scope over values.
func NewScope(values any) Scope {
	return valuesScope{root: values}
}

func (s valuesScope) Lookup(key string) (any, bool) {
	key = strings.TrimPrefix(strings.TrimSpace(key), ".")
	if key == "" {
		return nil, false
	}

	current := reflect.ValueOf(s.root)
	for _, segment := range strings.Split(key, ".") {
		next, ok := child(current, segment)
		if !ok {
			return nil, false
		}
		current = next
	}

	if !current.IsValid() {
		return nil, true
	}
	return current.Interface(), true
}

func child(v reflect.Value, name string) (reflect.Value, bool) {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return reflect.Value{}, false
	}

	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return reflect.Value{}, false
		}
		item := v.MapIndex(reflect.ValueOf(name).Convert(v.Type().Key()))
		if !item.IsValid() {
			return reflect.Value{}, false
		}
		return item, true

	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			if field.Name == name || jsonName(field) == name {
				return v.Field(i), true
			}
		}
		return reflect.Value{}, false

	case reflect.Slice, reflect.Array:
		index, err := strconv.Atoi(name)
		if err != nil || index < 0 || index >= v.Len() {
			return reflect.Value{}, false
		}
		return v.Index(index), true
	}

	return reflect.Value{}, false
}

func jsonName(field reflect.StructField) string {
	tag, ok := field.Tag.Lookup("json")
	if !ok {
		return ""
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "-" {
		return ""
	}
	return name
}
