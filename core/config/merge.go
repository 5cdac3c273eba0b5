package config

import (
	"reflect"
)

// Overlay copies every set field of src onto dst, walking nested sections.
// Zero scalars and empty slices in src leave dst untouched; maps merge by key.
// It is how command-line flags are layered over the loaded configuration.
func Overlay(dst, src *Config) {
	if dst == nil || src == nil {
		return
	}
	overlay(reflect.ValueOf(dst).Elem(), reflect.ValueOf(src).Elem())
}

func overlay(dst, src reflect.Value) {
	if !dst.CanSet() || !src.IsValid() {
		return
	}

	switch src.Kind() {
	case reflect.Struct:
		for i := 0; i < src.NumField(); i++ {
			overlay(dst.Field(i), src.Field(i))
		}
	case reflect.Map:
		overlayMap(dst, src)
	case reflect.Slice:
		if src.Len() > 0 {
			dst.Set(src)
		}
	default:
		if !src.IsZero() {
			dst.Set(src)
		}
	}
}

func overlayMap(dst, src reflect.Value) {
	if src.Len() == 0 {
		return
	}
	merged := reflect.MakeMapWithSize(src.Type(), dst.Len()+src.Len())
	for _, key := range dst.MapKeys() {
		merged.SetMapIndex(key, dst.MapIndex(key))
	}
	for _, key := range src.MapKeys() {
		merged.SetMapIndex(key, src.MapIndex(key))
	}
	dst.Set(merged)
}
