package style

import (
	"encoding/json"
	"slices"
)

// Field is an optional snapshot value. The zero Field is the absent marker:
// it is dropped from JSON output (see the omitzero tags on snapshot types),
// while a present value is always encoded, even when it is an empty mapping.
type Field[T any] struct {
	value T
	ok    bool
}

// Some returns a present field holding v.
func Some[T any](v T) Field[T] {
	return Field[T]{value: v, ok: true}
}

// Absent returns the absent marker for T.
func Absent[T any]() Field[T] {
	return Field[T]{}
}

// Get returns the value and whether it is present.
func (f Field[T]) Get() (T, bool) {
	return f.value, f.ok
}

// Value returns the value, or the zero T when absent.
func (f Field[T]) Value() T {
	return f.value
}

// Present reports whether the field holds a value.
func (f Field[T]) Present() bool {
	return f.ok
}

// IsZero reports whether the field is absent. encoding/json uses it for omitzero.
func (f Field[T]) IsZero() bool {
	return !f.ok
}

func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.ok {
		return []byte("null"), nil
	}
	return json.Marshal(f.value)
}

func (f *Field[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = Field[T]{}
		return nil
	}
	if err := json.Unmarshal(data, &f.value); err != nil {
		return err
	}
	f.ok = true
	return nil
}

// Exclude returns v, or the absent marker when v equals def.
func Exclude[T comparable](v, def T) Field[T] {
	if v == def {
		return Absent[T]()
	}
	return Some(v)
}

// ExcludeRef is Exclude for settings that may be unset: nil is absent.
func ExcludeRef[T comparable](v *T, def T) Field[T] {
	if v == nil {
		return Absent[T]()
	}
	return Exclude(*v, def)
}

// ExcludeName is Exclude for enumerated names, where "" means unset.
func ExcludeName(v, def string) Field[string] {
	if v == "" {
		return Absent[string]()
	}
	return Exclude(v, def)
}

// ExcludeSlice compares element-wise; a slice equal in length and content
// to def, or an empty slice, is absent.
func ExcludeSlice[T comparable](v, def []T) Field[[]T] {
	if len(v) == 0 {
		return Absent[[]T]()
	}
	if slices.Equal(v, def) {
		return Absent[[]T]()
	}
	return Some(v)
}

// Optional returns v when it is set, absent otherwise.
func Optional[T comparable](v T) Field[T] {
	var zero T
	if v == zero {
		return Absent[T]()
	}
	return Some(v)
}

// OptionalRef returns *v when v is set, absent otherwise.
func OptionalRef[T any](v *T) Field[T] {
	if v == nil {
		return Absent[T]()
	}
	return Some(*v)
}

// OptionalSlice returns v when it is non-empty, absent otherwise.
func OptionalSlice[T any](v []T) Field[[]T] {
	if len(v) == 0 {
		return Absent[[]T]()
	}
	return Some(v)
}
