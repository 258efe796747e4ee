package ingest

// Field is a payload value that remembers whether the key was sent at all,
// sent as JSON null, or sent with a value.
type Field[T any] struct {
	set   bool
	null  bool
	value T
}

// Value returns a Field holding v.
func Value[T any](v T) Field[T] {
	return Field[T]{set: true, value: v}
}

// Null returns a Field for a key that was sent as JSON null.
func Null[T any]() Field[T] {
	return Field[T]{set: true, null: true}
}

// IsSet reports whether the key appeared in the payload.
func (f Field[T]) IsSet() bool { return f.set }

// IsNull reports whether the key appeared with a JSON null.
func (f Field[T]) IsNull() bool { return f.set && f.null }

// Get returns the value and true only when a non-null value was sent.
func (f Field[T]) Get() (T, bool) {
	if !f.set || f.null {
		var zero T
		return zero, false
	}
	return f.value, true
}

// Ptr returns a pointer to the value, or nil when absent or null.
func (f Field[T]) Ptr() *T {
	v, ok := f.Get()
	if !ok {
		return nil
	}
	return &v
}

// Or returns the incoming value when one was sent, otherwise current.
// Absent and null both keep current: a partial payload never erases data.
func (f Field[T]) Or(current *T) *T {
	if p := f.Ptr(); p != nil {
		return p
	}
	return current
}
