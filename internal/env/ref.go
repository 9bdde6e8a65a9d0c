package env

// Ref is a persisted reference to an entity of kind T. It stays meaningful
// across cycles but has to be resolved before use.
type Ref[T Object] struct {
	ID ObjectID
}

// RefOf captures a reference to a live handle.
func RefOf[T Object](obj T) Ref[T] {
	return Ref[T]{ID: obj.ID()}
}

// Resolve returns the live handle for this cycle. It fails when the entity is
// gone, not visible, or no longer of kind T.
func (r Ref[T]) Resolve(res Resolver) (T, bool) {
	var zero T
	if r.ID == "" || res == nil {
		return zero, false
	}
	obj, ok := res.Lookup(r.ID)
	if !ok || obj == nil {
		return zero, false
	}
	t, ok := obj.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

func (r Ref[T]) String() string { return string(r.ID) }
