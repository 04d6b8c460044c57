package app

import "slices"

// Reversible is a local state change that can be rolled back.
type Reversible interface {
	Apply()
	Undo()
}

// sliceRemoval drops the first element matching a predicate and keeps a copy
// of the list as it was before.
type sliceRemoval[T any] struct {
	target   *[]T
	match    func(T) bool
	snapshot []T
	applied  bool
}

func newSliceRemoval[T any](target *[]T, match func(T) bool) *sliceRemoval[T] {
	return &sliceRemoval[T]{target: target, match: match}
}

// Found reports whether the target currently holds a matching element.
func (r *sliceRemoval[T]) Found() bool {
	return slices.IndexFunc(*r.target, r.match) >= 0
}

func (r *sliceRemoval[T]) Apply() {
	idx := slices.IndexFunc(*r.target, r.match)
	if idx < 0 {
		return
	}
	r.snapshot = slices.Clone(*r.target)
	*r.target = slices.Delete(slices.Clone(*r.target), idx, idx+1)
	r.applied = true
}

func (r *sliceRemoval[T]) Undo() {
	if !r.applied {
		return
	}
	*r.target = slices.Clone(r.snapshot)
	r.applied = false
}
