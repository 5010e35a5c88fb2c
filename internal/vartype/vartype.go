// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package vartype provides value holders that track whether they hold a value.
package vartype

// Slot holds the latest value of a stream. Storing a value supersedes the previous one, there
// is no history. The zero Slot is empty. Slot is not safe for concurrent use; its owner
// guards it.
type Slot[T any] struct {
	value  T
	filled bool
}

// Store replaces the held value and reports whether the Slot was empty before.
func (s *Slot[T]) Store(val T) (first bool) {
	first = !s.filled
	s.value = val
	s.filled = true
	return first
}

// Load returns the held value and whether there is one.
func (s *Slot[T]) Load() (T, bool) {
	return s.value, s.filled
}

// Clear empties the Slot.
func (s *Slot[T]) Clear() {
	var zero T
	s.value = zero
	s.filled = false
}

// Filled reports whether the Slot holds a value.
func (s *Slot[T]) Filled() bool {
	return s.filled
}
