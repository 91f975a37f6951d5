package sets

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Set[T comparable] map[T]struct{}

func NewSet[T comparable](vs ...T) Set[T] {
	s := make(Set[T], len(vs))
	for _, v := range vs {
		s.Insert(v)
	}
	return s
}

// NewFoldedSet builds a set of lower-cased strings, for case-insensitive
// lookups via ContainsFold.
func NewFoldedSet(vs ...string) Set[string] {
	s := make(Set[string], len(vs))
	for _, v := range vs {
		s.Insert(strings.ToLower(v))
	}
	return s
}

func (s Set[T]) IsEmpty() bool {
	return len(s) == 0
}

func (s Set[T]) Size() int {
	return len(s)
}

func (s Set[T]) Contains(v T) bool {
	_, exists := s[v]
	return exists
}

func (s Set[T]) Insert(vs ...T) {
	for _, v := range vs {
		s[v] = struct{}{}
	}
}

func (s Set[T]) Delete(vs ...T) {
	for _, v := range vs {
		delete(s, v)
	}
}

func (s Set[T]) Clone() Set[T] {
	return maps.Clone(s)
}

// AsSlice returns the set as a slice in a nondeterministic order.
func (s Set[T]) AsSlice() []T {
	return maps.Keys(s)
}

// ContainsFold reports whether the lower-cased form of v is in s.
func ContainsFold(s Set[string], v string) bool {
	return s.Contains(strings.ToLower(v))
}

// Sorted returns the elements of s in ascending order.
func Sorted[T constraints.Ordered](s Set[T]) []T {
	rv := maps.Keys(s)
	slices.Sort(rv)
	return rv
}

func (s Set[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.AsSlice())
}

func (s *Set[T]) UnmarshalJSON(text []byte) error {
	var slice []T
	if err := json.Unmarshal(text, &slice); err != nil {
		return errors.Wrapf(err, "failed to unmarshal set")
	}
	*s = NewSet(slice...)
	return nil
}
