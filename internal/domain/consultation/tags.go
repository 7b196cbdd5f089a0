package consultation

import (
	"errors"
	"strings"
)

// Delimiter joins tag values in the serialized form. A tag value must not
// contain it, otherwise the joined string would not round-trip.
const Delimiter = ","

// ErrTagDelimiter is returned when a tag value contains the delimiter
var ErrTagDelimiter = errors.New("tag must not contain the delimiter")

// TagSet is an ordered, duplicate-free set of short text tags. Insertion
// order is preserved for display and serialization.
type TagSet struct {
	values []string
}

// NewTagSet returns an empty tag set
func NewTagSet() *TagSet {
	return &TagSet{}
}

// ParseTagSet builds a tag set from a delimiter-joined string: each segment
// is trimmed, empty segments are skipped, duplicates are suppressed.
func ParseTagSet(joined string) *TagSet {
	s := NewTagSet()
	s.Rebuild(joined)
	return s
}

// Add appends a trimmed tag. It reports false without error for empty
// input and exact-match duplicates, and rejects values containing the
// delimiter.
func (s *TagSet) Add(text string) (bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return false, nil
	}
	if strings.Contains(text, Delimiter) {
		return false, ErrTagDelimiter
	}
	if s.Contains(text) {
		return false, nil
	}
	s.values = append(s.values, text)
	return true, nil
}

// Remove deletes the tag with the exact given value
func (s *TagSet) Remove(text string) bool {
	text = strings.TrimSpace(text)
	for i, v := range s.values {
		if v == text {
			s.values = append(s.values[:i], s.values[i+1:]...)
			return true
		}
	}
	return false
}

// Contains reports whether the exact value is present
func (s *TagSet) Contains(text string) bool {
	for _, v := range s.values {
		if v == text {
			return true
		}
	}
	return false
}

// Rebuild replaces all tags with those parsed from a fresh joined string
func (s *TagSet) Rebuild(joined string) {
	s.values = s.values[:0]
	for _, part := range strings.Split(joined, Delimiter) {
		s.Add(part)
	}
}

// Values returns the tags in display order
func (s *TagSet) Values() []string {
	out := make([]string, len(s.values))
	copy(out, s.values)
	return out
}

// Join serializes the set as a delimiter-joined string
func (s *TagSet) Join() string {
	return strings.Join(s.values, Delimiter)
}

// Len returns the number of tags
func (s *TagSet) Len() int {
	return len(s.values)
}
