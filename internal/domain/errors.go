package domain

import "fmt"

// FetchError reports an unreachable source or a non-200 response.
type FetchError struct {
	Source     string // "feed" or "advisory page"
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s %s: status %d", e.Source, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s %s: %v", e.Source, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports a missing or malformed field in a tag, date, or page markup.
type ParseError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("parse %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("parse %s %q: %s", e.Field, e.Value, e.Reason)
}

// ConsistencyError reports a batch that violates a record invariant, such as
// an aggregate code appearing more than once.
type ConsistencyError struct {
	Code   string
	Count  int
	Reason string
}

func (e *ConsistencyError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("inconsistent records for %s: %s", e.Code, e.Reason)
	}
	return fmt.Sprintf("inconsistent records for %s: found %d aggregate rows, want at most 1", e.Code, e.Count)
}

// MappingGap records a jurisdiction code that matched no table entry or
// override and was passed through unchanged. It is reported, never returned
// as a failure.
type MappingGap struct {
	Code string
	Name string
}

func (g MappingGap) String() string {
	return fmt.Sprintf("unmapped jurisdiction code %q (%s)", g.Code, g.Name)
}
