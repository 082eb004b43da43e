package domain

import (
	"regexp"
	"strconv"
)

// threatNumberRe matches the first run of digits in a level label,
// e.g. "Level 3: Reconsider Travel" -> "3".
var threatNumberRe = regexp.MustCompile(`\d+`)

var canonicalLevels = map[int]string{
	1: "Level 1: Exercise Normal Precautions",
	2: "Level 2: Exercise Increased Caution",
	3: "Level 3: Reconsider Travel",
	4: "Level 4: Do Not Travel",
}

// ParseThreatNumber extracts the first integer from a threat level label and
// checks it is one of the four advisory levels.
func ParseThreatNumber(label string) (int, error) {
	m := threatNumberRe.FindString(label)
	if m == "" {
		return 0, &ParseError{Field: "threat level", Value: label, Reason: "no level number"}
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, &ParseError{Field: "threat level", Value: label, Reason: err.Error()}
	}
	if _, ok := canonicalLevels[n]; !ok {
		return 0, &ParseError{Field: "threat level", Value: label, Reason: "level out of range 1-4"}
	}
	return n, nil
}

// CanonicalLevel returns the standard label for a threat number.
func CanonicalLevel(n int) (string, bool) {
	s, ok := canonicalLevels[n]
	return s, ok
}
