package discovery

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// Pivot is one (location, keyword) search parameter pair.
type Pivot struct {
	Location string `json:"location"`
	Keyword  string `json:"keyword"`
}

func (p Pivot) String() string {
	return fmt.Sprintf("%s @ %s", p.Keyword, p.Location)
}

// Query is the place search text for the pivot.
func (p Pivot) Query() string {
	return p.Keyword + " in " + p.Location
}

// PivotMatrix enumerates pivots keyword-first: the keyword advances on every
// step and the location advances when the keywords wrap. Each pair is
// visited once; wrapping past the last location exhausts the matrix.
type PivotMatrix struct {
	locations []string
	keywords  []string
	loc, key  int
	exhausted bool
}

// NewPivotMatrix creates a matrix positioned on the first pivot.
func NewPivotMatrix(locations, keywords []string) (*PivotMatrix, error) {
	if len(locations) == 0 {
		return nil, eris.New("discovery: at least one location is required")
	}
	if len(keywords) == 0 {
		return nil, eris.New("discovery: at least one keyword is required")
	}
	return &PivotMatrix{
		locations: append([]string(nil), locations...),
		keywords:  append([]string(nil), keywords...),
	}, nil
}

// Current returns the pivot under the cursor.
func (m *PivotMatrix) Current() Pivot {
	return Pivot{Location: m.locations[m.loc], Keyword: m.keywords[m.key]}
}

// Advance moves to the next pivot. It returns false, leaving the cursor on
// the last pivot, once the space is exhausted.
func (m *PivotMatrix) Advance() bool {
	if m.exhausted {
		return false
	}
	if m.key+1 < len(m.keywords) {
		m.key++
		return true
	}
	if m.loc+1 < len(m.locations) {
		m.key = 0
		m.loc++
		return true
	}
	m.exhausted = true
	return false
}

// Exhausted reports whether Advance has run past the last pivot.
func (m *PivotMatrix) Exhausted() bool {
	return m.exhausted
}

// Size is the number of pivots in the matrix.
func (m *PivotMatrix) Size() int {
	return len(m.locations) * len(m.keywords)
}
