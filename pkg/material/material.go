// Package material holds the elements and materials volumes are made of:
// a built-in subset of the NIST database plus user defined elements,
// molecules and mixtures.
package material

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
)

// ErrUnknown is returned when a name resolves to no element or material.
var ErrUnknown = errors.New("material: unknown")

// State is the physical state of a material.
type State int

const (
	StateUndefined State = iota
	StateSolid
	StateLiquid
	StateGas
)

func (s State) String() string {
	switch s {
	case StateUndefined:
		return "undefined"
	case StateSolid:
		return "solid"
	case StateLiquid:
		return "liquid"
	case StateGas:
		return "gas"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ParseState parses a state name. The empty string means undefined.
func ParseState(s string) (State, error) {
	switch strings.ToLower(s) {
	case "":
		return StateUndefined, nil
	case "solid":
		return StateSolid, nil
	case "liquid":
		return StateLiquid, nil
	case "gas":
		return StateGas, nil
	}
	return StateUndefined, fmt.Errorf("material: bad state '%s' (expected one of 'gas', 'liquid', 'solid')", s)
}

// Element is a chemical element. A is the molar mass in g/mole.
type Element struct {
	Name   string
	Symbol string
	Z      float64
	A      float64
}

// Component is one constituent of a material, by mass fraction. Name
// refers to an element or to another material.
type Component struct {
	Name     string
	Fraction float64
}

// Material is a resolved material. Density is in g/cm³ and the component
// fractions sum to one.
type Material struct {
	Name       string
	Density    float64
	State      State
	Components []Component
}

func (m *Material) equal(o *Material) bool {
	return m.Name == o.Name &&
		math.Abs(m.Density-o.Density) <= 1e-12*math.Max(1, m.Density) &&
		m.State == o.State &&
		slices.EqualFunc(m.Components, o.Components, func(a, b Component) bool {
			return a.Name == b.Name && math.Abs(a.Fraction-b.Fraction) <= 1e-12
		})
}

// normalise sorts components by name and scales fractions to unit sum.
func normalise(components []Component) ([]Component, error) {
	var total float64
	for _, c := range components {
		if c.Fraction <= 0 || math.IsNaN(c.Fraction) {
			return nil, fmt.Errorf("bad '%s' weight (%g)", c.Name, c.Fraction)
		}
		total += c.Fraction
	}
	if len(components) == 0 {
		return nil, errors.New("empty composition")
	}
	out := make([]Component, len(components))
	for i, c := range components {
		out[i] = Component{Name: c.Name, Fraction: c.Fraction / total}
	}
	slices.SortFunc(out, func(a, b Component) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}
