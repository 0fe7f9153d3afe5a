package material

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestLookupNIST(t *testing.T) {
	r := NewRegistry()
	air, err := r.Lookup("G4_AIR")
	if err != nil {
		t.Fatal(err)
	}
	if air.State != StateGas || math.Abs(air.Density-1.20479e-3) > 1e-12 {
		t.Errorf("G4_AIR = %+v", air)
	}
	var total float64
	for _, c := range air.Components {
		total += c.Fraction
	}
	if math.Abs(total-1) > 1e-12 {
		t.Errorf("fractions sum to %v", total)
	}

	if _, err := r.Lookup("G4_UNOBTAINIUM"); !errors.Is(err, ErrUnknown) {
		t.Errorf("err = %v, want ErrUnknown", err)
	}
}

func TestDefineMolecule(t *testing.T) {
	r := NewRegistry()
	err := r.Define(&Definitions{
		Molecules: map[string]MoleculeDef{
			"Water": {Density: 1, State: "liquid", Composition: map[string]int{"H": 2, "O": 1}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	w, err := r.Lookup("Water")
	if err != nil {
		t.Fatal(err)
	}
	nist, _ := r.Lookup("G4_WATER")
	for i, c := range w.Components {
		if c.Name != nist.Components[i].Name || math.Abs(c.Fraction-nist.Components[i].Fraction) > 1e-4 {
			t.Errorf("component %d = %+v, want about %+v", i, c, nist.Components[i])
		}
	}

	// Identical redefinition is accepted, a different one is not.
	same := &Definitions{Molecules: map[string]MoleculeDef{
		"Water": {Density: 1, State: "liquid", Composition: map[string]int{"H": 2, "O": 1}},
	}}
	if err := r.Define(same); err != nil {
		t.Errorf("identical redefinition: %v", err)
	}
	other := &Definitions{Molecules: map[string]MoleculeDef{
		"Water": {Density: 1.1, Composition: map[string]int{"H": 2, "O": 1}},
	}}
	if err := r.Define(other); err == nil {
		t.Error("expected a redefinition error")
	}
}

func TestDefineMixtures(t *testing.T) {
	r := NewRegistry()
	err := r.Define(&Definitions{
		Elements: map[string]ElementDef{
			"Xenon": {Z: 54, A: 131.293, Symbol: "Xe"},
		},
		Mixtures: map[string]MixtureDef{
			// Defined before its dependency alphabetically.
			"AWetRock": {Density: 2.4, Composition: map[string]float64{"Rock": 9, "G4_WATER": 1}},
			"Rock":     {Density: 2.65, State: "solid", Composition: map[string]float64{"G4_CONCRETE": 1}},
			"Tracer":   {Density: 0.01, State: "gas", Composition: map[string]float64{"Xe": 1, "G4_AIR": 3}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	m, err := r.Lookup("AWetRock")
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Components) != 2 || m.Components[0].Name != "G4_WATER" || math.Abs(m.Components[0].Fraction-0.1) > 1e-12 {
		t.Errorf("AWetRock = %+v", m.Components)
	}

	fractions, err := r.Elements("AWetRock")
	if err != nil {
		t.Fatal(err)
	}
	var total float64
	for _, f := range fractions {
		total += f
	}
	if math.Abs(total-1) > 1e-9 {
		t.Errorf("elemental fractions sum to %v", total)
	}
	if _, ok := fractions["Si"]; !ok {
		t.Error("expected silicon from the concrete")
	}

	if e, err := r.Element("Xe"); err != nil || e.Name != "Xenon" {
		t.Errorf("Element(Xe) = %v, %v", e, err)
	}
}

func TestDefineErrors(t *testing.T) {
	tests := []struct {
		name string
		defs Definitions
		want string
	}{
		{
			"cycle",
			Definitions{Mixtures: map[string]MixtureDef{
				"A": {Density: 1, Composition: map[string]float64{"B": 1}},
				"B": {Density: 1, Composition: map[string]float64{"A": 1}},
			}},
			"cycle between",
		},
		{
			"unknown component",
			Definitions{Mixtures: map[string]MixtureDef{
				"A": {Density: 1, Composition: map[string]float64{"Kryptonite": 1}},
			}},
			"undefined 'Kryptonite' component",
		},
		{
			"unknown element",
			Definitions{Molecules: map[string]MoleculeDef{
				"M": {Density: 1, Composition: map[string]int{"Qq": 1}},
			}},
			"undefined 'Qq' element",
		},
		{
			"bad state",
			Definitions{Mixtures: map[string]MixtureDef{
				"A": {Density: 1, State: "plasma", Composition: map[string]float64{"H": 1}},
			}},
			"bad state",
		},
		{
			"bad weight",
			Definitions{Mixtures: map[string]MixtureDef{
				"A": {Density: 1, Composition: map[string]float64{"H": -1}},
			}},
			"bad 'H' weight",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			before := len(r.Materials())
			err := r.Define(&tt.defs)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want %q", err, tt.want)
			}
			if len(r.Materials()) != before {
				t.Error("failed definition registered materials")
			}
		})
	}
}

func TestParseState(t *testing.T) {
	for in, want := range map[string]State{"": StateUndefined, "Gas": StateGas, "solid": StateSolid, "liquid": StateLiquid} {
		if got, err := ParseState(in); err != nil || got != want {
			t.Errorf("ParseState(%q) = %v, %v", in, got, err)
		}
	}
}

func TestMerge(t *testing.T) {
	var d Definitions
	d.Merge(&Definitions{Elements: map[string]ElementDef{"X": {Z: 1, A: 1}}})
	d.Merge(&Definitions{Elements: map[string]ElementDef{"Y": {Z: 2, A: 4}}})
	d.Merge(nil)
	if len(d.Elements) != 2 || d.IsEmpty() {
		t.Errorf("merged = %+v", d)
	}
}
