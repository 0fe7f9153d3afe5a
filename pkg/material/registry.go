package material

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// ElementDef describes a user element. Symbol defaults to the name.
type ElementDef struct {
	Z      float64 `yaml:"Z" validate:"gt=0"`
	A      float64 `yaml:"A" validate:"gt=0"`
	Symbol string  `yaml:"symbol,omitempty"`
}

// MoleculeDef describes a material by atom counts per element.
type MoleculeDef struct {
	Density     float64        `yaml:"density" validate:"gt=0"`
	State       string         `yaml:"state,omitempty" validate:"omitempty,oneof=gas liquid solid"`
	Composition map[string]int `yaml:"composition" validate:"min=1"`
}

// MixtureDef describes a material by mass weights of elements or other
// materials. Weights are normalised.
type MixtureDef struct {
	Density     float64            `yaml:"density" validate:"gt=0"`
	State       string             `yaml:"state,omitempty" validate:"omitempty,oneof=gas liquid solid"`
	Composition map[string]float64 `yaml:"composition" validate:"min=1"`
}

// Definitions groups user material definitions, keyed by name.
type Definitions struct {
	Elements  map[string]ElementDef  `yaml:"elements,omitempty"`
	Molecules map[string]MoleculeDef `yaml:"molecules,omitempty"`
	Mixtures  map[string]MixtureDef  `yaml:"mixtures,omitempty"`
}

// IsEmpty reports whether d defines nothing.
func (d *Definitions) IsEmpty() bool {
	return d == nil || len(d.Elements)+len(d.Molecules)+len(d.Mixtures) == 0
}

// Merge adds the definitions of o to d. Later definitions of a name win.
func (d *Definitions) Merge(o *Definitions) {
	if o == nil {
		return
	}
	if d.Elements == nil {
		d.Elements = make(map[string]ElementDef)
	}
	if d.Molecules == nil {
		d.Molecules = make(map[string]MoleculeDef)
	}
	if d.Mixtures == nil {
		d.Mixtures = make(map[string]MixtureDef)
	}
	maps.Copy(d.Elements, o.Elements)
	maps.Copy(d.Molecules, o.Molecules)
	maps.Copy(d.Mixtures, o.Mixtures)
}

// Registry resolves element and material names. It is safe for concurrent
// use.
type Registry struct {
	mu        sync.RWMutex
	elements  map[string]*Element
	materials map[string]*Material
}

// NewRegistry returns a registry holding the built-in NIST subset.
func NewRegistry() *Registry {
	r := &Registry{
		elements:  make(map[string]*Element),
		materials: make(map[string]*Material),
	}
	for i := range nistElements {
		e := nistElements[i]
		r.elements[e.Name] = &e
	}
	for i := range nistMaterials {
		m := nistMaterials[i]
		m.Components, _ = normalise(m.Components)
		r.materials[m.Name] = &m
	}
	return r
}

// Default is the process wide registry.
var Default = NewRegistry()

// Lookup returns the named material.
func (r *Registry) Lookup(name string) (*Material, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if m, ok := r.materials[name]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("%w material '%s'", ErrUnknown, name)
}

// Element returns the element with the given name or symbol.
func (r *Registry) Element(name string) (*Element, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e := r.element(name, nil); e != nil {
		return e, nil
	}
	return nil, fmt.Errorf("%w element '%s'", ErrUnknown, name)
}

func (r *Registry) element(name string, staged map[string]*Element) *Element {
	if e, ok := staged[name]; ok {
		return e
	}
	if e, ok := r.elements[name]; ok {
		return e
	}
	for _, e := range staged {
		if e.Symbol == name {
			return e
		}
	}
	for _, e := range r.elements {
		if e.Symbol == name {
			return e
		}
	}
	return nil
}

// Materials returns the names of all registered materials, sorted.
func (r *Registry) Materials() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.materials))
}

// Elements returns the elemental mass fractions of a material, expanding
// nested mixtures.
func (r *Registry) Elements(name string) (map[string]float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]float64)
	var expand func(name string, weight float64, depth int) error
	expand = func(name string, weight float64, depth int) error {
		if depth > len(r.materials) {
			return fmt.Errorf("material: cycle through '%s'", name)
		}
		m, ok := r.materials[name]
		if !ok {
			return fmt.Errorf("%w material '%s'", ErrUnknown, name)
		}
		for _, c := range m.Components {
			if e := r.element(c.Name, nil); e != nil {
				if _, isMaterial := r.materials[c.Name]; !isMaterial {
					out[e.Name] += weight * c.Fraction
					continue
				}
			}
			if err := expand(c.Name, weight*c.Fraction, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := expand(name, 1, 0); err != nil {
		return nil, err
	}
	return out, nil
}

// Define registers the given definitions. Elements come first, then
// molecules, then mixtures in dependency order. Redefining a name with
// identical properties is accepted. Nothing is registered on error.
func (r *Registry) Define(d *Definitions) error {
	if d.IsEmpty() {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	elements := make(map[string]*Element)
	for _, name := range slices.Sorted(maps.Keys(d.Elements)) {
		def := d.Elements[name]
		symbol := def.Symbol
		if symbol == "" {
			symbol = name
		}
		e := &Element{Name: name, Symbol: symbol, Z: def.Z, A: def.A}
		if old, ok := r.elements[name]; ok && *old != *e {
			return fmt.Errorf("material: element '%s' already defined with different properties", name)
		}
		elements[name] = e
	}

	materials := make(map[string]*Material)
	stage := func(m *Material) error {
		if old, ok := r.materials[m.Name]; ok && !old.equal(m) {
			return fmt.Errorf("material: '%s' already defined with different properties", m.Name)
		}
		materials[m.Name] = m
		return nil
	}

	for _, name := range slices.Sorted(maps.Keys(d.Molecules)) {
		def := d.Molecules[name]
		state, err := ParseState(def.State)
		if err != nil {
			return fmt.Errorf("material: molecule '%s': %w", name, err)
		}
		components := make([]Component, 0, len(def.Composition))
		for _, symbol := range slices.Sorted(maps.Keys(def.Composition)) {
			e := r.element(symbol, elements)
			if e == nil {
				return fmt.Errorf("material: molecule '%s': undefined '%s' element", name, symbol)
			}
			count := def.Composition[symbol]
			if count <= 0 {
				return fmt.Errorf("material: molecule '%s': bad '%s' count (%d)", name, symbol, count)
			}
			components = append(components, Component{Name: e.Name, Fraction: float64(count) * e.A})
		}
		components, err = normalise(components)
		if err != nil {
			return fmt.Errorf("material: molecule '%s': %w", name, err)
		}
		if err := stage(&Material{Name: name, Density: def.Density, State: state, Components: components}); err != nil {
			return err
		}
	}

	order, err := sortMixtures(d.Mixtures)
	if err != nil {
		return err
	}
	for _, name := range order {
		def := d.Mixtures[name]
		state, err := ParseState(def.State)
		if err != nil {
			return fmt.Errorf("material: mixture '%s': %w", name, err)
		}
		components := make([]Component, 0, len(def.Composition))
		for _, c := range slices.Sorted(maps.Keys(def.Composition)) {
			_, staged := materials[c]
			_, known := r.materials[c]
			if !staged && !known && r.element(c, elements) == nil {
				return fmt.Errorf("material: mixture '%s': undefined '%s' component", name, c)
			}
			components = append(components, Component{Name: c, Fraction: def.Composition[c]})
		}
		components, err = normalise(components)
		if err != nil {
			return fmt.Errorf("material: mixture '%s': %w", name, err)
		}
		if err := stage(&Material{Name: name, Density: def.Density, State: state, Components: components}); err != nil {
			return err
		}
	}

	maps.Copy(r.elements, elements)
	maps.Copy(r.materials, materials)
	return nil
}

// sortMixtures orders mixtures so that every mixture comes after the
// mixtures it is made of. Cycles are detected with a three colour depth
// first search.
func sortMixtures(mixtures map[string]MixtureDef) ([]string, error) {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(mixtures))
	order := make([]string, 0, len(mixtures))

	var visit func(name, from string) error
	visit = func(name, from string) error {
		switch color[name] {
		case black:
			return nil
		case gray:
			return fmt.Errorf("material: cycle between '%s' and '%s'", name, from)
		}
		color[name] = gray
		for _, c := range slices.Sorted(maps.Keys(mixtures[name].Composition)) {
			if _, ok := mixtures[c]; !ok {
				continue
			}
			if err := visit(c, name); err != nil {
				return err
			}
		}
		color[name] = black
		order = append(order, name)
		return nil
	}

	for _, name := range slices.Sorted(maps.Keys(mixtures)) {
		if err := visit(name, name); err != nil {
			return nil, err
		}
	}
	return order, nil
}
