package spec

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/chazu/calzone/pkg/material"
)

// ErrStop can be returned by a Walk callback to end the walk early.
var ErrStop = errors.New("spec: stop walk")

// Walk calls fn for every volume of the document, depth first, mothers
// before daughters.
func (d *Document) Walk(fn func(path string, v *VolumeSpec) error) error {
	if d.Volume == nil {
		return nil
	}
	err := walk(d.Volume.Name, d.Volume, fn)
	if errors.Is(err, ErrStop) {
		return nil
	}
	return err
}

func walk(path string, v *VolumeSpec, fn func(string, *VolumeSpec) error) error {
	if err := fn(path, v); err != nil {
		return err
	}
	for _, d := range v.Volumes {
		if err := walk(path+"."+d.Name, d, fn); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the volume at the given dotted pathname, starting with
// the root name.
func (d *Document) Lookup(path string) (*VolumeSpec, error) {
	names := strings.Split(path, ".")
	if d.Volume == nil || names[0] != d.Volume.Name {
		return nil, fmt.Errorf("spec: unknown '%s' volume", path)
	}
	v := d.Volume
	for _, name := range names[1:] {
		if v = v.Daughter(name); v == nil {
			return nil, fmt.Errorf("spec: unknown '%s' volume", path)
		}
	}
	return v, nil
}

// Contains reports whether path names a volume of the document.
func (d *Document) Contains(path string) bool {
	_, err := d.Lookup(path)
	return err == nil
}

// Find returns the pathname of the single volume whose pathname ends with
// stem, on a name boundary.
func (d *Document) Find(stem string) (string, *VolumeSpec, error) {
	var paths []string
	var found *VolumeSpec
	_ = d.Walk(func(path string, v *VolumeSpec) error {
		if path == stem || strings.HasSuffix(path, "."+stem) {
			paths = append(paths, path)
			found = v
		}
		return nil
	})
	switch len(paths) {
	case 0:
		return "", nil, fmt.Errorf("spec: unknown '%s' volume", stem)
	case 1:
		return paths[0], found, nil
	default:
		return "", nil, fmt.Errorf("spec: ambiguous '%s' volume (%s)", stem, strings.Join(paths, ", "))
	}
}

// Delete removes the volume at path.
func (d *Document) Delete(path string) error {
	if mother, child, ok := cutLast(path); ok {
		if m, err := d.Lookup(mother); err == nil {
			n := len(m.Volumes)
			m.Volumes = slices.DeleteFunc(m.Volumes, func(v *VolumeSpec) bool { return v.Name == child })
			if len(m.Volumes) < n {
				m.forget(child)
				return nil
			}
		}
	}
	if d.Volume != nil && d.Volume.Name == path {
		return fmt.Errorf("spec: cannot delete root volume '%s'", path)
	}
	return fmt.Errorf("spec: unknown '%s' volume", path)
}

// Modification lists the properties replaced by Modify. Nil fields are
// left unchanged.
type Modification struct {
	Material *string
	Overlaps [][2]string
	Position *[3]float64
	Roles    *Roles
	Rotation *[3][3]float64
	Shape    *Shape
	Subtract []string
}

// Modify replaces properties of the volume at path.
func (d *Document) Modify(path string, m Modification) error {
	v, err := d.Lookup(path)
	if err != nil {
		return err
	}
	if m.Overlaps != nil {
		for _, p := range m.Overlaps {
			for _, name := range p {
				if v.Daughter(name) == nil {
					return fmt.Errorf("spec: bad overlap (undefined '%s' volume)", name)
				}
			}
		}
	}
	if m.Material != nil {
		v.Material = *m.Material
	}
	if m.Overlaps != nil {
		v.Overlaps = CanonicalOverlaps(m.Overlaps)
	}
	if m.Position != nil {
		v.Position = *m.Position
	}
	if m.Roles != nil {
		v.Roles = *m.Roles
	}
	if m.Rotation != nil {
		r := *m.Rotation
		v.Rotation = &r
	}
	if m.Shape != nil {
		v.Shape = m.Shape.clone()
	}
	if m.Subtract != nil {
		v.Subtract = append([]string(nil), m.Subtract...)
	}
	return nil
}

// Move relocates the volume at source to destination. Within the same
// mother this is a rename. Otherwise the volume is detached and placed
// under the destination mother, replacing any volume of the same name.
func (d *Document) Move(source, destination string) error {
	srcMother, srcName, ok := cutLast(source)
	if !ok {
		return fmt.Errorf("spec: cannot relocate root volume '%s'", source)
	}
	dstMother, dstName, ok := cutLast(destination)
	if !ok {
		return fmt.Errorf("spec: cannot relocate as root volume '%s'", source)
	}
	if dstName != srcName {
		if err := CheckName(dstName); err != nil {
			return fmt.Errorf("spec: bad name '%s' (%s)", dstName, err)
		}
	}

	if dstMother == srcMother {
		v, err := d.Lookup(source)
		if err != nil {
			return err
		}
		m, _ := d.Lookup(srcMother)
		m.rename(srcName, dstName)
		v.Name = dstName
		return nil
	}
	dst, err := d.Lookup(dstMother)
	if err != nil {
		return err
	}
	src, err := d.Lookup(srcMother)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(src.Volumes, func(v *VolumeSpec) bool { return v.Name == srcName })
	if i < 0 {
		return fmt.Errorf("spec: unknown '%s' volume", source)
	}
	if strings.HasPrefix(dstMother+".", source+".") {
		return fmt.Errorf("spec: cannot relocate '%s' inside itself", source)
	}
	v := src.Volumes[i]
	src.Volumes = slices.Delete(src.Volumes, i, i+1)
	src.forget(srcName)
	v.Subtract = nil
	v.Name = dstName
	if j := slices.IndexFunc(dst.Volumes, func(o *VolumeSpec) bool { return o.Name == dstName }); j >= 0 {
		dst.Volumes[j] = v
	} else {
		dst.Volumes = append(dst.Volumes, v)
	}
	return nil
}

// Place adds the root volume of def under mother, or under the document
// root if mother is empty, replacing any daughter of the same name.
// Position and rotation, when given, override the placement of def. The
// material definitions of def are merged into d.
func (d *Document) Place(def *Document, mother string, position *[3]float64, rotation *[3][3]float64) error {
	if def == nil || def.Volume == nil {
		return errors.New("spec: nothing to place")
	}
	m := d.Volume
	if mother != "" {
		var err error
		if m, err = d.Lookup(mother); err != nil {
			return err
		}
	}
	v := def.Volume.Clone()
	if position != nil {
		v.Position = *position
	}
	if rotation != nil {
		r := *rotation
		v.Rotation = &r
	}
	if i := slices.IndexFunc(m.Volumes, func(o *VolumeSpec) bool { return o.Name == v.Name }); i >= 0 {
		m.Volumes[i] = v
	} else {
		m.Volumes = append(m.Volumes, v)
	}
	if !def.Materials.IsEmpty() {
		if d.Materials == nil {
			d.Materials = new(material.Definitions)
		}
		d.Materials.Merge(def.Materials)
	}
	return nil
}

// cutLast splits a pathname into its mother path and last name.
func cutLast(path string) (mother, name string, ok bool) {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return "", path, false
	}
	return path[:i], path[i+1:], true
}

// forget drops the references of m and its daughters to daughter name.
func (m *VolumeSpec) forget(name string) {
	m.Overlaps = slices.DeleteFunc(m.Overlaps, func(p [2]string) bool {
		return p[0] == name || p[1] == name
	})
	for _, d := range m.Volumes {
		d.Subtract = slices.DeleteFunc(d.Subtract, func(s string) bool { return s == name })
	}
}

// rename updates the references of m and its daughters to a renamed
// daughter.
func (m *VolumeSpec) rename(from, to string) {
	for i, p := range m.Overlaps {
		for j := range p {
			if p[j] == from {
				m.Overlaps[i][j] = to
			}
		}
	}
	m.Overlaps = CanonicalOverlaps(m.Overlaps)
	for _, d := range m.Volumes {
		for i, s := range d.Subtract {
			if s == from {
				d.Subtract[i] = to
			}
		}
	}
}
