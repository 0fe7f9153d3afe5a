package spec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"unicode"

	"github.com/chazu/calzone/pkg/material"
	"github.com/chazu/calzone/pkg/mesh"
	"gopkg.in/yaml.v3"
)

// DecodeError locates a malformed entry of a YAML volume description.
type DecodeError struct {
	Path    string // dotted pathname of the enclosing volume
	Line    int
	Message string
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("spec: line %d: %s", e.Line, e.Message)
	}
	return fmt.Sprintf("spec: line %d: bad '%s' volume (%s)", e.Line, e.Path, e.Message)
}

// LoadFile reads a YAML volume description. Relative mesh paths are
// resolved against the directory of the file.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("spec: %w", err)
	}
	doc, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	_ = doc.Walk(func(_ string, v *VolumeSpec) error {
		if m := v.Shape.Mesh; m != nil && m.Path != "" && !filepath.IsAbs(m.Path) {
			if m.Name == "" {
				m.Name = m.Path
			}
			m.Path = filepath.Join(dir, m.Path)
		}
		return nil
	})
	return doc, nil
}

// Decode reads a YAML volume description. The document is a mapping with
// a single capitalised key, the root volume, plus an optional "materials"
// entry. Inside a volume, lowercase keys are properties or the shape and
// capitalised keys are daughter volumes, kept in order.
func Decode(r io.Reader) (*Document, error) {
	var root yaml.Node
	if err := yaml.NewDecoder(r).Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("spec: empty document")
		}
		return nil, fmt.Errorf("spec: %w", err)
	}
	n := &root
	if n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
		n = n.Content[0]
	}
	if n.Kind != yaml.MappingNode {
		return nil, &DecodeError{Line: n.Line, Message: "expected a mapping"}
	}

	d := &decoder{}
	doc := &Document{}
	var volumes []string
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, value := n.Content[i], n.Content[i+1]
		switch {
		case key.Value == "materials":
			if err := d.materials(value); err != nil {
				return nil, err
			}
		case isVolumeName(key.Value):
			volumes = append(volumes, key.Value)
			if len(volumes) > 1 {
				continue
			}
			v, err := d.volume(key.Value, key.Value, value)
			if err != nil {
				return nil, err
			}
			doc.Volume = v
		default:
			return nil, &DecodeError{Line: key.Line, Message: fmt.Sprintf("unknown entry '%s'", key.Value)}
		}
	}
	if len(volumes) != 1 {
		return nil, &DecodeError{Line: n.Line, Message: fmt.Sprintf("expected 1 root volume, found %d", len(volumes))}
	}
	if !d.defs.IsEmpty() {
		doc.Materials = &d.defs
	}
	return doc, nil
}

func isVolumeName(key string) bool {
	for _, c := range key {
		return unicode.IsUpper(c)
	}
	return false
}

// decoder collects material definitions found anywhere in the tree.
type decoder struct {
	defs material.Definitions
}

func (d *decoder) materials(n *yaml.Node) error {
	var defs material.Definitions
	if err := n.Decode(&defs); err != nil {
		return &DecodeError{Line: n.Line, Message: fmt.Sprintf("bad materials (%s)", err)}
	}
	d.defs.Merge(&defs)
	return nil
}

func (d *decoder) volume(name, path string, n *yaml.Node) (*VolumeSpec, error) {
	bad := func(n *yaml.Node, format string, args ...any) error {
		return &DecodeError{Path: path, Line: n.Line, Message: fmt.Sprintf(format, args...)}
	}
	if err := CheckName(name); err != nil {
		return nil, bad(n, "bad name (%s)", err)
	}
	if n.Kind != yaml.MappingNode {
		return nil, bad(n, "expected a mapping")
	}

	v := &VolumeSpec{Name: name}
	var overlaps *yaml.Node
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, value := n.Content[i], n.Content[i+1]
		var err error
		switch k := key.Value; k {
		case "material":
			err = value.Decode(&v.Material)
		case "position":
			err = value.Decode(&v.Position)
		case "rotation":
			var rows [3][3]float64
			if err = value.Decode(&rows); err == nil {
				v.Rotation = &rows
			}
		case "subtract":
			v.Subtract, err = strings1(value)
		case "overlaps":
			overlaps = value
		case "role", "roles":
			var ss []string
			if ss, err = strings1(value); err == nil {
				v.Roles, err = ParseRoles(ss)
			}
		case "materials":
			err = d.materials(value)
		case "box", "cylinder", "sphere", "envelope", "mesh", "tessellation":
			if kinds := v.Shape.Kinds(); len(kinds) > 0 {
				return nil, bad(key, "multiple shape definitions (%s, %s, ..)", kinds[0], k)
			}
			err = decodeShape(k, value, &v.Shape)
		default:
			if !isVolumeName(k) {
				return nil, bad(key, "unknown property or shape '%s'", k)
			}
			daughter, derr := d.volume(k, path+"."+k, value)
			if derr != nil {
				return nil, derr
			}
			v.Volumes = append(v.Volumes, daughter)
		}
		if err != nil {
			var derr *DecodeError
			if errors.As(err, &derr) {
				return nil, err
			}
			return nil, bad(value, "bad %s (%s)", key.Value, err)
		}
	}
	if v.Shape.Kind() == ShapeNone {
		return nil, bad(n, "missing shape")
	}
	if overlaps != nil {
		pairs, err := decodeOverlaps(overlaps)
		if err != nil {
			return nil, bad(overlaps, "bad overlaps (%s)", err)
		}
		for _, p := range pairs {
			for _, name := range p {
				if v.Daughter(name) == nil {
					return nil, bad(overlaps, "bad overlap (undefined '%s' volume)", name)
				}
			}
		}
		v.Overlaps = CanonicalOverlaps(pairs)
	}
	return v, nil
}

// strings1 decodes a string or a sequence of strings.
func strings1(n *yaml.Node) ([]string, error) {
	if n.Kind == yaml.ScalarNode {
		return []string{n.Value}, nil
	}
	var ss []string
	err := n.Decode(&ss)
	return ss, err
}

// decodeOverlaps reads either a mapping from a volume to one or more
// volumes, or a sequence of pairs.
func decodeOverlaps(n *yaml.Node) ([][2]string, error) {
	var pairs [][2]string
	switch n.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			left := n.Content[i].Value
			rights, err := strings1(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			for _, right := range rights {
				pairs = append(pairs, [2]string{left, right})
			}
		}
	case yaml.SequenceNode:
		if err := n.Decode(&pairs); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("expected a mapping or a sequence of pairs")
	}
	return pairs, nil
}

func decodeShape(kind string, n *yaml.Node, s *Shape) error {
	scalar := n.Kind == yaml.ScalarNode
	switch kind {
	case "box":
		b := &Box{}
		switch {
		case scalar:
			var size float64
			if err := n.Decode(&size); err != nil {
				return err
			}
			b.Size = [3]float64{size, size, size}
		case n.Kind == yaml.SequenceNode:
			if err := n.Decode(&b.Size); err != nil {
				return err
			}
		default:
			if err := decodeStrict(n, b); err != nil {
				return err
			}
		}
		s.Box = b
	case "cylinder":
		c := &Cylinder{}
		if err := decodeStrict(n, c); err != nil {
			return err
		}
		s.Cylinder = c
	case "sphere":
		sp := &Sphere{}
		if scalar {
			if err := n.Decode(&sp.Radius); err != nil {
				return err
			}
		} else if err := decodeStrict(n, sp); err != nil {
			return err
		}
		s.Sphere = sp
	case "envelope":
		e := &Envelope{}
		if scalar {
			e.Shape = n.Value
		} else {
			var raw struct {
				Shape   string    `yaml:"shape"`
				Safety  yaml.Node `yaml:"safety"`
				Padding yaml.Node `yaml:"padding"`
			}
			if err := decodeStrict(n, &raw); err != nil {
				return err
			}
			e.Shape = raw.Shape
			for _, p := range []*yaml.Node{&raw.Safety, &raw.Padding} {
				if p.Kind == 0 {
					continue
				}
				padding, err := floats1(p)
				if err != nil {
					return err
				}
				e.Padding = padding
			}
		}
		s.Envelope = e
	case "mesh", "tessellation":
		m := &Mesh{}
		if scalar {
			m.Path = n.Value
		} else {
			var raw struct {
				Path       string      `yaml:"path"`
				Map        *MapSpec    `yaml:"map"`
				Units      string      `yaml:"units"`
				Algorithm  string      `yaml:"algorithm"`
				Name       string      `yaml:"name"`
				Origin     *[3]float64 `yaml:"origin"`
				ExtraDepth *float64    `yaml:"extra_depth"`
				Regular    *bool       `yaml:"regular"`
			}
			if err := decodeStrict(n, &raw); err != nil {
				return err
			}
			alg, err := mesh.ParseAlgorithm(raw.Algorithm)
			if err != nil {
				return err
			}
			*m = Mesh{
				Path: raw.Path, Map: raw.Map, Units: raw.Units, Algorithm: alg, Name: raw.Name,
				Origin: raw.Origin, ExtraDepth: raw.ExtraDepth, Regular: raw.Regular,
			}
		}
		s.Mesh = m
	}
	return nil
}

// floats1 decodes a number or a sequence of numbers.
func floats1(n *yaml.Node) ([]float64, error) {
	if n.Kind == yaml.ScalarNode {
		var f float64
		err := n.Decode(&f)
		return []float64{f}, err
	}
	var fs []float64
	err := n.Decode(&fs)
	return fs, err
}

// decodeStrict decodes a mapping into out, rejecting unknown keys.
func decodeStrict(n *yaml.Node, out any) error {
	if n.Kind != yaml.MappingNode {
		return errors.New("expected a mapping")
	}
	known := yamlKeys(out)
	for i := 0; i < len(n.Content); i += 2 {
		if k := n.Content[i].Value; !known[k] {
			return fmt.Errorf("unknown property '%s'", k)
		}
	}
	return n.Decode(out)
}

// yamlKeys returns the mapping keys accepted by the struct behind out.
func yamlKeys(out any) map[string]bool {
	t := reflect.TypeOf(out)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	keys := make(map[string]bool, t.NumField())
	for i := range t.NumField() {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "" {
			name = strings.ToLower(f.Name)
		}
		keys[name] = true
	}
	return keys
}
