package engine

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/chazu/calzone/pkg/geom"
	"github.com/chazu/calzone/pkg/material"
	"github.com/chazu/calzone/pkg/mesh"
	"github.com/chazu/calzone/pkg/spec"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpVolume wraps a volume returned by `volume` and consumed by its
// mother or by `geometry`.
type sexpVolume struct {
	v *spec.VolumeSpec
}

func (s *sexpVolume) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(volume %q :daughters %d)", s.v.Name, len(s.v.Volumes))
}
func (s *sexpVolume) Type() *zygo.RegisteredType { return nil }

// sexpShape wraps one shape variant.
type sexpShape struct {
	shape spec.Shape
}

func (s *sexpShape) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(%s)", s.shape.Kind())
}
func (s *sexpShape) Type() *zygo.RegisteredType { return nil }

// sexpVec3 wraps a position or direction, in user units.
type sexpVec3 struct {
	vec [3]float64
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec[0], v.vec[1], v.vec[2])
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// sexpRotation wraps an object rotation.
type sexpRotation struct {
	rot geom.Rotation
}

func (r *sexpRotation) SexpString(ps *zygo.PrintState) string {
	x, y, z := r.rot.AxisAngles()
	return fmt.Sprintf("(rotation %g %g %g)", x/geom.Deg, y/geom.Deg, z/geom.Deg)
}
func (r *sexpRotation) Type() *zygo.RegisteredType { return nil }

// sexpElevation wraps an inline elevation model for `mesh :map`.
type sexpElevation struct {
	m *spec.MapSpec
}

func (e *sexpElevation) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(elevation %dx%d)", len(e.m.Z), len(e.m.Z[0]))
}
func (e *sexpElevation) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// isKW checks if a Sexp is a preprocessed keyword string and returns the
// keyword name without its prefix.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	return strings.CutPrefix(str.S, kwPrefix)
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments. A
// keyword at the end of the list is a flag with a null value.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			continue
		}
		if i+1 < len(args) {
			result.kw[name] = args[i+1]
			i++
		} else {
			result.kw[name] = zygo.SexpNull
		}
	}
	return result
}

// unknown returns an error naming the first keyword not in allowed.
func (a kwArgs) unknown(allowed ...string) error {
	for name := range a.kw {
		if !slices.Contains(allowed, name) {
			return fmt.Errorf("unknown keyword :%s", name)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

func number(s zygo.Sexp) (float64, bool) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), true
	case *zygo.SexpFloat:
		return v.Val, true
	}
	return 0, false
}

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	if f, ok := number(s); ok {
		return f, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a plain string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok && !strings.HasPrefix(str.S, kwPrefix) {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	return strings.TrimPrefix(str.S, kwPrefix), nil
}

func toBool(s zygo.Sexp) (bool, error) {
	if b, ok := s.(*zygo.SexpBool); ok {
		return b.Val, nil
	}
	return false, fmt.Errorf("expected boolean, got %T (%s)", s, s.SexpString(nil))
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// toFloats extracts a list of numbers. A single number is a list of one.
func toFloats(s zygo.Sexp) ([]float64, error) {
	if f, ok := number(s); ok {
		return []float64{f}, nil
	}
	items, err := sexpListToSlice(s)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(items))
	for i, item := range items {
		if out[i], err = toFloat64(item); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return out, nil
}

// toRange extracts a [start, end] pair.
func toRange(s zygo.Sexp) (*[2]float64, error) {
	f, err := toFloats(s)
	if err != nil {
		return nil, err
	}
	if len(f) != 2 {
		return nil, fmt.Errorf("expected 2 numbers, got %d", len(f))
	}
	return &[2]float64{f[0], f[1]}, nil
}

// toStrings extracts a list of strings or keywords. A single one is a
// list of one.
func toStrings(s zygo.Sexp) ([]string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return []string{strings.TrimPrefix(str.S, kwPrefix)}, nil
	}
	items, err := sexpListToSlice(s)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(items))
	for i, item := range items {
		if out[i], err = toKeywordString(item); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return out, nil
}

func toVec3(s zygo.Sexp) ([3]float64, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	f, err := toFloats(s)
	if err != nil || len(f) != 3 {
		return [3]float64{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
	}
	return [3]float64{f[0], f[1], f[2]}, nil
}

func toRotation(s zygo.Sexp) (geom.Rotation, error) {
	if r, ok := s.(*sexpRotation); ok {
		return r.rot, nil
	}
	return geom.IdentityRotation, fmt.Errorf("expected rotation, got %T (%s)", s, s.SexpString(nil))
}

// toPairs extracts a list of volume name pairs.
func toPairs(s zygo.Sexp) ([][2]string, error) {
	items, err := sexpListToSlice(s)
	if err != nil {
		return nil, err
	}
	out := make([][2]string, 0, len(items))
	for i, item := range items {
		names, err := toStrings(item)
		if err != nil || len(names) != 2 {
			return nil, fmt.Errorf("entry %d: expected a pair of volume names", i)
		}
		out = append(out, [2]string{names[0], names[1]})
	}
	return out, nil
}

// toComposition extracts an alternating list of names and amounts.
func toComposition(s zygo.Sexp) (map[string]float64, error) {
	items, err := sexpListToSlice(s)
	if err != nil {
		return nil, err
	}
	if len(items)%2 != 0 {
		return nil, errors.New("expected name and amount pairs")
	}
	out := make(map[string]float64, len(items)/2)
	for i := 0; i < len(items); i += 2 {
		name, err := toString(items[i])
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		amount, err := toFloat64(items[i+1])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out[name] = amount
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Evaluation state
// ---------------------------------------------------------------------------

// state collects what builtins define during one evaluation.
type state struct {
	root      *spec.VolumeSpec
	materials material.Definitions
}

func newState() *state {
	return &state{materials: material.Definitions{
		Elements:  make(map[string]material.ElementDef),
		Molecules: make(map[string]material.MoleculeDef),
		Mixtures:  make(map[string]material.MixtureDef),
	}}
}

// document returns the description built by the program. Without a
// (geometry ...) form, the value of the last expression must be a volume.
func (st *state) document(last zygo.Sexp) (*spec.Document, error) {
	root := st.root
	if root == nil {
		if v, ok := last.(*sexpVolume); ok {
			root = v.v
		}
	}
	if root == nil {
		return nil, errors.New("no volume defined")
	}
	doc := &spec.Document{Volume: root}
	if !st.materials.IsEmpty() {
		defs := st.materials
		doc.Materials = &defs
	}
	return doc, nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// builtin is the shape of every registered function, minus the unused
// environment and name.
type builtin func(args []zygo.Sexp) (zygo.Sexp, error)

// add registers fn under name, prefixing its errors with the user facing
// form of the name.
func add(env *zygo.Zlisp, name string, fn builtin) {
	display := strings.ReplaceAll(name, "_", "-")
	env.AddFunction(name, func(env *zygo.Zlisp, _ string, args []zygo.Sexp) (zygo.Sexp, error) {
		out, err := fn(args)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("%s: %w", display, err)
		}
		return out, nil
	})
}

// registerBuiltins installs the description builtins into a zygomys
// environment. Source code must go through preprocessSource first.
func registerBuiltins(env *zygo.Zlisp, st *state) {
	registerGeometry(env, st)
	registerShapes(env)
	registerPlacement(env)
	registerMaterials(env, st)
}

func registerGeometry(env *zygo.Zlisp, st *state) {
	// (geometry (volume ...))
	add(env, "geometry", func(args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("expected a root volume, got %d arguments", len(args))
		}
		v, ok := args[0].(*sexpVolume)
		if !ok {
			return nil, fmt.Errorf("expected volume, got %T (%s)", args[0], args[0].SexpString(nil))
		}
		if st.root != nil {
			return nil, fmt.Errorf("root volume already defined (%s)", st.root.Name)
		}
		st.root = v.v
		return v, nil
	})

	// (volume "Name" :material "G4_AIR" :shape (box 1) :position (vec3 0 0 0)
	//         :rotation (rotate-z 90) :subtract (list "B") :overlaps (list (list "A" "B"))
	//         :roles (list :catch-ingoing) daughter...)
	add(env, "volume", func(args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return nil, errors.New("requires a name argument")
		}
		name, err := toString(pa.positional[0])
		if err != nil {
			return nil, fmt.Errorf("name: %w", err)
		}
		if err := pa.unknown("material", "shape", "position", "rotation", "subtract", "overlaps", "roles"); err != nil {
			return nil, fmt.Errorf("%q: %w", name, err)
		}
		v := &spec.VolumeSpec{Name: name}
		if err := volumeFields(v, pa.kw); err != nil {
			return nil, fmt.Errorf("%q: %w", name, err)
		}
		for i, child := range pa.positional[1:] {
			if items, err := sexpListToSlice(child); err == nil {
				for _, item := range items {
					d, ok := item.(*sexpVolume)
					if !ok {
						return nil, fmt.Errorf("%q: daughter %d: expected volume, got %T", name, i+1, item)
					}
					v.Volumes = append(v.Volumes, d.v)
				}
				continue
			}
			d, ok := child.(*sexpVolume)
			if !ok {
				return nil, fmt.Errorf("%q: daughter %d: expected volume, got %T (%s)",
					name, i+1, child, child.SexpString(nil))
			}
			v.Volumes = append(v.Volumes, d.v)
		}
		return &sexpVolume{v: v}, nil
	})
}

func volumeFields(v *spec.VolumeSpec, kw map[string]zygo.Sexp) error {
	var err error
	if s, ok := kw["material"]; ok {
		if v.Material, err = toString(s); err != nil {
			return fmt.Errorf("material: %w", err)
		}
	}
	if s, ok := kw["shape"]; ok {
		shape, ok := s.(*sexpShape)
		if !ok {
			return fmt.Errorf("shape: expected shape, got %T (%s)", s, s.SexpString(nil))
		}
		v.Shape = shape.shape
	}
	if s, ok := kw["position"]; ok {
		if v.Position, err = toVec3(s); err != nil {
			return fmt.Errorf("position: %w", err)
		}
	}
	if s, ok := kw["rotation"]; ok {
		r, err := toRotation(s)
		if err != nil {
			return fmt.Errorf("rotation: %w", err)
		}
		rows := r.Rows()
		v.Rotation = &rows
	}
	if s, ok := kw["subtract"]; ok {
		if v.Subtract, err = toStrings(s); err != nil {
			return fmt.Errorf("subtract: %w", err)
		}
	}
	if s, ok := kw["overlaps"]; ok {
		pairs, err := toPairs(s)
		if err != nil {
			return fmt.Errorf("overlaps: %w", err)
		}
		v.Overlaps = spec.CanonicalOverlaps(pairs)
	}
	if s, ok := kw["roles"]; ok {
		names, err := toStrings(s)
		if err != nil {
			return fmt.Errorf("roles: %w", err)
		}
		for i := range names {
			names[i] = strings.ReplaceAll(names[i], "-", "_")
		}
		if v.Roles, err = spec.ParseRoles(names); err != nil {
			return err
		}
	}
	return nil
}

func registerShapes(env *zygo.Zlisp) {
	// (box 10) or (box 10 20 5)
	add(env, "box", func(args []zygo.Sexp) (zygo.Sexp, error) {
		var size [3]float64
		switch len(args) {
		case 1:
			f, err := toFloat64(args[0])
			if err != nil {
				return nil, err
			}
			size = [3]float64{f, f, f}
		case 3:
			for i, a := range args {
				f, err := toFloat64(a)
				if err != nil {
					return nil, err
				}
				size[i] = f
			}
		default:
			return nil, fmt.Errorf("expected 1 or 3 sizes, got %d", len(args))
		}
		return &sexpShape{shape: spec.Shape{Box: &spec.Box{Size: size}}}, nil
	})

	// (cylinder :radius 5 :length 10 :thickness 1 :section (list 0 90))
	add(env, "cylinder", func(args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := pa.unknown("radius", "length", "thickness", "section"); err != nil {
			return nil, err
		}
		c := &spec.Cylinder{}
		var err error
		for key, dst := range map[string]*float64{"radius": &c.Radius, "length": &c.Length, "thickness": &c.Thickness} {
			if s, ok := pa.kw[key]; ok {
				if *dst, err = toFloat64(s); err != nil {
					return nil, fmt.Errorf("%s: %w", key, err)
				}
			}
		}
		if s, ok := pa.kw["section"]; ok {
			if c.Section, err = toRange(s); err != nil {
				return nil, fmt.Errorf("section: %w", err)
			}
		}
		return &sexpShape{shape: spec.Shape{Cylinder: c}}, nil
	})

	// (sphere :radius 5 :thickness 1 :azimuth-section (list 0 90) :zenith-section (list 0 45))
	add(env, "sphere", func(args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := pa.unknown("radius", "thickness", "azimuth-section", "zenith-section"); err != nil {
			return nil, err
		}
		sp := &spec.Sphere{}
		var err error
		for key, dst := range map[string]*float64{"radius": &sp.Radius, "thickness": &sp.Thickness} {
			if s, ok := pa.kw[key]; ok {
				if *dst, err = toFloat64(s); err != nil {
					return nil, fmt.Errorf("%s: %w", key, err)
				}
			}
		}
		for key, dst := range map[string]**[2]float64{"azimuth-section": &sp.AzimuthSection, "zenith-section": &sp.ZenithSection} {
			if s, ok := pa.kw[key]; ok {
				if *dst, err = toRange(s); err != nil {
					return nil, fmt.Errorf("%s: %w", key, err)
				}
			}
		}
		return &sexpShape{shape: spec.Shape{Sphere: sp}}, nil
	})

	// (envelope :shape :cylinder :padding (list 1 1 2))
	add(env, "envelope", func(args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := pa.unknown("shape", "padding"); err != nil {
			return nil, err
		}
		e := &spec.Envelope{}
		var err error
		if s, ok := pa.kw["shape"]; ok {
			if e.Shape, err = toKeywordString(s); err != nil {
				return nil, fmt.Errorf("shape: %w", err)
			}
		}
		if s, ok := pa.kw["padding"]; ok {
			if e.Padding, err = toFloats(s); err != nil {
				return nil, fmt.Errorf("padding: %w", err)
			}
		}
		return &sexpShape{shape: spec.Shape{Envelope: e}}, nil
	})

	// (elevation :x (list -5 5) :y (list -5 5) :z (list (list 0 1) (list 1 2)))
	add(env, "elevation", func(args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := pa.unknown("x", "y", "z"); err != nil {
			return nil, err
		}
		m := &spec.MapSpec{}
		for key, dst := range map[string]*[2]float64{"x": &m.X, "y": &m.Y} {
			s, ok := pa.kw[key]
			if !ok {
				return nil, fmt.Errorf("missing :%s", key)
			}
			r, err := toRange(s)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			*dst = *r
		}
		s, ok := pa.kw["z"]
		if !ok {
			return nil, errors.New("missing :z")
		}
		rows, err := sexpListToSlice(s)
		if err != nil {
			return nil, fmt.Errorf("z: %w", err)
		}
		if len(rows) == 0 {
			return nil, errors.New("z: no rows")
		}
		for i, row := range rows {
			values, err := toFloats(row)
			if err != nil {
				return nil, fmt.Errorf("z: row %d: %w", i, err)
			}
			m.Z = append(m.Z, values)
		}
		return &sexpElevation{m: m}, nil
	})

	// (mesh :path "rock.stl" :units :mm :algorithm :voxels :name "rock")
	// (mesh :map (elevation ...) :origin (vec3 0 0 -10) :extra-depth 5 :regular true)
	add(env, "mesh", func(args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := pa.unknown("path", "map", "units", "algorithm", "name", "origin", "extra-depth", "regular"); err != nil {
			return nil, err
		}
		m := &spec.Mesh{}
		var err error
		if s, ok := pa.kw["path"]; ok {
			if m.Path, err = toString(s); err != nil {
				return nil, fmt.Errorf("path: %w", err)
			}
		}
		if s, ok := pa.kw["map"]; ok {
			e, ok := s.(*sexpElevation)
			if !ok {
				return nil, fmt.Errorf("map: expected elevation, got %T (%s)", s, s.SexpString(nil))
			}
			m.Map = e.m
		}
		if s, ok := pa.kw["units"]; ok {
			if m.Units, err = toKeywordString(s); err != nil {
				return nil, fmt.Errorf("units: %w", err)
			}
		}
		if s, ok := pa.kw["algorithm"]; ok {
			name, err := toKeywordString(s)
			if err != nil {
				return nil, fmt.Errorf("algorithm: %w", err)
			}
			if m.Algorithm, err = mesh.ParseAlgorithm(name); err != nil {
				return nil, err
			}
		}
		if s, ok := pa.kw["name"]; ok {
			if m.Name, err = toString(s); err != nil {
				return nil, fmt.Errorf("name: %w", err)
			}
		}
		if s, ok := pa.kw["origin"]; ok {
			o, err := toVec3(s)
			if err != nil {
				return nil, fmt.Errorf("origin: %w", err)
			}
			m.Origin = &o
		}
		if s, ok := pa.kw["extra-depth"]; ok {
			d, err := toFloat64(s)
			if err != nil {
				return nil, fmt.Errorf("extra-depth: %w", err)
			}
			m.ExtraDepth = &d
		}
		if s, ok := pa.kw["regular"]; ok {
			r, err := toBool(s)
			if err != nil {
				return nil, fmt.Errorf("regular: %w", err)
			}
			m.Regular = &r
		}
		return &sexpShape{shape: spec.Shape{Mesh: m}}, nil
	})
}

func registerPlacement(env *zygo.Zlisp) {
	// (vec3 1 2 3)
	add(env, "vec3", func(args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return nil, fmt.Errorf("requires exactly 3 arguments, got %d", len(args))
		}
		var v sexpVec3
		for i, a := range args {
			f, err := toFloat64(a)
			if err != nil {
				return nil, fmt.Errorf("%c: %w", "xyz"[i], err)
			}
			v.vec[i] = f
		}
		return &v, nil
	})

	// (rows (vec3 0 1 0) (vec3 -1 0 0) (vec3 0 0 1))
	add(env, "rows", func(args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return nil, fmt.Errorf("requires exactly 3 rows, got %d", len(args))
		}
		var rows [3][3]float64
		for i, a := range args {
			v, err := toVec3(a)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			rows[i] = v
		}
		r, err := geom.RotationFromRows(rows)
		if err != nil {
			return nil, err
		}
		return &sexpRotation{rot: r}, nil
	})

	// (rotate-x 90), (rotate-y 90), (rotate-z 90), in degrees.
	for name, fn := range map[string]func(float64) geom.Rotation{
		"rotate_x": geom.RotateX,
		"rotate_y": geom.RotateY,
		"rotate_z": geom.RotateZ,
	} {
		add(env, name, func(args []zygo.Sexp) (zygo.Sexp, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("requires an angle, got %d arguments", len(args))
			}
			a, err := toFloat64(args[0])
			if err != nil {
				return nil, err
			}
			return &sexpRotation{rot: fn(a * geom.Deg)}, nil
		})
	}

	// (rotate r1 r2 ...) applies r1 last.
	add(env, "rotate", func(args []zygo.Sexp) (zygo.Sexp, error) {
		out := geom.IdentityRotation
		for i, a := range args {
			r, err := toRotation(a)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			out = out.Mul(r)
		}
		return &sexpRotation{rot: out}, nil
	})
}

func registerMaterials(env *zygo.Zlisp, st *state) {
	// (element "Chlorine" :symbol "Cl" :z 17 :a 35.45)
	add(env, "element", func(args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		name, err := definitionName(pa, "symbol", "z", "a")
		if err != nil {
			return nil, err
		}
		var def material.ElementDef
		for key, dst := range map[string]*float64{"z": &def.Z, "a": &def.A} {
			s, ok := pa.kw[key]
			if !ok {
				return nil, fmt.Errorf("%q: missing :%s", name, key)
			}
			if *dst, err = toFloat64(s); err != nil {
				return nil, fmt.Errorf("%q: %s: %w", name, key, err)
			}
		}
		if s, ok := pa.kw["symbol"]; ok {
			if def.Symbol, err = toString(s); err != nil {
				return nil, fmt.Errorf("%q: symbol: %w", name, err)
			}
		}
		st.materials.Elements[name] = def
		return &zygo.SexpStr{S: name}, nil
	})

	// (molecule "Salt" :density 2.17 :state :solid :composition (list "Na" 1 "Cl" 1))
	add(env, "molecule", func(args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		name, err := definitionName(pa, "density", "state", "composition")
		if err != nil {
			return nil, err
		}
		density, state, composition, err := compound(name, pa)
		if err != nil {
			return nil, err
		}
		def := material.MoleculeDef{Density: density, State: state, Composition: make(map[string]int, len(composition))}
		for k, n := range composition {
			if n != float64(int(n)) || n <= 0 {
				return nil, fmt.Errorf("%q: %s: expected a positive atom count, got %g", name, k, n)
			}
			def.Composition[k] = int(n)
		}
		st.materials.Molecules[name] = def
		return &zygo.SexpStr{S: name}, nil
	})

	// (mixture "Brine" :density 1.1 :state :liquid :composition (list "G4_WATER" 0.9 "Salt" 0.1))
	add(env, "mixture", func(args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		name, err := definitionName(pa, "density", "state", "composition")
		if err != nil {
			return nil, err
		}
		density, state, composition, err := compound(name, pa)
		if err != nil {
			return nil, err
		}
		st.materials.Mixtures[name] = material.MixtureDef{Density: density, State: state, Composition: composition}
		return &zygo.SexpStr{S: name}, nil
	})
}

func definitionName(pa kwArgs, allowed ...string) (string, error) {
	if len(pa.positional) != 1 {
		return "", errors.New("requires a name argument")
	}
	name, err := toString(pa.positional[0])
	if err != nil {
		return "", fmt.Errorf("name: %w", err)
	}
	if err := pa.unknown(allowed...); err != nil {
		return "", fmt.Errorf("%q: %w", name, err)
	}
	return name, nil
}

func compound(name string, pa kwArgs) (density float64, state string, composition map[string]float64, err error) {
	s, ok := pa.kw["density"]
	if !ok {
		return 0, "", nil, fmt.Errorf("%q: missing :density", name)
	}
	if density, err = toFloat64(s); err != nil {
		return 0, "", nil, fmt.Errorf("%q: density: %w", name, err)
	}
	if s, ok := pa.kw["state"]; ok {
		if state, err = toKeywordString(s); err != nil {
			return 0, "", nil, fmt.Errorf("%q: state: %w", name, err)
		}
	}
	s, ok = pa.kw["composition"]
	if !ok {
		return 0, "", nil, fmt.Errorf("%q: missing :composition", name)
	}
	if composition, err = toComposition(s); err != nil {
		return 0, "", nil, fmt.Errorf("%q: composition: %w", name, err)
	}
	return density, state, composition, nil
}
