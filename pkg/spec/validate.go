package spec

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"unicode"

	"github.com/chazu/calzone/pkg/geom"
	"github.com/go-playground/validator/v10"
)

// ValidationSeverity indicates whether a finding prevents a build.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // blocks the build
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single finding about a volume.
type ValidationError struct {
	Path     string // dotted pathname of the volume, empty at document level
	Message  string
	Severity ValidationSeverity
}

func (e ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] bad '%s' volume (%s)", e.Severity, e.Path, e.Message)
}

// FirstError returns the first error severity finding, or nil.
func FirstError(findings []ValidationError) error {
	for _, f := range findings {
		if f.Severity == SeverityError {
			return f
		}
	}
	return nil
}

// shapeValidate checks struct tags of shapes and material definitions.
var shapeValidate *validator.Validate

func init() {
	shapeValidate = validator.New()
	_ = shapeValidate.RegisterValidation("padding", validatePadding)
}

// validatePadding accepts no padding, or 1, 3 or 6 non negative values.
func validatePadding(fl validator.FieldLevel) bool {
	f := fl.Field()
	switch f.Len() {
	case 0, 1, 3, 6:
	default:
		return false
	}
	for i := 0; i < f.Len(); i++ {
		if f.Index(i).Float() < 0 {
			return false
		}
	}
	return true
}

// CheckName checks that a volume name is an alphanumeric, capitalised
// string.
func CheckName(name string) error {
	for _, c := range name {
		if !unicode.IsLetter(c) && !unicode.IsDigit(c) {
			return errors.New("expected an alphanumeric string")
		}
	}
	if name == "" {
		return errors.New("empty string")
	}
	if c := []rune(name)[0]; !unicode.IsUpper(c) {
		return errors.New("should be capitalised")
	}
	return nil
}

// Validate checks the whole tree rooted at root and returns every finding.
// An empty result means the tree can be built. Validate never mutates the
// tree.
func Validate(root *VolumeSpec) []ValidationError {
	if root == nil {
		return []ValidationError{{Message: "missing root volume", Severity: SeverityError}}
	}
	var errs []ValidationError
	if len(root.Subtract) > 0 {
		errs = append(errs, ValidationError{
			Path:     root.Name,
			Message:  fmt.Sprintf("unknown volume '%s'", root.Subtract[0]),
			Severity: SeverityError,
		})
	}
	validateVolume(root.Name, root, &errs)
	return errs
}

// Validate checks the document tree and its material definitions.
func (d *Document) Validate() []ValidationError {
	errs := Validate(d.Volume)
	if d.Materials == nil {
		return errs
	}
	report := func(kind, name string, def any) {
		if err := shapeValidate.Struct(def); err != nil {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("bad '%s' %s (%s)", name, kind, describe(err)),
				Severity: SeverityError,
			})
		}
	}
	for _, name := range slices.Sorted(maps.Keys(d.Materials.Elements)) {
		report("element", name, d.Materials.Elements[name])
	}
	for _, name := range slices.Sorted(maps.Keys(d.Materials.Molecules)) {
		report("molecule", name, d.Materials.Molecules[name])
	}
	for _, name := range slices.Sorted(maps.Keys(d.Materials.Mixtures)) {
		report("mixture", name, d.Materials.Mixtures[name])
	}
	return errs
}

func validateVolume(path string, v *VolumeSpec, errs *[]ValidationError) {
	fail := func(format string, args ...any) {
		*errs = append(*errs, ValidationError{Path: path, Message: fmt.Sprintf(format, args...), Severity: SeverityError})
	}

	if err := CheckName(v.Name); err != nil {
		fail("bad name '%s' (%s)", v.Name, err)
	}
	if v.Material == "" {
		fail("missing material")
	}
	if v.Rotation != nil {
		if _, err := geom.RotationFromRows(*v.Rotation); err != nil {
			fail("bad rotation (%s)", err)
		}
	}
	validateShape(v, fail, errs, path)

	seen := make(map[string]bool, len(v.Volumes))
	for _, d := range v.Volumes {
		if seen[d.Name] {
			fail("duplicate '%s' volume", d.Name)
		}
		seen[d.Name] = true
	}
	validateOverlaps(v, fail)
	for _, d := range v.Volumes {
		dpath := path + "." + d.Name
		validateSubtract(path, v, d, func(format string, args ...any) {
			*errs = append(*errs, ValidationError{Path: dpath, Message: fmt.Sprintf(format, args...), Severity: SeverityError})
		})
		validateVolume(dpath, d, errs)
	}
}

func validateShape(v *VolumeSpec, fail func(string, ...any), errs *[]ValidationError, path string) {
	kinds := v.Shape.Kinds()
	switch len(kinds) {
	case 0:
		fail("missing shape")
		return
	case 1:
	default:
		fail("multiple shape definitions (%s, %s, ..)", kinds[0], kinds[1])
		return
	}

	s := v.Shape
	var target any
	switch kinds[0] {
	case ShapeBox:
		target = s.Box
	case ShapeCylinder:
		target = s.Cylinder
		if sec := s.Cylinder.Section; sec != nil {
			if span := sec[1] - sec[0]; span <= 0 || span > 360 {
				fail("bad section ([%g, %g])", sec[0], sec[1])
			}
		}
	case ShapeSphere:
		target = s.Sphere
		if sec := s.Sphere.AzimuthSection; sec != nil {
			if span := sec[1] - sec[0]; span <= 0 || span > 360 {
				fail("bad azimuth section ([%g, %g])", sec[0], sec[1])
			}
		}
		if sec := s.Sphere.ZenithSection; sec != nil {
			if sec[0] < 0 || sec[1] > 180 || sec[1] <= sec[0] {
				fail("bad zenith section ([%g, %g])", sec[0], sec[1])
			}
		}
	case ShapeEnvelope:
		target = s.Envelope
		if len(v.Volumes) == 0 {
			*errs = append(*errs, ValidationError{
				Path:     path,
				Message:  "envelope without daughter volumes",
				Severity: SeverityWarning,
			})
		}
	case ShapeMesh:
		target = s.Mesh
		m := s.Mesh
		switch {
		case m.Path != "" && m.Map != nil:
			fail("bad mesh (expected one of path or map)")
		case m.IsSTL():
			if m.ExtraDepth != nil {
				fail("bad extra_depth (invalid option for STL format)")
			}
			if m.Origin != nil {
				fail("bad origin (invalid option for STL format)")
			}
			if m.Regular != nil {
				fail("bad regular (invalid option for STL format)")
			}
		case m.Path != "":
			fail("bad mesh (unsupported format '%s')", m.Path)
		}
	}
	if err := shapeValidate.Struct(target); err != nil {
		fail("bad %s (%s)", kinds[0], describe(err))
	}
}

func validateOverlaps(v *VolumeSpec, fail func(string, ...any)) {
	for _, pair := range v.Overlaps {
		for _, name := range pair {
			if v.Daughter(name) == nil {
				fail("bad overlap (undefined '%s' volume)", name)
			}
		}
		if pair[0] == pair[1] {
			fail("bad overlap (cannot overlap '%s' with itself)", pair[0])
		}
	}
}

// validateSubtract checks the subtract targets of daughter d of mother m.
// Targets must be siblings, and a volume that subtracts others cannot be
// subtracted itself.
func validateSubtract(path string, m, d *VolumeSpec, fail func(string, ...any)) {
	for _, target := range d.Subtract {
		if target == d.Name {
			fail("cannot subtract self ('%s.%s')", path, target)
			continue
		}
		t := m.Daughter(target)
		if t == nil {
			fail("unknown volume '%s.%s'", path, target)
			continue
		}
		if len(t.Subtract) > 0 {
			fail("cannot subtract a subtracted volume ('%s.%s')", path, target)
			continue
		}
		if slices.Contains(m.Overlaps, orderedPair(d.Name, target)) {
			fail("cannot subtract overlaping volumes ('%s.%s', '%s.%s')", path, d.Name, path, target)
		}
	}
}

// describe formats validator errors as short "field=rule" lists.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", field, fe.Tag(), strings.ToLower(fe.Param())))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", field, fe.Tag()))
		}
	}
	return strings.Join(parts, ", ")
}

func orderedPair(a, b string) [2]string {
	if b < a {
		return [2]string{b, a}
	}
	return [2]string{a, b}
}

// CanonicalOverlaps orders each pair, sorts the pairs and removes
// duplicates.
func CanonicalOverlaps(pairs [][2]string) [][2]string {
	out := make([][2]string, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, orderedPair(p[0], p[1]))
	}
	slices.SortFunc(out, func(a, b [2]string) int {
		if c := strings.Compare(a[0], b[0]); c != 0 {
			return c
		}
		return strings.Compare(a[1], b[1])
	})
	return slices.Compact(out)
}
