package geom

import "github.com/golang/geo/r3"

// Transform is a rigid transform mapping local coordinates to the parent
// frame: p_parent = Rot·p_local + Trans.
type Transform struct {
	Rot   Rotation
	Trans r3.Vector
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{Rot: IdentityRotation}
}

// Translation returns a pure translation.
func Translation(v r3.Vector) Transform {
	return Transform{Rot: IdentityRotation, Trans: v}
}

// NewTransform returns the transform rotating by rot then translating by t.
func NewTransform(rot Rotation, t r3.Vector) Transform {
	return Transform{Rot: rot, Trans: t}
}

// Apply maps a local point to the parent frame.
func (t Transform) Apply(p r3.Vector) r3.Vector {
	return t.Rot.Apply(p).Add(t.Trans)
}

// ApplyAxis maps a local direction to the parent frame.
func (t Transform) ApplyAxis(d r3.Vector) r3.Vector {
	return t.Rot.Apply(d)
}

// InverseApply maps a parent frame point to local coordinates.
func (t Transform) InverseApply(p r3.Vector) r3.Vector {
	return t.Rot.Transpose().Apply(p.Sub(t.Trans))
}

// InverseApplyAxis maps a parent frame direction to local coordinates.
func (t Transform) InverseApplyAxis(d r3.Vector) r3.Vector {
	return t.Rot.Transpose().Apply(d)
}

// Compose returns t∘inner: the transform applying inner first, then t.
func (t Transform) Compose(inner Transform) Transform {
	return Transform{
		Rot:   t.Rot.Mul(inner.Rot),
		Trans: t.Rot.Apply(inner.Trans).Add(t.Trans),
	}
}

// Inverse returns the transform undoing t.
func (t Transform) Inverse() Transform {
	rt := t.Rot.Transpose()
	return Transform{Rot: rt, Trans: rt.Apply(t.Trans).Mul(-1)}
}

// IsTranslated reports whether t has a non-zero translation.
func (t Transform) IsTranslated() bool {
	return t.Trans.Norm2() > CarTolerance*CarTolerance
}

// IsRotated reports whether t has a non-identity rotation.
func (t Transform) IsRotated() bool {
	return !t.Rot.IsIdentity()
}

// IsIdentity reports whether t is neither translated nor rotated.
func (t Transform) IsIdentity() bool {
	return !t.IsTranslated() && !t.IsRotated()
}
