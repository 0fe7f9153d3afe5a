package geom

import (
	"errors"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// rotationTolerance bounds the deviation from orthonormality accepted for
// user supplied rotation matrices.
const rotationTolerance = 1e-6

var (
	ErrNotOrthonormal = errors.New("rotation matrix is not orthonormal")
	ErrImproper       = errors.New("rotation matrix is not a proper rotation (det != 1)")
)

// Rotation is a 3x3 rotation matrix acting on column vectors: v' = R·v.
type Rotation [3][3]float64

// IdentityRotation is the rotation that leaves every vector unchanged.
var IdentityRotation = Rotation{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

// RotationFromRows builds the rotation described by three rows, the
// layout used by volume descriptions. Row i is the image, in the parent
// frame, of the i-th local basis vector, so the object rotation applied to
// local points is the transpose of the given matrix.
func RotationFromRows(rows [3][3]float64) (Rotation, error) {
	var r Rotation
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = rows[j][i]
		}
	}
	if err := r.Validate(); err != nil {
		return IdentityRotation, err
	}
	return r, nil
}

// Rows returns the matrix in the row layout accepted by RotationFromRows.
func (r Rotation) Rows() [3][3]float64 {
	return r.Transpose()
}

// RotateX returns a rotation of angle radians about the x axis.
func RotateX(angle float64) Rotation {
	c, s := math.Cos(angle), math.Sin(angle)
	return Rotation{{1, 0, 0}, {0, c, -s}, {0, s, c}}
}

// RotateY returns a rotation of angle radians about the y axis.
func RotateY(angle float64) Rotation {
	c, s := math.Cos(angle), math.Sin(angle)
	return Rotation{{c, 0, s}, {0, 1, 0}, {-s, 0, c}}
}

// RotateZ returns a rotation of angle radians about the z axis.
func RotateZ(angle float64) Rotation {
	c, s := math.Cos(angle), math.Sin(angle)
	return Rotation{{c, -s, 0}, {s, c, 0}, {0, 0, 1}}
}

// Validate checks that r is orthonormal with a unit determinant.
func (r Rotation) Validate() error {
	m := mat.NewDense(3, 3, r.flat())
	var p mat.Dense
	p.Mul(m, m.T())
	if !mat.EqualApprox(&p, mat.NewDiagDense(3, []float64{1, 1, 1}), rotationTolerance) {
		return ErrNotOrthonormal
	}
	if math.Abs(mat.Det(m)-1) > rotationTolerance {
		return ErrImproper
	}
	return nil
}

func (r Rotation) flat() []float64 {
	return []float64{
		r[0][0], r[0][1], r[0][2],
		r[1][0], r[1][1], r[1][2],
		r[2][0], r[2][1], r[2][2],
	}
}

// Apply rotates v.
func (r Rotation) Apply(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: r[0][0]*v.X + r[0][1]*v.Y + r[0][2]*v.Z,
		Y: r[1][0]*v.X + r[1][1]*v.Y + r[1][2]*v.Z,
		Z: r[2][0]*v.X + r[2][1]*v.Y + r[2][2]*v.Z,
	}
}

// Mul returns r·o, the rotation applying o first and then r.
func (r Rotation) Mul(o Rotation) Rotation {
	var m Rotation
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m[i][j] = r[i][0]*o[0][j] + r[i][1]*o[1][j] + r[i][2]*o[2][j]
		}
	}
	return m
}

// Transpose returns the inverse rotation.
func (r Rotation) Transpose() Rotation {
	var m Rotation
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m[i][j] = r[j][i]
		}
	}
	return m
}

// IsIdentity reports whether r is the identity within AngTolerance.
func (r Rotation) IsIdentity() bool {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			if math.Abs(r[i][j]-want) > AngTolerance {
				return false
			}
		}
	}
	return true
}

// AxisAngles returns the x, y, z Euler angles (radians) such that
// r = RotateZ(z)·RotateY(y)·RotateX(x).
func (r Rotation) AxisAngles() (x, y, z float64) {
	sy := -r[2][0]
	if sy > 1 {
		sy = 1
	} else if sy < -1 {
		sy = -1
	}
	y = math.Asin(sy)
	if math.Abs(sy) < 1-1e-12 {
		x = math.Atan2(r[2][1], r[2][2])
		z = math.Atan2(r[1][0], r[0][0])
	} else {
		// Gimbal lock, fold everything into x.
		x = math.Atan2(-r[1][2], r[1][1])
		z = 0
	}
	return x, y, z
}
