// Package units converts normalised screen coordinates into visual-angle
// degrees.
//
// The eye is modelled as the apex of a cone at a fixed viewing distance from
// the screen centre. A normalised position (x, y) in [0, 1] maps to the pixel
// vector ((x-0.5)*W, (y-0.5)*H, D); an offset (dx, dy) that is already
// relative to the centre maps to (dx*W, dy*H, D). The angle between two such
// vectors is the visual angle between the two gaze positions.
package units

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Screen geometry of the scanner projection setup, in pixels.
const (
	DefaultScreenWidth     = 1280.0
	DefaultScreenHeight    = 1024.0
	DefaultViewingDistance = 4164.0
)

// Geometry describes the screen and the eye-to-screen distance.
type Geometry struct {
	ScreenWidth     float64 // pixels
	ScreenHeight    float64 // pixels
	ViewingDistance float64 // pixels
}

// DefaultGeometry returns the projection setup used for the recordings.
func DefaultGeometry() Geometry {
	return Geometry{
		ScreenWidth:     DefaultScreenWidth,
		ScreenHeight:    DefaultScreenHeight,
		ViewingDistance: DefaultViewingDistance,
	}
}

// vec maps a normalised position or a centre-relative offset to pixel space.
func (g Geometry) vec(x, y float64, relative bool) r3.Vec {
	if !relative {
		x -= 0.5
		y -= 0.5
	}
	return r3.Vec{X: x * g.ScreenWidth, Y: y * g.ScreenHeight, Z: g.ViewingDistance}
}

// Angle returns the visual angle in degrees between (x1, y1) and (x2, y2).
// When relative is true both points are offsets from the screen centre,
// otherwise they are normalised screen positions. NaN inputs yield NaN.
func (g Geometry) Angle(x1, y1, x2, y2 float64, relative bool) float64 {
	if math.IsNaN(x1) || math.IsNaN(y1) || math.IsNaN(x2) || math.IsNaN(y2) {
		return math.NaN()
	}
	return angleBetween(g.vec(x1, y1, relative), g.vec(x2, y2, relative))
}

// FromCenter returns the visual angle between a point and the screen centre.
func (g Geometry) FromCenter(x, y float64, relative bool) float64 {
	if math.IsNaN(x) || math.IsNaN(y) {
		return math.NaN()
	}
	return angleBetween(r3.Vec{Z: g.ViewingDistance}, g.vec(x, y, relative))
}

// FromCenterAll applies FromCenter element-wise. xs and ys must have the
// same length; the shorter length wins otherwise.
func (g Geometry) FromCenterAll(xs, ys []float64, relative bool) []float64 {
	n := min(len(xs), len(ys))
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = g.FromCenter(xs[i], ys[i], relative)
	}
	return out
}

// angleBetween returns the opening angle in degrees. The atan2 form is exact
// for parallel vectors, where acos of a rounded cosine is not.
func angleBetween(p, q r3.Vec) float64 {
	return math.Atan2(r3.Norm(r3.Cross(p, q)), r3.Dot(p, q)) * 180 / math.Pi
}
