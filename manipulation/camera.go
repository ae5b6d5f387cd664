// Package manipulation binds pointer and frame events to a kinematic chain
// solver, letting a user grab a point on an articulated model and drag it
// while the joints between that point and the root follow.
package manipulation

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Camera is the minimal projection capability the controller needs: turning
// cursor coordinates back into world-space points at a chosen view depth, and
// measuring a world point's depth. Rendering and ray-casting live elsewhere.
type Camera interface {
	// PointAtDepth returns the world-space point under screen coordinates
	// (x, y) at the given distance from the camera.
	PointAtDepth(x, y, depth float64) (r3.Vector, error)

	// Depth returns the distance from the camera to a world point.
	Depth(pt r3.Vector) float64
}

// PerspectiveCamera implements Camera with a standard perspective projection.
type PerspectiveCamera struct {
	eye        r3.Vector
	view       mgl64.Mat4
	projection mgl64.Mat4
	width      int
	height     int
}

// NewPerspectiveCamera creates a camera at eye looking at center, with the
// given vertical field of view in radians and viewport size in pixels.
func NewPerspectiveCamera(eye, center, up r3.Vector, fovY float64, width, height int) *PerspectiveCamera {
	aspect := float64(width) / float64(height)
	return &PerspectiveCamera{
		eye:        eye,
		view:       mgl64.LookAtV(toVec3(eye), toVec3(center), toVec3(up)),
		projection: mgl64.Perspective(fovY, aspect, 0.01, 1000),
		width:      width,
		height:     height,
	}
}

// PointAtDepth unprojects the cursor through the near plane to recover the
// view ray, then walks that ray out to the requested depth.
func (c *PerspectiveCamera) PointAtDepth(x, y, depth float64) (r3.Vector, error) {
	// window Y is measured up from the bottom
	win := mgl64.Vec3{x, float64(c.height) - y, 0.1}
	near, err := mgl64.UnProject(win, c.view, c.projection, 0, 0, c.width, c.height)
	if err != nil {
		return r3.Vector{}, errors.Wrap(err, "failed to unproject cursor")
	}
	dir := fromVec3(near).Sub(c.eye).Normalize()
	return c.eye.Add(dir.Mul(depth)), nil
}

// Depth returns the distance from the camera eye to the given world point.
func (c *PerspectiveCamera) Depth(pt r3.Vector) float64 {
	return pt.Sub(c.eye).Norm()
}

// Project maps a world point to window coordinates (x measured from the
// left, y from the top).
func (c *PerspectiveCamera) Project(pt r3.Vector) (x, y float64) {
	win := mgl64.Project(toVec3(pt), c.view, c.projection, 0, 0, c.width, c.height)
	return win.X(), float64(c.height) - win.Y()
}

func toVec3(v r3.Vector) mgl64.Vec3 {
	return mgl64.Vec3{v.X, v.Y, v.Z}
}

func fromVec3(v mgl64.Vec3) r3.Vector {
	return r3.Vector{X: v.X(), Y: v.Y(), Z: v.Z()}
}
