// Package jointtree models an articulated tree of links connected by joints,
// and provides read/write access to joint state for kinematics consumers.
// The tree itself is typically loaded from a URDF description, but may also be
// assembled programmatically.
package jointtree

import (
	"math"

	"github.com/golang/geo/r3"

	"go.viam.com/dragik/spatialmath"
)

// Kind describes what kind of motion a joint allows.
type Kind string

// The joint kinds supported by URDF that we model.
const (
	KindRevolute   = Kind("revolute")
	KindContinuous = Kind("continuous")
	KindPrismatic  = Kind("prismatic")
	KindFixed      = Kind("fixed")
)

// Movable reports whether the joint kind represents a degree of freedom.
func (k Kind) Movable() bool {
	return k == KindRevolute || k == KindContinuous || k == KindPrismatic
}

// Rotational reports whether the joint kind rotates about its axis.
func (k Kind) Rotational() bool {
	return k == KindRevolute || k == KindContinuous
}

// Limit represents the limits of motion for a joint.
type Limit struct {
	Min float64
	Max float64
}

// Valid reports whether the limit describes a non-empty range. An invalid
// limit is treated as unbounded.
func (l Limit) Valid() bool {
	return l.Min < l.Max
}

// Clamp bounds a value to the limit range. Invalid limits clamp nothing.
func (l Limit) Clamp(value float64) float64 {
	if !l.Valid() {
		return value
	}
	return math.Min(math.Max(value, l.Min), l.Max)
}

// Joint is the capability interface kinematics consumers depend on. It is a
// view onto one joint of an articulated tree: its static description, its
// current scalar value, and derived world-space state. Implementations are
// not safe for concurrent mutation; callers are expected to confine all joint
// access to a single goroutine.
type Joint interface {
	// Name returns the joint's unique name within its tree.
	Name() string

	// Kind returns the joint kind.
	Kind() Kind

	// Axis returns the joint-local rotation (or translation) axis as a unit
	// vector. Defaults to the local Z axis when the description omits it.
	Axis() r3.Vector

	// Angle returns the current joint value, radians for rotational joints.
	Angle() float64

	// SetAngle updates the joint value, clamping to the joint's limit.
	// It returns whether the stored value actually changed.
	SetAngle(value float64) bool

	// Limit returns the joint's limit range and whether a valid one exists.
	Limit() (Limit, bool)

	// Parent returns the parent joint, or nil at the root.
	Parent() Joint

	// Children returns the joints directly below this one.
	Children() []Joint

	// WorldPose returns the world-space pose of the joint's moved frame,
	// derived from the current values of all ancestor joints.
	WorldPose() spatialmath.Pose

	// GeometryCenters returns the world-space centers of the geometry pieces
	// attached to the joint's child link. Empty when the link has no geometry.
	GeometryCenters() []r3.Vector
}
