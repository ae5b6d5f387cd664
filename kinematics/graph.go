// Package kinematics builds kinematic chains over an articulated joint tree
// and solves them toward world-space targets with damped, smoothed cyclic
// coordinate descent.
package kinematics

import (
	"github.com/golang/geo/r3"

	"go.viam.com/dragik/jointtree"
)

// reachPointFallback is the joint-local tip offset used when a joint's
// subtree carries no geometry at all.
var reachPointFallback = r3.Vector{Z: 0.1}

// ListMovableJoints returns every joint at or below root with a movable kind,
// in tree order. Prismatic joints are included in the enumeration even though
// the solver does not drive them.
func ListMovableJoints(root jointtree.Joint) []jointtree.Joint {
	var out []jointtree.Joint
	var walk func(j jointtree.Joint)
	walk = func(j jointtree.Joint) {
		if j.Kind().Movable() {
			out = append(out, j)
		}
		for _, child := range j.Children() {
			walk(child)
		}
	}
	walk(root)
	return out
}

// HasMovableDescendant reports whether any joint strictly below the given one
// has a movable kind.
func HasMovableDescendant(j jointtree.Joint) bool {
	for _, child := range j.Children() {
		if child.Kind().Movable() || HasMovableDescendant(child) {
			return true
		}
	}
	return false
}

// ComputeReachPoint scans the joint's subtree for attached geometry and
// returns, in joint-local space, the center of the piece farthest from the
// joint's world origin. That farthest sample is the effective tip the solver
// tracks when the joint itself is manipulated. Subtrees without geometry get
// a small fixed offset along the joint's local forward axis so the tip is
// never degenerate.
func ComputeReachPoint(j jointtree.Joint) r3.Vector {
	world := j.WorldPose()
	origin := world.Point()

	found := false
	var best r3.Vector
	bestDist := -1.0
	var walk func(cur jointtree.Joint)
	walk = func(cur jointtree.Joint) {
		for _, center := range cur.GeometryCenters() {
			if d := center.Sub(origin).Norm(); d > bestDist {
				bestDist = d
				best = center
				found = true
			}
		}
		for _, child := range cur.Children() {
			walk(child)
		}
	}
	walk(j)

	if !found {
		return reachPointFallback
	}
	return world.Invert().TransformPoint(best)
}
