package kinematics

import (
	"go.viam.com/dragik/jointtree"
)

// ChainEntry pairs a chain joint with the angle it held when the chain was
// built, so an interaction can restore or reference the starting pose.
type ChainEntry struct {
	Joint         jointtree.Joint
	OriginalAngle float64
}

// Chain is an ordered, root-first sequence of the rotational joints between
// the tree root and an effector. Fixed and prismatic joints never appear in
// a chain; prismatic joints are enumerable but are not solved, so they are
// excluded the same way fixed joints are.
type Chain []ChainEntry

// BuildChain walks from the starting joint's parent up to, but not including,
// the node with no parent, collecting every rotational joint root-first. When
// includeStart is true the starting joint itself is included under the same
// filter. An empty chain is a valid outcome meaning the joint cannot be
// IK-driven from its position in the tree.
func BuildChain(start jointtree.Joint, includeStart bool) Chain {
	var chain Chain
	if includeStart && start.Kind().Rotational() {
		chain = append(chain, ChainEntry{Joint: start, OriginalAngle: start.Angle()})
	}
	for cur := start.Parent(); cur != nil && cur.Parent() != nil; cur = cur.Parent() {
		if cur.Kind().Rotational() {
			chain = append(Chain{{Joint: cur, OriginalAngle: cur.Angle()}}, chain...)
		}
	}
	return chain
}

// Joints returns the chain's joints in order.
func (c Chain) Joints() []jointtree.Joint {
	out := make([]jointtree.Joint, 0, len(c))
	for _, entry := range c {
		out = append(out, entry.Joint)
	}
	return out
}
