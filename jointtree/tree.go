package jointtree

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"

	"go.viam.com/dragik/spatialmath"
)

const angleChangeEpsilon = 1e-12

// node is the in-memory Joint implementation.
type node struct {
	name     string
	kind     Kind
	axis     r3.Vector
	origin   spatialmath.Pose // static transform from parent's moved frame
	angle    float64
	limit    *Limit
	parent   *node
	children []*node

	// local-space centers of geometry attached to this joint's child link
	geomCenters []r3.Vector
}

// Tree owns an articulated tree of joints, indexed by name. The root is a
// fixed joint standing in for the model's root link.
type Tree struct {
	name  string
	root  *node
	index map[string]*node
}

// JointConfig describes one joint to add to a tree.
type JointConfig struct {
	Name   string
	Parent string
	Kind   Kind
	Origin spatialmath.Pose
	Axis   r3.Vector // zero value means the default local Z axis
	Limit  *Limit
}

// NewTree creates a tree with a single fixed root joint of the given name.
func NewTree(rootName string) *Tree {
	root := &node{name: rootName, kind: KindFixed, origin: spatialmath.NewZeroPose()}
	return &Tree{
		name:  rootName,
		root:  root,
		index: map[string]*node{rootName: root},
	}
}

// Name returns the model name of the tree.
func (t *Tree) Name() string {
	return t.name
}

// Root returns the tree's fixed root joint.
func (t *Tree) Root() Joint {
	return t.root
}

// Joint looks a joint up by name.
func (t *Tree) Joint(name string) (Joint, bool) {
	n, ok := t.index[name]
	return n, ok
}

// Names returns the sorted names of all joints in the tree.
func (t *Tree) Names() []string {
	names := maps.Keys(t.index)
	sort.Strings(names)
	return names
}

// Joints returns all joints in depth-first order starting at the root.
func (t *Tree) Joints() []Joint {
	var out []Joint
	var walk func(n *node)
	walk = func(n *node) {
		out = append(out, n)
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(t.root)
	return out
}

// AddJoint adds a joint below the named parent and returns it.
func (t *Tree) AddJoint(cfg JointConfig) (Joint, error) {
	if cfg.Name == "" {
		return nil, errors.New("joint must have a name")
	}
	if _, ok := t.index[cfg.Name]; ok {
		return nil, errors.Errorf("duplicate joint name %q", cfg.Name)
	}
	parent, ok := t.index[cfg.Parent]
	if !ok {
		return nil, errors.Errorf("joint %q references unknown parent %q", cfg.Name, cfg.Parent)
	}
	axis := cfg.Axis
	if axis == (r3.Vector{}) {
		axis = r3.Vector{Z: 1}
	} else {
		axis = axis.Normalize()
	}
	n := &node{
		name:   cfg.Name,
		kind:   cfg.Kind,
		axis:   axis,
		origin: cfg.Origin,
		limit:  cfg.Limit,
		parent: parent,
	}
	parent.children = append(parent.children, n)
	t.index[cfg.Name] = n
	return n, nil
}

// AddGeometry attaches a geometry center, in joint-local space, to the named
// joint's child link.
func (t *Tree) AddGeometry(jointName string, localCenter r3.Vector) error {
	n, ok := t.index[jointName]
	if !ok {
		return errors.Errorf("unknown joint %q", jointName)
	}
	n.geomCenters = append(n.geomCenters, localCenter)
	return nil
}

func (n *node) Name() string { return n.name }

func (n *node) Kind() Kind { return n.kind }

func (n *node) Axis() r3.Vector { return n.axis }

func (n *node) Angle() float64 { return n.angle }

func (n *node) SetAngle(value float64) bool {
	if !n.kind.Movable() {
		return false
	}
	if n.limit != nil {
		value = n.limit.Clamp(value)
	}
	if math.Abs(value-n.angle) < angleChangeEpsilon {
		return false
	}
	n.angle = value
	return true
}

func (n *node) Limit() (Limit, bool) {
	if n.limit == nil || !n.limit.Valid() {
		return Limit{}, false
	}
	return *n.limit, true
}

func (n *node) Parent() Joint {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

func (n *node) Children() []Joint {
	out := make([]Joint, 0, len(n.children))
	for _, c := range n.children {
		out = append(out, c)
	}
	return out
}

// motion returns the transform contributed by the joint's current value.
func (n *node) motion() spatialmath.Pose {
	switch {
	case n.kind.Rotational() && n.angle != 0:
		return spatialmath.NewPoseFromAxisAngle(r3.Vector{}, n.axis, n.angle)
	case n.kind == KindPrismatic && n.angle != 0:
		return spatialmath.NewPoseFromPoint(n.axis.Mul(n.angle))
	default:
		return spatialmath.NewZeroPose()
	}
}

func (n *node) WorldPose() spatialmath.Pose {
	pose := spatialmath.Compose(n.origin, n.motion())
	if n.parent != nil {
		pose = spatialmath.Compose(n.parent.WorldPose(), pose)
	}
	return pose
}

func (n *node) GeometryCenters() []r3.Vector {
	if len(n.geomCenters) == 0 {
		return nil
	}
	world := n.WorldPose()
	out := make([]r3.Vector, 0, len(n.geomCenters))
	for _, c := range n.geomCenters {
		out = append(out, world.TransformPoint(c))
	}
	return out
}
