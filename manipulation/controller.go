package manipulation

import (
	"sync"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"go.uber.org/multierr"

	"go.viam.com/dragik/jointtree"
	"go.viam.com/dragik/kinematics"
)

// State is the controller's interaction state.
type State int

// The controller moves Idle -> Hovering -> Dragging -> Idle. Hovering is
// cosmetic; only Dragging holds a grab.
const (
	StateIdle State = iota
	StateHovering
	StateDragging
)

func (s State) String() string {
	switch s {
	case StateHovering:
		return "hovering"
	case StateDragging:
		return "dragging"
	default:
		return "idle"
	}
}

// Callbacks are the notifications the controller emits toward the UI. All
// fields are optional.
type Callbacks struct {
	// OnManipulateStart fires when a drag begins on the named joint.
	OnManipulateStart func(jointName string)
	// OnManipulateEnd fires when that drag ends.
	OnManipulateEnd func(jointName string)
	// OnHover and OnUnhover report cosmetic pointer-over changes.
	OnHover   func(jointName string)
	OnUnhover func(jointName string)
	// OnAngleChange mirrors every solver-applied joint angle, e.g. to sliders.
	OnAngleChange func(jointName string, angle float64)
	// RequestRedraw asks the renderer for one frame.
	RequestRedraw func()
}

// Controller is the interaction state machine for drag manipulation of an
// articulated tree. It owns at most one live solver at a time, created when a
// joint is grabbed (or requested explicitly) and disposed on release-replace,
// disable, or robot swap.
//
// All methods except the model-watcher delivery path must be called from the
// single goroutine that runs the event/frame loop.
type Controller struct {
	logger     golog.Logger
	camera     Camera
	solverOpts *kinematics.SolverOptions
	callbacks  Callbacks

	enabled bool
	tree    *jointtree.Tree
	movable []jointtree.Joint

	state   State
	hovered jointtree.Joint

	// at most one of these triples is live at a time
	solver *kinematics.CCDSolver
	marker *TargetMarker

	selected       jointtree.Joint
	selectedLocked bool
	originalAngle  float64
	grabOffset     r3.Vector
	grabDepth      float64

	driver *TargetDriver

	// pendingTree carries a robot swap from the model watcher's goroutine to
	// the frame loop, where Tick applies it.
	pendingMu   sync.Mutex
	pendingTree *jointtree.Tree
	watcher     *jointtree.Watcher
}

// NewController creates an enabled controller over the given tree. A nil
// solverOpts uses the solver defaults.
func NewController(tree *jointtree.Tree, camera Camera, solverOpts *kinematics.SolverOptions, logger golog.Logger) *Controller {
	c := &Controller{
		logger:     logger,
		camera:     camera,
		solverOpts: solverOpts,
		enabled:    true,
		tree:       tree,
		movable:    kinematics.ListMovableJoints(tree.Root()),
	}
	return c
}

// SetCallbacks installs the UI notification callbacks.
func (c *Controller) SetCallbacks(callbacks Callbacks) {
	c.callbacks = callbacks
}

// State returns the current interaction state.
func (c *Controller) State() State {
	return c.state
}

// Enabled reports whether manipulation is currently allowed.
func (c *Controller) Enabled() bool {
	return c.enabled
}

// SetEnabled toggles manipulation. Disabling clears all selection and drag
// state and fully disposes the current solver and its target artifacts;
// enabling only makes selection possible again.
func (c *Controller) SetEnabled(enabled bool) {
	if enabled == c.enabled {
		return
	}
	c.enabled = enabled
	if !enabled {
		c.clearHover()
		c.endDrag()
		c.DisposeCurrentSolver()
		c.state = StateIdle
	}
}

// Robot returns the articulated tree currently under manipulation.
func (c *Controller) Robot() *jointtree.Tree {
	return c.tree
}

// MovableJoints returns the movable joints of the current tree.
func (c *Controller) MovableJoints() []jointtree.Joint {
	return c.movable
}

// SetRobot replaces the articulated tree. The current solver is disposed,
// selection state cleared, and the movable-joint list rebuilt.
func (c *Controller) SetRobot(tree *jointtree.Tree) {
	c.clearHover()
	c.endDrag()
	c.DisposeCurrentSolver()
	c.state = StateIdle
	c.tree = tree
	c.movable = kinematics.ListMovableJoints(tree.Root())
	c.logger.Infow("robot swapped", "name", tree.Name(), "movable_joints", len(c.movable))
}

// Hover marks a joint as pointer-over. Cosmetic only; no solver is created.
func (c *Controller) Hover(joint jointtree.Joint) {
	if !c.enabled || c.state == StateDragging || joint == c.hovered {
		return
	}
	c.clearHover()
	c.hovered = joint
	c.state = StateHovering
	if c.callbacks.OnHover != nil {
		c.callbacks.OnHover(joint.Name())
	}
}

// Unhover clears any pointer-over state.
func (c *Controller) Unhover() {
	if c.state == StateDragging {
		return
	}
	c.clearHover()
	c.state = StateIdle
}

func (c *Controller) clearHover() {
	if c.hovered == nil {
		return
	}
	if c.callbacks.OnUnhover != nil {
		c.callbacks.OnUnhover(c.hovered.Name())
	}
	c.hovered = nil
	if c.state == StateHovering {
		c.state = StateIdle
	}
}

// CreateSolverForJoint builds a chain from the joint toward the root and
// binds a solver to it, disposing any prior solver first so that at most one
// is ever live. It returns nil when no rotatable joint exists between the
// given joint and the root; that is a valid "cannot be IK-driven" outcome,
// not an error.
func (c *Controller) CreateSolverForJoint(joint jointtree.Joint) *kinematics.CCDSolver {
	c.DisposeCurrentSolver()

	includeStart := kinematics.HasMovableDescendant(joint)
	chain := kinematics.BuildChain(joint, includeStart)
	if len(chain) == 0 {
		c.logger.Debugw("joint has no rotatable ancestors; skipping solver", "joint", joint.Name())
		return nil
	}

	solver := kinematics.NewCCDSolver(chain, joint, c.solverOpts, c.logger)
	solver.OnAngleChange(func(j jointtree.Joint, angle float64) {
		if c.callbacks.OnAngleChange != nil {
			c.callbacks.OnAngleChange(j.Name(), angle)
		}
	})

	marker := &TargetMarker{}
	marker.SetPosition(solver.TipPosition())

	c.solver = solver
	c.marker = marker
	return solver
}

// CurrentSolver returns the live solver, nil when there is none.
func (c *Controller) CurrentSolver() *kinematics.CCDSolver {
	return c.solver
}

// Marker returns the live solver's target marker, nil when there is none.
func (c *Controller) Marker() *TargetMarker {
	return c.marker
}

// DisposeCurrentSolver drops the live solver and its target marker. Safe to
// call at any time, including mid-drag and when no solver exists.
func (c *Controller) DisposeCurrentSolver() {
	c.solver = nil
	c.marker = nil
}

// PointerDown begins a drag on the given movable joint, grabbed at the given
// world-space point (as reported by the external ray-caster). It returns
// whether a drag actually began.
func (c *Controller) PointerDown(joint jointtree.Joint, grabPoint r3.Vector) bool {
	if !c.enabled || !joint.Kind().Movable() {
		return false
	}

	c.selected = joint
	c.selectedLocked = !kinematics.HasMovableDescendant(joint)
	c.originalAngle = joint.Angle()

	if c.CreateSolverForJoint(joint) == nil {
		c.selected = nil
		return false
	}

	// The grab offset keeps the surface point actually under the cursor, not
	// the joint's nominal tip, tracking the cursor for the whole drag.
	c.grabOffset = grabPoint.Sub(c.solver.TipPosition())
	c.grabDepth = c.camera.Depth(grabPoint)
	c.marker.SetPosition(c.solver.Target())
	c.marker.Show()

	c.clearHover()
	c.state = StateDragging
	if c.callbacks.OnManipulateStart != nil {
		c.callbacks.OnManipulateStart(joint.Name())
	}
	return true
}

// PointerMove advances the drag to new cursor coordinates: the cursor is
// re-projected at the grab-time depth, the solver target updated, and one
// solve performed.
func (c *Controller) PointerMove(x, y float64) {
	if c.state != StateDragging || c.solver == nil {
		return
	}

	world, err := c.camera.PointAtDepth(x, y, c.grabDepth)
	if err != nil {
		c.logger.Debugw("cursor re-projection failed", "error", err)
		return
	}
	target := world.Sub(c.grabOffset)
	c.solver.SetTarget(target)
	c.marker.SetPosition(target)

	c.solver.Solve()

	// A grabbed true end-effector must not itself rotate; undo whatever the
	// sweep did to it.
	if c.selectedLocked && c.selected != nil {
		c.selected.SetAngle(c.originalAngle)
	}

	if c.callbacks.RequestRedraw != nil {
		c.callbacks.RequestRedraw()
	}
}

// PointerUp ends the drag, if one is active. The solver instance remains
// live until explicitly disposed or replaced; only the drag state and marker
// visibility are cleared. A release with no drag in progress leaves hover
// state alone.
func (c *Controller) PointerUp() {
	c.endDrag()
}

func (c *Controller) endDrag() {
	if c.state != StateDragging {
		return
	}
	if c.callbacks.OnManipulateEnd != nil && c.selected != nil {
		c.callbacks.OnManipulateEnd(c.selected.Name())
	}
	if c.marker != nil {
		c.marker.Hide()
	}
	c.selected = nil
	c.selectedLocked = false
	c.state = StateIdle
}

// UpdateEffectorPositions re-synchronizes the solver target to the current
// effector tip, after external camera or viewport changes moved things
// without a drag.
func (c *Controller) UpdateEffectorPositions() {
	if c.solver == nil || c.state == StateDragging {
		return
	}
	tip := c.solver.TipPosition()
	c.solver.SetTarget(tip)
	if c.marker != nil {
		c.marker.SetPosition(tip)
	}
}

// SetTargetDriver installs a scripted target driver that feeds the live
// solver while no drag is active. Pass nil to remove it.
func (c *Controller) SetTargetDriver(driver *TargetDriver) {
	c.driver = driver
}

// Tick advances one frame: applies any pending robot swap delivered by the
// model watcher, then lets the target driver (if any) move the solver target
// and solve. Must be called from the frame loop.
func (c *Controller) Tick() {
	if tree := c.takePendingTree(); tree != nil {
		c.SetRobot(tree)
	}

	if c.state == StateDragging || c.driver == nil || c.solver == nil {
		return
	}
	target, ok := c.driver.Step()
	if !ok {
		return
	}
	c.solver.SetTarget(target)
	if c.marker != nil {
		c.marker.SetPosition(target)
		c.marker.Show()
	}
	c.solver.Solve()
	if c.callbacks.RequestRedraw != nil {
		c.callbacks.RequestRedraw()
	}
}

// WatchModelFile hot-reloads the robot from a URDF file: every rewrite of the
// file is parsed on the watcher goroutine and applied as a robot swap on the
// next Tick.
func (c *Controller) WatchModelFile(path string) error {
	if c.watcher != nil {
		if err := c.watcher.Close(); err != nil {
			return err
		}
		c.watcher = nil
	}
	watcher, err := jointtree.NewWatcher(path, func(tree *jointtree.Tree) {
		c.pendingMu.Lock()
		c.pendingTree = tree
		c.pendingMu.Unlock()
	}, c.logger)
	if err != nil {
		return err
	}
	c.watcher = watcher
	return nil
}

func (c *Controller) takePendingTree() *jointtree.Tree {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	tree := c.pendingTree
	c.pendingTree = nil
	return tree
}

// Close disposes the solver and releases the model watcher, if any.
func (c *Controller) Close() error {
	c.endDrag()
	c.DisposeCurrentSolver()
	var err error
	if c.watcher != nil {
		err = multierr.Combine(err, c.watcher.Close())
		c.watcher = nil
	}
	return err
}
