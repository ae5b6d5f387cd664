package kinematics

import (
	"math"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"

	"go.viam.com/dragik/jointtree"
	"go.viam.com/dragik/spatialmath"
	"go.viam.com/dragik/utils"
)

// Default solver parameters. Tuned for interactive dragging: heavy damping
// and smoothing trade convergence speed for the absence of visible jitter.
const (
	// How close the tip must get to the target, in model length units.
	defaultTolerance = 0.01

	// Max full sweeps over the chain per Solve call.
	defaultMaxIterations = 15

	// Fraction of the raw computed rotation applied per joint per sweep.
	defaultDampingFactor = 0.5

	// Hard cap on one joint's angle delta within a single sweep, radians.
	defaultMaxAngleChange = 0.15

	// Exponential blend between a joint's previous solved angle and its new
	// target angle, applied across successive Solve calls.
	defaultSmoothingFactor = 0.3

	// Strength of the heuristic pass that keeps the effector from twisting
	// away from the orientation it had when the solver was created.
	defaultOrientationWeight = 0.3
)

const (
	// Direction vectors shorter than this cannot yield a stable rotation axis.
	minVectorLength = 1e-3

	// Tip and target directions closer than this are considered aligned.
	alignmentEpsilon = 1e-5

	// Angle changes at or below this are not applied to the tree.
	negligibleAngleChange = 1e-4

	// A sweep moving all joints by less than this in total has stagnated.
	sweepStagnationThreshold = 0.005

	// Forward-direction dot products above this need no orientation nudge.
	orientationDriftDot = 0.98

	// Magnitude of one orientation-correction nudge before weighting.
	orientationNudge = 0.02
)

// SolverOptions configures a CCDSolver. Zero values fall back to defaults.
type SolverOptions struct {
	Tolerance         float64 `json:"tolerance"`
	MaxIterations     int     `json:"max_iterations"`
	DampingFactor     float64 `json:"damping_factor"`
	MaxAngleChange    float64 `json:"max_angle_change"`
	SmoothingFactor   float64 `json:"smoothing_factor"`
	OrientationWeight float64 `json:"orientation_weight"`
}

// NewDefaultSolverOptions returns the solver parameters used for interactive
// manipulation.
func NewDefaultSolverOptions() *SolverOptions {
	return &SolverOptions{
		Tolerance:         defaultTolerance,
		MaxIterations:     defaultMaxIterations,
		DampingFactor:     defaultDampingFactor,
		MaxAngleChange:    defaultMaxAngleChange,
		SmoothingFactor:   defaultSmoothingFactor,
		OrientationWeight: defaultOrientationWeight,
	}
}

// CCDSolver drives one kinematic chain's tip toward one moving world-space
// target using cyclic coordinate descent. Each Solve call performs a bounded
// number of tip-to-root sweeps; per-joint smoothed angles persist across
// calls so repeated solving against a moving target stays jitter-free.
// Not safe for concurrent use; all calls must come from one goroutine.
type CCDSolver struct {
	chain    Chain
	effector jointtree.Joint
	opts     *SolverOptions
	logger   golog.Logger

	target r3.Vector

	// endPoint is the effector's cached reach point in joint-local space,
	// held here rather than on the shared tree. Nil means the effector's own
	// world position is tracked instead.
	endPoint *r3.Vector

	// prevAngles is the exponential-smoothing memory, persisting between
	// Solve calls for the life of the solver.
	prevAngles map[jointtree.Joint]float64

	// initialOrientation is the effector's forward direction at creation,
	// which the orientation-correction pass tries to hold.
	initialOrientation r3.Vector

	onAngleChange func(joint jointtree.Joint, angle float64)
}

// NewCCDSolver binds a chain, its nominal effector joint, and solve options
// into a solver. The effector's reach point is computed once here. The
// initial target is the current tip position, so solving before a target is
// set is a no-op. A nil opts uses defaults.
func NewCCDSolver(chain Chain, effector jointtree.Joint, opts *SolverOptions, logger golog.Logger) *CCDSolver {
	if opts == nil {
		opts = NewDefaultSolverOptions()
	}
	s := &CCDSolver{
		chain:      chain,
		effector:   effector,
		opts:       opts,
		logger:     logger,
		prevAngles: make(map[jointtree.Joint]float64, len(chain)),
	}
	if effector != nil {
		endPoint := ComputeReachPoint(effector)
		s.endPoint = &endPoint
		s.initialOrientation = s.effectorForward()
	}
	if len(chain) == 0 && logger != nil {
		logger.Debug("solver created with an empty chain; Solve will be a no-op")
	}
	for _, entry := range chain {
		s.prevAngles[entry.Joint] = entry.Joint.Angle()
	}
	s.target = s.TipPosition()
	return s
}

// Chain returns the solver's chain.
func (s *CCDSolver) Chain() Chain {
	return s.chain
}

// Effector returns the nominal effector joint.
func (s *CCDSolver) Effector() jointtree.Joint {
	return s.effector
}

// SetTarget moves the world-space target the tip is driven toward.
func (s *CCDSolver) SetTarget(target r3.Vector) {
	s.target = target
}

// Target returns the current world-space target.
func (s *CCDSolver) Target() r3.Vector {
	return s.target
}

// OnAngleChange registers a callback invoked whenever the solver applies a
// new angle to a joint, for UI mirrors such as sliders. It is a side effect
// only; solving does not depend on it.
func (s *CCDSolver) OnAngleChange(fn func(joint jointtree.Joint, angle float64)) {
	s.onAngleChange = fn
}

// TipPosition returns the world-space position the solver tracks: the cached
// reach point transformed to world space, or the effector's own position when
// no reach point is cached.
func (s *CCDSolver) TipPosition() r3.Vector {
	if s.effector == nil {
		if len(s.chain) == 0 {
			return r3.Vector{}
		}
		return s.chain[len(s.chain)-1].Joint.WorldPose().Point()
	}
	world := s.effector.WorldPose()
	if s.endPoint == nil {
		return world.Point()
	}
	return world.TransformPoint(*s.endPoint)
}

// Solve advances the chain's joint angles toward the current target and
// returns the remaining tip-to-target distance. An empty chain is a no-op.
// Joints with momentarily degenerate geometry are skipped for the sweep
// rather than aborting the solve.
func (s *CCDSolver) Solve() float64 {
	if len(s.chain) == 0 {
		return s.TipPosition().Sub(s.target).Norm()
	}

	dist := s.TipPosition().Sub(s.target).Norm()
	if dist < s.opts.Tolerance {
		// already converged; sweeping would only jitter the pose
		return dist
	}
	for iteration := 0; iteration < s.opts.MaxIterations; iteration++ {
		totalChange := 0.0
		for i := len(s.chain) - 1; i >= 0; i-- {
			totalChange += s.stepJoint(s.chain[i].Joint)
		}

		if s.opts.OrientationWeight > 0 {
			s.correctOrientation()
		}

		dist = s.TipPosition().Sub(s.target).Norm()
		if dist < s.opts.Tolerance || totalChange < sweepStagnationThreshold {
			break
		}
	}
	return dist
}

// stepJoint rotates one joint toward the target and returns the magnitude of
// the applied angle change, zero if the joint was skipped or unchanged.
func (s *CCDSolver) stepJoint(joint jointtree.Joint) float64 {
	if !joint.Kind().Rotational() {
		return 0
	}

	tip := s.TipPosition()
	jointWorld := joint.WorldPose()
	jointPos := jointWorld.Point()

	toTip := tip.Sub(jointPos)
	toTarget := s.target.Sub(jointPos)
	if toTip.Norm() < minVectorLength || toTarget.Norm() < minVectorLength {
		// tip on top of the joint, or target on top of the joint; no stable
		// rotation direction exists this sweep
		return 0
	}
	toTip = toTip.Normalize()
	toTarget = toTarget.Normalize()

	angleBetween := math.Acos(utils.Clamp(toTip.Dot(toTarget), -1, 1))
	if angleBetween < alignmentEpsilon {
		return 0
	}

	axis := spatialmath.RotateVector(jointWorld.Orientation(), joint.Axis())
	sign := 1.0
	if toTip.Cross(toTarget).Dot(axis) < 0 {
		sign = -1
	}

	delta := utils.Clamp(sign*angleBetween*s.opts.DampingFactor, -s.opts.MaxAngleChange, s.opts.MaxAngleChange)
	targetAngle := joint.Angle() + delta
	if limit, ok := joint.Limit(); ok {
		targetAngle = limit.Clamp(targetAngle)
	}

	prev, ok := s.prevAngles[joint]
	if !ok {
		prev = joint.Angle()
	}
	smoothed := prev + (targetAngle-prev)*s.opts.SmoothingFactor
	if limit, ok := joint.Limit(); ok {
		smoothed = limit.Clamp(smoothed)
	}

	change := math.Abs(smoothed - joint.Angle())
	if change <= negligibleAngleChange {
		return 0
	}
	if !joint.SetAngle(smoothed) {
		return 0
	}
	s.prevAngles[joint] = smoothed
	if s.onAngleChange != nil {
		s.onAngleChange(joint, smoothed)
	}
	return change
}

// correctOrientation nudges the last two chain joints to damp accumulated
// twist of the effector away from its creation-time forward direction. It is
// a heuristic add-on after each positional sweep, not an exact orientation
// solve, and must never block position convergence.
func (s *CCDSolver) correctOrientation() {
	if s.effector == nil {
		return
	}
	forward := s.effectorForward()
	if forward.Dot(s.initialOrientation) >= orientationDriftDot {
		return
	}

	start := len(s.chain) - 2
	if start < 0 {
		start = 0
	}
	for i := start; i < len(s.chain); i++ {
		joint := s.chain[i].Joint
		if !joint.Kind().Rotational() {
			continue
		}

		axis := spatialmath.RotateVector(joint.WorldPose().Orientation(), joint.Axis())
		sign := 1.0
		if forward.Cross(s.initialOrientation).Dot(axis) < 0 {
			sign = -1
		}

		corrected := joint.Angle() + sign*orientationNudge*s.opts.OrientationWeight
		if limit, ok := joint.Limit(); ok {
			corrected = limit.Clamp(corrected)
		}
		if !joint.SetAngle(corrected) {
			continue
		}
		s.prevAngles[joint] = corrected
		if s.onAngleChange != nil {
			s.onAngleChange(joint, corrected)
		}
		forward = s.effectorForward()
	}
}

// effectorForward returns the effector's current forward (local Z) direction
// in world space.
func (s *CCDSolver) effectorForward() r3.Vector {
	return spatialmath.RotateVector(s.effector.WorldPose().Orientation(), r3.Vector{Z: 1})
}
