package manipulation

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// TargetDriver scripts the solver's target along a world-space waypoint path
// with eased interpolation, standing in for a user drag when exercising the
// solver from automation. The controller steps it once per Tick while no drag
// is active; it never runs on its own goroutine.
type TargetDriver struct {
	clk         clock.Clock
	waypoints   []r3.Vector
	legDuration time.Duration
	loop        bool

	tween    *gween.Tween
	leg      int
	started  bool
	lastStep time.Time
}

// NewTargetDriver creates a driver easing between consecutive waypoints, each
// leg taking legDuration. When loop is set the path repeats from the start.
// A nil clock uses the real one; tests pass a mock.
func NewTargetDriver(waypoints []r3.Vector, legDuration time.Duration, loop bool, clk clock.Clock) (*TargetDriver, error) {
	if len(waypoints) < 2 {
		return nil, errors.New("target driver needs at least two waypoints")
	}
	if legDuration <= 0 {
		return nil, errors.New("leg duration must be positive")
	}
	if clk == nil {
		clk = clock.New()
	}
	return &TargetDriver{
		clk:         clk,
		waypoints:   waypoints,
		legDuration: legDuration,
		loop:        loop,
		tween:       gween.New(0, 1, float32(legDuration.Seconds()), ease.InOutQuad),
	}, nil
}

// Step advances the path by the clock time elapsed since the previous step
// and returns the next target. The second return is false once the path has
// completed (never for looping drivers).
func (d *TargetDriver) Step() (r3.Vector, bool) {
	now := d.clk.Now()
	if !d.started {
		d.started = true
		d.lastStep = now
	}
	dt := now.Sub(d.lastStep).Seconds()
	d.lastStep = now

	if d.leg >= len(d.waypoints)-1 {
		return r3.Vector{}, false
	}

	t, finished := d.tween.Update(float32(dt))
	from := d.waypoints[d.leg]
	to := d.waypoints[d.leg+1]
	pos := from.Add(to.Sub(from).Mul(float64(t)))

	if finished {
		d.leg++
		if d.leg >= len(d.waypoints)-1 && d.loop {
			d.leg = 0
		}
		if d.leg < len(d.waypoints)-1 {
			d.tween = gween.New(0, 1, float32(d.legDuration.Seconds()), ease.InOutQuad)
		}
	}
	return pos, true
}

// Done reports whether a non-looping driver has finished its path.
func (d *TargetDriver) Done() bool {
	return d.leg >= len(d.waypoints)-1
}
