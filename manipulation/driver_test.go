package manipulation

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestTargetDriver(t *testing.T) {
	mock := clock.NewMock()
	driver, err := NewTargetDriver(
		[]r3.Vector{{X: 0}, {X: 1}},
		time.Second, false, mock,
	)
	test.That(t, err, test.ShouldBeNil)

	// first step anchors the clock; no time has passed
	pos, ok := driver.Step()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, pos.Sub(r3.Vector{}).Norm(), test.ShouldBeLessThan, 1e-6)

	mock.Add(500 * time.Millisecond)
	pos, ok = driver.Step()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, pos.X, test.ShouldBeGreaterThan, 0)
	test.That(t, pos.X, test.ShouldBeLessThan, 1)

	mock.Add(600 * time.Millisecond)
	pos, ok = driver.Step()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, pos.Sub(r3.Vector{X: 1}).Norm(), test.ShouldBeLessThan, 1e-6)
	test.That(t, driver.Done(), test.ShouldBeTrue)

	_, ok = driver.Step()
	test.That(t, ok, test.ShouldBeFalse)
}

func TestTargetDriverLoop(t *testing.T) {
	mock := clock.NewMock()
	driver, err := NewTargetDriver(
		[]r3.Vector{{X: 0}, {X: 1}},
		time.Second, true, mock,
	)
	test.That(t, err, test.ShouldBeNil)

	driver.Step()
	mock.Add(1100 * time.Millisecond)
	_, ok := driver.Step()
	test.That(t, ok, test.ShouldBeTrue)
	// looped back to the first leg
	test.That(t, driver.Done(), test.ShouldBeFalse)
	mock.Add(100 * time.Millisecond)
	pos, ok := driver.Step()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, pos.X, test.ShouldBeLessThan, 0.5)
}

func TestTargetDriverValidation(t *testing.T) {
	_, err := NewTargetDriver([]r3.Vector{{X: 1}}, time.Second, false, nil)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewTargetDriver([]r3.Vector{{X: 0}, {X: 1}}, 0, false, nil)
	test.That(t, err, test.ShouldNotBeNil)
}
