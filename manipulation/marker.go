package manipulation

import "github.com/golang/geo/r3"

// TargetMarker is the visual artifact tracking a solver's target point. The
// controller owns at most one, tied to the life of the current solver; the
// renderer reads it to draw the drag indicator.
type TargetMarker struct {
	position r3.Vector
	visible  bool
}

// SetPosition moves the marker.
func (m *TargetMarker) SetPosition(pt r3.Vector) {
	m.position = pt
}

// Position returns the marker's world-space position.
func (m *TargetMarker) Position() r3.Vector {
	return m.position
}

// Show makes the marker visible.
func (m *TargetMarker) Show() {
	m.visible = true
}

// Hide makes the marker invisible without destroying it.
func (m *TargetMarker) Hide() {
	m.visible = false
}

// Visible reports whether the marker should be drawn.
func (m *TargetMarker) Visible() bool {
	return m.visible
}
