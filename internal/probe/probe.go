// Package probe answers one question: is the camera in use right now.
//
// Implementations are OS-specific and deliberately forgiving. A prober must
// never surface an error to the control loop; anything that goes wrong
// (missing tool, permission denied, parse failure) reads as "inactive".
package probe

// Prober reports whether the monitored device is currently active.
type Prober interface {
	Active() bool
}

// Func adapts a plain function to the Prober interface.
type Func func() bool

func (f Func) Active() bool {
	return f()
}

// NewCamera returns the camera prober for the current OS.
func NewCamera() Prober {
	return newCameraProber()
}
