package interaction

import (
	"math"
	"time"
)

// PointerType is the device that produced a pointer event.
type PointerType string

const (
	PointerMouse PointerType = "mouse"
	PointerTouch PointerType = "touch"
	PointerPen   PointerType = "pen"
)

// PointerEvent is a pointerdown/move/up in screen coordinates.
type PointerEvent struct {
	ID     int
	Type   PointerType
	Screen Point
	Time   time.Time
}

const (
	DoubleTapWindow = 320 * time.Millisecond
	DoubleTapRadius = 24.0
)

// TapDetector recognises two touch pointerdowns close in time and space.
type TapDetector struct {
	last    PointerEvent
	hasLast bool
}

// Down records a pointerdown and reports whether it completes a double tap.
// Non-touch events are ignored. A completed double tap resets the detector.
func (d *TapDetector) Down(ev PointerEvent) bool {
	if ev.Type != PointerTouch {
		return false
	}
	if d.hasLast {
		dt := ev.Time.Sub(d.last.Time)
		dist := math.Hypot(ev.Screen.X-d.last.Screen.X, ev.Screen.Y-d.last.Screen.Y)
		if dt >= 0 && dt <= DoubleTapWindow && dist <= DoubleTapRadius {
			d.hasLast = false
			return true
		}
	}
	d.last, d.hasLast = ev, true
	return false
}
