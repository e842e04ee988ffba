// Package units provides shared constants and conversions for servo angles.
package units

// Angle limits for a standard 180-degree hobby servo.
const (
	MinAngle = 0
	MaxAngle = 180
)

// Pulse width endpoints in microseconds for the PWM signal that corresponds
// to MinAngle and MaxAngle on a standard hobby servo.
const (
	MinPulseMicros = 544
	MaxPulseMicros = 2400
)

// InRange reports whether the angle is a valid servo target.
func InRange(angle int) bool {
	return angle >= MinAngle && angle <= MaxAngle
}

// ClampAngle constrains an angle to [MinAngle, MaxAngle].
func ClampAngle(angle int) int {
	if angle < MinAngle {
		return MinAngle
	}
	if angle > MaxAngle {
		return MaxAngle
	}
	return angle
}

// PulseMicros converts an angle in degrees to the equivalent PWM pulse width
// in microseconds. The angle is clamped before conversion.
func PulseMicros(angle int) int {
	a := ClampAngle(angle)
	span := MaxPulseMicros - MinPulseMicros
	return MinPulseMicros + a*span/(MaxAngle-MinAngle)
}

// RawTicks maps an angle in degrees onto a raw bus-servo position between
// rawMin (at MinAngle) and rawMax (at MaxAngle). The angle is clamped before
// conversion.
func RawTicks(angle, rawMin, rawMax int) int {
	a := ClampAngle(angle)
	return rawMin + a*(rawMax-rawMin)/(MaxAngle-MinAngle)
}

// AngleFromRawTicks is the inverse of RawTicks, rounding to the nearest
// degree. A degenerate raw range maps everything to MinAngle.
func AngleFromRawTicks(raw, rawMin, rawMax int) int {
	span := rawMax - rawMin
	if span == 0 {
		return MinAngle
	}
	a := ((raw-rawMin)*(MaxAngle-MinAngle) + span/2) / span
	return ClampAngle(a)
}
