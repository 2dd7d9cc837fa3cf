package logic

// MapDuty converts a decoded value to a duty level in [0, DutyMax].
// The value is sanitized first and the result is truncated, not rounded.
// Every float32, including NaN and the infinities, has a defined result.
func MapDuty(v float32) Duty {
	return Duty(float64(Sanitize(v)) * float64(DutyMax))
}

// Sanitize limits v to [0, 1]. NaN and negative values become 0.
func Sanitize(v float32) float32 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
