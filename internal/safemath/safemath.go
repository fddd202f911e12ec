// Package safemath provides defensive numeric helpers. Inputs are coerced to
// finite float64 values before any arithmetic, and every failure is reported
// as an *Error instead of silently producing NaN, Inf or a truthy 1.
package safemath

import (
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// Coerce converts v to a finite float64. Booleans are always rejected.
func Coerce(v Value) (float64, error) {
	var (
		f   float64
		err error
	)
	switch v.kind {
	case KindBool:
		return 0, errorf(InvalidNumber, "boolean value %s is not a valid numeric input", v)
	case KindInt:
		f = float64(v.i)
	case KindUint:
		f = float64(v.u)
	case KindFloat:
		f = v.f
	case KindString:
		f, err = parseDecimal(v.s)
		if err != nil {
			return 0, errorf(InvalidNumber, "%s is not a valid number", v)
		}
	default:
		return 0, errorf(InvalidNumber, "%s is not a valid number", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errorf(InvalidNumber, "%s is not a finite number", v)
	}
	return f, nil
}

// parseDecimal accepts surrounding whitespace but not hex or binary literals.
func parseDecimal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	body := strings.TrimLeft(s, "+-")
	if len(body) > 1 && body[0] == '0' && strings.ContainsRune("xXbBoO", rune(body[1])) {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseFloat(s, 64)
}

// SafeDivide returns numerator / denominator. The numerator is coerced first.
func SafeDivide(numerator, denominator Value) (float64, error) {
	num, err := Coerce(numerator)
	if err != nil {
		return 0, err
	}
	den, err := Coerce(denominator)
	if err != nil {
		return 0, err
	}
	if den == 0 {
		return 0, errorf(DivisionByZero, "cannot divide %s by zero", numerator)
	}
	return num / den, nil
}

// Mean returns the arithmetic mean of values. All elements are coerced before
// anything is summed; the first invalid element aborts the call.
func Mean(values []Value) (float64, error) {
	coerced := make([]float64, 0, len(values))
	for _, v := range values {
		f, err := Coerce(v)
		if err != nil {
			return 0, err
		}
		coerced = append(coerced, f)
	}
	if len(coerced) == 0 {
		return 0, errorf(EmptySequence, "cannot calculate the mean of an empty sequence")
	}
	return stat.Mean(coerced, nil), nil
}

// Clamp constrains v to [lower, upper]. Either bound may be nil. When both are
// given they are validated before v is looked at, so a bad range is reported
// ahead of a bad value.
func Clamp(v Value, lower, upper *Value) (float64, error) {
	var (
		lo, hi       float64
		hasLo, hasHi bool
		err          error
	)
	if lower != nil {
		if lo, err = Coerce(*lower); err != nil {
			return 0, err
		}
		hasLo = true
	}
	if upper != nil {
		if hi, err = Coerce(*upper); err != nil {
			return 0, err
		}
		hasHi = true
	}
	if hasLo && hasHi && lo > hi {
		return 0, errorf(InvalidBounds, "lower bound %s cannot exceed upper bound %s", *lower, *upper)
	}

	n, err := Coerce(v)
	if err != nil {
		return 0, err
	}
	if hasLo && n < lo {
		return lo, nil
	}
	if hasHi && n > hi {
		return hi, nil
	}
	return n, nil
}
