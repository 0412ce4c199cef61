/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package energy maps vehicle speed onto tempo and energy targets.
package energy

import (
	"fmt"
	"math"
)

// smoothing is the steepness of the speed sigmoid.
const smoothing = 0.1

// DomainError reports sigmoid parameters for which the curve is undefined.
type DomainError struct {
	Min          float64
	Max          float64
	NeutralSpeed float64
	Reason       string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("energy: invalid sigmoid domain (min=%g max=%g neutral=%g): %s",
		e.Min, e.Max, e.NeutralSpeed, e.Reason)
}

// FromSpeed evaluates the speed sigmoid. The curve tends to min as speed goes
// to -inf and to max as speed goes to +inf. At neutralSpeed the exponential
// equals -max/min, so the result there is 0 for every valid min and max.
//
// The offset term is 10*ln((min-max)/min - 1), so min must be non-zero and
// (min-max)/min - 1 must be positive, which in practice means min < 0 < max.
func FromSpeed(speed, min, max, neutralSpeed float64) (float64, error) {
	if err := checkDomain(min, max, neutralSpeed); err != nil {
		return 0, err
	}
	offset := 10*math.Log((min-max)/min-1) + neutralSpeed
	return (max-min)/(1+math.Exp(-smoothing*(speed-offset))) + min, nil
}

func checkDomain(min, max, neutralSpeed float64) error {
	switch {
	case math.IsNaN(min) || math.IsNaN(max) || math.IsNaN(neutralSpeed):
		return &DomainError{Min: min, Max: max, NeutralSpeed: neutralSpeed, Reason: "NaN parameter"}
	case !(min < max):
		return &DomainError{Min: min, Max: max, NeutralSpeed: neutralSpeed, Reason: "min must be lower than max"}
	case min == 0:
		return &DomainError{Min: min, Max: max, NeutralSpeed: neutralSpeed, Reason: "min must not be zero"}
	case (min-max)/min-1 <= 0:
		return &DomainError{Min: min, Max: max, NeutralSpeed: neutralSpeed, Reason: "(min-max)/min - 1 must be positive"}
	}
	return nil
}

// MinTempo is the tempo floor for fast driving: nothing below 100 km/h,
// then 2*speed - 80.
func MinTempo(speed float64) float64 {
	if speed < 100 {
		return 0
	}
	return speed*2 - 80
}
