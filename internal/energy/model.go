/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package energy

import "fmt"

// Model names accepted by NewModel.
const (
	ModelLinear  = "linear"
	ModelSigmoid = "sigmoid"
)

// Adjustment is what a speed model contributes to a parameter vector.
type Adjustment struct {
	Tempo       float64
	EnergyDelta float64
	MinTempo    float64
}

// Model turns a speed in km/h into an Adjustment.
type Model interface {
	Name() string
	Adjust(speed float64) (Adjustment, error)
}

// Linear is the two-branch rule: a fixed slow tempo below Threshold, and
// above it a tempo proportional to speed plus a flat energy boost.
type Linear struct {
	Threshold   float64
	SlowTempo   float64
	TempoPerKMH float64
	EnergyBoost float64
}

// DefaultLinear returns the rule used by the live loop: tempo 50 under
// 30 km/h, otherwise 2*speed with +0.1 energy.
func DefaultLinear() Linear {
	return Linear{Threshold: 30, SlowTempo: 50, TempoPerKMH: 2, EnergyBoost: 0.1}
}

func (l Linear) Name() string { return ModelLinear }

func (l Linear) Adjust(speed float64) (Adjustment, error) {
	return Adjustment{Tempo: l.tempo(speed), EnergyDelta: l.boost(speed)}, nil
}

func (l Linear) tempo(speed float64) float64 {
	if speed < l.Threshold {
		return l.SlowTempo
	}
	return l.TempoPerKMH * speed
}

func (l Linear) boost(speed float64) float64 {
	if speed < l.Threshold {
		return 0
	}
	return l.EnergyBoost
}

// Sigmoid shifts energy continuously with speed (zero at NeutralSpeed) and
// sets a tempo floor on fast roads. Tempo follows the linear rule.
type Sigmoid struct {
	Min          float64
	Max          float64
	NeutralSpeed float64
	tempo        Linear
}

// NewSigmoid validates the curve parameters up front so that Adjust cannot
// fail at tick time.
func NewSigmoid(min, max, neutralSpeed float64) (*Sigmoid, error) {
	if err := checkDomain(min, max, neutralSpeed); err != nil {
		return nil, err
	}
	return &Sigmoid{Min: min, Max: max, NeutralSpeed: neutralSpeed, tempo: DefaultLinear()}, nil
}

func (s *Sigmoid) Name() string { return ModelSigmoid }

func (s *Sigmoid) Adjust(speed float64) (Adjustment, error) {
	delta, err := FromSpeed(speed, s.Min, s.Max, s.NeutralSpeed)
	if err != nil {
		return Adjustment{}, err
	}
	return Adjustment{
		Tempo:       s.tempo.tempo(speed),
		EnergyDelta: delta,
		MinTempo:    MinTempo(speed),
	}, nil
}

// NewModel builds the named model. The sigmoid parameters are ignored for
// the linear model.
func NewModel(name string, min, max, neutralSpeed float64) (Model, error) {
	switch name {
	case "", ModelLinear:
		return DefaultLinear(), nil
	case ModelSigmoid:
		s, err := NewSigmoid(min, max, neutralSpeed)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("energy: unknown speed model %q", name)
}
