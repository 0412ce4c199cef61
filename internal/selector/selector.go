/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package selector draws one playable track from a ranked candidate list.
package selector

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/friendsincode/sonic_road/internal/catalog"
)

// Bias chooses which end of the ranking gets the larger weights.
type Bias string

const (
	// BiasHead walks the list from the end with 1-based weights, so the
	// candidate at position i of n weighs n-i and rank 1 is the most likely.
	BiasHead Bias = "head"
	// BiasTail mirrors BiasHead: position i weighs i+1.
	BiasTail Bias = "tail"
)

// ParseBias validates a bias name. "" means BiasHead.
func ParseBias(name string) (Bias, error) {
	switch Bias(name) {
	case "", BiasHead:
		return BiasHead, nil
	case BiasTail:
		return BiasTail, nil
	}
	return "", fmt.Errorf("selector: unknown bias %q", name)
}

// Selector is safe for concurrent use.
type Selector struct {
	bias Bias

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a selector seeded with seed.
func New(seed int64, bias Bias) *Selector {
	if bias == "" {
		bias = BiasHead
	}
	return &Selector{bias: bias, rng: rand.New(rand.NewSource(seed))}
}

// Weights returns the integer weight of each candidate. Candidates without a
// preview weigh 0 but still hold their position in the ranking.
func (s *Selector) Weights(cands []catalog.Candidate) []int {
	n := len(cands)
	weights := make([]int, n)
	for i, c := range cands {
		if !c.HasPreview() {
			continue
		}
		if s.bias == BiasTail {
			weights[i] = i + 1
		} else {
			weights[i] = n - i
		}
	}
	return weights
}

// Probabilities normalizes Weights into a distribution. It returns nil when
// no candidate is playable.
func (s *Selector) Probabilities(cands []catalog.Candidate) []float64 {
	weights := s.Weights(cands)
	total := 0
	for _, w := range weights {
		total += w
	}
	if total == 0 {
		return nil
	}
	p := make([]float64, len(weights))
	for i, w := range weights {
		p[i] = float64(w) / float64(total)
	}
	return p
}

// Select draws one candidate with probability proportional to its weight.
// ok is false when no candidate has a preview.
func (s *Selector) Select(cands []catalog.Candidate) (catalog.Candidate, bool) {
	weights := s.Weights(cands)
	total := 0
	for _, w := range weights {
		total += w
	}
	if total == 0 {
		return catalog.Candidate{}, false
	}

	s.mu.Lock()
	r := s.rng.Intn(total)
	s.mu.Unlock()

	for i, w := range weights {
		if r < w {
			return cands[i], true
		}
		r -= w
	}
	// unreachable: r < total
	return catalog.Candidate{}, false
}
