/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playback

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/friendsincode/sonic_road/internal/telemetry"
)

// Request is one sound to play.
type Request struct {
	URI   string `json:"uri"`
	Label string `json:"label"`
}

// Queue plays one request at a time. Submitting a new request stops the
// current sound and replaces anything still waiting, so the newest request
// always wins.
type Queue struct {
	name   string
	player Player
	logger zerolog.Logger

	mu      sync.Mutex
	pending *Request
	current *Request
	cancel  context.CancelFunc
	wake    chan struct{}
	busy    bool
	idle    chan struct{} // closed while nothing is playing or pending
}

// NewQueue creates a queue for one channel ("music", "ambient").
func NewQueue(name string, player Player, logger zerolog.Logger) *Queue {
	idle := make(chan struct{})
	close(idle)
	return &Queue{
		name:   name,
		player: player,
		logger: logger.With().Str("component", "playback").Str("channel", name).Logger(),
		wake:   make(chan struct{}, 1),
		idle:   idle,
	}
}

// Name returns the channel name.
func (q *Queue) Name() string { return q.name }

// Submit never blocks.
func (q *Queue) Submit(r Request) {
	q.mu.Lock()
	q.pending = &r
	if !q.busy {
		q.busy = true
		q.idle = make(chan struct{})
	}
	if q.cancel != nil {
		q.cancel()
	}
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Stop silences the channel and drops any pending request.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.pending = nil
	if q.cancel != nil {
		q.cancel()
	}
	q.mu.Unlock()
}

// Wait blocks until the channel has nothing playing or pending.
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// markIdle must be called with mu held.
func (q *Queue) markIdle() {
	if q.busy {
		q.busy = false
		close(q.idle)
	}
}

// Current reports what is playing right now.
func (q *Queue) Current() (Request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current == nil {
		return Request{}, false
	}
	return *q.current, true
}

// Run consumes requests until ctx is cancelled.
func (q *Queue) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			q.Stop()
			q.mu.Lock()
			q.markIdle()
			q.mu.Unlock()
			return nil
		case <-q.wake:
		}

		for ctx.Err() == nil {
			q.mu.Lock()
			r := q.pending
			q.pending = nil
			if r == nil {
				q.markIdle()
				q.mu.Unlock()
				break
			}
			playCtx, cancel := context.WithCancel(ctx)
			q.cancel = cancel
			q.current = r
			q.mu.Unlock()

			q.play(playCtx, *r)

			q.mu.Lock()
			q.cancel = nil
			q.current = nil
			q.mu.Unlock()
			cancel()
		}
	}
}

func (q *Queue) play(ctx context.Context, r Request) {
	telemetry.PlaybackStarts.WithLabelValues(q.name).Inc()
	q.logger.Info().Str("label", r.Label).Msg("playing")

	err := q.player.Play(ctx, r.URI)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		q.logger.Debug().Str("label", r.Label).Msg("superseded")
	default:
		telemetry.PlaybackErrors.WithLabelValues(q.name).Inc()
		q.logger.Warn().Err(err).Str("label", r.Label).Msg("playback failed")
	}
}

// Deck holds the music and ambient channels. Each channel serializes its own
// sounds; the two channels play over each other.
type Deck struct {
	Music   *Queue
	Ambient *Queue
}

// NewDeck creates both channels on the same player.
func NewDeck(player Player, logger zerolog.Logger) *Deck {
	return &Deck{
		Music:   NewQueue("music", player, logger),
		Ambient: NewQueue("ambient", player, logger),
	}
}

// Run drives both channels until ctx is cancelled.
func (d *Deck) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.Music.Run(ctx) })
	g.Go(func() error { return d.Ambient.Run(ctx) })
	return g.Wait()
}

// Wait blocks until both channels are idle.
func (d *Deck) Wait(ctx context.Context) error {
	if err := d.Music.Wait(ctx); err != nil {
		return err
	}
	return d.Ambient.Wait(ctx)
}
