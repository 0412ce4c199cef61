/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package playback serializes audio through single-consumer queues.
package playback

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/rs/zerolog"
)

// Player plays one URI and blocks until it ends or ctx is cancelled.
type Player interface {
	Play(ctx context.Context, uri string) error
}

// GstPlayer plays through a gst-launch playbin process.
type GstPlayer struct {
	bin    string
	logger zerolog.Logger
}

// NewGstPlayer returns a player that runs bin (gst-launch-1.0 when empty).
func NewGstPlayer(bin string, logger zerolog.Logger) *GstPlayer {
	if bin == "" {
		bin = "gst-launch-1.0"
	}
	return &GstPlayer{bin: bin, logger: logger.With().Str("component", "player").Logger()}
}

// Play starts the process and waits for it. Cancelling ctx interrupts
// gst-launch and kills it if it has not exited after 5 seconds.
func (p *GstPlayer) Play(ctx context.Context, uri string) error {
	cmd := exec.CommandContext(ctx, p.bin, "-q", "playbin", "uri="+uri)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = 5 * time.Second

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", p.bin, err)
	}
	err := cmd.Wait()
	if ctx.Err() != nil {
		p.logger.Debug().Str("uri", uri).Dur("played", time.Since(start)).Msg("playback interrupted")
		return ctx.Err()
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("%s exited with code %d", p.bin, exitErr.ExitCode())
		}
		return err
	}
	p.logger.Debug().Str("uri", uri).Dur("played", time.Since(start)).Msg("playback finished")
	return nil
}
