/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package signals

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	"github.com/rs/zerolog"
)

// knotsToKMH converts the RMC speed over ground.
const knotsToKMH = 1.852

// ErrNoFix is returned until the receiver has produced a valid GGA sentence.
var ErrNoFix = errors.New("signals: no GPS fix yet")

// NMEAReader keeps the latest position and speed from a stream of NMEA 0183
// sentences. GGA sentences update the position, RMC sentences the speed.
type NMEAReader struct {
	logger zerolog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	fix      Fix
	hasFix   bool
	speed    float64
	hasSpeed bool
	date     nmea.Date
}

// NewNMEAReader creates an empty reader.
func NewNMEAReader(logger zerolog.Logger) *NMEAReader {
	return &NMEAReader{
		logger: logger.With().Str("component", "nmea").Logger(),
		now:    time.Now,
	}
}

// OpenNMEA opens a serial device or capture file and feeds it to a new reader
// in the background. Closing the returned io.Closer stops the feed.
func OpenNMEA(ctx context.Context, path string, logger zerolog.Logger) (*NMEAReader, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open nmea source: %w", err)
	}

	r := NewNMEAReader(logger)
	go func() {
		if err := r.Run(ctx, f); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, os.ErrClosed) {
			r.logger.Error().Err(err).Str("path", path).Msg("nmea feed stopped")
		}
	}()
	return r, f, nil
}

// Run reads sentences line by line until src is exhausted or ctx is done.
// Malformed sentences are logged and skipped.
func (r *NMEAReader) Run(ctx context.Context, src io.Reader) error {
	scanner := bufio.NewScanner(src)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.Ingest(scanner.Text()); err != nil {
			r.logger.Debug().Err(err).Msg("skipping nmea sentence")
		}
	}
	return scanner.Err()
}

// Ingest parses one sentence. Sentence types other than GGA and RMC are ignored.
func (r *NMEAReader) Ingest(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	sentence, err := nmea.Parse(line)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch s := sentence.(type) {
	case nmea.GGA:
		if s.FixQuality == nmea.Invalid {
			return nil
		}
		r.fix = Fix{
			Latitude:  s.Latitude,
			Longitude: s.Longitude,
			Timestamp: r.timestamp(s.Time),
		}
		r.hasFix = true
	case nmea.RMC:
		if s.Validity != nmea.ValidRMC {
			return nil
		}
		r.speed = s.Speed * knotsToKMH
		r.hasSpeed = true
		if s.Date.Valid {
			r.date = s.Date
		}
	}
	return nil
}

// timestamp combines a sentence time with the last RMC date, or today's UTC
// date when no RMC has been seen.
func (r *NMEAReader) timestamp(t nmea.Time) time.Time {
	if !t.Valid {
		return r.now().UTC()
	}
	y, m, d := r.now().UTC().Date()
	if r.date.Valid {
		y, m, d = nmeaYear(r.date.YY), time.Month(r.date.MM), r.date.DD
	}
	return time.Date(y, m, d, t.Hour, t.Minute, t.Second, t.Millisecond*int(time.Millisecond), time.UTC)
}

func nmeaYear(yy int) int {
	if yy < 70 {
		return 2000 + yy
	}
	return 1900 + yy
}

// Position returns the latest fix with the latest RMC speed attached.
func (r *NMEAReader) Position(ctx context.Context) (Fix, error) {
	if err := ctx.Err(); err != nil {
		return Fix{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.hasFix {
		return Fix{}, ErrNoFix
	}
	fix := r.fix
	fix.Speed, fix.HasSpeed = r.speed, r.hasSpeed
	return fix, nil
}
