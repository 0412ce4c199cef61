/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus mirrors in-process events onto NATS so dashboards and
// loggers outside the car can follow the engine.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/friendsincode/sonic_road/internal/events"
)

// SubjectPrefix is prepended to the event type to build the NATS subject.
const SubjectPrefix = "sonicroad.events."

// Publisher is the part of *nats.Conn the mirror needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSConfig contains NATS connection configuration.
type NATSConfig struct {
	URL   string
	Token string

	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultNATSConfig returns default NATS configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           "nats://localhost:4222",
		MaxReconnects: -1, // Unlimited
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// Connect dials NATS. The connection keeps retrying in the background, so a
// car that boots without network still starts.
func Connect(cfg NATSConfig, logger zerolog.Logger) (*nats.Conn, error) {
	log := logger.With().Str("component", "eventbus").Logger()
	opts := []nats.Option{
		nats.Name("sonicroad"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", cfg.URL, err)
	}
	log.Info().Str("url", cfg.URL).Msg("nats connection initialized")
	return nc, nil
}

// Message is the JSON envelope published on NATS.
type Message struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
	MessageID string           `json:"message_id"` // For deduplication
}

// Subject returns the NATS subject of an event type.
func Subject(eventType events.EventType) string {
	return SubjectPrefix + string(eventType)
}

// Mirror republishes every bus event on NATS.
type Mirror struct {
	bus    *events.Bus
	pub    Publisher
	nodeID string
	logger zerolog.Logger
	now    func() time.Time

	subs map[events.EventType]events.Subscriber
}

// NewMirror subscribes to all event types immediately; Run forwards them.
func NewMirror(bus *events.Bus, pub Publisher, logger zerolog.Logger) *Mirror {
	m := &Mirror{
		bus:    bus,
		pub:    pub,
		nodeID: generateNodeID(),
		logger: logger.With().Str("component", "eventbus").Logger(),
		now:    time.Now,
		subs:   make(map[events.EventType]events.Subscriber),
	}
	for _, et := range events.EventTypes() {
		m.subs[et] = bus.SubscribeBuffered(et, 32)
	}
	return m
}

// NodeID identifies this process in published messages.
func (m *Mirror) NodeID() string { return m.nodeID }

// Run forwards events until ctx is cancelled, then unsubscribes.
func (m *Mirror) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for et, sub := range m.subs {
		wg.Add(1)
		go func(et events.EventType, sub events.Subscriber) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case payload, ok := <-sub:
					if !ok {
						return
					}
					if err := m.forward(et, payload); err != nil {
						m.logger.Debug().Err(err).Str("event", string(et)).Msg("nats publish failed")
					}
				}
			}
		}(et, sub)
	}
	wg.Wait()

	for et, sub := range m.subs {
		m.bus.Unsubscribe(et, sub)
	}
	return nil
}

func (m *Mirror) forward(eventType events.EventType, payload events.Payload) error {
	data, err := json.Marshal(Message{
		EventType: eventType,
		Payload:   payload,
		Timestamp: m.now().UTC(),
		NodeID:    m.nodeID,
		MessageID: uuid.NewString(),
	})
	if err != nil {
		return fmt.Errorf("marshal nats message: %w", err)
	}
	return m.pub.Publish(Subject(eventType), data)
}

// DecodeMessage parses a published envelope.
func DecodeMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal nats message: %w", err)
	}
	return &msg, nil
}

func generateNodeID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "sonicroad"
	}
	return host + "-" + uuid.NewString()[:8]
}
