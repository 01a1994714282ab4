// Presenca - RFID Classroom Attendance Backend
// Copyright 2026 Presenca Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenca-io/presenca

package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/presenca-io/presenca/internal/logging"
)

// MetadataSubject is the message metadata key carrying the concrete
// NATS subject a message arrived on. Wildcard subscriptions need it to
// recover the room and device tokens.
const MetadataSubject = "nats_subject"

// ErrSubscriberClosed is returned by Subscribe after Close.
var ErrSubscriberClosed = errors.New("subscriber is closed")

// Sender publishes a raw payload to a concrete subject.
type Sender interface {
	Send(ctx context.Context, subject string, payload []byte) error
}

// ConnConfig holds client connection settings.
type ConnConfig struct {
	URL           string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
}

// Conn wraps the core NATS client connection. Responses and status
// broadcasts need no persistence or replay, so plain core pub/sub is
// used rather than JetStream.
type Conn struct {
	nc *natsgo.Conn
}

// Connect establishes a client connection with automatic reconnects.
func Connect(cfg ConnConfig) (*Conn, error) {
	if cfg.URL == "" {
		cfg.URL = natsgo.DefaultURL
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 2 * time.Second
	}

	opts := []natsgo.Option{
		natsgo.Name(cfg.Name),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logging.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logging.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := natsgo.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &Conn{nc: nc}, nil
}

// Send publishes the payload to the subject.
func (c *Conn) Send(ctx context.Context, subject string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.nc.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// IsConnected reports connection liveness.
func (c *Conn) IsConnected() bool {
	return c.nc.IsConnected()
}

// Close drains the connection, letting buffered publishes flush.
func (c *Conn) Close() {
	if err := c.nc.Drain(); err != nil {
		c.nc.Close()
	}
}

// Subscriber implements watermill's message.Subscriber over core NATS.
// Each delivered message carries its concrete subject in metadata under
// MetadataSubject. Core NATS is at-most-once, so a Nack cannot trigger
// redelivery; it only releases the handler slot.
type Subscriber struct {
	nc      *natsgo.Conn
	closing chan struct{}
	mu      sync.Mutex
	closed  bool
	subs    []*natsgo.Subscription
	wg      sync.WaitGroup
}

// NewSubscriber creates a subscriber on an established connection.
func NewSubscriber(conn *Conn) *Subscriber {
	return &Subscriber{
		nc:      conn.nc,
		closing: make(chan struct{}),
	}
}

// Subscribe starts consuming the subject (wildcards allowed) and
// returns the message channel. The channel closes when the context is
// canceled or the subscriber is closed.
func (s *Subscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSubscriberClosed
	}

	output := make(chan *message.Message)

	// A callback can still be dispatched while Unsubscribe runs, so
	// in-flight work is registered under a lock. Once draining is set
	// no callback can register, which orders every send on output
	// strictly before close(output) below.
	var (
		hmu      sync.Mutex
		draining bool
		inflight sync.WaitGroup
	)

	sub, err := s.nc.Subscribe(topic, func(natsMsg *natsgo.Msg) {
		hmu.Lock()
		if draining {
			hmu.Unlock()
			return
		}
		inflight.Add(1)
		hmu.Unlock()
		defer inflight.Done()

		msg := message.NewMessage(watermill.NewUUID(), natsMsg.Data)
		msg.Metadata.Set(MetadataSubject, natsMsg.Subject)
		msg.SetContext(ctx)

		select {
		case output <- msg:
		case <-ctx.Done():
			return
		case <-s.closing:
			return
		}

		select {
		case <-msg.Acked():
		case <-msg.Nacked():
		case <-ctx.Done():
		case <-s.closing:
		}
	})
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}
	s.subs = append(s.subs, sub)
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case <-ctx.Done():
		case <-s.closing:
		}
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, natsgo.ErrConnectionClosed) {
			logging.Warn().Err(err).Str("subject", topic).Msg("unsubscribe failed")
		}
		hmu.Lock()
		draining = true
		hmu.Unlock()
		inflight.Wait()
		close(output)
	}()

	return output, nil
}

// Close stops every subscription and waits for in-flight handlers.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.closing)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// NewBreakerSender wraps a Sender with a circuit breaker so a broker
// outage fails publishes fast instead of piling them up.
func NewBreakerSender(next Sender) *BreakerSender {
	settings := gobreaker.Settings{
		Name:        "transport-publish",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	}
	return &BreakerSender{
		cb:   gobreaker.NewCircuitBreaker[any](settings),
		next: next,
	}
}

// BreakerSender is a Sender guarded by a gobreaker circuit breaker.
type BreakerSender struct {
	cb   *gobreaker.CircuitBreaker[any]
	next Sender
}

// Send publishes through the breaker.
func (b *BreakerSender) Send(ctx context.Context, subject string, payload []byte) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.next.Send(ctx, subject, payload)
	})
	return err
}

// State returns the breaker state for monitoring.
func (b *BreakerSender) State() string {
	return b.cb.State().String()
}

// watermillLogger adapts zerolog to watermill's LoggerAdapter so the
// router logs through the same sink as everything else.
type watermillLogger struct {
	logger zerolog.Logger
}

// NewWatermillLogger returns a LoggerAdapter backed by the global logger.
func NewWatermillLogger() watermill.LoggerAdapter {
	return &watermillLogger{logger: logging.Logger()}
}

func (l *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	wmFields(l.logger.Error().Err(err), fields).Msg(msg)
}

func (l *watermillLogger) Info(msg string, fields watermill.LogFields) {
	wmFields(l.logger.Info(), fields).Msg(msg)
}

func (l *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	wmFields(l.logger.Debug(), fields).Msg(msg)
}

func (l *watermillLogger) Trace(msg string, fields watermill.LogFields) {
	wmFields(l.logger.Trace(), fields).Msg(msg)
}

func (l *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	ctx := l.logger.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &watermillLogger{logger: ctx.Logger()}
}

func wmFields(ev *zerolog.Event, fields watermill.LogFields) *zerolog.Event {
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	return ev
}
