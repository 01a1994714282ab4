// Presenca - RFID Classroom Attendance Backend
// Copyright 2026 Presenca Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenca-io/presenca

package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
)

// ConsumerConfig holds router settings for the tag-read consumer.
type ConsumerConfig struct {
	// SubjectPrefix is the first token of all subjects. Empty uses
	// DefaultSubjectPrefix.
	SubjectPrefix string

	// CloseTimeout bounds the wait for in-flight handlers on shutdown.
	CloseTimeout time.Duration
}

// ConsumerService subscribes to the tag-read wildcard and feeds every
// delivery through the pipeline. It implements suture.Service: Serve
// blocks until the context is canceled, and a panic escaping a handler
// is converted to an error by the router's recoverer before it can
// take the service down.
type ConsumerService struct {
	router *message.Router
}

// NewConsumerService builds the watermill router with the consumer
// handler registered.
func NewConsumerService(sub message.Subscriber, pipeline *Pipeline, cfg ConsumerConfig) (*ConsumerService, error) {
	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	closeTimeout := cfg.CloseTimeout
	if closeTimeout == 0 {
		closeTimeout = 30 * time.Second
	}

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: closeTimeout}, NewWatermillLogger())
	if err != nil {
		return nil, fmt.Errorf("create router: %w", err)
	}
	router.AddMiddleware(middleware.Recoverer)
	router.AddConsumerHandler("tag-read-consumer", TagReadWildcard(prefix), sub, pipeline.Handle)

	return &ConsumerService{router: router}, nil
}

// Serve runs the router until the context is canceled.
func (s *ConsumerService) Serve(ctx context.Context) error {
	return s.router.Run(ctx)
}

// Running returns a channel that closes once the router is consuming.
func (s *ConsumerService) Running() <-chan struct{} {
	return s.router.Running()
}

func (s *ConsumerService) String() string {
	return "ingest-consumer"
}
