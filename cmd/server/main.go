// Presenca - RFID Classroom Attendance Backend
// Copyright 2026 Presenca Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenca-io/presenca

// Package main is the entry point for the Presenca server.
//
// Presenca ingests tag-read events from classroom RFID readers over
// NATS, matches each read against the open lesson for the room, records
// presence in Postgres, and answers the reader. A small HTTP surface
// exposes lesson lifecycle operations and the in-memory audit trail.
//
// Startup order:
//
//  1. Configuration (koanf: defaults, yaml file, environment)
//  2. Logging (zerolog)
//  3. Session directory (Postgres via pgx) and schema
//  4. NATS: optional embedded broker, then the client connection
//  5. Ingestion pipeline and consumer router
//  6. HTTP server
//  7. Supervisor tree (suture) runs the consumer and HTTP services
package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/presenca-io/presenca/internal/api"
	"github.com/presenca-io/presenca/internal/config"
	"github.com/presenca-io/presenca/internal/directory"
	"github.com/presenca-io/presenca/internal/ingest"
	"github.com/presenca-io/presenca/internal/logging"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("server exited with error")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Str("version", version).Msg("starting presenca")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Session directory
	store, err := directory.NewPostgres(ctx, directory.PostgresConfig{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	// Transport
	var (
		embedded *ingest.EmbeddedServer
		conn     *ingest.Conn
	)
	if cfg.NATS.Enabled {
		natsURL := cfg.NATS.URL
		if cfg.NATS.EmbeddedServer {
			embedded, err = ingest.NewEmbeddedServer(ingest.ServerConfig{
				Host: cfg.NATS.EmbeddedHost,
				Port: cfg.NATS.EmbeddedPort,
			})
			if err != nil {
				return err
			}
			natsURL = embedded.ClientURL()
			logging.Info().Str("url", natsURL).Msg("embedded NATS server started")
		}

		conn, err = ingest.Connect(ingest.ConnConfig{
			URL:           natsURL,
			Name:          "presenca-server",
			MaxReconnects: cfg.NATS.MaxReconnects,
			ReconnectWait: cfg.NATS.ReconnectWait,
		})
		if err != nil {
			return err
		}
		defer conn.Close()
	}

	// Engine
	audit := ingest.NewAuditLog()
	var sender ingest.Sender
	if conn != nil {
		sender = ingest.NewBreakerSender(conn)
	}
	status := ingest.NewStatusPublisher(sender, cfg.NATS.SubjectPrefix)

	// Supervision
	handler := &sutureslog.Handler{Logger: logging.NewSlogLogger()}
	root := suture.New("presenca", suture.Spec{
		EventHook: handler.MustHook(),
		Timeout:   10 * time.Second,
	})

	if conn != nil {
		pipeline := ingest.NewPipeline(store, audit, sender, cfg.NATS.SubjectPrefix)
		consumer, err := ingest.NewConsumerService(
			ingest.NewSubscriber(conn),
			pipeline,
			ingest.ConsumerConfig{
				SubjectPrefix: cfg.NATS.SubjectPrefix,
				CloseTimeout:  cfg.NATS.CloseTimeout,
			},
		)
		if err != nil {
			return err
		}
		root.Add(consumer)
	} else {
		logging.Warn().Msg("NATS disabled; tag reads will not be consumed")
	}

	root.Add(api.NewService(
		cfg.Server.Host,
		cfg.Server.Port,
		cfg.Server.Timeout,
		api.Routes(api.NewHandler(store, audit, status, store.Ping)),
	))

	err = root.Serve(ctx)

	if embedded != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if serr := embedded.Shutdown(shutdownCtx); serr != nil {
			logging.Warn().Err(serr).Msg("embedded NATS shutdown")
		}
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logging.Info().Msg("shutdown complete")
	return nil
}

// version is stamped at build time via -ldflags.
var version = "dev"
