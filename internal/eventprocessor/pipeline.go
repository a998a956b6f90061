// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package eventprocessor

import (
	"context"
	"sync"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/sparkpit/sparkpit/internal/audit"
	"github.com/sparkpit/sparkpit/internal/database"
	"github.com/sparkpit/sparkpit/internal/logging"
	"github.com/sparkpit/sparkpit/internal/metrics"
)

// publishTimeout bounds a single envelope publish from the audit sink.
const publishTimeout = 5 * time.Second

// Pipeline connects the audit trail to the activity feeds. When
// enabled it runs an embedded NATS JetStream server, publishes audit
// events onto the stream, and consumes them through a durable indexer.
// When disabled, events index inline on the audit writer's goroutine
// with identical results, minus replay and buffering.
//
// Implements suture.Service; the supervisor restarts it on failure.
type Pipeline struct {
	cfg     Config
	store   *database.Store
	indexer *Indexer

	mu        sync.RWMutex
	publisher *Publisher
}

// NewPipeline creates the pipeline. Call Sink to get the audit hook,
// then run Serve under the supervisor when cfg.Enabled is set.
func NewPipeline(cfg Config, store *database.Store) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		store:   store,
		indexer: NewIndexer(store),
	}
}

// Sink returns the audit forwarder. Register it with
// audit.Logger.SetSink; it is called once per accepted audit event.
func (p *Pipeline) Sink() audit.Sink {
	return func(ev *audit.Event) {
		env := EnvelopeFromAudit(ev)

		pub := p.currentPublisher()
		if pub == nil {
			p.applyInline(env)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		if err := pub.PublishEnvelope(ctx, env); err != nil {
			metrics.RecordEventDropped("publish_failure")
			logging.Warn().Err(err).
				Str("event_id", env.EventID).
				Msg("event publish failed, indexing inline")
			p.applyInline(env)
		}
	}
}

// Serve runs the pipeline until context cancellation. When the
// pipeline is disabled it parks; the inline sink path needs no
// goroutine.
func (p *Pipeline) Serve(ctx context.Context) error {
	if !p.cfg.Enabled {
		<-ctx.Done()
		return ctx.Err()
	}

	srv, err := NewEmbeddedServer(&p.cfg.Server)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Error().Err(err).Msg("NATS server shutdown failed")
		}
	}()

	url := srv.ClientURL()

	nc, err := natsgo.Connect(url)
	if err != nil {
		return err
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return err
	}

	init, err := NewStreamInitializer(js, &p.cfg.Stream)
	if err != nil {
		return err
	}
	if _, err := init.EnsureStream(ctx); err != nil {
		return err
	}

	wmLogger := NewWatermillLogger()

	pubCfg := p.cfg.Publisher
	pubCfg.URL = url
	pub, err := NewPublisher(pubCfg, wmLogger)
	if err != nil {
		return err
	}
	pub.SetCircuitBreaker(NewCircuitBreaker(p.cfg.Breaker))

	subCfg := p.cfg.Subscriber
	subCfg.URL = url
	sub, err := NewSubscriber(&subCfg, wmLogger)
	if err != nil {
		pub.Close()
		return err
	}

	p.setPublisher(pub)
	defer func() {
		p.setPublisher(nil)
		if err := sub.Close(); err != nil {
			logging.Error().Err(err).Msg("subscriber close failed")
		}
		if err := pub.Close(); err != nil {
			logging.Error().Err(err).Msg("publisher close failed")
		}
	}()

	logging.Info().Str("url", url).Str("stream", p.cfg.Stream.Name).Msg("event pipeline started")

	handler := sub.NewEnvelopeHandler(TopicAudit, p.indexer.Apply)
	return handler.Run(ctx)
}

// Healthy reports whether the publish path is up. Always true when the
// pipeline is disabled: the inline path cannot fail to be reachable.
func (p *Pipeline) Healthy() bool {
	if !p.cfg.Enabled {
		return true
	}
	return p.currentPublisher() != nil
}

func (p *Pipeline) applyInline(env *Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := p.indexer.Apply(ctx, env); err != nil {
		logging.Error().Err(err).Str("event_id", env.EventID).Msg("inline event indexing failed")
	}
}

func (p *Pipeline) currentPublisher() *Publisher {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.publisher
}

func (p *Pipeline) setPublisher(pub *Publisher) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.publisher = pub
}
