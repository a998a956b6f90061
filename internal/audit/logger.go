// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package audit

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/sparkpit/sparkpit/internal/logging"
	"github.com/sparkpit/sparkpit/internal/metrics"
)

// Config controls the audit logger.
type Config struct {
	// Enabled controls whether audit logging is active.
	Enabled bool `json:"enabled"`

	// LogLevel filters events by minimum severity.
	LogLevel Severity `json:"log_level"`

	// RetentionDays is how long to keep audit events.
	RetentionDays int `json:"retention_days"`

	// CleanupInterval is how often to run retention cleanup.
	CleanupInterval time.Duration `json:"cleanup_interval"`

	// BufferSize is the size of the async write buffer.
	BufferSize int `json:"buffer_size"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		LogLevel:        SeverityInfo,
		RetentionDays:   90,
		CleanupInterval: 24 * time.Hour,
		BufferSize:      1000,
	}
}

// Sink receives every event accepted by the logger, after buffering.
// The event pipeline registers one to forward events to the stream.
type Sink func(event *Event)

// Logger writes audit events asynchronously. A full buffer evicts the
// oldest queued event and increments a counter rather than blocking
// the request path.
type Logger struct {
	config    *Config
	store     Store
	sink      Sink
	eventChan chan *Event
	mu        sync.RWMutex
	stopChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewLogger creates an audit logger over the store.
func NewLogger(store Store, config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}

	l := &Logger{
		config:    config,
		store:     store,
		eventChan: make(chan *Event, config.BufferSize),
		stopChan:  make(chan struct{}),
	}

	l.wg.Add(1)
	go l.asyncWriter()
	return l
}

// SetSink registers the downstream event forwarder. Call before
// serving traffic.
func (l *Logger) SetSink(sink Sink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sink = sink
}

func (l *Logger) asyncWriter() {
	defer l.wg.Done()

	for {
		select {
		case <-l.stopChan:
			// Drain remaining events
			for {
				select {
				case event := <-l.eventChan:
					l.writeEvent(event)
				default:
					return
				}
			}
		case event := <-l.eventChan:
			l.writeEvent(event)
		}
	}
}

func (l *Logger) writeEvent(event *Event) {
	if l.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := l.store.Save(ctx, event); err != nil {
			logging.Error().Err(err).Str("event_id", event.ID).Msg("Failed to save audit event")
		}
	}

	l.mu.RLock()
	sink := l.sink
	l.mu.RUnlock()
	if sink != nil {
		sink(event)
	}
}

// Log records an audit event. Non-blocking.
func (l *Logger) Log(event *Event) {
	l.mu.RLock()
	config := l.config
	l.mu.RUnlock()

	if !config.Enabled || !shouldLog(event.Severity, config.LogLevel) {
		return
	}

	if event.ID == "" {
		event.ID = generateEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	select {
	case l.eventChan <- event:
		metrics.AuditEventsLogged.WithLabelValues(string(event.Severity)).Inc()
		return
	default:
	}

	// Buffer full: evict the oldest queued event so the newest one
	// survives, then try once more. The second attempt can still lose
	// a race with other producers; drop the incoming event then.
	select {
	case dropped := <-l.eventChan:
		metrics.AuditEventsDropped.Inc()
		logging.Warn().Str("event_id", dropped.ID).Msg("Audit event buffer full, dropping oldest event")
	default:
	}

	select {
	case l.eventChan <- event:
		metrics.AuditEventsLogged.WithLabelValues(string(event.Severity)).Inc()
	default:
		metrics.AuditEventsDropped.Inc()
		logging.Warn().Str("event_id", event.ID).Msg("Audit event buffer full, dropping event")
	}
}

var severityOrder = map[Severity]int{
	SeverityDebug:    0,
	SeverityInfo:     1,
	SeverityWarning:  2,
	SeverityError:    3,
	SeverityCritical: 4,
}

func shouldLog(severity, floor Severity) bool {
	return severityOrder[severity] >= severityOrder[floor]
}

// Close drains the buffer and shuts down.
func (l *Logger) Close() error {
	l.stopOnce.Do(func() {
		close(l.stopChan)
	})
	l.wg.Wait()
	return nil
}

// StartCleanupRoutine runs retention cleanup until ctx is cancelled.
func (l *Logger) StartCleanupRoutine(ctx context.Context) {
	l.mu.RLock()
	interval := l.config.CleanupInterval
	retention := l.config.RetentionDays
	l.mu.RUnlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := time.Now().AddDate(0, 0, -retention)
				count, err := l.store.Delete(ctx, cutoff)
				if err != nil {
					logging.Error().Err(err).Msg("Audit cleanup error")
				} else if count > 0 {
					logging.Info().Int64("count", count).Msg("Cleaned up old audit events")
				}
			}
		}
	}()
}

// Query retrieves events matching the filter.
func (l *Logger) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	return l.store.Query(ctx, filter)
}

// Count returns the number of events matching the filter.
func (l *Logger) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	return l.store.Count(ctx, filter)
}

func generateEventID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return time.Now().Format("20060102150405.000000000")
	}
	return hex.EncodeToString(b)
}

// Typed helpers for the common events.

// LogLogin records a successful login.
func (l *Logger) LogLogin(ctx context.Context, actor Actor, source Source) {
	l.Log(&Event{
		Type:          EventTypeLogin,
		Severity:      SeverityInfo,
		Outcome:       OutcomeSuccess,
		Actor:         actor,
		Source:        source,
		Description:   "member logged in",
		CorrelationID: logging.CorrelationIDFromContext(ctx),
		RequestID:     logging.RequestIDFromContext(ctx),
	})
}

// LogLoginFailed records a failed login attempt. Warning severity so
// it feeds the admin notification stream.
func (l *Logger) LogLoginFailed(ctx context.Context, email string, source Source) {
	l.Log(&Event{
		Type:          EventTypeLoginFailed,
		Severity:      SeverityWarning,
		Outcome:       OutcomeFailure,
		Actor:         Actor{ID: email, Type: "user"},
		Source:        source,
		Description:   "login failed",
		CorrelationID: logging.CorrelationIDFromContext(ctx),
		RequestID:     logging.RequestIDFromContext(ctx),
	})
}

// LogDomainEvent records a domain action with an optional room scope.
func (l *Logger) LogDomainEvent(ctx context.Context, eventType EventType, actor Actor, target *Target, roomID, description string) {
	l.Log(&Event{
		Type:          eventType,
		Severity:      SeverityInfo,
		Outcome:       OutcomeSuccess,
		Actor:         actor,
		Target:        target,
		RoomID:        roomID,
		Description:   description,
		CorrelationID: logging.CorrelationIDFromContext(ctx),
		RequestID:     logging.RequestIDFromContext(ctx),
	})
}

// LogAdminAction records an administrative action with free-form
// metadata.
func (l *Logger) LogAdminAction(ctx context.Context, actor Actor, source Source, description string, metadata map[string]interface{}) {
	l.Log(&Event{
		Type:          EventTypeAdminAction,
		Severity:      SeverityWarning,
		Outcome:       OutcomeSuccess,
		Actor:         actor,
		Source:        source,
		Description:   description,
		Metadata:      mustJSON(metadata),
		CorrelationID: logging.CorrelationIDFromContext(ctx),
		RequestID:     logging.RequestIDFromContext(ctx),
	})
}

func mustJSON(v interface{}) json.RawMessage {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

// SourceFromRequest extracts the client address from an HTTP request.
func SourceFromRequest(r *http.Request) Source {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		ip = host
	}
	return Source{
		IPAddress: ip,
		UserAgent: r.UserAgent(),
	}
}

// UserActor builds an Actor for a member.
func UserActor(id, handle, role string) Actor {
	return Actor{ID: id, Type: "user", Handle: handle, Role: role}
}

// BotActor builds an Actor for a bot.
func BotActor(id, handle string) Actor {
	return Actor{ID: id, Type: "bot", Handle: handle}
}

// SystemActor builds the Actor for internally generated events.
func SystemActor() Actor {
	return Actor{ID: "system", Type: "system", Handle: "system"}
}
