// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package audit

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sparkpit/sparkpit/internal/logging"
)

//nolint:gochecknoinits // quiet logging for tests
func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

func newTestLogger(t *testing.T, config *Config) (*Logger, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore(1000)
	l := NewLogger(store, config)
	t.Cleanup(func() { _ = l.Close() })
	return l, store
}

func TestLogWritesAsync(t *testing.T) {
	l, store := newTestLogger(t, nil)

	l.LogLogin(context.Background(), UserActor("u-1", "ada", "member"), Source{IPAddress: "10.0.0.1"})
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	events, err := store.Query(context.Background(), DefaultQueryFilter())
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	e := events[0]
	if e.Type != EventTypeLogin || e.Actor.Handle != "ada" || e.ID == "" || e.Timestamp.IsZero() {
		t.Errorf("event = %+v", e)
	}
}

// gatedStore blocks the first Save until released, holding the async
// writer so the buffer can be filled deterministically.
type gatedStore struct {
	*MemoryStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedStore) Save(ctx context.Context, event *Event) error {
	g.once.Do(func() {
		g.entered <- struct{}{}
		<-g.release
	})
	return g.MemoryStore.Save(ctx, event)
}

func TestBufferOverflowDropsOldest(t *testing.T) {
	store := &gatedStore{
		MemoryStore: NewMemoryStore(1000),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	l := NewLogger(store, &Config{Enabled: true, LogLevel: SeverityInfo, BufferSize: 1})

	// The writer picks up the first event and parks inside Save.
	l.Log(&Event{ID: "first", Type: EventTypeLogin, Severity: SeverityInfo})
	select {
	case <-store.entered:
	case <-time.After(time.Second):
		t.Fatal("writer never reached the store")
	}

	// Buffer holds "second"; "third" overflows and must evict it.
	l.Log(&Event{ID: "second", Type: EventTypeLogin, Severity: SeverityInfo})
	l.Log(&Event{ID: "third", Type: EventTypeLogin, Severity: SeverityInfo})

	close(store.release)
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	events, err := store.Query(context.Background(), DefaultQueryFilter())
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	saved := make(map[string]bool, len(events))
	for _, e := range events {
		saved[e.ID] = true
	}
	if !saved["first"] || !saved["third"] {
		t.Errorf("saved = %v, want first and third", saved)
	}
	if saved["second"] {
		t.Error("oldest queued event survived the overflow")
	}
}

func TestSeverityFloor(t *testing.T) {
	l, store := newTestLogger(t, &Config{
		Enabled:    true,
		LogLevel:   SeverityWarning,
		BufferSize: 10,
	})

	l.Log(&Event{Type: EventTypeMessagePosted, Severity: SeverityInfo})
	l.Log(&Event{Type: EventTypeLoginFailed, Severity: SeverityWarning})
	_ = l.Close()

	if got := store.Len(); got != 1 {
		t.Errorf("stored %d events, want 1 (info filtered)", got)
	}
}

func TestDisabledLoggerDropsEverything(t *testing.T) {
	l, store := newTestLogger(t, &Config{Enabled: false, BufferSize: 10})

	l.LogLogin(context.Background(), UserActor("u-1", "ada", "member"), Source{})
	_ = l.Close()

	if store.Len() != 0 {
		t.Error("disabled logger stored events")
	}
}

func TestSinkReceivesEvents(t *testing.T) {
	l, _ := newTestLogger(t, nil)

	var mu sync.Mutex
	var seen []EventType
	l.SetSink(func(event *Event) {
		mu.Lock()
		seen = append(seen, event.Type)
		mu.Unlock()
	})

	l.LogDomainEvent(context.Background(), EventTypeRoomCreated, UserActor("u-1", "ada", "member"), nil, "r-1", "room created")
	_ = l.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 || seen[0] != EventTypeRoomCreated {
		t.Errorf("sink saw %v", seen)
	}
}

func TestQueryFilters(t *testing.T) {
	l, _ := newTestLogger(t, nil)
	ctx := context.Background()

	l.LogDomainEvent(ctx, EventTypeRoomCreated, UserActor("u-1", "ada", "member"), nil, "r-1", "room created")
	l.LogDomainEvent(ctx, EventTypeRoomJoined, UserActor("u-2", "bob", "member"), nil, "r-1", "room joined")
	l.LogDomainEvent(ctx, EventTypeBountyCreated, UserActor("u-1", "ada", "member"), nil, "", "bounty created")
	_ = l.Close()

	byType, err := l.Query(ctx, QueryFilter{Types: []EventType{EventTypeRoomCreated}, Limit: 10})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(byType) != 1 {
		t.Errorf("type filter got %d, want 1", len(byType))
	}

	byActor, err := l.Query(ctx, QueryFilter{ActorID: "u-1", Limit: 10})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(byActor) != 2 {
		t.Errorf("actor filter got %d, want 2", len(byActor))
	}

	byRoom, err := l.Query(ctx, QueryFilter{RoomID: "r-1", Limit: 10})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(byRoom) != 2 {
		t.Errorf("room filter got %d, want 2", len(byRoom))
	}

	count, err := l.Count(ctx, QueryFilter{})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
}

func TestRetentionDelete(t *testing.T) {
	store := NewMemoryStore(100)
	ctx := context.Background()

	old := &Event{ID: "old", Type: EventTypeLogin, Severity: SeverityInfo, Timestamp: time.Now().Add(-48 * time.Hour)}
	fresh := &Event{ID: "fresh", Type: EventTypeLogin, Severity: SeverityInfo, Timestamp: time.Now()}
	for _, e := range []*Event{old, fresh} {
		if err := store.Save(ctx, e); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	deleted, err := store.Delete(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted != 1 || store.Len() != 1 {
		t.Errorf("deleted=%d len=%d", deleted, store.Len())
	}
}
