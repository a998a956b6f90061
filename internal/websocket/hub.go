// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

// Package websocket fans room messages out to connected channel
// viewers. One hub serves the whole process; clients are grouped by
// channel ID so a broadcast only touches that channel's connections.
package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/sparkpit/sparkpit/internal/logging"
	"github.com/sparkpit/sparkpit/internal/metrics"
	"github.com/sparkpit/sparkpit/internal/models"
)

// Message types sent to clients.
const (
	MessageTypeMessageCreated = "message_created"
	MessageTypeTyping         = "typing"
	MessageTypePresence       = "presence"
	MessageTypePing           = "ping"
	MessageTypePong           = "pong"
)

// Message is one WebSocket frame payload.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// PresenceData announces a join or leave to channel peers.
type PresenceData struct {
	User   string `json:"user"`
	Action string `json:"action"` // joined, left
}

// TypingData relays a typing notice.
type TypingData struct {
	User string `json:"user"`
}

// channelMessage targets one channel's client set. exclude suppresses
// echo to the originating client (typing notices).
type channelMessage struct {
	channelID string
	message   Message
	exclude   *Client
}

// Hub maintains per-channel client sets and routes broadcasts.
// All channel map access happens on the Run goroutine's lock.
type Hub struct {
	channels   map[string]map[*Client]bool
	broadcast  chan channelMessage
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a hub.
func NewHub() *Hub {
	return &Hub{
		channels:   make(map[string]map[*Client]bool),
		broadcast:  make(chan channelMessage, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// RunWithContext runs the hub until context cancellation, closing all
// clients on the way out. Designed for suture supervision.
//
// Selection is priority ordered: shutdown, then lifecycle events, then
// broadcasts. Go's select picks randomly among ready channels; the
// explicit ordering keeps client state consistent before any message
// is routed.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.register(client)
			continue
		case client := <-h.Unregister:
			h.unregister(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()

		case client := <-h.Register:
			h.register(client)

		case client := <-h.Unregister:
			h.unregister(client)

		case cm := <-h.broadcast:
			h.broadcastToChannel(cm)
		}
	}
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	clients, ok := h.channels[client.channelID]
	if !ok {
		clients = make(map[*Client]bool)
		h.channels[client.channelID] = clients
	}
	clients[client] = true
	total := h.totalLocked()
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(total))
	logging.Info().
		Str("channel_id", client.channelID).
		Str("handle", client.handle).
		Int("total_clients", total).
		Msg("websocket client connected")

	h.enqueue(channelMessage{
		channelID: client.channelID,
		message: Message{
			Type: MessageTypePresence,
			Data: PresenceData{User: client.handle, Action: "joined"},
		},
		exclude: client,
	})
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	clients, ok := h.channels[client.channelID]
	if ok && clients[client] {
		delete(clients, client)
		close(client.send)
		if len(clients) == 0 {
			delete(h.channels, client.channelID)
		}
	}
	total := h.totalLocked()
	h.mu.Unlock()

	if !ok {
		return
	}

	metrics.WSConnections.Set(float64(total))
	logging.Info().
		Str("channel_id", client.channelID).
		Str("handle", client.handle).
		Int("total_clients", total).
		Msg("websocket client disconnected")

	h.enqueue(channelMessage{
		channelID: client.channelID,
		message: Message{
			Type: MessageTypePresence,
			Data: PresenceData{User: client.handle, Action: "left"},
		},
	})
}

// broadcastToChannel delivers to one channel's clients in client-ID
// order. Clients whose send queue is full are evicted; a reader that
// slow is not coming back.
func (h *Hub) broadcastToChannel(cm channelMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.channels[cm.channelID]))
	for client := range h.channels[cm.channelID] {
		if client == cm.exclude {
			continue
		}
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var evicted []*Client
	for _, client := range clients {
		select {
		case client.send <- cm.message:
			metrics.WSMessagesSent.Inc()
		default:
			evicted = append(evicted, client)
		}
	}

	for _, client := range evicted {
		close(client.send)
		delete(h.channels[cm.channelID], client)
		metrics.WSSlowClientsDropped.Inc()
		logging.Warn().
			Str("channel_id", cm.channelID).
			Str("handle", client.handle).
			Msg("evicted slow websocket client")
	}
	if len(h.channels[cm.channelID]) == 0 {
		delete(h.channels, cm.channelID)
	}
}

func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	var clients []*Client
	for _, set := range h.channels {
		for client := range set {
			clients = append(clients, client)
		}
	}
	h.channels = make(map[string]map[*Client]bool)
	h.mu.Unlock()

	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	for _, client := range clients {
		close(client.send)
	}

	metrics.WSConnections.Set(0)

	reason := "context_canceled"
	if ctx.Err() == context.DeadlineExceeded {
		reason = "context_deadline"
	}
	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", reason).
		Int("clients_closed", len(clients)).
		Msg("websocket hub stopped")
}

// BroadcastMessageCreated pushes a new message to its channel's viewers.
func (h *Hub) BroadcastMessageCreated(msg *models.Message) {
	h.enqueue(channelMessage{
		channelID: msg.ChannelID,
		message:   Message{Type: MessageTypeMessageCreated, Data: msg},
	})
}

// BroadcastTyping relays a typing notice to the sender's channel peers.
func (h *Hub) BroadcastTyping(channelID, handle string, exclude *Client) {
	h.enqueue(channelMessage{
		channelID: channelID,
		message:   Message{Type: MessageTypeTyping, Data: TypingData{User: handle}},
		exclude:   exclude,
	})
}

func (h *Hub) enqueue(cm channelMessage) {
	select {
	case h.broadcast <- cm:
	default:
		logging.Warn().
			Str("channel_id", cm.channelID).
			Str("message_type", cm.message.Type).
			Msg("broadcast channel full, dropping message")
	}
}

// ClientCount returns the number of connected clients across channels.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalLocked()
}

// ChannelClientCount returns the number of clients viewing one channel.
func (h *Hub) ChannelClientCount(channelID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channelID])
}

func (h *Hub) totalLocked() int {
	total := 0
	for _, set := range h.channels {
		total += len(set)
	}
	return total
}
