package system

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

const subscriberBuffer = 32

type subscriber struct {
	tenantID string
	send     chan []byte
}

// Hub fans events out to the websocket subscribers of each tenant. A subscriber that falls
// behind loses events rather than blocking the publisher.
type Hub struct {
	mu      sync.RWMutex
	tenants map[string]map[*subscriber]struct{}
	closed  bool
	logger  *zap.Logger
}

func NewHub(lc fx.Lifecycle, logger *zap.Logger) *Hub {
	h := newHub(logger)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			h.Close()
			return nil
		},
	})
	return h
}

func newHub(logger *zap.Logger) *Hub {
	return &Hub{
		tenants: make(map[string]map[*subscriber]struct{}),
		logger:  logger.Named("ws"),
	}
}

func (h *Hub) subscribe(tenantID string) (*subscriber, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}

	s := &subscriber{tenantID: tenantID, send: make(chan []byte, subscriberBuffer)}
	subs, ok := h.tenants[tenantID]
	if !ok {
		subs = make(map[*subscriber]struct{})
		h.tenants[tenantID] = subs
	}
	subs[s] = struct{}{}
	return s, true
}

func (h *Hub) unsubscribe(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.tenants[s.tenantID]
	if !ok {
		return
	}
	if _, ok := subs[s]; !ok {
		return
	}
	delete(subs, s)
	close(s.send)
	if len(subs) == 0 {
		delete(h.tenants, s.tenantID)
	}
}

// Publish sends event as JSON to every subscriber of tenantID.
func (h *Hub) Publish(tenantID string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to encode event", zap.String("tenant_id", tenantID), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.tenants[tenantID] {
		select {
		case s.send <- payload:
		default:
			h.logger.Warn("subscriber too slow, dropping event", zap.String("tenant_id", tenantID))
		}
	}
}

// Subscribers returns the number of live subscribers of tenantID.
func (h *Hub) Subscribers(tenantID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.tenants[tenantID])
}

// Close disconnects every subscriber. Later subscriptions are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for tenantID, subs := range h.tenants {
		for s := range subs {
			close(s.send)
		}
		delete(h.tenants, tenantID)
	}
}
