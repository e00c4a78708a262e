package notify

import (
	"context"
	"sync"
	"time"

	"server/internal/domain"
)

// AssetEvent is the per-asset slice of a change event.
type AssetEvent struct {
	Status  domain.TargetStatus `json:"status"`
	URL     string              `json:"url,omitempty"`
	Error   string              `json:"error,omitempty"`
	Attempt int                 `json:"attempt"`
}

// TargetEvent is published on every committed asset mutation. It carries the
// same shape as the status read so a push consumer and a poller observe
// identical state.
type TargetEvent struct {
	TargetID  string                          `json:"target_id"`
	Kind      domain.TargetKind               `json:"kind"`
	Status    domain.TargetStatus             `json:"status"`
	Assets    map[domain.AssetType]AssetEvent `json:"assets"`
	UpdatedAt time.Time                       `json:"updated_at"`
}

// EventFromTarget builds the change event for a target's current state.
func EventFromTarget(t *domain.Target) TargetEvent {
	ev := TargetEvent{
		TargetID:  t.ID,
		Kind:      t.Kind,
		Status:    t.Status,
		Assets:    make(map[domain.AssetType]AssetEvent, len(t.Assets)),
		UpdatedAt: t.UpdatedAt,
	}
	for at, a := range t.Assets {
		ev.Assets[at] = AssetEvent{Status: a.Status, URL: a.URL, Error: a.Error, Attempt: a.Attempt}
	}
	return ev
}

// Broker fans out target change events. Delivery is best-effort from the
// moment of subscription forward; there is no historical replay. Consumers
// that miss events fall back to polling the status read.
type Broker interface {
	Publish(ctx context.Context, event TargetEvent) error
	Subscribe(ctx context.Context, targetID string) (<-chan TargetEvent, func(), error)
}

// Hub is an in-process Broker. It backs the change feed in tests and
// single-process deployments; multi-process deployments bridge through Redis.
type Hub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]chan TargetEvent
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int]chan TargetEvent)}
}

// Publish delivers the event to every subscriber of the target. Slow
// subscribers are skipped rather than blocked on; the pull path remains
// authoritative.
func (h *Hub) Publish(ctx context.Context, event TargetEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs[event.TargetID] {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

// Subscribe registers interest in one target's change feed. The returned
// cancel func must be called to release the subscription.
func (h *Hub) Subscribe(ctx context.Context, targetID string) (<-chan TargetEvent, func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	ch := make(chan TargetEvent, 16)
	if h.subs[targetID] == nil {
		h.subs[targetID] = make(map[int]chan TargetEvent)
	}
	h.subs[targetID][id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if subs, ok := h.subs[targetID]; ok {
			if _, ok := subs[id]; ok {
				delete(subs, id)
				close(ch)
			}
			if len(subs) == 0 {
				delete(h.subs, targetID)
			}
		}
	}
	return ch, cancel, nil
}
