// Package realtime fans confirmed progress changes out to live
// subscribers. The engine publishes into the hub after persistence;
// websocket clients subscribe by topic.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/talbiyah/progress-engine/internal/progress"
)

const (
	subscriberBuffer = 16
	writeTimeout     = 5 * time.Second
)

// Hub routes change events to topic subscribers. Publishing never
// blocks: a subscriber that cannot keep up has its event dropped.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan progress.ChangeEvent]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]map[chan progress.ChangeEvent]struct{}),
	}
}

// Subscribe registers interest in a topic. The returned cancel
// function must be called when the consumer goes away.
func (h *Hub) Subscribe(topic string) (<-chan progress.ChangeEvent, func()) {
	ch := make(chan progress.ChangeEvent, subscriberBuffer)

	h.mu.Lock()
	if h.subs[topic] == nil {
		h.subs[topic] = make(map[chan progress.ChangeEvent]struct{})
	}
	h.subs[topic][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[topic]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, topic)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber of a topic.
func (h *Hub) Publish(topic string, event progress.ChangeEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs[topic] {
		select {
		case ch <- event:
		default:
			slog.Warn("dropping realtime event for slow subscriber", "topic", topic)
		}
	}
}

// SubscriberCount returns the number of subscribers on a topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[topic])
}

// ProgressChanged implements progress.Notifier: each event goes to the
// student topic and, when the event names a subject, the subject topic.
func (h *Hub) ProgressChanged(event progress.ChangeEvent) {
	h.Publish(StudentTopic(event.StudentID), event)
	if event.SubjectSlug != "" {
		h.Publish(SubjectTopic(event.SubjectSlug), event)
	}
}

// StudentTopic is the topic carrying one student's changes.
func StudentTopic(studentID string) string {
	return "student:" + studentID
}

// SubjectTopic is the topic carrying all changes within one subject.
func SubjectTopic(slug string) string {
	return "subject:" + slug
}

// ServeWS upgrades the request to a websocket and streams the topic's
// events as JSON until the client disconnects or ctx ends. Fetch
// lifetime is bound to the connection: teardown cancels the
// subscription.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, topic string) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := r.Context()
	events, cancel := h.Subscribe(topic)
	defer cancel()

	// Reads are discarded; the socket exists only to push events and
	// to notice the client going away.
	go func() {
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-events:
			data, err := json.Marshal(event)
			if err != nil {
				slog.Error("failed to encode realtime event", "error", err)
				continue
			}
			writeCtx, cancelWrite := context.WithTimeout(ctx, writeTimeout)
			err = conn.Write(writeCtx, websocket.MessageText, data)
			cancelWrite()
			if err != nil {
				return
			}
		}
	}
}
