package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/talbiyah/progress-engine/internal/progress"
)

func TestHubPublishSubscribe(t *testing.T) {
	h := NewHub()

	events, cancel := h.Subscribe("student:s1")
	defer cancel()

	if got := h.SubscriberCount("student:s1"); got != 1 {
		t.Fatalf("SubscriberCount() = %d, want 1", got)
	}

	h.Publish("student:s1", progress.ChangeEvent{Kind: "milestone", StudentID: "s1", Status: "verified"})
	h.Publish("student:s2", progress.ChangeEvent{Kind: "milestone", StudentID: "s2"})

	select {
	case e := <-events:
		if e.StudentID != "s1" || e.Status != "verified" {
			t.Errorf("event = %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
	select {
	case e := <-events:
		t.Fatalf("unexpected cross-topic event %+v", e)
	default:
	}
}

func TestHubCancelRemovesSubscriber(t *testing.T) {
	h := NewHub()
	_, cancel := h.Subscribe("student:s1")
	cancel()
	if got := h.SubscriberCount("student:s1"); got != 0 {
		t.Errorf("SubscriberCount() after cancel = %d, want 0", got)
	}
	// Cancelling twice is harmless.
	cancel()
}

func TestHubPublishNeverBlocks(t *testing.T) {
	h := NewHub()
	_, cancel := h.Subscribe("student:s1")
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Nobody drains the channel; overflow events are dropped.
		for i := 0; i < subscriberBuffer*3; i++ {
			h.Publish("student:s1", progress.ChangeEvent{StudentID: "s1"})
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}

func TestProgressChangedFansOut(t *testing.T) {
	h := NewHub()

	student, cancelStudent := h.Subscribe(StudentTopic("s1"))
	defer cancelStudent()
	subject, cancelSubject := h.Subscribe(SubjectTopic("quran-reading"))
	defer cancelSubject()

	h.ProgressChanged(progress.ChangeEvent{
		Kind: "milestone", StudentID: "s1", SubjectSlug: "quran-reading", Status: "verified",
	})

	for name, ch := range map[string]<-chan progress.ChangeEvent{"student": student, "subject": subject} {
		select {
		case e := <-ch:
			if e.Status != "verified" {
				t.Errorf("%s topic event = %+v", name, e)
			}
		case <-time.After(time.Second):
			t.Fatalf("no event on %s topic", name)
		}
	}

	// Surah events carry no subject and go only to the student topic.
	h.ProgressChanged(progress.ChangeEvent{Kind: "surah", StudentID: "s1", SurahNumber: 1})
	select {
	case e := <-subject:
		t.Fatalf("surah event leaked to subject topic: %+v", e)
	default:
	}
}

func TestServeWS(t *testing.T) {
	h := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeWS(w, r, r.URL.Query().Get("topic"))
	}))
	defer srv.Close()

	ctx := t.Context()
	wsURL := strings.Replace(srv.URL, "http", "ws", 1) + "?topic=student:s1"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("websocket.Dial() error = %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// The subscription is registered during the handshake handler; wait
	// for it to land before publishing.
	deadline := time.Now().Add(2 * time.Second)
	for h.SubscriberCount("student:s1") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	h.Publish("student:s1", progress.ChangeEvent{Kind: "milestone", StudentID: "s1", Status: "verified"})

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	var e progress.ChangeEvent
	if err := json.Unmarshal(data, &e); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if e.StudentID != "s1" || e.Status != "verified" {
		t.Errorf("received event = %+v", e)
	}
}
