package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// drain collects every message currently buffered on ch.
func drain(ch chan []byte) []string {
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

// lockedRecorder guards the recorder body, which the handler writes from
// another goroutine.
type lockedRecorder struct {
	mu sync.Mutex
	*httptest.ResponseRecorder
}

func (l *lockedRecorder) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ResponseRecorder.Write(p)
}

func (l *lockedRecorder) body() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Body.String()
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: EventEntryCreated, Data: map[string]string{"path": "/knowledge/a.md"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: entry.created") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"path":"/knowledge/a.md"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishChange_EventsAndThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishChange(Change{
		Created: []string{"/knowledge/a.md"},
		Updated: []string{"/knowledge/b.md"},
		Deleted: []string{"/knowledge/c.md"},
		Entries: 2,
		Edges:   1,
	})
	// Within the throttle window: entry event only.
	b.PublishChange(Change{Updated: []string{"/knowledge/a.md"}, Entries: 2, Edges: 1})

	time.Sleep(50 * time.Millisecond)
	msgs := drain(ch)

	var created, updated, deleted, refreshed int
	for _, m := range msgs {
		switch {
		case strings.Contains(m, "event: "+EventEntryCreated):
			created++
		case strings.Contains(m, "event: "+EventEntryUpdated):
			updated++
		case strings.Contains(m, "event: "+EventEntryDeleted):
			deleted++
		case strings.Contains(m, "event: "+EventIndexRefreshed):
			refreshed++
			if !strings.Contains(m, `"entries":2`) || !strings.Contains(m, `"edges":1`) {
				t.Errorf("refresh summary = %q", m)
			}
		}
	}
	if created != 1 || updated != 2 || deleted != 1 {
		t.Errorf("created/updated/deleted = %d/%d/%d, want 1/2/1", created, updated, deleted)
	}
	if refreshed != 1 {
		t.Errorf("index.refreshed events = %d, want 1 (throttled)", refreshed)
	}
}

func TestPublishChange_EmptyIgnored(t *testing.T) {
	b := NewBroker(time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishChange(Change{Entries: 3})
	time.Sleep(50 * time.Millisecond)
	if msgs := drain(ch); len(msgs) != 0 {
		t.Errorf("expected no events, got %v", msgs)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := &lockedRecorder{ResponseRecorder: httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.PublishChange(Change{Updated: []string{"/knowledge/x.md"}, Entries: 1})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.body()
	if !strings.Contains(body, "event: entry.updated") {
		t.Errorf("handler output missing event: %q", body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Capacity is 64; the extra events must be dropped, not block.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// No-ops after close.
	b.Publish(Event{Type: EventEntryUpdated, Data: map[string]string{"path": "x.md"}})
	b.PublishChange(Change{Updated: []string{"x.md"}})
}
