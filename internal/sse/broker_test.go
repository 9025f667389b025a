package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe("")
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
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	b.PublishBookUpdated("/books/a")

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: book.updated") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"bookPath":"/books/a"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishChapterEvent_LibraryThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	// First event should trigger library.updated.
	b.PublishChapterEvent("created", "/books/a", "01")
	// Second event immediately should NOT trigger another library.updated.
	b.PublishChapterEvent("updated", "/books/a", "02")
	// Unknown kinds are dropped.
	b.PublishChapterEvent("renamed", "/books/a", "03")

	// Drain and count events.
	time.Sleep(50 * time.Millisecond)
	libraryCount := 0
	chapterCount := 0
loop:
	for {
		select {
		case msg := <-ch:
			s := string(msg)
			if strings.Contains(s, "library.updated") {
				libraryCount++
			} else {
				chapterCount++
				if !strings.Contains(s, `"chapterId":"0`) {
					t.Errorf("missing chapter id in %q", s)
				}
			}
		default:
			break loop
		}
	}

	if chapterCount != 2 {
		t.Errorf("chapter events = %d, want 2", chapterCount)
	}
	if libraryCount != 1 {
		t.Errorf("library events = %d, want 1 (throttled)", libraryCount)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	// Start handler in background.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

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

	b.PublishChapterEvent("updated", "/books/x", "01")
	time.Sleep(50 * time.Millisecond)

	// Cancel context to disconnect.
	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: chapter.updated") {
		t.Errorf("handler output missing event: %q", body)
	}

	// Client should be cleaned up.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
	// If we reach here without deadlock, the test passes.
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe("")
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

	// Should be safe no-op after close.
	b.PublishLibraryUpdated()
	b.PublishChapterEvent("updated", "/books/x", "01")
}

func TestSubscribeFiltersByBook(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe("/books/a")
	defer b.Unsubscribe(ch)

	b.PublishBookUpdated("/books/b")
	b.PublishChapterEvent("updated", "/books/b", "01")
	b.PublishBookUpdated("/books/a")

	var got []string
	timeout := time.After(time.Second)
	for len(got) < 2 {
		select {
		case msg := <-ch:
			got = append(got, string(msg))
		case <-timeout:
			t.Fatalf("timeout, got %q", got)
		}
	}

	// The other book's chapter event still triggers the library refresh.
	if !strings.Contains(got[0], "event: library.updated") {
		t.Errorf("first event = %q, want library.updated", got[0])
	}
	if !strings.Contains(got[1], `"bookPath":"/books/a"`) {
		t.Errorf("second event = %q, want book a", got[1])
	}
	select {
	case msg := <-ch:
		t.Errorf("unexpected event %q", msg)
	case <-time.After(50 * time.Millisecond):
	}
}
