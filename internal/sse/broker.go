// Package sse implements a Server-Sent Events broker that pushes book and
// chapter changes to connected editors.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
	// Book routes the event to subscribers of one book. Empty reaches everyone.
	Book string `json:"-"`

	// touchesLibrary schedules a throttled library.updated after the event.
	touchesLibrary bool
}

// Event types.
const (
	TypeChapterCreated = "chapter.created"
	TypeChapterUpdated = "chapter.updated"
	TypeChapterDeleted = "chapter.deleted"
	TypeBookUpdated    = "book.updated"
	TypeLibraryUpdated = "library.updated"
)

var chapterTypes = map[string]string{
	"created": TypeChapterCreated,
	"updated": TypeChapterUpdated,
	"deleted": TypeChapterDeleted,
}

// ChapterEvent is the payload of chapter.* events.
type ChapterEvent struct {
	BookPath  string `json:"bookPath"`
	ChapterID string `json:"chapterId"`
}

// pingInterval keeps idle streams open through proxies.
const pingInterval = 30 * time.Second

type subscription struct {
	ch   chan []byte
	book string
}

// Broker manages SSE client connections and broadcasts events.
//
// A single loop goroutine owns the client set and the library throttle
// timestamp. Public methods talk to it through channels.
type Broker struct {
	libraryMin time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker. library.updated follow-ups to chapter
// events are sent at most once per libraryThrottle.
func NewBroker(libraryThrottle time.Duration) *Broker {
	if libraryThrottle <= 0 {
		libraryThrottle = 2 * time.Second
	}

	b := &Broker{
		libraryMin:    libraryThrottle,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func encode(event Event) ([]byte, error) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return nil, err
	}
	return fmt.Appendf(nil, "event: %s\ndata: %s\n\n", event.Type, payload), nil
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]string)
	var lastLibrary time.Time

	broadcast := func(event Event) {
		raw, err := encode(event)
		if err != nil {
			return
		}
		for ch, book := range clients {
			if book != "" && event.Book != "" && book != event.Book {
				continue
			}
			select {
			case ch <- raw:
			default:
				// Slow client; drop rather than block the loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case sub := <-b.subscribeCh:
			clients[sub.ch] = sub.book

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)
			if !event.touchesLibrary {
				continue
			}

			// Chapter and word counts in the library view are stale.
			now := time.Now()
			if now.Sub(lastLibrary) >= b.libraryMin {
				lastLibrary = now
				broadcast(Event{Type: TypeLibraryUpdated, Data: map[string]string{}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the loop and closes every client channel. Safe to call twice.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client and returns its channel. A non-empty book limits
// book and chapter events to that book root; library events always arrive.
func (b *Broker) Subscribe(book string) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscription{ch: ch, book: book}:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to the matching clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishChapterEvent publishes a chapter change and a throttled
// library.updated event. kind is "created", "updated" or "deleted"; other
// kinds are ignored.
func (b *Broker) PublishChapterEvent(kind, bookPath, chapterID string) {
	typ, ok := chapterTypes[kind]
	if !ok {
		return
	}
	b.Publish(Event{
		Type:           typ,
		Data:           ChapterEvent{BookPath: bookPath, ChapterID: chapterID},
		Book:           bookPath,
		touchesLibrary: true,
	})
}

// PublishBookUpdated announces a metadata change of the book at bookPath.
func (b *Broker) PublishBookUpdated(bookPath string) {
	b.Publish(Event{Type: TypeBookUpdated, Data: map[string]string{"bookPath": bookPath}, Book: bookPath})
}

// PublishLibraryUpdated announces a change to the library listing.
func (b *Broker) PublishLibraryUpdated() {
	b.Publish(Event{Type: TypeLibraryUpdated, Data: map[string]string{}})
}

// ServeHTTP is the SSE endpoint handler (GET /api/events). The optional
// ?book= query narrows the stream to one book.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(r.URL.Query().Get("book"))
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
