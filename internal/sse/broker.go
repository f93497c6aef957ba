// Package sse implements a Server-Sent Events broker that pushes note, sync
// and statistics changes to connected clients.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event types.
const (
	NoteCreated   = "note.created"
	NoteUpdated   = "note.updated"
	NoteDeleted   = "note.deleted"
	SyncCompleted = "sync.completed"
	SyncFailed    = "sync.failed"
	SyncConflict  = "sync.conflict"
	StatsUpdated  = "stats.updated"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients + stats throttle). Public methods communicate with this loop
// through channels, so no mutexes are required.
//
// stats.updated is throttled: at most one per interval, and the last summary
// published inside a window is delivered when the window closes.
type Broker struct {
	statsMin time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	statsCh       chan any
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker with the given stats throttle interval.
func NewBroker(statsThrottle time.Duration) *Broker {
	if statsThrottle <= 0 {
		statsThrottle = 2 * time.Second
	}

	b := &Broker{
		statsMin:      statsThrottle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		statsCh:       make(chan any, 64),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var (
		lastStats    time.Time
		pendingStats any
		hasPending   bool
		flushTimer   *time.Timer
		flushCh      <-chan time.Time
	)

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))

		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			if flushTimer != nil {
				flushTimer.Stop()
			}
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case summary := <-b.statsCh:
			now := time.Now()
			if wait := b.statsMin - now.Sub(lastStats); wait > 0 {
				pendingStats, hasPending = summary, true
				if flushTimer == nil {
					flushTimer = time.NewTimer(wait)
					flushCh = flushTimer.C
				}
				continue
			}
			lastStats = now
			broadcast(Event{Type: StatsUpdated, Data: summary})

		case <-flushCh:
			flushTimer, flushCh = nil, nil
			if hasPending {
				lastStats = time.Now()
				broadcast(Event{Type: StatsUpdated, Data: pendingStats})
				pendingStats, hasPending = nil, false
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
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

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishNoteEvent publishes note.<kind> for path. kind is one of
// "created", "updated", "deleted".
func (b *Broker) PublishNoteEvent(kind, path string) {
	var typ string
	switch kind {
	case "created":
		typ = NoteCreated
	case "updated":
		typ = NoteUpdated
	case "deleted":
		typ = NoteDeleted
	default:
		return
	}
	b.Publish(Event{Type: typ, Data: map[string]string{"path": path}})
}

// PublishStats publishes a throttled stats.updated event carrying summary.
func (b *Broker) PublishStats(summary any) {
	if b.closed.Load() {
		return
	}
	select {
	case b.statsCh <- summary:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
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

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
