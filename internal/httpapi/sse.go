package httpapi

import (
	"fmt"
	"net/http"
	"sync"
)

// progressBroker fans export progress percentages out to stream subscribers.
type progressBroker struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan int
}

func newProgressBroker() *progressBroker {
	return &progressBroker{subs: make(map[int]chan int)}
}

func (b *progressBroker) subscribe() (<-chan int, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan int, 8)
	b.subs[id] = ch
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

func (b *progressBroker) publish(percent int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- percent:
		default:
		}
	}
}

func (s *Server) handleExportStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	events, unsubscribe := s.progress.subscribe()
	defer unsubscribe()

	for {
		select {
		case <-r.Context().Done():
			return
		case percent := <-events:
			if _, err := fmt.Fprintf(w, "data: {\"percent\": %d}\n\n", percent); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
