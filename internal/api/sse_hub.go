package api

import (
	"io"
	"net/http"
	"sync"
	"time"

	"warpmine/domain/core"
	apperrors "warpmine/internal/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Progress event types
const (
	EventProgress = "progress"
	EventResult   = "result"
	EventFailed   = "failed"
)

// ProgressEvent is one update for an optimization run. RunID is the request
// id of the POST /optimize call that started the run.
type ProgressEvent struct {
	RunID     string         `json:"run_id"`
	Type      string         `json:"type"`
	Iteration int            `json:"iteration,omitempty"`
	BestValue float64        `json:"best_value,omitempty"`
	Data      any            `json:"data,omitempty"`
	Timestamp core.Timestamp `json:"timestamp"`
}

type sseClient struct {
	runID string
	ch    chan ProgressEvent
}

// SSEHub fans optimization progress out to Server-Sent Events subscribers.
// Slow subscribers miss progress events rather than stalling a run, but
// always receive the terminal result or failure.
type SSEHub struct {
	clients   map[string]map[chan ProgressEvent]struct{}
	clientsMu sync.RWMutex

	register   chan sseClient
	unregister chan sseClient
	broadcast  chan ProgressEvent
	quit       chan struct{}
	done       chan struct{}
	closeOnce  sync.Once

	keepAlive time.Duration
	logger    *zap.Logger
}

// NewSSEHub starts the hub loop. Call Close to stop it.
func NewSSEHub(logger *zap.Logger) *SSEHub {
	h := &SSEHub{
		clients:    make(map[string]map[chan ProgressEvent]struct{}),
		register:   make(chan sseClient, 16),
		unregister: make(chan sseClient, 16),
		broadcast:  make(chan ProgressEvent, 256),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		keepAlive:  30 * time.Second,
		logger:     logger,
	}
	go h.run()
	return h
}

func (h *SSEHub) run() {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.clientsMu.Lock()
			if h.clients[client.runID] == nil {
				h.clients[client.runID] = make(map[chan ProgressEvent]struct{})
			}
			h.clients[client.runID][client.ch] = struct{}{}
			h.clientsMu.Unlock()
			h.logger.Debug("sse client registered", zap.String("run_id", client.runID))

		case client := <-h.unregister:
			h.drop(client)

		case event := <-h.broadcast:
			if event.Type == EventProgress {
				h.fanOut(event)
			} else {
				h.finish(event)
			}

		case <-h.quit:
			h.clientsMu.Lock()
			for runID, chans := range h.clients {
				for ch := range chans {
					close(ch)
				}
				delete(h.clients, runID)
			}
			h.clientsMu.Unlock()
			return
		}
	}
}

func (h *SSEHub) fanOut(event ProgressEvent) {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	for ch := range h.clients[event.RunID] {
		select {
		case ch <- event:
		default:
			h.logger.Debug("sse client lagging, event skipped",
				zap.String("run_id", event.RunID), zap.String("type", event.Type))
		}
	}
}

// finish delivers a terminal event to every subscriber of the run and
// disconnects them. A full buffer gives up its oldest progress event so the
// terminal one always fits; the hub is the only sender.
func (h *SSEHub) finish(event ProgressEvent) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	for ch := range h.clients[event.RunID] {
		select {
		case ch <- event:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
		close(ch)
	}
	delete(h.clients, event.RunID)
}

func (h *SSEHub) drop(client sseClient) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	chans, ok := h.clients[client.runID]
	if !ok {
		return
	}
	if _, ok := chans[client.ch]; !ok {
		return
	}
	delete(chans, client.ch)
	close(client.ch)
	if len(chans) == 0 {
		delete(h.clients, client.runID)
	}
}

// Broadcast queues event for every subscriber of its run. It never blocks.
func (h *SSEHub) Broadcast(event ProgressEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = core.Now()
	}
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("sse broadcast queue full, event dropped",
			zap.String("run_id", event.RunID), zap.String("type", event.Type))
	}
}

// Subscribers counts live subscribers for runID
func (h *SSEHub) Subscribers(runID string) int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients[runID])
}

// Close disconnects every subscriber and stops the hub loop
func (h *SSEHub) Close() {
	h.closeOnce.Do(func() {
		close(h.quit)
		<-h.done
	})
}

// HandleSSE streams events for ?run_id= until the client goes away, the run
// finishes or the hub closes
func (h *SSEHub) HandleSSE(c *gin.Context) {
	runID := c.Query("run_id")
	if runID == "" {
		writeError(c, apperrors.ValidationError("run_id", "run_id query parameter is required"))
		return
	}

	ch := make(chan ProgressEvent, 32)
	select {
	case h.register <- sseClient{runID: runID, ch: ch}:
	case <-h.quit:
		writeError(c, apperrors.EngineDisabled("progress stream"))
		return
	}
	defer func() {
		select {
		case h.unregister <- sseClient{runID: runID, ch: ch}:
		case <-h.quit:
		}
	}()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	ctx := c.Request.Context()
	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(event.Type, event)
			return event.Type == EventProgress

		case <-ticker.C:
			c.SSEvent("ping", gin.H{"timestamp": core.Now()})
			return true

		case <-ctx.Done():
			return false
		}
	})
}
