package pipeline

import (
	"sync"

	"github.com/rs/zerolog"
)

// StateManager holds the latest published result per watchlist and fans
// results out to stream subscribers. Publication is token-gated: a result
// from a superseded run is discarded so stale responses never overwrite
// fresher data.
type StateManager struct {
	mu          sync.RWMutex
	latest      map[string]*Result
	subscribers map[chan *Result]struct{}
	log         zerolog.Logger
}

// NewStateManager creates a new pipeline state manager
func NewStateManager(log zerolog.Logger) *StateManager {
	return &StateManager{
		latest:      make(map[string]*Result),
		subscribers: make(map[chan *Result]struct{}),
		log:         log.With().Str("component", "pipeline_state").Logger(),
	}
}

// Publish installs the result as the watchlist's latest unless a newer run
// already published. Returns whether the result was accepted.
func (m *StateManager) Publish(res *Result) bool {
	m.mu.Lock()
	if current, ok := m.latest[res.WatchlistID]; ok && current.Token >= res.Token {
		m.mu.Unlock()
		m.log.Debug().
			Str("watchlist_id", res.WatchlistID).
			Uint64("token", res.Token).
			Uint64("current", current.Token).
			Msg("Discarding stale pipeline result")
		return false
	}
	m.latest[res.WatchlistID] = res

	subs := make([]chan *Result, 0, len(m.subscribers))
	for ch := range m.subscribers {
		subs = append(subs, ch)
	}
	m.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- res:
		default:
			// Slow subscriber, drop rather than block the pipeline.
		}
	}

	return true
}

// Latest returns the most recent published result for a watchlist, or nil.
func (m *StateManager) Latest(watchlistID string) *Result {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest[watchlistID]
}

// Subscribe registers a stream subscriber. The returned cancel function
// must be called to release the channel.
func (m *StateManager) Subscribe() (<-chan *Result, func()) {
	ch := make(chan *Result, 8)

	m.mu.Lock()
	m.subscribers[ch] = struct{}{}
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		delete(m.subscribers, ch)
		m.mu.Unlock()
	}

	return ch, cancel
}
