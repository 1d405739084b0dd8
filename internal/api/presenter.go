package api

import (
	"context"
	"sync"
	"time"

	"github.com/mainite/videoslim/internal/bus"
	"github.com/mainite/videoslim/internal/logger"
)

// firstPollDelay is the wait before the first drain after Run starts.
const firstPollDelay = 50 * time.Millisecond

// Notice is a title/text pair shown to the user.
type Notice struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// State is what the presentation layer knows, built only from bus messages.
type State struct {
	Busy            bool     `json:"busy"`
	FileIndex       int      `json:"file_index"`
	FileCount       int      `json:"file_count"`
	File            string   `json:"file,omitempty"`
	StageIndex      int      `json:"stage_index"`
	StageCount      int      `json:"stage_count"`
	Processed       int      `json:"processed"`
	Errors          int      `json:"errors"`
	Profiles        []string `json:"profiles"`
	UpdateAvailable bool     `json:"update_available"`
	LatestVersion   string   `json:"latest_version,omitempty"`
	LastError       *Notice  `json:"last_error,omitempty"`
	LastWarning     *Notice  `json:"last_warning,omitempty"`
	Exiting         bool     `json:"exiting"`
}

// Presenter drains the bus on a fixed tick, folds messages into State and
// fans them out to SSE subscribers.
type Presenter struct {
	bus      *bus.Bus
	interval time.Duration

	mu          sync.RWMutex
	state       State
	subscribers map[chan []byte]struct{}
}

// NewPresenter creates a Presenter polling b every interval.
func NewPresenter(b *bus.Bus, interval time.Duration) *Presenter {
	if interval <= 0 {
		interval = time.Second
	}
	return &Presenter{
		bus:         b,
		interval:    interval,
		state:       State{Profiles: []string{}},
		subscribers: make(map[chan []byte]struct{}),
	}
}

// Run polls until ctx is done or an Exit message is applied.
func (p *Presenter) Run(ctx context.Context) {
	timer := time.NewTimer(firstPollDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		p.Poll()
		if p.Snapshot().Exiting {
			logger.Debug("Presenter stopping on exit message")
			return
		}
		timer.Reset(p.interval)
	}
}

// Poll drains every queued message without blocking and returns how many
// were applied.
func (p *Presenter) Poll() int {
	n := 0
	for {
		msg, ok := p.bus.TryReceive()
		if !ok {
			return n
		}
		p.apply(msg)
		p.broadcast(msg)
		n++
	}
}

func (p *Presenter) apply(msg bus.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := &p.state
	switch m := msg.(type) {
	case bus.Warning:
		s.LastWarning = &Notice{Title: m.Title, Text: m.Text}
	case bus.Error:
		s.LastError = &Notice{Title: m.Title, Text: m.Text}
	case bus.UpdateAvailable:
		s.UpdateAvailable = true
		s.LatestVersion = m.Latest
	case bus.Exit:
		s.Exiting = true
	case bus.ProfilesLoaded:
		s.Profiles = append([]string{}, m.Names...)
	case bus.CompressionStarted:
		s.Busy = true
		s.FileCount = m.FileCount
		s.FileIndex = 0
		s.File = ""
		s.StageIndex = 0
		s.StageCount = 0
		s.Processed = 0
		s.Errors = 0
	case bus.StageProgress:
		s.File = m.File
		s.StageIndex = m.StageIndex
		s.StageCount = m.StageCount
	case bus.FileProgress:
		s.FileIndex = m.FileIndex
		s.FileCount = m.FileCount
		s.File = m.File
		s.StageIndex = 0
		s.StageCount = 0
	case bus.CompressionError:
		s.Errors++
		s.LastError = &Notice{Title: m.Title, Text: m.Text}
	case bus.CompressionFinished:
		s.Busy = false
		s.Processed = m.ProcessedCount
		s.StageIndex = 0
		s.StageCount = 0
	default:
		logger.Warn("Unknown message", "kind", msg.Kind())
	}
}

// broadcast never blocks the poll loop. It may drop events for slow
// subscribers, which is why clients resync from Snapshot.
func (p *Presenter) broadcast(msg bus.Message) {
	data, err := bus.Encode(msg)
	if err != nil {
		logger.Warn("Failed to encode message", "kind", msg.Kind(), "error", err)
		return
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	for ch := range p.subscribers {
		select {
		case ch <- data:
		default:
			logger.Debug("Dropping event for slow subscriber", "kind", msg.Kind())
		}
	}
}

// Snapshot returns a copy of the current state.
func (p *Presenter) Snapshot() State {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := p.state
	s.Profiles = append([]string{}, p.state.Profiles...)
	if p.state.LastError != nil {
		n := *p.state.LastError
		s.LastError = &n
	}
	if p.state.LastWarning != nil {
		n := *p.state.LastWarning
		s.LastWarning = &n
	}
	return s
}

// Subscribe returns a channel receiving every message encoded as JSON.
// Events are dropped for a subscriber whose buffer is full; the state
// behind Snapshot (GET /api/status) still applies every message.
func (p *Presenter) Subscribe() chan []byte {
	ch := make(chan []byte, 100)
	p.mu.Lock()
	p.subscribers[ch] = struct{}{}
	p.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a channel returned by Subscribe.
func (p *Presenter) Unsubscribe(ch chan []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.subscribers[ch]; ok {
		delete(p.subscribers, ch)
		close(ch)
	}
}
