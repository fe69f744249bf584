package quota

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ua-proxy-go/internal/models"
)

const dateLayout = "2006-01-02"

// Guard is a process-wide daily counter bounding calls to the search API.
// All reads and updates happen under one mutex; persistence is synchronous
// within the same critical section so the stored value never runs ahead of
// or behind the in-memory one.
type Guard struct {
	mu     sync.Mutex
	state  models.QuotaState
	store  Store
	logger *logrus.Logger
	now    func() time.Time
}

// NewGuard loads persisted state or starts a fresh counter. A corrupt or
// unreadable store logs a warning and starts over rather than failing boot.
func NewGuard(store Store, dailyLimit int, logger *logrus.Logger) *Guard {
	g := &Guard{
		store:  store,
		logger: logger,
		now:    time.Now,
	}

	state, err := store.Load()
	if err != nil {
		logger.WithError(err).Warn("Failed to load quota state, starting fresh")
		state = nil
	}
	if state == nil {
		state = &models.QuotaState{
			Count:      0,
			DailyLimit: dailyLimit,
			ResetDate:  g.now().Format(dateLayout),
		}
		if err := store.Save(state); err != nil {
			logger.WithError(err).Warn("Failed to persist initial quota state")
		}
	}
	// The configured limit wins over whatever was persisted.
	state.DailyLimit = dailyLimit
	g.state = *state

	return g
}

// TryConsume reserves one search call. It resets the counter on date
// rollover, refuses when the daily limit is reached, and otherwise
// increments and persists before returning true. A failed persist keeps
// the in-memory increment; the counter favors availability.
func (g *Guard) TryConsume() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	today := g.now().Format(dateLayout)
	if g.state.ResetDate != today {
		g.state.Count = 0
		g.state.ResetDate = today
	}

	if g.state.Count >= g.state.DailyLimit {
		g.logger.WithFields(logrus.Fields{
			"count": g.state.Count,
			"limit": g.state.DailyLimit,
		}).Warn("Search API daily quota exhausted")
		return false
	}

	g.state.Count++
	if err := g.store.Save(&g.state); err != nil {
		g.logger.WithError(err).Warn("Failed to persist quota state")
	}

	g.logger.WithFields(logrus.Fields{
		"count": g.state.Count,
		"limit": g.state.DailyLimit,
	}).Info("Search API call consumed")
	return true
}

// Snapshot returns a copy of the current state for inspection.
func (g *Guard) Snapshot() models.QuotaState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}
