package quota

import (
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/ua-proxy-go/internal/models"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type memStore struct {
	state   *models.QuotaState
	saveErr error
	saves   int
}

func (s *memStore) Load() (*models.QuotaState, error) {
	if s.state == nil {
		return nil, nil
	}
	copied := *s.state
	return &copied, nil
}

func (s *memStore) Save(state *models.QuotaState) error {
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	copied := *state
	s.state = &copied
	return nil
}

func TestGuardTryConsume(t *testing.T) {
	t.Run("exhausts at daily limit", func(t *testing.T) {
		guard := NewGuard(&memStore{}, 2, testLogger())

		require.True(t, guard.TryConsume())
		require.True(t, guard.TryConsume())
		require.False(t, guard.TryConsume())
		require.Equal(t, 2, guard.Snapshot().Count)
	})

	t.Run("zero limit refuses immediately", func(t *testing.T) {
		guard := NewGuard(&memStore{}, 0, testLogger())
		require.False(t, guard.TryConsume())
	})

	t.Run("date rollover resets counter", func(t *testing.T) {
		guard := NewGuard(&memStore{}, 1, testLogger())
		day := time.Date(2026, 8, 27, 23, 0, 0, 0, time.UTC)
		guard.now = func() time.Time { return day }

		require.True(t, guard.TryConsume())
		require.False(t, guard.TryConsume())

		day = day.Add(2 * time.Hour) // crosses midnight
		require.True(t, guard.TryConsume())
		require.Equal(t, "2026-08-28", guard.Snapshot().ResetDate)
	})

	t.Run("failing store keeps increment", func(t *testing.T) {
		store := &memStore{saveErr: errors.New("disk full")}
		guard := NewGuard(store, 5, testLogger())

		require.True(t, guard.TryConsume())
		require.Equal(t, 1, guard.Snapshot().Count)
	})

	t.Run("configured limit overrides persisted", func(t *testing.T) {
		store := &memStore{state: &models.QuotaState{
			Count:      3,
			DailyLimit: 100,
			ResetDate:  time.Now().Format(dateLayout),
		}}
		guard := NewGuard(store, 3, testLogger())
		require.False(t, guard.TryConsume())
	})

	t.Run("consume persists synchronously", func(t *testing.T) {
		store := &memStore{}
		guard := NewGuard(store, 5, testLogger())

		before := store.saves
		require.True(t, guard.TryConsume())
		require.Equal(t, before+1, store.saves)
		require.Equal(t, 1, store.state.Count)
	})
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.json")
	store := &FileStore{path: path}

	t.Run("missing file loads nil", func(t *testing.T) {
		state, err := store.Load()
		require.NoError(t, err)
		require.Nil(t, state)
	})

	t.Run("round trip", func(t *testing.T) {
		saved := &models.QuotaState{Count: 7, DailyLimit: 100, ResetDate: "2026-08-28"}
		require.NoError(t, store.Save(saved))

		loaded, err := store.Load()
		require.NoError(t, err)
		require.Equal(t, saved, loaded)
	})
}
