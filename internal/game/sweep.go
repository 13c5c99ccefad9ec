// internal/game/sweep.go
package game

import (
	"context"
	"time"

	"github.com/jason-s-yu/partyrounds/internal/models"
)

// Sweep removes finished sessions older than FinishedMaxAge and lobbies nobody is in.
// It catches whatever the per-game cleanup timer missed.
func (e *Engine) Sweep(now time.Time) (removed int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, g := range e.store.Games() {
		if g.Status == models.GameFinished && now.Sub(g.FinishedAt) > e.settings.FinishedMaxAge {
			e.dropSessionLocked(g.ID)
			removed++
		}
	}
	for _, l := range e.store.Lobbies() {
		if l.PlayerCount == 0 {
			e.dropSessionLocked(l.ID)
			removed++
		}
	}
	if removed > 0 {
		e.broadcastLobbyListLocked()
		e.log.WithField("removed", removed).Info("sweep removed stale sessions")
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (e *Engine) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	e.log.WithField("interval", interval).Info("sweeper started")
	for {
		select {
		case <-ctx.Done():
			e.log.Info("sweeper stopped")
			return
		case now := <-ticker.C:
			e.Sweep(now)
		}
	}
}
