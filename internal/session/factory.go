package session

import (
	"log/slog"

	"github.com/mohammed-shakir/wfs-clickmap/internal/mapengine"
	"github.com/mohammed-shakir/wfs-clickmap/internal/mapview"
)

// NewFactory returns a Factory wiring a fresh engine at the initial view to a
// controller sharing fetcher and options.
func NewFactory(cfg mapview.Config, view mapengine.View, fetcher mapview.FeatureFetcher, log *slog.Logger, opts ...mapview.Option) Factory {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return func(id string) *Session {
		eng := mapengine.New(view)
		log.Debug("session created", "session_id", id)
		return &Session{
			ID:         id,
			Engine:     eng,
			Controller: mapview.New(cfg, eng, fetcher, log, opts...),
		}
	}
}
