package startup

import (
	"context"
	"errors"
)

// ErrReloadLimit is returned when startup keeps asking for a reload.
var ErrReloadLimit = errors.New("startup: reload limit reached")

// Bootstrap runs the orchestrator and, whenever it ends in Reload, starts it
// again from Opening, as a fresh process would. At most maxReloads reloads
// are performed.
func Bootstrap(ctx context.Context, o *Orchestrator, maxReloads int) (*Session, error) {
	var prev *Session
	for reloads := 0; ; reloads++ {
		s, err := o.Run(ctx)
		s.Previous = prev
		if err != nil {
			return s, err
		}
		if s.State != Reload {
			return s, nil
		}
		if reloads >= maxReloads {
			return s, ErrReloadLimit
		}
		o.deps.Logger.Info("reloading after rescue", "attempt", reloads+1)
		prev = s
	}
}
