package app

import (
	"context"
	"time"

	"boothqr/internal/eventbus"
	"boothqr/internal/storage"
	logx "boothqr/pkg/logx"
)

const recordTimeout = 2 * time.Second

// toRecord maps a pipeline event to a history row. Events that are not
// worth keeping return false.
func toRecord(e eventbus.Event) (storage.Record, bool) {
	switch d := e.Data.(type) {
	case eventbus.PhotoData:
		if e.Type != eventbus.PhotoAccepted && e.Type != eventbus.PhotoRejected {
			return storage.Record{}, false
		}
		return storage.Record{Kind: e.Type, Path: d.Path, Reason: d.Reason, At: e.Time}, true
	case eventbus.SessionData:
		return storage.Record{
			Kind:      e.Type,
			SessionID: d.ID,
			Path:      d.Path,
			URL:       d.URL,
			Reason:    d.Reason,
			At:        e.Time,
			ShownFor:  d.ShownFor,
		}, true
	default:
		return storage.Record{}, false
	}
}

// record drains events into st until ctx is done or the channel closes.
func record(ctx context.Context, events <-chan eventbus.Event, st storage.Store, log logx.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			r, keep := toRecord(e)
			if !keep {
				continue
			}
			// Shutdown still flushes what was already received.
			wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
			if err := st.Append(wctx, r); err != nil {
				log.Warn("history append failed", logx.String("kind", r.Kind), logx.Err(err))
			}
			cancel()
		}
	}
}
