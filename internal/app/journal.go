package app

import (
	"context"
	"time"

	"tempo/internal/eventbus"
	"tempo/internal/storage"
	logx "tempo/pkg/logx"
)

// writeJournal appends lifecycle events from the bus until ctx is done,
// then flushes whatever is still buffered.
func (a *App) writeJournal(ctx context.Context, topics []string) error {
	events, unsub := a.bus.Subscribe(256, topics...)
	defer unsub()

	warn := a.log.Throttled(1)
	write := func(e eventbus.Event) {
		te, ok := e.Tempo()
		if !ok {
			return
		}
		// Shutdown flushes must not depend on the cancelled run context.
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := a.store.Append(wctx, storage.RecordFromEvent(e.Time, te)); err != nil {
			warn.Warn("journal append failed", logx.String("type", e.Type), logx.Err(err))
		}
	}

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case e := <-events:
					write(e)
				default:
					return nil
				}
			}
		case e, ok := <-events:
			if !ok {
				return nil
			}
			write(e)
		}
	}
}
