package slack

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// enrich resolves the acting user and the item user of ev concurrently.
// A user id wins over a bot id. An actor that cannot be resolved stays the
// zero User. Any lookup error drops the whole event.
func (a *Adapter) enrich(ctx context.Context, ev *Event) (*EnrichedEvent, error) {
	out := &EnrichedEvent{Event: ev}
	g, gctx := errgroup.WithContext(ctx)

	switch {
	case ev.UserID != "":
		g.Go(func() error {
			u, err := a.cache.User(gctx, ev.UserID)
			if err != nil {
				return err
			}
			out.User = u
			return nil
		})
	case ev.BotID != "":
		g.Go(func() error {
			u, err := a.cache.BotUser(gctx, ev.BotID)
			if err != nil {
				return err
			}
			out.User = u
			return nil
		})
	}

	if ev.ItemUser != "" {
		g.Go(func() error {
			u, err := a.cache.User(gctx, ev.ItemUser)
			if err != nil {
				return err
			}
			out.ItemUser = &u
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
