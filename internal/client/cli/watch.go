package cli

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/songbook/songbook-session/internal/client/session"
)

// Watch loads the session and prints every change, including ones written
// by other processes sharing the token store, until ctx is canceled. When
// revalidate is positive the session is also refreshed on that interval.
func (a *App) Watch(ctx context.Context, revalidate time.Duration) error {
	g, ctx := errgroup.WithContext(ctx)

	states := make(chan session.State)
	stop := a.session.Watch(func(s session.State) {
		select {
		case states <- s:
		case <-ctx.Done():
		}
	})
	defer stop()

	var last string
	show := func(s session.State) {
		if s.Loading {
			return
		}
		line := s.Phase.String()
		if s.User != nil {
			line += " as " + s.User.Username
		}
		if line == last {
			return
		}
		last = line
		a.printf("%s %s\n", time.Now().Format(time.TimeOnly), line)
	}

	g.Go(func() error {
		for {
			select {
			case s := <-states:
				show(s)
			case <-ctx.Done():
				return nil
			}
		}
	})

	g.Go(func() error {
		err := a.session.Initialize(ctx)
		if err != nil && !errors.Is(err, session.ErrNetwork) && ctx.Err() == nil {
			return err
		}
		if revalidate > 0 {
			a.StartRevalidation(ctx, revalidate)
		}
		return nil
	})

	return g.Wait()
}
