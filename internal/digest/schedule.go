package digest

import (
	"context"
	"fmt"
	"time"
)

// NextRun returns the next wall-clock occurrence of at ("HH:MM") in loc
// strictly after now.
func NextRun(now time.Time, at string, loc *time.Location) (time.Time, error) {
	clock, err := time.Parse("15:04", at)
	if err != nil {
		return time.Time{}, fmt.Errorf("digest: parse schedule %q: %w", at, err)
	}
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), clock.Hour(), clock.Minute(), 0, 0, loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next, nil
}

// RunDaily calls run once a day at the configured time until ctx is done.
func (r *Reporter) RunDaily(ctx context.Context, at string, loc *time.Location) error {
	for {
		next, err := NextRun(r.now(), at, loc)
		if err != nil {
			return err
		}
		r.logger.Info("daily report scheduled", "next_run", next.Format(time.RFC3339))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		if err := r.Run(ctx); err != nil {
			r.logger.Error("daily report failed", "error", err)
		}
	}
}
