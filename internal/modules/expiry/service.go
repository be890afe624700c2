// README: Expiry sweep: periodically expires overdue matches, listings and demands.
package expiry

import (
	"context"
	"log"
	"time"
)

// Expirer moves everything overdue at now to its expired state and reports how many changed.
type Expirer interface {
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}

type Sweeper struct {
	matches  Expirer
	listings Expirer
	demands  Expirer
	interval time.Duration
	now      func() time.Time
}

func NewSweeper(matches, listings, demands Expirer, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{matches: matches, listings: listings, demands: demands, interval: interval, now: time.Now}
}

type Result struct {
	Matches  int
	Listings int
	Demands  int
}

// SweepOnce runs one pass. A failing stage is logged and does not stop the others.
func (s *Sweeper) SweepOnce(ctx context.Context, now time.Time) Result {
	var r Result
	for _, stage := range []struct {
		name string
		e    Expirer
		n    *int
	}{
		{"matches", s.matches, &r.Matches},
		{"listings", s.listings, &r.Listings},
		{"demands", s.demands, &r.Demands},
	} {
		if stage.e == nil {
			continue
		}
		n, err := stage.e.ExpireDue(ctx, now)
		*stage.n = n
		if err != nil {
			log.Printf("expiry: %s: %v", stage.name, err)
		}
	}
	if r.Matches+r.Listings+r.Demands > 0 {
		log.Printf("expiry: expired %d matches, %d listings, %d demands", r.Matches, r.Listings, r.Demands)
	}
	return r
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx, s.now())
		}
	}
}
