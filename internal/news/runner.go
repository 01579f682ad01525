package news

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hray3182/SonarBot/internal/models"
)

const DefaultSweepInterval = 5 * time.Minute

// Runner drives the service: a frequent sweep for due subscriptions plus one
// scan per frequency tier.
type Runner struct {
	service *Service
	sweep   time.Duration
	tiers   map[models.Frequency]time.Duration
}

func NewRunner(service *Service, sweep time.Duration) *Runner {
	if sweep <= 0 {
		sweep = DefaultSweepInterval
	}
	return &Runner{
		service: service,
		sweep:   sweep,
		tiers: map[models.Frequency]time.Duration{
			models.FrequencyHourly: models.FrequencyHourly.Period(),
			models.FrequencyDaily:  models.FrequencyDaily.Period(),
			models.FrequencyWeekly: models.FrequencyWeekly.Period(),
		},
	}
}

func (r *Runner) Start(ctx context.Context) {
	logrus.WithField("sweep", r.sweep).Info("News runner started")

	sweep := time.NewTicker(r.sweep)
	defer sweep.Stop()

	tierC := make(chan models.Frequency)
	for freq, every := range r.tiers {
		go r.tick(ctx, freq, every, tierC)
	}

	for {
		select {
		case <-ctx.Done():
			logrus.Info("News runner stopped")
			return
		case <-sweep.C:
			if n := r.service.DueScan(ctx, r.service.now()); n > 0 {
				logrus.WithField("delivered", n).Info("Due subscriptions processed")
			}
		case freq := <-tierC:
			n := r.service.TierScan(ctx, freq)
			logrus.WithFields(logrus.Fields{"frequency": freq, "delivered": n}).Info("Subscription tier processed")
		}
	}
}

// tick feeds the main loop so scans never overlap.
func (r *Runner) tick(ctx context.Context, freq models.Frequency, every time.Duration, out chan<- models.Frequency) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case out <- freq:
			case <-ctx.Done():
				return
			}
		}
	}
}
