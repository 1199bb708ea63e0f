package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/surgeo/internal/config"
)

// Checker evaluates the health snapshot on an interval.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	interval  time.Duration
	sent      map[AlertType]bool
}

// NewChecker creates a background alert checker. A non-positive
// CheckIntervalSecs uses five minutes.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	interval := time.Duration(cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Checker{
		collector: collector,
		alerter:   alerter,
		interval:  interval,
		sent:      make(map[AlertType]bool),
	}
}

// Run starts the periodic check loop. It blocks until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting alert checker", zap.Duration("interval", c.interval))

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("alert checker stopped")
			return
		case <-ticker.C:
			c.Check(ctx, log)
		}
	}
}

// Check runs one evaluation. Each alert type is sent once until it clears.
// With a webhook configured, an alert whose post failed is retried on the
// next check; without one, logging it counts as sending it.
func (c *Checker) Check(ctx context.Context, log *zap.Logger) []Alert {
	alerts := c.alerter.Evaluate(c.collector.Collect())

	sent := make(map[AlertType]bool, len(alerts))
	var fresh []Alert
	for _, a := range alerts {
		if c.sent[a.Type] {
			sent[a.Type] = true
			continue
		}
		fresh = append(fresh, a)
	}

	if len(fresh) == 0 {
		c.sent = sent
		log.Debug("monitoring: no new alerts", zap.Int("firing", len(alerts)))
		return nil
	}
	for _, a := range fresh {
		log.Warn("monitoring: alert", zap.String("type", string(a.Type)), zap.String("message", a.Message))
	}

	delivered := fresh
	if c.alerter.cfg.WebhookURL != "" {
		delivered = c.alerter.deliver(ctx, fresh)
	}
	for _, a := range delivered {
		sent[a.Type] = true
	}
	c.sent = sent

	log.Info("monitoring: alert check complete",
		zap.Int("alerts_triggered", len(fresh)),
		zap.Int("alerts_sent", len(delivered)),
	)
	return fresh
}
