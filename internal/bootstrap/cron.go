package bootstrap

import (
	"log"

	"github.com/robfig/cron/v3"

	"github.com/kah-digital/agency-backend/internal/notify"
	"github.com/kah-digital/agency-backend/internal/ratelimit"
)

// StartCron schedules the background maintenance jobs: the rate-limit
// bucket sweep and the daily lead digest. The returned cron is already
// running; callers stop it on shutdown.
func StartCron(limiter *ratelimit.Limiter, digest *notify.Digest) *cron.Cron {
	c := cron.New()

	if _, err := c.AddFunc("@every 10m", limiter.Sweep); err != nil {
		log.Printf("[cron] sweep registration failed: %v", err)
	}
	if _, err := c.AddFunc("0 7 * * *", digest.Run); err != nil {
		log.Printf("[cron] digest registration failed: %v", err)
	}

	c.Start()
	return c
}
