package bot

import (
	"context"
	"fmt"
	"log"

	"github.com/Chromeninja/test-squadron-discord-bot-sub002/scheduler"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

var c *cron.Cron

// startScheduler starts the auto-recheck cron job.
func startScheduler(ctx context.Context, recheck *scheduler.Recheck) {
	if !viper.GetBool("auto_recheck.enabled") {
		log.Println("Auto-recheck is disabled in the configuration.")
		return
	}

	log.Println("Initializing scheduler...")
	c = cron.New()

	runEvery := viper.GetInt("auto_recheck.batch.run_every_minutes")
	if runEvery <= 0 {
		runEvery = 60
	}
	spec := fmt.Sprintf("@every %dm", runEvery)

	_, err := c.AddFunc(spec, func() {
		log.Println("Running auto-recheck cycle...")
		recheck.RunCycle(ctx)
	})
	if err != nil {
		log.Fatalf("Could not set up cron job: %v", err)
	}
	c.Start()
	log.Printf("Auto-recheck scheduled to run every %d minute(s).", runEvery)
}

// stopScheduler stops the cron jobs.
func stopScheduler() {
	if c != nil {
		c.Stop()
		log.Println("Scheduler stopped.")
	}
}
