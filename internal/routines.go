package internal

import (
	"context"
	"os"
	"strconv"

	"github.com/robfig/cron/v3"

	"github.com/anekolabs/whatsapp-admin-api/pkg/log"
	"github.com/anekolabs/whatsapp-admin-api/pkg/whatsapp"
)

// Routines registers the background jobs: the periodic health sweep across
// every registered session, and the max-age recycle of long-lived clients.
func Routines(cron *cron.Cron, manager *whatsapp.Manager) {
	log.Print(nil).Info("Running Routine Tasks")

	if isHealthSweepEnabled() {
		_, err := cron.AddFunc("0 */5 * * * *", func() {
			if manager.Registry().Len() == 0 {
				return
			}
			manager.Health().Sweep(context.Background())
		})
		if err != nil {
			log.Print(nil).WithField("error", err.Error()).Error("Failed to add health sweep cron job")
		}
	} else {
		log.Print(nil).Info("Health sweep cron disabled; relying on on-demand checks")
	}

	if isRecycleEnabled() {
		_, err := cron.AddFunc("30 */10 * * * *", func() {
			manager.RecycleStale(context.Background())
		})
		if err != nil {
			log.Print(nil).WithField("error", err.Error()).Error("Failed to add session recycle cron job")
		}
	}

	cron.Start()
}

func isHealthSweepEnabled() bool {
	envValue, ok := os.LookupEnv("WHATSAPP_ENABLE_HEALTH_SWEEP_CRON")
	if !ok {
		// Default to true - the sweep is what catches silently dead sessions
		return true
	}
	enabled, err := strconv.ParseBool(envValue)
	if err != nil {
		log.Print(nil).Warn("Invalid WHATSAPP_ENABLE_HEALTH_SWEEP_CRON value; defaulting to enabled")
		return true
	}
	return enabled
}

func isRecycleEnabled() bool {
	envValue, ok := os.LookupEnv("WHATSAPP_ENABLE_SESSION_RECYCLE_CRON")
	if !ok {
		return true
	}
	enabled, err := strconv.ParseBool(envValue)
	if err != nil {
		log.Print(nil).Warn("Invalid WHATSAPP_ENABLE_SESSION_RECYCLE_CRON value; defaulting to enabled")
		return true
	}
	return enabled
}
