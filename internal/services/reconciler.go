package services

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// ReconcileOff disables the background repair pass.
const ReconcileOff = "off"

const reconcilePassTimeout = 4 * time.Minute

// StartReconciler runs Reconcile over every group on the cron schedule until
// ctx ends. A pass still running when the next one is due is skipped.
func StartReconciler(ctx context.Context, sync *Synchronizer, schedule string) error {
	if schedule == "" || schedule == ReconcileOff {
		log.Println("Reconciler disabled")
		return nil
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := c.AddFunc(schedule, func() {
		passCtx, cancel := context.WithTimeout(ctx, reconcilePassTimeout)
		defer cancel()
		rep, err := sync.Reconcile(passCtx, "")
		if err != nil {
			log.Printf("Reconciler pass failed: %v", err)
			return
		}
		if !rep.Clean() {
			log.Printf("Reconciler repaired drift: %s", rep)
		}
	})
	if err != nil {
		return err
	}
	c.Start()
	log.Printf("Reconciler started schedule=%q", schedule)
	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		log.Println("Reconciler stopped")
	}()
	return nil
}
