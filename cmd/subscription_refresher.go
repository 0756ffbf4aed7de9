package main

import (
	"context"
	"time"
)

const subscriptionRefreshTimeout = 10 * time.Minute

// startSubscriptionRefresher revalidates the stored receipt on a fixed
// interval so lapsed subscriptions lose their entitlements without waiting
// for a store notification.
func (app *application) startSubscriptionRefresher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		runOnce := func() {
			runCtx, cancel := context.WithTimeout(ctx, subscriptionRefreshTimeout)
			defer cancel()

			if err := app.store.RefreshSubscriptions(runCtx); err != nil {
				app.errorLog.Printf("subscription refresher: %v", err)
				return
			}
			expired, err := app.store.ExpiredProducts(runCtx, time.Now())
			if err != nil {
				app.errorLog.Printf("subscription refresher: list expired: %v", err)
				return
			}
			for _, productID := range expired {
				app.infoLog.Printf("subscription refresher: subscription lapsed for %s", productID)
			}
		}

		runOnce()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runOnce()
			}
		}
	}()
}
