package iap

import (
	"context"
	"errors"

	"storeBack/internal/models"
)

// Bootstrap constructs the store, starts the reconciliation loop and kicks
// off the first catalog load. A failed first load is not fatal: the retry
// timer re-attempts it. Unusable configuration (no identifiers, payments
// unavailable) is.
func Bootstrap(ctx context.Context, deps Deps) (*Store, error) {
	s, err := New(deps)
	if err != nil {
		return nil, err
	}

	go s.Run(ctx)

	if err := s.Configure(ctx, deps.Config.ProductIDs, deps.Config.SharedSecret); err != nil {
		if errors.Is(err, models.ErrPaymentsUnavailable) || errors.Is(err, models.ErrNoProductIdentifiers) {
			return nil, err
		}
		deps.Logger.Errorf("iap: initial catalog load: %v", err)
	}
	return s, nil
}
