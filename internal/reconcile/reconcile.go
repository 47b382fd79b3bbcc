// Package reconcile upserts scrape results into the store without letting
// one strategy overwrite telemetry owned by the other.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmylchreest/rentwatch/internal/logger"
	"github.com/jmylchreest/rentwatch/internal/store"
	"github.com/jmylchreest/rentwatch/pkg/listing"
)

// Reconciler writes scrape results to a Store keyed by URL.
type Reconciler struct {
	store store.Store
	log   *slog.Logger
}

// New creates a reconciler over s.
func New(s store.Store) *Reconciler {
	return &Reconciler{store: s, log: logger.Component("reconcile")}
}

// Reconcile stores s. An existing record for the same URL is updated with
// only the fields s carries; otherwise a new record is created. Storage
// errors are returned to the caller.
//
// Two concurrent calls for a new URL may both try to create; the loser sees
// store.ErrDuplicateURL and retries once as an update.
func (r *Reconciler) Reconcile(ctx context.Context, s *listing.Scraped) (*listing.Listing, error) {
	if s == nil || s.URL == "" {
		return nil, errors.New("reconcile: scrape result has no url")
	}

	existing, err := r.store.FindByURL(ctx, s.URL)
	switch {
	case errors.Is(err, store.ErrNotFound):
		created, err := r.store.Create(ctx, s.Listing())
		if errors.Is(err, store.ErrDuplicateURL) {
			return r.retryAsUpdate(ctx, s)
		}
		if err != nil {
			return nil, fmt.Errorf("reconcile %s: create: %w", s.URL, err)
		}
		r.log.Debug("listing created", "url", s.URL, "id", created.ID, "strategy", s.Strategy)
		return created, nil
	case err != nil:
		return nil, fmt.Errorf("reconcile %s: lookup: %w", s.URL, err)
	}

	return r.update(ctx, existing, s)
}

func (r *Reconciler) update(ctx context.Context, existing *listing.Listing, s *listing.Scraped) (*listing.Listing, error) {
	merged := listing.Merge(*existing, s)
	updated, err := r.store.Update(ctx, existing.ID, merged)
	if err != nil {
		return nil, fmt.Errorf("reconcile %s: update: %w", s.URL, err)
	}
	r.log.Debug("listing updated", "url", s.URL, "id", updated.ID, "strategy", s.Strategy)
	return updated, nil
}

func (r *Reconciler) retryAsUpdate(ctx context.Context, s *listing.Scraped) (*listing.Listing, error) {
	existing, err := r.store.FindByURL(ctx, s.URL)
	if err != nil {
		return nil, fmt.Errorf("reconcile %s: lookup after conflict: %w", s.URL, err)
	}
	return r.update(ctx, existing, s)
}
