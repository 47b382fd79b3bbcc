// Package store persists listings keyed by URL.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmylchreest/rentwatch/pkg/listing"
)

// Error types returned by every Store. Check with errors.Is.
var (
	// ErrNotFound indicates no listing matches the lookup.
	ErrNotFound = errors.New("listing not found")
	// ErrDuplicateURL indicates a listing with the same URL already exists.
	ErrDuplicateURL = errors.New("listing url already exists")
)

// Filter narrows List results. Zero value lists everything.
type Filter struct {
	URL string
}

// Store is the storage collaborator used by the reconciler and the API.
type Store interface {
	// FindByURL returns the listing stored for url, or ErrNotFound.
	FindByURL(ctx context.Context, url string) (*listing.Listing, error)

	// Get returns the listing with id, or ErrNotFound.
	Get(ctx context.Context, id int64) (*listing.Listing, error)

	// Create stores l under a new ID. A second listing for the same URL
	// fails with ErrDuplicateURL.
	Create(ctx context.Context, l listing.Listing) (*listing.Listing, error)

	// Update replaces every field of listing id with l.
	Update(ctx context.Context, id int64, l listing.Listing) (*listing.Listing, error)

	// List returns listings matching f ordered by ID.
	List(ctx context.Context, f Filter) ([]listing.Listing, error)

	// Close releases connections.
	Close() error
}

// Config selects and configures a Store driver.
type Config struct {
	Driver   string // memory, postgres, remote
	DSN      string // postgres connection string
	APIURL   string // remote listings endpoint
	MaxConns int
}

// Open creates the store named by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemory(), nil
	case "postgres":
		return OpenPostgres(ctx, cfg.DSN, cfg.MaxConns)
	case "remote":
		return NewRemote(RemoteConfig{BaseURL: cfg.APIURL}), nil
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.Driver)
	}
}
