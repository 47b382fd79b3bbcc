package store

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/jmylchreest/rentwatch/internal/version"
	"github.com/jmylchreest/rentwatch/pkg/listing"
)

// RemoteConfig configures the HTTP record-service client.
type RemoteConfig struct {
	// BaseURL is the API root, e.g. http://127.0.0.1:8001.
	BaseURL string
	Timeout time.Duration
	// HTTPClient replaces the default transport, mainly for tests.
	HTTPClient *http.Client
}

// Remote is a Store that talks to a listings CRUD API over HTTP.
type Remote struct {
	client *resty.Client
}

// apiError is the error body returned by the listings API.
type apiError struct {
	Error string `json:"error"`
}

// NewRemote creates an HTTP record-service client.
func NewRemote(cfg RemoteConfig) *Remote {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	var client *resty.Client
	if cfg.HTTPClient != nil {
		client = resty.NewWithClient(cfg.HTTPClient)
	} else {
		client = resty.New()
	}
	client.
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", version.UserAgent()).
		SetHeader("Accept", "application/json")

	return &Remote{client: client}
}

func (r *Remote) FindByURL(ctx context.Context, url string) (*listing.Listing, error) {
	found, err := r.List(ctx, Filter{URL: url})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, ErrNotFound
	}
	return &found[0], nil
}

func (r *Remote) Get(ctx context.Context, id int64) (*listing.Listing, error) {
	var out listing.Listing
	resp, err := r.client.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&apiError{}).
		SetPathParam("id", strconv.FormatInt(id, 10)).
		Get("/listings/{id}")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Remote) Create(ctx context.Context, l listing.Listing) (*listing.Listing, error) {
	var out listing.Listing
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(l).
		SetResult(&out).
		SetError(&apiError{}).
		Post("/listings")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Remote) Update(ctx context.Context, id int64, l listing.Listing) (*listing.Listing, error) {
	var out listing.Listing
	l.ID = id
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(l).
		SetResult(&out).
		SetError(&apiError{}).
		SetPathParam("id", strconv.FormatInt(id, 10)).
		Put("/listings/{id}")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Remote) List(ctx context.Context, f Filter) ([]listing.Listing, error) {
	var out []listing.Listing
	req := r.client.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&apiError{})
	if f.URL != "" {
		req.SetQueryParam("url", f.URL)
	}
	resp, err := req.Get("/listings")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Remote) Close() error {
	return nil
}

func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("record service: %w", err)
	}
	if !resp.IsError() {
		return nil
	}

	msg := resp.Status()
	if e, ok := resp.Error().(*apiError); ok && e.Error != "" {
		msg = e.Error
	}
	switch resp.StatusCode() {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrDuplicateURL, msg)
	}
	return fmt.Errorf("record service: %s %s: %d %s",
		resp.Request.Method, resp.Request.URL, resp.StatusCode(), msg)
}

var _ Store = (*Remote)(nil)
