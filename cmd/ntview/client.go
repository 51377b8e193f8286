package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ethpandaops/ntview/pkg/api"
	"github.com/ethpandaops/ntview/pkg/config"
	"github.com/ethpandaops/ntview/pkg/store"
	"github.com/ethpandaops/ntview/pkg/transport"
)

// loadConfig reads the configured files and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFiles...)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if baseURL != "" {
		cfg.Client.BaseURL = baseURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// session is the client side of one CLI invocation.
type session struct {
	cfg    *config.Config
	client *api.Client
	stores *store.Stores
}

func newSession() (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	client := api.New(
		transport.NewHTTPTransport(log, &cfg.Client),
		api.WithBaseURL(cfg.Client.BaseURL),
	)

	var opts []store.Option
	if cfg.Client.DiscardStaleResponses {
		opts = append(opts, store.WithStaleResponseDiscard())
	}

	return &session{
		cfg:    cfg,
		client: client,
		stores: store.New(log, client, opts...),
	}, nil
}

// result unwraps a store read into a value or its recorded failure.
func result[V any](r store.Read[V]) (V, error) {
	if r.OK {
		return r.Value, nil
	}

	if r.Failure != nil {
		return r.Value, r.Failure
	}

	return r.Value, errors.New("response superseded by a newer request")
}

func parseID(s, what string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, s)
	}

	return id, nil
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// parseTime accepts an absolute timestamp or a duration relative to now,
// e.g. "2025-02-15T10:00:00Z" or "-90m".
func parseTime(s string, now time.Time) (time.Time, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(d), nil
	}

	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid time %q", s)
}
