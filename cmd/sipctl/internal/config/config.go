package config

import (
	"context"

	"github.com/coresistem/sip-api-sub000/cmd/sipctl/internal/client"
)

type contextKey string

const configKey contextKey = "sipctl-config"

// GlobalConfig holds shared configuration for all sipctl commands.
// It is injected into the cobra command context by the root command's
// PersistentPreRun hook and consumed by all subcommands.
type GlobalConfig struct {
	ServerURL      string
	NonInteractive bool
	Provider       *client.Provider
}

// InjectConfig adds config to the cobra command context.
func InjectConfig(ctx context.Context, cfg *GlobalConfig) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from the cobra command context.
// Returns (nil, false) if config is not present.
func FromContext(ctx context.Context) (*GlobalConfig, bool) {
	cfg, ok := ctx.Value(configKey).(*GlobalConfig)
	return cfg, ok
}

// MustFromContext retrieves config from context or panics. Only for
// RunE functions that run under the root command's injection hook.
func MustFromContext(ctx context.Context) *GlobalConfig {
	cfg, ok := FromContext(ctx)
	if !ok {
		panic("sipctl: config not found in context - this is a bug in sipctl")
	}
	return cfg
}
