package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validator validates a loaded Config against the `validate` struct
// tags declared on each option group in config.go, reporting the first
// failure with enough context to fix it (spec §7 BadRequest-shaped
// config errors surface this way at process startup).
type Validator struct {
	cfg *Config
	v   *validator.Validate
}

// NewValidator creates a validator for the given configuration.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg, v: validator.New(validator.WithRequiredStructEnabled())}
}

// ValidateAll validates every option group, fail-fast on the first error.
func (vv *Validator) ValidateAll() error {
	groups := []struct {
		name string
		val  any
	}{
		{"llm", vv.cfg.LLM},
		{"storage", vv.cfg.Storage},
		{"redis", vv.cfg.Redis},
		{"sandbox", vv.cfg.Sandbox},
		{"search", vv.cfg.Search},
		{"auth", vv.cfg.Auth},
		{"jwt", vv.cfg.JWT},
		{"mcp", vv.cfg.MCP},
	}

	for _, g := range groups {
		if err := vv.v.Struct(g.val); err != nil {
			if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
				fe := verrs[0]
				return NewValidationError(g.name, fe.Field(), fmt.Errorf("%s", fe.Tag()))
			}
			return NewValidationError(g.name, "", err)
		}
	}

	if !vv.cfg.Search.Provider.IsValid() {
		return NewValidationError("search", "Provider", fmt.Errorf("%w: %s", ErrInvalidValue, vv.cfg.Search.Provider))
	}
	if !vv.cfg.Auth.Provider.IsValid() {
		return NewValidationError("auth", "Provider", fmt.Errorf("%w: %s", ErrInvalidValue, vv.cfg.Auth.Provider))
	}
	if vv.cfg.Auth.Provider == AuthProviderLocal {
		if vv.cfg.Auth.LocalAuthUsername == "" || vv.cfg.Auth.LocalAuthPassword == "" {
			return NewValidationError("auth", "LocalAuth", fmt.Errorf("%w: local auth requires username and password", ErrMissingRequiredField))
		}
	}
	if vv.cfg.Search.Provider == SearchProviderGoogle {
		if vv.cfg.Search.GoogleSearchAPIKey == "" || vv.cfg.Search.GoogleSearchEngine == "" {
			return NewValidationError("search", "GoogleSearch", fmt.Errorf("%w: google search requires an api key and engine id", ErrMissingRequiredField))
		}
	}

	return nil
}
