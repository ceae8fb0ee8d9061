package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/Network-Direction/chatbot/internal/types"
)

// Load resolves configuration from the environment, with a .env file
// filling in anything the environment leaves unset, then validates the
// result. Startup fails on the first invalid or missing value.
func Load() (*Config, error) {
	// Silently a no-op when no .env file exists; real environment
	// variables always win over file values.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, types.NewAppError(types.ErrCodeConfigInvalid, "processing environment", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	v := validator.New()
	err := v.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		first := verrs[0]
		return types.NewAppError(types.ErrCodeConfigInvalid,
			fmt.Sprintf("config field %s failed %q validation", first.Namespace(), first.Tag()), err)
	}
	return types.NewAppError(types.ErrCodeConfigInvalid, "validating configuration", err)
}
