// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every environment variable name, so the
// `env:"APP_TOKEN"` path is read from CARE_APP_TOKEN.
const EnvPrefix = "CARE_"

// parseEnv populates cfg from prefixed environment variables. Field names come
// from the `env` and `envPrefix` tags on [StructuredConfig].
func parseEnv(cfg any) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("error getting env configs: %w", err)
	}

	return nil
}
