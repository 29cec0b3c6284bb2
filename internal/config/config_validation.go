// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// validate checks source-independent invariants of the merged
// [StructuredConfig]. Required fields are checked later by
// [ClientConfig.validate] because they may legitimately be absent from
// single sources.
func (cfg *StructuredConfig) validate() error {
	if cfg.Workers.SyncInterval < 0 || cfg.Workers.ProbeInterval < 0 || cfg.Adapter.RequestTimeout < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalidWorkerConfigs)
	}

	return nil
}

func (cfg *ClientConfig) validate() error {
	if cfg.Storage.DB.DSN == "" {
		return ErrInvalidStorageConfigs
	}

	if cfg.Adapter.HTTPAddress == "" || cfg.Adapter.RequestTimeout <= 0 {
		return ErrInvalidAdapterConfigs
	}
	if u, err := url.Parse(cfg.Adapter.HTTPAddress); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: address must be an absolute URL", ErrInvalidAdapterConfigs)
	}

	if cfg.Workers.SyncInterval <= 0 || cfg.Workers.ProbeInterval <= 0 {
		return ErrInvalidWorkerConfigs
	}

	if cfg.App.HashKey == "" || cfg.App.Namespace == "" || strings.Contains(cfg.App.Namespace, ":") {
		return ErrInvalidAppConfigs
	}

	return nil
}
