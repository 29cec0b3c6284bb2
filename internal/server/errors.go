// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package server

import "errors"

var (
	errNoAddress = errors.New("status server address is empty")
	errNoHandler = errors.New("status server handler is nil")
)
