// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package client implements the headless client runtime.
//
// It wires local storage, the remote authority adapter, the encrypted data
// layer, background workers and the local status server into a single
// process lifecycle.
package client
