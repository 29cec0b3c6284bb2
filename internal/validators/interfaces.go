// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package validators enforces domain rules on values before they are handed
// to the data layer.
//
// A Validator checks a whole value or, when field names are passed, only the
// named fields. Unknown types and unknown field names are reported as errors.
package validators

import "context"

// Validator validates the provided input and optionally restricts validation
// to specific named fields.
type Validator interface {
	Validate(context.Context, any, ...string) error
}
