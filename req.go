// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package routeros

import "time"

// Req represents a request modifier.
//
// This struct is used to apply request-specific options via functional
// modifiers. The request content itself (the word sequence) is passed
// directly to Run.
//
// Example:
//
//	res, err := client.Run(ctx, q,
//	    routeros.Timeout(30*time.Second))
type Req struct {
	// Timeout is the request-specific timeout.
	// Overrides the client's OperationTimeout if set.
	Timeout time.Duration
}
