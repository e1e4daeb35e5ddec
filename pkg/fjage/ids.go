// SPDX-FileCopyrightText: 2026 The fjage-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package fjage

import (
	"strings"

	"github.com/google/uuid"
)

// newID creates a time-ordered identifier, a UUIDv7 string. Its first 48 bits
// are the unix time in milliseconds, so ids created later sort after earlier
// ones.
func newID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	// The random source failed, fall back to a v4 id to keep the id unique.
	return uuid.NewString()
}

// newGatewayName creates the random name of a Gateway's own agent, e.g.
// "gateway-2f0c9a1b44d07e3c".
func newGatewayName() string {
	return "gateway-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}
