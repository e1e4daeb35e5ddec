// SPDX-FileCopyrightText: 2026 The fjage-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build !linux
// +build !linux

package fjage

import (
	"context"
	"net"
	"time"
)

// dial a new TCP connection with a configured timeout and keepalive.
func dial(ctx context.Context, address string) (net.Conn, error) {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 10 * time.Second,
	}
	return dialer.DialContext(ctx, "tcp", address)
}
