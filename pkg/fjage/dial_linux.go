// SPDX-FileCopyrightText: 2026 The fjage-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build linux
// +build linux

package fjage

import (
	"context"
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Linux-specific socket options are configured for the TCP connection to detect
// a lost master container early. The values are based on the tcp(7) manual
// page.

// dialControl is the net.Dialer's Control function to set the socket options.
func dialControl(_, _ string, rawConn syscall.RawConn) (err error) {
	const (
		// dialTcpKeepCnt sets TCP_KEEPCNT, the maximum number of keepalive
		// probes before dropping the connection.
		dialTcpKeepCnt int = 3

		// dialTcpKeepIdle sets TCP_KEEPIDLE, the idle time in seconds before
		// sending keepalive probes.
		dialTcpKeepIdle int = 10

		// dialTcpKeepIntvl sets TCP_KEEPINTVL, the time in seconds between
		// keepalive probes.
		dialTcpKeepIntvl int = 5

		// dialTcpUserTimeout sets TCP_USER_TIMEOUT, the maximum time in
		// milliseconds transmitted data may remain unacknowledged.
		dialTcpUserTimeout int = 10000
	)

	opts := map[int]int{
		unix.TCP_KEEPCNT:      dialTcpKeepCnt,
		unix.TCP_KEEPIDLE:     dialTcpKeepIdle,
		unix.TCP_KEEPINTVL:    dialTcpKeepIntvl,
		unix.TCP_USER_TIMEOUT: dialTcpUserTimeout,
	}

	ctrlErr := rawConn.Control(func(fd uintptr) {
		if err = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); err != nil {
			return
		}
		for opt, value := range opts {
			if err = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, opt, value); err != nil {
				return
			}
		}
	})
	if ctrlErr != nil {
		err = ctrlErr
	}
	return
}

// dial a new TCP connection with socket options set.
func dial(ctx context.Context, address string) (net.Conn, error) {
	dialer := &net.Dialer{
		Timeout: 5 * time.Second,
		Control: dialControl,
	}
	return dialer.DialContext(ctx, "tcp", address)
}
