// SPDX-FileCopyrightText: 2026 The fjage-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package fjage

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
)

// NewTCPConnector connects to a master container's TCP interface at the
// Options' Hostname and Port.
func NewTCPConnector(opts Options) Connector {
	opts.Scheme = SchemeTCP
	address := net.JoinHostPort(opts.Hostname, strconv.Itoa(opts.Port))

	return newStreamConnector(opts.URL(), func(ctx context.Context) (lineConn, error) {
		conn, err := dial(ctx, address)
		if err != nil {
			return nil, err
		}
		return &tcpLineConn{conn: conn, reader: bufio.NewReader(conn)}, nil
	}, opts)
}

// tcpLineConn exchanges newline-terminated lines over a TCP connection.
type tcpLineConn struct {
	conn   net.Conn
	reader *bufio.Reader

	// closeOnce prevents a double close of conn, e.g., by Close and a failing
	// reader.
	closeOnce sync.Once
	closeErr  error
}

func (tlc *tcpLineConn) WriteLine(s string) error {
	_, err := tlc.conn.Write([]byte(s + "\n"))
	return err
}

func (tlc *tcpLineConn) ReadLine() (string, error) {
	line, err := tlc.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (tlc *tcpLineConn) Close() error {
	tlc.closeOnce.Do(func() {
		tlc.closeErr = tlc.conn.Close()
	})
	return tlc.closeErr
}
