// SPDX-FileCopyrightText: 2026 The fjage-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package fjage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// NewWSConnector connects to a master container's WebSocket interface at the
// Options' URL.
func NewWSConnector(opts Options) Connector {
	if opts.Scheme != SchemeWSS {
		opts.Scheme = SchemeWS
	}
	url := opts.URL()

	dialer := &websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	return newStreamConnector(url, func(ctx context.Context) (lineConn, error) {
		conn, resp, err := dialer.DialContext(ctx, url, nil)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			return nil, err
		}
		return &wsLineConn{conn: conn}, nil
	}, opts)
}

// wsLineConn exchanges lines over a WebSocket. An inbound frame might carry
// multiple lines; the end of a frame also terminates a line.
type wsLineConn struct {
	conn    *websocket.Conn
	pending []string
}

func (wlc *wsLineConn) WriteLine(s string) error {
	return wlc.conn.WriteMessage(websocket.TextMessage, []byte(s+"\n"))
}

func (wlc *wsLineConn) ReadLine() (string, error) {
	for len(wlc.pending) == 0 {
		mt, data, err := wlc.conn.ReadMessage()
		if err != nil {
			return "", err
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			return "", fmt.Errorf("unexpected WebSocket message type %d", mt)
		}

		for _, line := range strings.Split(string(data), "\n") {
			if line = strings.TrimRight(line, "\r"); line != "" {
				wlc.pending = append(wlc.pending, line)
			}
		}
	}

	line := wlc.pending[0]
	wlc.pending = wlc.pending[1:]
	return line, nil
}

func (wlc *wsLineConn) Close() error {
	return wlc.conn.Close()
}
