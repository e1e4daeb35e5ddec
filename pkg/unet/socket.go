// SPDX-FileCopyrightText: 2026 The fjage-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package unet

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/fjage-go/pkg/fjage"
)

// requestTimeout bounds the round trips of datagram and address resolution
// requests.
const requestTimeout = time.Second

// ErrSocketClosed is returned for operations on a closed Socket.
var ErrSocketClosed = errors.New("socket is closed")

// Socket sends and receives datagrams through a node of the network, on top of
// a fjage.Gateway.
//
// A Socket might be bound to a local protocol, limiting Receive to datagrams of
// this protocol, and connected to a remote address and protocol, which are then
// Send's defaults. A Socket is safe for concurrent use.
type Socket struct {
	gw *fjage.Gateway

	mutex          sync.Mutex
	localProtocol  int
	remoteAddress  int
	remoteProtocol int
	timeout        time.Duration
	provider       fjage.AgentID
	closed         bool

	waiting map[uint64]context.CancelFunc
	nextID  uint64
}

// Dial creates a Gateway for the Options and a Socket on top of it.
func Dial(ctx context.Context, opts fjage.Options) (*Socket, error) {
	gw, err := fjage.NewGateway(opts)
	if err != nil {
		return nil, err
	}

	s, err := NewSocket(ctx, gw)
	if err != nil {
		_ = gw.Close()
		return nil, err
	}
	return s, nil
}

// NewSocket creates a Socket on top of a Gateway, which is closed together with
// the Socket. The Gateway is subscribed to the notification topics of all
// agents providing ServiceDatagram.
func NewSocket(ctx context.Context, gw *fjage.Gateway) (*Socket, error) {
	s := &Socket{
		gw:             gw,
		localProtocol:  -1,
		remoteAddress:  -1,
		remoteProtocol: ProtocolData,
		waiting:        make(map[uint64]context.CancelFunc),
	}

	agents, err := gw.AgentsForService(ctx, ServiceDatagram)
	if err != nil {
		return nil, err
	}
	for _, agent := range agents {
		gw.Subscribe(gw.AgentTopic(agent))
	}

	log.WithFields(log.Fields{
		"gateway":   gw.URL(),
		"providers": len(agents),
	}).Debug("Created Socket")
	return s, nil
}

// Gateway of this Socket, or nil if the Socket is closed.
func (s *Socket) Gateway() *fjage.Gateway {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return nil
	}
	return s.gw
}

// Close this Socket and its Gateway. Waiting calls of Receive are cancelled.
func (s *Socket) Close() error {
	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return nil
	}
	s.closed = true
	for _, cancel := range s.waiting {
		cancel()
	}
	s.mutex.Unlock()

	return s.gw.Close()
}

// IsClosed reports if Close was called.
func (s *Socket) IsClosed() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.closed
}

// Bind the Socket to a local protocol, ProtocolData or ProtocolUser up to
// ProtocolMax. Reserved protocols are refused.
func (s *Socket) Bind(protocol int) bool {
	if !usableProtocol(protocol) {
		return false
	}

	s.mutex.Lock()
	s.localProtocol = protocol
	s.mutex.Unlock()
	return true
}

// Unbind the Socket, which then receives datagrams of all unreserved protocols.
func (s *Socket) Unbind() {
	s.mutex.Lock()
	s.localProtocol = -1
	s.mutex.Unlock()
}

// IsBound reports if the Socket is bound to a local protocol.
func (s *Socket) IsBound() bool {
	return s.LocalProtocol() >= 0
}

// LocalProtocol the Socket is bound to, or -1.
func (s *Socket) LocalProtocol() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.localProtocol
}

// Connect sets the default destination address and protocol of Send.
func (s *Socket) Connect(to, protocol int) bool {
	if to < 0 || !usableProtocol(protocol) {
		return false
	}

	s.mutex.Lock()
	s.remoteAddress, s.remoteProtocol = to, protocol
	s.mutex.Unlock()
	return true
}

// Disconnect resets the default destination.
func (s *Socket) Disconnect() {
	s.mutex.Lock()
	s.remoteAddress, s.remoteProtocol = -1, ProtocolData
	s.mutex.Unlock()
}

// IsConnected reports if a default destination is set.
func (s *Socket) IsConnected() bool {
	return s.RemoteAddress() >= 0
}

// RemoteAddress is the default destination address, or -1.
func (s *Socket) RemoteAddress() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.remoteAddress
}

// RemoteProtocol is the default protocol of Send.
func (s *Socket) RemoteProtocol() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.remoteProtocol
}

// SetTimeout of Receive. A zero timeout only checks for already received
// datagrams, a negative one waits until a datagram arrives.
func (s *Socket) SetTimeout(timeout time.Duration) {
	s.mutex.Lock()
	s.timeout = timeout
	s.mutex.Unlock()
}

// Timeout of Receive.
func (s *Socket) Timeout() time.Duration {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.timeout
}

// Send data to the connected default destination.
func (s *Socket) Send(ctx context.Context, data []byte) bool {
	s.mutex.Lock()
	to, protocol := s.remoteAddress, s.remoteProtocol
	s.mutex.Unlock()

	return s.SendTo(ctx, data, to, protocol)
}

// SendTo transmits data to a node's address using the given protocol. It
// reports if the transmitting agent agreed to the request, not the datagram's
// delivery.
func (s *Socket) SendTo(ctx context.Context, data []byte, to, protocol int) bool {
	if to < 0 {
		return false
	}
	return s.SendRequest(ctx, NewDatagramReq(data, to, protocol))
}

// SendRequest transmits a prepared DatagramReq, or a descendant like
// TxFrameReq. Without a recipient, it is sent to the first agent providing one
// of the transport, routing, link, physical or datagram services.
func (s *Socket) SendRequest(ctx context.Context, req *fjage.Message) bool {
	gw := s.Gateway()
	if gw == nil {
		return false
	}

	if !usableProtocol(Protocol(req)) {
		log.WithField("protocol", Protocol(req)).Debug("Refusing to send on a reserved protocol")
		return false
	}

	if req.Recipient.IsZero() {
		provider, err := s.resolveProvider(ctx, gw)
		if err != nil {
			log.WithError(err).Warn("Looking up a datagram provider errored")
			return false
		} else if provider.IsZero() {
			log.Debug("No agent provides datagrams")
			return false
		}
		req.Recipient = provider
	}

	rsp := gw.Request(ctx, req, requestTimeout)
	return rsp != nil && rsp.Perf == fjage.Agree
}

// resolveProvider finds the agent to transmit datagrams, which is cached for
// later calls.
func (s *Socket) resolveProvider(
	ctx context.Context, gw *fjage.Gateway,
) (fjage.AgentID, error) {
	s.mutex.Lock()
	provider := s.provider
	s.mutex.Unlock()

	if !provider.IsZero() {
		return provider, nil
	}

	for _, service := range providerServices {
		aid, err := gw.AgentForService(ctx, service)
		if err != nil {
			return fjage.AgentID{}, err
		}
		if aid.IsZero() {
			continue
		}

		log.WithFields(log.Fields{
			"service": service,
			"agent":   aid.Name(),
		}).Debug("Found datagram provider")

		s.mutex.Lock()
		s.provider = aid
		s.mutex.Unlock()
		return aid, nil
	}
	return fjage.AgentID{}, nil
}

// datagramFilter matches datagrams of unreserved protocols, limited to
// localProtocol unless it is negative.
func datagramFilter(localProtocol int) func(*fjage.Message) bool {
	return func(msg *fjage.Message) bool {
		if msg.Class == nil || !msg.Class.IsA(DatagramNtf) {
			return false
		}

		p := Protocol(msg)
		if p != ProtocolData && p < ProtocolUser {
			return false
		}
		return localProtocol < 0 || localProtocol == p
	}
}

// Receive the next datagram, a DatagramNtf or RxFrameNtf, within the Socket's
// timeout. The result is nil if none arrived, if ctx is done or if Cancel was
// called.
func (s *Socket) Receive(ctx context.Context) *fjage.Message {
	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	id := s.nextID
	s.nextID++
	s.waiting[id] = cancel

	gw, timeout, filter := s.gw, s.timeout, datagramFilter(s.localProtocol)
	s.mutex.Unlock()

	defer func() {
		s.mutex.Lock()
		delete(s.waiting, id)
		s.mutex.Unlock()
	}()

	return gw.Receive(ctx, filter, timeout)
}

// Cancel all calls of Receive which are currently waiting.
func (s *Socket) Cancel() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, cancel := range s.waiting {
		cancel()
	}
}

// LocalAddress of the node, as reported by the agent providing ServiceNodeInfo,
// or -1.
func (s *Socket) LocalAddress(ctx context.Context) int {
	gw := s.Gateway()
	if gw == nil {
		return -1
	}

	nodeInfo, err := gw.AgentForService(ctx, ServiceNodeInfo)
	if err != nil || nodeInfo.IsZero() {
		return -1
	}

	v, err := nodeInfo.Get(ctx, FieldAddress)
	if err != nil {
		return -1
	}
	addr, ok := v.(int64)
	if !ok {
		return -1
	}
	return int(addr)
}

// Host resolves a node's name to its address.
func (s *Socket) Host(ctx context.Context, name string) (int, bool) {
	gw := s.Gateway()
	if gw == nil {
		return -1, false
	}

	arp, err := gw.AgentForService(ctx, ServiceAddressResolution)
	if err != nil || arp.IsZero() {
		return -1, false
	}

	req := AddressResolutionReq.New(map[string]any{FieldName: name})
	req.Recipient = arp

	rsp := gw.Request(ctx, req, requestTimeout)
	if rsp == nil {
		return -1, false
	}
	addr, ok := rsp.Int(FieldAddress)
	if !ok {
		return -1, false
	}
	return int(addr), true
}

// Agent returns an AgentID for the named agent.
func (s *Socket) Agent(name string) (fjage.AgentID, error) {
	gw := s.Gateway()
	if gw == nil {
		return fjage.AgentID{}, ErrSocketClosed
	}
	return gw.Agent(name), nil
}

// AgentForService finds an agent providing a service.
func (s *Socket) AgentForService(
	ctx context.Context, service string,
) (fjage.AgentID, error) {
	gw := s.Gateway()
	if gw == nil {
		return fjage.AgentID{}, ErrSocketClosed
	}
	return gw.AgentForService(ctx, service)
}

// AgentsForService finds all agents providing a service.
func (s *Socket) AgentsForService(
	ctx context.Context, service string,
) ([]fjage.AgentID, error) {
	gw := s.Gateway()
	if gw == nil {
		return nil, ErrSocketClosed
	}
	return gw.AgentsForService(ctx, service)
}
