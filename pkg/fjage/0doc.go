// SPDX-FileCopyrightText: 2026 The fjage-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package fjage is a client for fjåge master containers, speaking the
// newline-delimited JSON protocol over TCP or WebSocket.
//
// The central type is the Gateway. It owns a Connector, correlates requests
// with their responses, queues unsolicited messages addressed to it or to one
// of its subscribed topics, and reconnects when the transport breaks. Agents
// and topics of the remote container are addressed by AgentIDs, which also
// offer parameter access through ParameterReq/ParameterRsp round trips. A
// CachingAgentID keeps those parameters in a local, age-bounded cache.
//
// Messages are typed by their fully-qualified wire class, e.g.
// "org.arl.fjage.param.ParameterReq". The classes are kept in a registry, see
// DefineClass and ClassFor.
package fjage
