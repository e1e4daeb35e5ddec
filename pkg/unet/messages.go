// SPDX-FileCopyrightText: 2026 The fjage-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package unet

import "github.com/dtn7/fjage-go/pkg/fjage"

// Payload fields of datagram messages.
const (
	FieldTo       = "to"
	FieldFrom     = "from"
	FieldProtocol = "protocol"
	FieldData     = "data"
	FieldName     = "name"
	FieldAddress  = "address"
)

var (
	// DatagramReq requests a datagram to be transmitted.
	DatagramReq = fjage.DefineClass("org.arl.unet.DatagramReq", nil,
		FieldTo, FieldProtocol, FieldData,
		"reliability", "ttl", "route", "mailbox", "shortcircuit")

	// DatagramNtf notifies about a received datagram.
	DatagramNtf = fjage.DefineClass("org.arl.unet.DatagramNtf", nil,
		FieldFrom, FieldTo, FieldProtocol, FieldData, "ttl", "cost")

	// DatagramDeliveryNtf confirms the delivery of a reliable datagram.
	DatagramDeliveryNtf = fjage.DefineClass("org.arl.unet.DatagramDeliveryNtf", nil,
		FieldTo)

	// DatagramFailureNtf reports a failed delivery of a reliable datagram.
	DatagramFailureNtf = fjage.DefineClass("org.arl.unet.DatagramFailureNtf", nil,
		FieldTo)

	// RxFrameNtf notifies about a frame received by the physical layer.
	RxFrameNtf = fjage.DefineClass("org.arl.unet.phy.RxFrameNtf", DatagramNtf,
		"type", "rxTime", "rxStartTime", "location", "rssi", "cfo", "errors")

	// TxFrameReq requests a frame to be transmitted by the physical layer.
	TxFrameReq = fjage.DefineClass("org.arl.unet.phy.TxFrameReq", DatagramReq,
		"type", "txTime")

	// AddressResolutionReq resolves a node's name to its address.
	AddressResolutionReq = fjage.DefineClass("org.arl.unet.addr.AddressResolutionReq", nil,
		FieldName)

	// AddressResolutionRsp answers an AddressResolutionReq.
	AddressResolutionRsp = fjage.DefineClass("org.arl.unet.addr.AddressResolutionRsp", nil,
		FieldName, FieldAddress)

	// ParamChangeNtf is published on TopicParamChange.
	ParamChangeNtf = fjage.DefineClass("org.arl.unet.ParamChangeNtf", nil, "paramValues")
)

// NewDatagramReq creates a DatagramReq carrying data to a node's address.
func NewDatagramReq(data []byte, to, protocol int) *fjage.Message {
	return DatagramReq.New(map[string]any{
		FieldData:     data,
		FieldTo:       to,
		FieldProtocol: protocol,
	})
}

// Protocol of a datagram message, ProtocolData if unset.
func Protocol(msg *fjage.Message) int {
	p, ok := msg.Int(FieldProtocol)
	if !ok {
		return ProtocolData
	}
	return int(p)
}
