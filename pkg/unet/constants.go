// SPDX-FileCopyrightText: 2026 The fjage-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package unet

// Protocol numbers of datagrams. The numbers 1 to 31 are reserved for the
// stack's own agents; applications use ProtocolData or ProtocolUser up to
// ProtocolMax.
const (
	ProtocolData             = 0
	ProtocolRanging          = 1
	ProtocolLink             = 2
	ProtocolRemote           = 3
	ProtocolMAC              = 4
	ProtocolRouting          = 5
	ProtocolTransport        = 6
	ProtocolRouteMaintenance = 7
	ProtocolLink2            = 8
	ProtocolUser             = 32
	ProtocolMax              = 63
)

// AddressBroadcast addresses all nodes.
const AddressBroadcast = 0

// usableProtocol reports if applications may send or bind to a protocol number.
func usableProtocol(protocol int) bool {
	return protocol == ProtocolData || (protocol >= ProtocolUser && protocol <= ProtocolMax)
}

// Services to look up agents by.
const (
	ServiceShell             = "org.arl.fjage.shell.Services.SHELL"
	ServiceNodeInfo          = "org.arl.unet.Services.NODE_INFO"
	ServiceAddressResolution = "org.arl.unet.Services.ADDRESS_RESOLUTION"
	ServiceDatagram          = "org.arl.unet.Services.DATAGRAM"
	ServicePhysical          = "org.arl.unet.Services.PHYSICAL"
	ServiceRanging           = "org.arl.unet.Services.RANGING"
	ServiceBaseband          = "org.arl.unet.Services.BASEBAND"
	ServiceLink              = "org.arl.unet.Services.LINK"
	ServiceMAC               = "org.arl.unet.Services.MAC"
	ServiceRouting           = "org.arl.unet.Services.ROUTING"
	ServiceRouteMaintenance  = "org.arl.unet.Services.ROUTE_MAINTENANCE"
	ServiceTransport         = "org.arl.unet.Services.TRANSPORT"
	ServiceRemote            = "org.arl.unet.Services.REMOTE"
	ServiceStateManager      = "org.arl.unet.Services.STATE_MANAGER"
	ServiceDeviceInfo        = "org.arl.unet.Services.DEVICE_INFO"
	ServiceDOA               = "org.arl.unet.Services.DOA"
	ServiceScheduler         = "org.arl.unet.Services.SCHEDULER"
)

// Topics for stack-wide notifications.
const (
	TopicParamChange = "org.arl.unet.Topics.PARAMCHANGE"
	TopicLifecycle   = "org.arl.unet.Topics.LIFECYCLE"
)

// providerServices are tried in order to find the agent transmitting a Socket's
// datagrams.
var providerServices = []string{
	ServiceTransport,
	ServiceRouting,
	ServiceLink,
	ServicePhysical,
	ServiceDatagram,
}
