// SPDX-FileCopyrightText: 2026 The fjage-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package unet offers a datagram Socket for underwater network nodes, whose
// agents are reached through a fjage.Gateway.
package unet
