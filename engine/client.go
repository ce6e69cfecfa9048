// This file is part of meshnet, a peer-to-peer agent runtime core.
//
// meshnet is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License,
// or (at your option) any later version.
//
// meshnet is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.
//
// SPDX-License-Identifier: AGPL3.0-or-later

package engine

import "meshnet/transport"

// ChainID identifies one space gateway by the (space, agent) pair the
// original engine keys its space_gateway_map by. The zero ChainID
// ("", "") addresses the network layer rather than any space.
type ChainID struct {
	SpaceAddress string
	AgentAddress string
}

// ClientMessage is the closed set of requests the engine's inbox
// accepts (spec §6 "client protocol boundary", supplemented here with
// a concrete minimal surface since the full client protocol is out of
// scope but the engine's dispatch step needs something to dispatch).
type ClientMessage interface {
	isClientMessage()
}

// BindRequest asks the network gateway to open a local listening
// address.
type BindRequest struct {
	URI transport.URI
}

func (BindRequest) isClientMessage() {}

// ConnectRequest asks the network gateway to open an outgoing
// connection to uri, typically a resolved bootstrap node.
type ConnectRequest struct {
	URI transport.URI
}

func (ConnectRequest) isClientMessage() {}

// JoinSpaceRequest asks the engine to create (if not already present)
// a space gateway for Chain, wiring it on top of the network gateway.
type JoinSpaceRequest struct {
	Chain ChainID
}

func (JoinSpaceRequest) isClientMessage() {}

// LeaveSpaceRequest asks the engine to tear down the space gateway for
// Chain, if any.
type LeaveSpaceRequest struct {
	Chain ChainID
}

func (LeaveSpaceRequest) isClientMessage() {}

// SendByPeerRequest asks the engine to deliver Payload to PeerAddress
// on behalf of Chain. A zero Chain addresses the network layer
// directly (peer addresses there are raw DHT peer addresses of the
// network gateway's own DHT, not a space's).
type SendByPeerRequest struct {
	Chain       ChainID
	PeerAddress string
	Payload     []byte
	RequestID   *string
}

func (SendByPeerRequest) isClientMessage() {}

// ServerMessage is what the engine emits from Process(): one
// transport.Event, tagged with the ChainID of the gateway (space or
// network) it came from. A zero Chain means the event came from the
// network gateway.
type ServerMessage struct {
	Chain ChainID
	Event transport.Event
}
