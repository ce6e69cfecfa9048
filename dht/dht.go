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

// Package dht is the contract (spec component D) every gateway composes
// to resolve peer addresses to URIs: a cooperative actor of its own,
// driven by the same Process() step as a transport, answering requests
// posted to it as tracked responses.
package dht

import (
	"errors"

	"meshnet/transport"
)

// ErrUnknownPeer is the error a gateway reports when a peer address it
// must resolve has no record in its DHT. A RequestPeerCmd for an unknown
// peer is not answered with it: its Response carries nil data.
var ErrUnknownPeer = errors.New("dht: unknown peer")

// PeerRecord is what the DHT stores and publishes for one peer (spec
// §3): its address, the URI it is currently reachable at, and the
// timestamp of that binding. Updates must be applied monotonically by
// Timestamp — an older record never overwrites a newer one.
type PeerRecord struct {
	PeerAddress string
	URI         transport.URI
	Timestamp   uint64
}

// Command is the closed set of requests a gateway can post to its DHT.
type Command interface {
	isCommand()
}

// HoldPeerCmd asks the DHT to remember (or refresh) a peer record.
type HoldPeerCmd struct {
	Record PeerRecord
}

func (HoldPeerCmd) isCommand() {}

// RequestPeerCmd asks the DHT to resolve one peer address. The answer
// is delivered as a Response carrying *PeerRecord (nil if unknown) to
// whichever tracker bookmark RequestID was minted for.
type RequestPeerCmd struct {
	PeerAddress string
	RequestID   string
}

func (RequestPeerCmd) isCommand() {}

// RequestPeerListCmd asks the DHT for every peer record it currently
// holds. The answer is delivered as a Response carrying []PeerRecord.
type RequestPeerListCmd struct {
	RequestID string
}

func (RequestPeerListCmd) isCommand() {}

// RequestThisPeerCmd asks the DHT for the local node's own record. The
// answer is delivered as a Response carrying PeerRecord.
type RequestThisPeerCmd struct {
	RequestID string
}

func (RequestThisPeerCmd) isCommand() {}

// OpaqueCmd is an application-defined command the DHT implementation
// may interpret however it wants; the generic gateway never inspects
// it, only passes it through (spec §4.D "opaque user commands").
type OpaqueCmd struct {
	RequestID string
	Payload   any
}

func (OpaqueCmd) isCommand() {}

// Response is what a DHT delivers for a Command carrying a RequestID,
// routed to the issuing tracker bookmark by RequestID.
type Response struct {
	RequestID string
	Data      any // *PeerRecord, []PeerRecord, PeerRecord, or an opaque reply
}

// DHT is the contract every concrete distributed-hash-table
// implementation satisfies (spec §4.D). It is itself a cooperative
// actor: Post never blocks, Process never blocks, and all the I/O or
// bookkeeping work it needs happens inside Process.
type DHT interface {
	// Post enqueues cmd for the next Process() call to service.
	Post(cmd Command)

	// Process performs one non-blocking step, returning whether any
	// work was done and any Responses produced for commands that
	// carried a RequestID.
	Process() (didWork bool, responses []Response)

	// ThisPeer returns the local node's own record, if established.
	ThisPeer() (PeerRecord, bool)

	// Peers returns every peer record currently held. Unlike
	// RequestPeerListCmd (a tracked, asynchronous request meant for
	// cross-actor protocol use), Peers is a direct, synchronous query a
	// DHT's owning gateway uses for its own internal bookkeeping (e.g.
	// deriving a space gateway's connection id list).
	Peers() []PeerRecord

	// Peer is the direct, synchronous counterpart to RequestPeerCmd,
	// used internally by a gateway resolving peer addresses to URIs
	// while servicing its reliable-send workflow.
	Peer(peerAddress string) (PeerRecord, bool)
}
