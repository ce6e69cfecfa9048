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

// Package mocknet is the pluggable in-process mock transport and test
// harness (spec component H): a Network of Nodes that exchange events
// entirely in memory, driven by the same cooperative Process() contract
// real transports honor, so gateway and engine tests never touch a
// socket.
package mocknet

import (
	"fmt"

	"meshnet/transport"

	"github.com/bfix/gospel/logger"
)

// Network is the shared switchboard a set of mock Nodes bind into. A
// Network has no goroutines and no locks: it is only ever driven by a
// single test goroutine calling Node.Process() in turn, same as the
// gateway/engine pump model it stands in for.
type Network struct {
	nodes map[transport.URI]*Node
	seq   uint64
}

// NewNetwork creates an empty switchboard.
func NewNetwork() *Network {
	return &Network{nodes: make(map[transport.URI]*Node)}
}

// NewNode creates a Node attached to this network but not yet bound.
func (n *Network) NewNode(name string) *Node {
	return &Node{name: name, net: n, conns: make(map[transport.ConnectionID]*peerConn)}
}

func (n *Network) nextConnID() transport.ConnectionID {
	n.seq++
	return transport.ConnectionID(fmt.Sprintf("mock-conn-%d", n.seq))
}

type peerConn struct {
	peer   *Node
	peerID transport.ConnectionID
	uri    transport.URI
}

// Node is a transport.Transport backed entirely by in-memory delivery
// to other Nodes on the same Network.
type Node struct {
	name string
	net  *Network
	uri  transport.URI

	conns   map[transport.ConnectionID]*peerConn
	pending []transport.Event
}

var _ transport.Transport = (*Node)(nil)

// Bind registers uri as this node's address on the network. A second
// Bind to a different address than the current one fails with
// ErrAlreadyBound (spec §6 binding conflict scenario); re-binding the
// same address is a no-op success.
func (n *Node) Bind(uri transport.URI) (transport.URI, error) {
	if n.uri != "" {
		if n.uri == uri {
			return n.uri, nil
		}
		return "", transport.ErrAlreadyBound
	}
	if existing, ok := n.net.nodes[uri]; ok && existing != n {
		return "", transport.ErrAlreadyBound
	}
	n.uri = uri
	n.net.nodes[uri] = n
	logger.Printf(logger.DBG, "[mocknet] %s bound to %s\n", n.name, uri)
	return uri, nil
}

// Connect opens a connection to the node bound at uri, if any.
func (n *Node) Connect(uri transport.URI) (transport.ConnectionID, error) {
	return n.connect(uri, "")
}

func (n *Node) connect(uri transport.URI, requestID string) (transport.ConnectionID, error) {
	peer, ok := n.net.nodes[uri]
	if !ok {
		return "", transport.ErrNoEndpoint
	}
	localID := n.net.nextConnID()
	remoteID := n.net.nextConnID()
	n.conns[localID] = &peerConn{peer: peer, peerID: remoteID, uri: uri}
	peer.conns[remoteID] = &peerConn{peer: n, peerID: localID, uri: n.uri}

	n.pending = append(n.pending, transport.ConnectResultEvent{ID: localID, URI: uri, RequestID: requestID})
	peer.pending = append(peer.pending, transport.IncomingConnectionEstablishedEvent{ID: remoteID})
	return localID, nil
}

// Close closes one connection from this node's side; the peer observes
// a ConnectionClosedEvent on its own next Process().
func (n *Node) Close(id transport.ConnectionID) error {
	pc, ok := n.conns[id]
	if !ok {
		return transport.ErrUnknownConnection
	}
	delete(n.conns, id)
	if peerSide, ok := pc.peer.conns[pc.peerID]; ok {
		delete(pc.peer.conns, pc.peerID)
		_ = peerSide
		pc.peer.pending = append(pc.peer.pending, transport.ConnectionClosedEvent{ID: pc.peerID})
	}
	return nil
}

// CloseAll closes every connection this node has open.
func (n *Node) CloseAll() error {
	for id := range n.conns {
		_ = n.Close(id)
	}
	return nil
}

// SendAll delivers payload to every open connection, best effort.
func (n *Node) SendAll(payload []byte) error {
	for id, pc := range n.conns {
		n.deliver(pc, payload)
		_ = id
	}
	return nil
}

func (n *Node) deliver(pc *peerConn, payload []byte) {
	buf := make([]byte, len(payload))
	copy(buf, payload)
	pc.peer.pending = append(pc.peer.pending, transport.ReceivedDataEvent{ID: pc.peerID, Payload: buf})
}

// Post enqueues cmd for the next Process() call. Mock delivery for
// SendReliableCmd is immediate and always succeeds once a peer
// connection exists; the mock network injects no transient failures of
// its own. The gateway's retry/timeout behavior is instead exercised
// against an unresolved DHT peer (no connection to deliver to at all),
// which drives the same deadline/retry path without needing a fault
// injection hook here.
func (n *Node) Post(cmd transport.Command) {
	switch c := cmd.(type) {
	case transport.ConnectCmd:
		id, err := n.connect(c.URI, c.RequestID)
		if err != nil {
			n.pending = append(n.pending, transport.ErrorOccurredEvent{Err: err})
		}
		_ = id
	case transport.SendReliableCmd:
		n.sendReliable(c.Data)
	case transport.SendAllCmd:
		_ = n.SendAll(c.Payload)
	case transport.CloseCmd:
		_ = n.Close(c.ID)
	case transport.CloseAllCmd:
		_ = n.CloseAll()
	case transport.BindCmd:
		if _, err := n.Bind(c.URI); err != nil {
			n.pending = append(n.pending, transport.ErrorOccurredEvent{Err: err})
		}
	}
}

func (n *Node) sendReliable(data transport.SendData) {
	delivered := false
	for _, idStr := range data.IDList {
		pc, ok := n.conns[transport.ConnectionID(idStr)]
		if !ok {
			continue
		}
		n.deliver(pc, data.Payload)
		delivered = true
	}
	if data.RequestID == nil {
		return
	}
	if delivered {
		n.pending = append(n.pending, transport.SuccessResultEvent{RequestID: *data.RequestID})
	} else {
		n.pending = append(n.pending, transport.FailureResultEvent{RequestID: *data.RequestID, Err: transport.ErrUnknownConnection})
	}
}

// Process drains and returns every event accumulated since the previous
// call. Mock delivery happens synchronously inside Post/Connect, so
// Process never itself blocks or performs further I/O — it is a pure
// drain, matching the non-blocking contract every transport owes its
// caller.
func (n *Node) Process() (bool, []transport.Event) {
	if len(n.pending) == 0 {
		return false, nil
	}
	events := n.pending
	n.pending = nil
	return true, events
}

// ConnectionIDList returns the connection ids currently open.
func (n *Node) ConnectionIDList() []transport.ConnectionID {
	ids := make([]transport.ConnectionID, 0, len(n.conns))
	for id := range n.conns {
		ids = append(ids, id)
	}
	return ids
}

// GetURI returns the peer URI for a connection id, if known.
func (n *Node) GetURI(id transport.ConnectionID) (transport.URI, bool) {
	pc, ok := n.conns[id]
	if !ok {
		return "", false
	}
	return pc.uri, true
}
