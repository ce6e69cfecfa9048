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

package main

import (
	"fmt"
	"net/http"
	"sync"

	"meshnet/engine"
)

// AdminService exposes a running engine over JSON-RPC (gorilla/rpc):
// list known peers, list open connections, and trigger a manual
// process() tick — the introspection surface SPEC_FULL §3 describes
// for meshadmin. Every method takes mu before touching the
// engine, since the engine itself assumes a single caller driving
// Process() and these handlers run on the HTTP server's own
// goroutines.
type AdminService struct {
	mu  *sync.Mutex
	eng *engine.Engine
}

// NewAdminService wraps eng, guarded by mu, for RPC access.
func NewAdminService(eng *engine.Engine, mu *sync.Mutex) *AdminService {
	return &AdminService{mu: mu, eng: eng}
}

// PeersArgs is empty: PeersArgs carries no parameters.
type PeersArgs struct{}

// PeersReply lists every peer address the network gateway's DHT
// currently holds.
type PeersReply struct {
	Peers []string `json:"peers"`
}

// Peers implements the "list known peers" RPC method. It reads
// PeerRecords, the gateway's direct synchronous DHT accessor, rather
// than GetPeerListSync (gateway/sync.go): that helper posts a tracked
// request and panics if it isn't answered within its timeout, which is
// only acceptable in a test/bootstrap path, not in an HTTP handler on a
// live server.
func (s *AdminService) Peers(r *http.Request, args *PeersArgs, reply *PeersReply) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.eng.NetworkGateway().PeerRecords() {
		reply.Peers = append(reply.Peers, p.PeerAddress)
	}
	return nil
}

// ConnectionsArgs is empty: ConnectionsArgs carries no parameters.
type ConnectionsArgs struct{}

// ConnectionsReply lists the network gateway's current connection ids,
// which are the peer addresses its DHT holds (Gateway.ConnectionIDList).
type ConnectionsReply struct {
	Connections []string `json:"connections"`
}

// Connections implements the "list open connections" RPC method.
func (s *AdminService) Connections(r *http.Request, args *ConnectionsArgs, reply *ConnectionsReply) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.eng.NetworkGateway().ConnectionIDList() {
		reply.Connections = append(reply.Connections, string(id))
	}
	return nil
}

// TickArgs is empty: TickArgs carries no parameters.
type TickArgs struct{}

// TickReply reports whether the manual process() round did any work
// and how many server messages it produced.
type TickReply struct {
	DidWork     bool `json:"did_work"`
	EventsCount int  `json:"events_count"`
}

// Tick implements the "trigger a manual process() tick" RPC method.
func (s *AdminService) Tick(r *http.Request, args *TickArgs, reply *TickReply) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	didWork, events := s.eng.Process()
	reply.DidWork = didWork
	reply.EventsCount = len(events)
	return nil
}

func (s *AdminService) String() string {
	return fmt.Sprintf("AdminService(%p)", s.eng)
}
