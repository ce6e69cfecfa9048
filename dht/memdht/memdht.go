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

// Package memdht is an in-memory, single-process implementation of the
// dht.DHT contract: every peer record lives in a local map, with no
// gossip, no replication, and no routing table. It is the default
// dht_factory product used for bootstrap and tests (SPEC_FULL §4 item
// 4) — standing in for a real Kademlia/R5N-style implementation that is
// explicitly out of scope (spec §1 "the concrete DHT algorithm").
package memdht

import (
	"meshnet/dht"

	"github.com/bfix/gospel/logger"
)

// DHT is a full-mesh, process-local peer cache.
type DHT struct {
	records  map[string]dht.PeerRecord
	thisPeer *dht.PeerRecord

	pending  []dht.Command
	outgoing []dht.Response
}

var _ dht.DHT = (*DHT)(nil)

// New creates an empty memdht.
func New() *DHT {
	return &DHT{records: make(map[string]dht.PeerRecord)}
}

// SetThisPeer establishes the local node's own record, returned by
// RequestThisPeerCmd and ThisPeer. Bootstrap code calls this once
// before the engine starts driving Process.
func (d *DHT) SetThisPeer(record dht.PeerRecord) {
	d.thisPeer = &record
	d.records[record.PeerAddress] = record
}

// ThisPeer implements dht.DHT.
func (d *DHT) ThisPeer() (dht.PeerRecord, bool) {
	if d.thisPeer == nil {
		return dht.PeerRecord{}, false
	}
	return *d.thisPeer, true
}

// Peers implements dht.DHT.
func (d *DHT) Peers() []dht.PeerRecord {
	list := make([]dht.PeerRecord, 0, len(d.records))
	for _, rec := range d.records {
		list = append(list, rec)
	}
	return list
}

// Peer implements dht.DHT.
func (d *DHT) Peer(peerAddress string) (dht.PeerRecord, bool) {
	rec, ok := d.records[peerAddress]
	return rec, ok
}

// Post implements dht.DHT.
func (d *DHT) Post(cmd dht.Command) {
	d.pending = append(d.pending, cmd)
}

// Process implements dht.DHT. Every command is serviced synchronously
// within a single call: a real distributed implementation would spread
// this across many calls while network round trips complete, but an
// in-memory map has nothing to wait on.
func (d *DHT) Process() (bool, []dht.Response) {
	if len(d.pending) == 0 {
		return false, nil
	}
	cmds := d.pending
	d.pending = nil
	for _, cmd := range cmds {
		d.serve(cmd)
	}
	if len(d.outgoing) == 0 {
		return true, nil
	}
	out := d.outgoing
	d.outgoing = nil
	return true, out
}

func (d *DHT) serve(cmd dht.Command) {
	switch c := cmd.(type) {
	case dht.HoldPeerCmd:
		d.hold(c.Record)
	case dht.RequestPeerCmd:
		rec, ok := d.records[c.PeerAddress]
		var data any
		if ok {
			r := rec
			data = &r
		}
		d.outgoing = append(d.outgoing, dht.Response{RequestID: c.RequestID, Data: data})
	case dht.RequestPeerListCmd:
		list := make([]dht.PeerRecord, 0, len(d.records))
		for _, rec := range d.records {
			list = append(list, rec)
		}
		d.outgoing = append(d.outgoing, dht.Response{RequestID: c.RequestID, Data: list})
	case dht.RequestThisPeerCmd:
		rec, _ := d.ThisPeer()
		d.outgoing = append(d.outgoing, dht.Response{RequestID: c.RequestID, Data: rec})
	case dht.OpaqueCmd:
		logger.Printf(logger.DBG, "[memdht] ignoring opaque command for %s\n", c.RequestID)
	}
}

// hold stores record, applying it only if it is not older than any
// record already held for the same peer address (spec §3 "publish
// PeerRecord updates monotonically by timestamp").
func (d *DHT) hold(record dht.PeerRecord) {
	if existing, ok := d.records[record.PeerAddress]; ok && existing.Timestamp > record.Timestamp {
		return
	}
	d.records[record.PeerAddress] = record
}
