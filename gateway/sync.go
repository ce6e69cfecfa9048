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

package gateway

import (
	"meshnet/dht"
	"meshnet/tracker"
)

// GetThisPeerSync, GetPeerSync and GetPeerListSync are convenience
// wrappers that bookmark a DHT request with a 2000ms timeout and spin
// the DHT once to materialize the answer.
//
// They panic on a timeout or on an unexpected response type (design
// note 9d: "preserve panics as assertions only in test paths"). Do not
// call these from a running engine's process loop — use Post with a
// RequestPeerCmd/RequestPeerListCmd/RequestThisPeerCmd and a tracker
// bookmark instead, which reports a Timeout through the ordinary
// CallbackData path rather than unwinding the goroutine.

// GetThisPeerSync returns the local node's own DHT record, caching it
// after the first successful resolution.
func (g *Gateway) GetThisPeerSync() dht.PeerRecord {
	if g.thisPeer.PeerAddress != "" {
		return g.thisPeer
	}
	requestID := g.dhtTracker.Bookmark(syncHelperTimeout, nil, func(host *Gateway, _ any, data tracker.CallbackData) error {
		if data.Kind == tracker.Timeout {
			panic("gateway: get_this_peer_sync timed out")
		}
		rec, ok := data.Data.(dht.PeerRecord)
		if !ok {
			panic("gateway: bad dht response to RequestThisPeer")
		}
		host.thisPeer = rec
		return nil
	})
	g.innerDHT.Post(dht.RequestThisPeerCmd{RequestID: requestID})
	g.ProcessDHT()
	return g.thisPeer
}

// GetPeerSync resolves one peer address, or returns ok=false if the
// DHT has no record for it.
func (g *Gateway) GetPeerSync(peerAddress string) (rec dht.PeerRecord, ok bool) {
	g.maybePeer = nil
	requestID := g.dhtTracker.Bookmark(syncHelperTimeout, nil, func(host *Gateway, _ any, data tracker.CallbackData) error {
		if data.Kind == tracker.Timeout {
			panic("gateway: get_peer_sync timed out")
		}
		switch v := data.Data.(type) {
		case *dht.PeerRecord:
			host.maybePeer = v
		case nil:
			host.maybePeer = nil
		default:
			panic("gateway: bad dht response to RequestPeer")
		}
		return nil
	})
	g.innerDHT.Post(dht.RequestPeerCmd{PeerAddress: peerAddress, RequestID: requestID})
	g.ProcessDHT()
	if g.maybePeer == nil {
		return dht.PeerRecord{}, false
	}
	return *g.maybePeer, true
}

// GetPeerListSync returns every peer record the DHT currently holds.
func (g *Gateway) GetPeerListSync() []dht.PeerRecord {
	requestID := g.dhtTracker.Bookmark(syncHelperTimeout, nil, func(host *Gateway, _ any, data tracker.CallbackData) error {
		if data.Kind == tracker.Timeout {
			panic("gateway: get_peer_list_sync timed out")
		}
		list, ok := data.Data.([]dht.PeerRecord)
		if !ok {
			panic("gateway: bad dht response to RequestPeerList")
		}
		host.peerList = list
		return nil
	})
	g.innerDHT.Post(dht.RequestPeerListCmd{RequestID: requestID})
	g.ProcessDHT()
	return g.peerList
}
