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

// Package engine is the top-level component (spec §4.G): one network
// gateway, one space gateway per (space, agent) chain id, a client
// inbox, and a non-blocking process() round that drains the inbox,
// drives the network gateway, then drives every space gateway in
// turn, forwarding every gateway's events to the caller tagged by
// which chain produced them.
package engine

import (
	"fmt"

	"meshnet/clock"
	"meshnet/dht"
	"meshnet/gateway"
	"meshnet/transport"

	"github.com/bfix/gospel/logger"
)

// ErrUnknownSpace is logged when a SendByPeerRequest names a Chain the
// engine holds no space gateway for; the request is then dropped.
var ErrUnknownSpace = fmt.Errorf("engine: unknown space")

// Engine owns the network gateway and every space gateway derived
// from it.
type Engine struct {
	identifier string
	clk        *clock.Clock
	dhtFactory func() dht.DHT

	networkGateway *gateway.Gateway

	spaces      map[ChainID]*gateway.Gateway
	spaceOrder  []ChainID // deterministic iteration order for Process

	inbox  []ClientMessage
	outbox []ServerMessage
}

// New constructs an engine whose network gateway composes
// networkTransport and networkDHT. dhtFactory produces a fresh DHT
// instance for each space gateway joined later.
func New(identifier string, networkTransport transport.Transport, networkDHT dht.DHT, dhtFactory func() dht.DHT, clk *clock.Clock) *Engine {
	return &Engine{
		identifier:     identifier,
		clk:            clk,
		dhtFactory:     dhtFactory,
		networkGateway: gateway.New(identifier, networkTransport, networkDHT, clk),
		spaces:         make(map[ChainID]*gateway.Gateway),
	}
}

// NetworkGateway exposes the network gateway directly, for callers
// that need synchronous DHT helpers or diagnostics.
func (e *Engine) NetworkGateway() *gateway.Gateway {
	return e.networkGateway
}

// SpaceGateway returns the space gateway for chain, if joined.
func (e *Engine) SpaceGateway(chain ChainID) (*gateway.Gateway, bool) {
	gw, ok := e.spaces[chain]
	return gw, ok
}

// Post enqueues msg for the next Process() call to dispatch.
func (e *Engine) Post(msg ClientMessage) {
	e.inbox = append(e.inbox, msg)
}

// Process performs one non-blocking round: drain the client inbox,
// drive the network gateway, then drive every space gateway, in that
// fixed order (spec §4.G).
func (e *Engine) Process() (bool, []ServerMessage) {
	didWork := false

	msgs := e.inbox
	e.inbox = nil
	for _, m := range msgs {
		didWork = true
		e.dispatch(m)
	}

	if nd, nevents := e.networkGateway.Process(); nd || len(nevents) > 0 {
		didWork = true
		for _, ev := range nevents {
			e.outbox = append(e.outbox, ServerMessage{Event: ev})
		}
	}
	if e.networkGateway.ProcessDHT() {
		didWork = true
	}

	for _, chain := range e.spaceOrder {
		gw, ok := e.spaces[chain]
		if !ok {
			continue
		}
		if d, events := gw.Process(); d || len(events) > 0 {
			didWork = true
			for _, ev := range events {
				e.outbox = append(e.outbox, ServerMessage{Chain: chain, Event: ev})
			}
		}
		if gw.ProcessDHT() {
			didWork = true
		}
	}

	out := e.outbox
	e.outbox = nil
	return didWork, out
}

func (e *Engine) dispatch(msg ClientMessage) {
	switch m := msg.(type) {
	case BindRequest:
		if _, err := e.networkGateway.Bind(m.URI); err != nil {
			logger.Printf(logger.WARN, "[engine:%s] bind %s: %v\n", e.identifier, m.URI, err)
		}

	case ConnectRequest:
		if _, err := e.networkGateway.Connect(m.URI); err != nil {
			logger.Printf(logger.WARN, "[engine:%s] connect %s: %v\n", e.identifier, m.URI, err)
		}

	case JoinSpaceRequest:
		e.joinSpace(m.Chain)

	case LeaveSpaceRequest:
		e.leaveSpace(m.Chain)

	case SendByPeerRequest:
		e.sendByPeer(m)
	}
}

func (e *Engine) joinSpace(chain ChainID) {
	if _, exists := e.spaces[chain]; exists {
		return
	}
	identifier := fmt.Sprintf("%s.space.%s.%s", e.identifier, chain.SpaceAddress, chain.AgentAddress)
	gw := gateway.NewWithSpace(identifier, e.networkGateway, e.dhtFactory, e.clk)
	e.spaces[chain] = gw
	e.spaceOrder = append(e.spaceOrder, chain)
}

func (e *Engine) leaveSpace(chain ChainID) {
	gw, ok := e.spaces[chain]
	if !ok {
		return
	}
	if err := gw.CloseAll(); err != nil {
		logger.Printf(logger.DBG, "[engine:%s] close all on leave %v: %v\n", e.identifier, chain, err)
	}
	delete(e.spaces, chain)
	for i, c := range e.spaceOrder {
		if c == chain {
			e.spaceOrder = append(e.spaceOrder[:i], e.spaceOrder[i+1:]...)
			break
		}
	}
}

func (e *Engine) sendByPeer(m SendByPeerRequest) {
	gw := e.networkGateway
	if m.Chain != (ChainID{}) {
		var ok bool
		gw, ok = e.spaces[m.Chain]
		if !ok {
			logger.Printf(logger.WARN, "[engine:%s] send to unknown space %+v: %v\n", e.identifier, m.Chain, ErrUnknownSpace)
			return
		}
	}
	gw.Post(transport.SendReliableCmd{Data: transport.SendData{
		IDList:    []string{m.PeerAddress},
		Payload:   m.Payload,
		RequestID: m.RequestID,
	}})
}
