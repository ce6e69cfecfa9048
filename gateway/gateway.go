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

// Package gateway is the heart of the system (spec component F): a
// composite that presents the transport interface to its parent while
// internally driving an inner transport and an inner DHT, translating
// peer-addressed requests from above into URI-addressed operations
// below. The same type serves as both a network gateway (its inner
// transport is a concrete wire transport) and a space gateway (its
// inner transport is a network gateway), per the gateway composition
// model.
package gateway

import (
	"errors"
	"fmt"
	"time"

	"meshnet/clock"
	"meshnet/dht"
	"meshnet/tracker"
	"meshnet/transport"
	"meshnet/wire"

	"github.com/bfix/gospel/logger"
)

// sendRetryIntervalMs rate-limits reliable-send retries so a gateway
// does not hammer the DHT every process() call while a peer's URI is
// still unknown (spec §4.F). Kept as a compile-time constant per the
// explicit Open Question decision recorded for this build — the spec
// leaves the rate configurable but names no call site that needs it to
// vary at runtime. Because an item's lastTickleMs starts at 0, the same
// check also holds back an item's first attempt until the gateway's
// clock reads at least sendRetryIntervalMs.
const sendRetryIntervalMs uint64 = 10

// sendDeadlineMs is the default deadline for a reliable-send work item.
const sendDeadlineMs uint64 = 200

// syncHelperTimeout bounds the synchronous DHT helpers below.
const syncHelperTimeout = 2000 * time.Millisecond

// ErrInvariantViolation is returned when a URI resolved from the DHT
// has no corresponding connection_map entry — spec §7 error taxonomy
// item 5 ("connection id present in DHT but absent from connection_map
// ... indicates a code bug"). This implementation treats it as an
// ordinary reliable-send failure (retried until the item's deadline)
// rather than aborting the process, so a racy advertisement does not
// bring down an otherwise healthy gateway.
var ErrInvariantViolation = errors.New("gateway: uri resolved from dht has no connection_map entry")

// workflowItem is a pending SendReliable awaiting DHT resolution.
type workflowItem struct {
	msg          transport.SendData
	lastTickleMs uint64
	expiresMs    uint64
}

// Gateway composes one inner transport and one inner DHT and exposes
// the transport.Transport contract to its own parent.
type Gateway struct {
	identifier string
	clk        *clock.Clock

	innerTransport transport.Transport
	innerDHT       dht.DHT

	connectionMap map[transport.URI]transport.ConnectionID
	transportInbox []transport.Command
	transportOutbox []transport.Event
	workflow       []workflowItem

	requestTrack map[string]TrackType
	reqCounter   uint64

	dhtTracker *tracker.Tracker[*Gateway]
	thisPeer   dht.PeerRecord
	maybePeer  *dht.PeerRecord
	peerList   []dht.PeerRecord
}

var _ transport.Transport = (*Gateway)(nil)

// New constructs a gateway identified by identifier, composing
// innerTransport and innerDHT.
func New(identifier string, innerTransport transport.Transport, innerDHT dht.DHT, clk *clock.Clock) *Gateway {
	return &Gateway{
		identifier:     identifier,
		clk:            clk,
		innerTransport: innerTransport,
		innerDHT:       innerDHT,
		connectionMap:  make(map[transport.URI]transport.ConnectionID),
		requestTrack:   make(map[string]TrackType),
		dhtTracker:     tracker.New[*Gateway](identifier+".dht", clk),
	}
}

// NewWithSpace constructs a space gateway: its identifier is
// spaceIdentifier, and its inner transport is networkGateway — another
// Gateway, composed rather than a concrete transport. dhtFactory
// produces the fresh DHT instance this space keeps its own peer cache
// in, isolated from every other space's.
func NewWithSpace(spaceIdentifier string, networkGateway *Gateway, dhtFactory func() dht.DHT, clk *clock.Clock) *Gateway {
	return New(spaceIdentifier, networkGateway, dhtFactory(), clk)
}

// Identifier returns this gateway's identifier.
func (g *Gateway) Identifier() string {
	return g.identifier
}

// Bind implements transport.Transport.
func (g *Gateway) Bind(uri transport.URI) (transport.URI, error) {
	return g.innerTransport.Bind(uri)
}

// Connect implements transport.Transport.
func (g *Gateway) Connect(uri transport.URI) (transport.ConnectionID, error) {
	id, err := g.innerTransport.Connect(uri)
	if err != nil {
		return "", err
	}
	g.connectionMap[uri] = id
	return id, nil
}

// Close implements transport.Transport.
func (g *Gateway) Close(id transport.ConnectionID) error {
	return g.innerTransport.Close(id)
}

// CloseAll implements transport.Transport.
func (g *Gateway) CloseAll() error {
	return g.innerTransport.CloseAll()
}

// SendAll implements transport.Transport: deliver payload to every
// connection id ConnectionIDList reports, going through the same
// reliable-send workflow as any other SendReliable. For a network
// gateway as well as a space gateway these ids are the peer addresses
// its DHT holds, not raw transport connection ids, so they still need
// DHT resolution before they can reach the inner transport.
func (g *Gateway) SendAll(payload []byte) error {
	ids := g.ConnectionIDList()
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = string(id)
	}
	g.Post(transport.SendReliableCmd{Data: transport.SendData{IDList: strs, Payload: payload}})
	return nil
}

// Post implements transport.Transport.
func (g *Gateway) Post(cmd transport.Command) {
	g.transportInbox = append(g.transportInbox, cmd)
}

// ConnectionIDList implements transport.Transport: a gateway's
// connection ids, as seen from its parent, are its DHT's peer
// addresses — the central gateway-composition move (spec §4.F).
func (g *Gateway) ConnectionIDList() []transport.ConnectionID {
	peers := g.innerDHT.Peers()
	ids := make([]transport.ConnectionID, len(peers))
	for i, p := range peers {
		ids[i] = transport.ConnectionID(p.PeerAddress)
	}
	return ids
}

// PeerRecords returns every peer record this gateway's inner DHT
// currently holds. Unlike GetPeerListSync (gateway/sync.go), this reads
// dht.DHT's direct synchronous accessor and never posts a tracked
// request, so it never blocks or panics on a timeout — safe to call
// from a production serving path such as an RPC handler.
func (g *Gateway) PeerRecords() []dht.PeerRecord {
	return g.innerDHT.Peers()
}

// ConnectionIDForPeer resolves a peer address straight to the raw
// connection id the inner transport would recognize, without going
// through a reliable-send attempt (supplemented helper; SPEC_FULL §4
// item 3).
func (g *Gateway) ConnectionIDForPeer(peerAddress string) (transport.ConnectionID, bool) {
	rec, ok := g.innerDHT.Peer(peerAddress)
	if !ok {
		return "", false
	}
	id, ok := g.connectionMap[rec.URI]
	return id, ok
}

// GetURI implements transport.Transport by delegating to the inner
// transport: a connection id is always resolved at the URI layer, even
// for a space gateway whose connection ids above are peer addresses.
func (g *Gateway) GetURI(id transport.ConnectionID) (transport.URI, bool) {
	return g.innerTransport.GetURI(id)
}

// Process implements transport.Transport's non-blocking step, in the
// fixed order spec §4.F mandates: drain workflow, drain transport_inbox,
// run inner_transport.process(), handle every resulting event, return
// transport_outbox.
func (g *Gateway) Process() (bool, []transport.Event) {
	didWork := false

	// (a) drain workflow. A FailureResult it emits for an expired item is
	// addressed to this gateway's parent, so it is set aside here and
	// returned in (e) without passing through the event handling of (d).
	items := g.workflow
	g.workflow = nil
	for _, item := range items {
		if g.serveWorkflowItem(item) {
			didWork = true
		}
	}
	results := g.transportOutbox
	g.transportOutbox = nil

	// (b) drain transport_inbox
	cmds := g.transportInbox
	g.transportInbox = nil
	for _, cmd := range cmds {
		didWork = true
		g.serveTransportCommand(cmd)
	}

	// (c) run inner_transport.process()
	innerDidWork, innerEvents := g.innerTransport.Process()
	if innerDidWork {
		didWork = true
	}

	// (d) handle every event produced so far (by command handling and
	// by the inner transport), deciding which ones are forwarded.
	toHandle := append(g.transportOutbox, innerEvents...)
	g.transportOutbox = nil
	for _, evt := range toHandle {
		didWork = true
		if g.handleTransportEvent(evt) {
			g.transportOutbox = append(g.transportOutbox, evt)
		}
	}

	// (e) drain transport_outbox to the caller
	out := append(results, g.transportOutbox...)
	g.transportOutbox = nil
	return didWork, out
}

// ProcessDHT drives this gateway's inner DHT actor one non-blocking
// step and routes any tracked responses to the sync-helper tracker.
// The DHT is a cooperative actor in its own right (spec §4.D); the
// host is responsible for calling ProcessDHT alongside Process so the
// DHT's own suspension points stay visible to the scheduler, rather
// than being buried inside the transport-facing Process call.
func (g *Gateway) ProcessDHT() bool {
	didWork, responses := g.innerDHT.Process()
	for _, r := range responses {
		if err := g.dhtTracker.Handle(r.RequestID, g, r.Data); err != nil {
			logger.Printf(logger.ERROR, "[gateway:%s] dht response handler: %v\n", g.identifier, err)
		}
	}
	if err := g.dhtTracker.Process(g); err != nil {
		logger.Printf(logger.ERROR, "[gateway:%s] dht tracker process: %v\n", g.identifier, err)
	}
	return didWork
}

func (g *Gateway) serveTransportCommand(cmd transport.Command) {
	switch c := cmd.(type) {
	case transport.ConnectCmd:
		id, err := g.Connect(c.URI)
		if err != nil {
			logger.Printf(logger.WARN, "[gateway:%s] connect %s: %v\n", g.identifier, c.URI, err)
			g.transportOutbox = append(g.transportOutbox, transport.ErrorOccurredEvent{Err: err})
			return
		}
		g.transportOutbox = append(g.transportOutbox, transport.ConnectResultEvent{ID: id, URI: c.URI, RequestID: c.RequestID})

	case transport.SendReliableCmd:
		g.workflow = append(g.workflow, workflowItem{
			msg:       c.Data,
			expiresMs: g.clk.Deadline(time.Duration(sendDeadlineMs) * time.Millisecond),
		})

	case transport.SendAllCmd:
		_ = g.SendAll(c.Payload)

	case transport.CloseCmd:
		if err := g.innerTransport.Close(c.ID); err != nil {
			logger.Printf(logger.WARN, "[gateway:%s] close %s: %v\n", g.identifier, c.ID, err)
			return
		}
		g.transportOutbox = append(g.transportOutbox, transport.ConnectionClosedEvent{ID: c.ID})

	case transport.CloseAllCmd:
		if err := g.innerTransport.CloseAll(); err != nil {
			logger.Printf(logger.WARN, "[gateway:%s] close all: %v\n", g.identifier, err)
		}

	case transport.BindCmd:
		if _, err := g.innerTransport.Bind(c.URI); err != nil {
			logger.Printf(logger.WARN, "[gateway:%s] bind %s: %v\n", g.identifier, c.URI, err)
			g.transportOutbox = append(g.transportOutbox, transport.ErrorOccurredEvent{Err: err})
		}
	}
}

// handleTransportEvent reacts to one event from transport_outbox or the
// inner transport and reports whether it should also be forwarded to
// this gateway's own parent.
func (g *Gateway) handleTransportEvent(evt transport.Event) bool {
	switch e := evt.(type) {
	case transport.ErrorOccurredEvent:
		logger.Printf(logger.ERROR, "[gateway:%s] connection error on %s: %v\n", g.identifier, e.ID, e.Err)
		if err := g.innerTransport.Close(e.ID); err != nil {
			logger.Printf(logger.DBG, "[gateway:%s] close after error: %v\n", g.identifier, err)
		}
		return true

	case transport.ConnectResultEvent:
		g.handleNewConnection(e.ID)
		return true

	case transport.IncomingConnectionEstablishedEvent:
		g.handleNewConnection(e.ID)
		return true

	case transport.ConnectionClosedEvent:
		return true

	case transport.ReceivedDataEvent:
		return g.handleReceivedData(e)

	case transport.SuccessResultEvent:
		g.dispatchOutcome(e.RequestID, nil)
		return false

	case transport.FailureResultEvent:
		g.dispatchOutcome(e.RequestID, e.Err)
		return false
	}
	return false
}

// handleNewConnection implements the incoming-connection protocol: map
// the connection's URI, then advertise this gateway's identity to it.
func (g *Gateway) handleNewConnection(id transport.ConnectionID) {
	uri, ok := g.innerTransport.GetURI(id)
	if !ok {
		return
	}
	if prev, had := g.connectionMap[uri]; had && prev != id {
		logger.Printf(logger.DBG, "[gateway:%s] replacing connection id for %s: %s -> %s\n", g.identifier, uri, prev, id)
	}
	g.connectionMap[uri] = id

	thisPeer, ok := g.innerDHT.ThisPeer()
	if !ok {
		logger.Printf(logger.DBG, "[gateway:%s] no local peer record yet, skipping advertisement to %s\n", g.identifier, id)
		return
	}
	frame := wire.PeerAddress{
		GatewayID:   g.identifier,
		PeerAddress: thisPeer.PeerAddress,
		Timestamp:   thisPeer.Timestamp,
	}
	payload, err := wire.EncodePeerAddress(frame)
	if err != nil {
		logger.Printf(logger.ERROR, "[gateway:%s] encode peer address: %v\n", g.identifier, err)
		return
	}
	requestID := g.registerTrack(FireAndForget{})
	g.innerTransport.Post(transport.SendReliableCmd{Data: transport.SendData{
		IDList:    []string{string(id)},
		Payload:   payload,
		RequestID: &requestID,
	}})
}

// handleReceivedData attempts to decode a PeerAddress control frame.
// A recognized, correctly-addressed frame is consumed internally (the
// DHT learns the peer) and not forwarded, and a frame carrying the
// PeerAddress tag whose body fails to decode is dropped; everything
// else, including payloads too short to hold a frame header, is passed
// through as application data (spec §4.F, §4.E).
func (g *Gateway) handleReceivedData(e transport.ReceivedDataEvent) bool {
	frame, err := wire.DecodePeerAddress(e.Payload)
	if err != nil {
		if errors.Is(err, wire.ErrUnrecognizedFrame) || errors.Is(err, wire.ErrFrameTooShort) {
			return true
		}
		logger.Printf(logger.DBG, "[gateway:%s] dropping malformed frame from %s: %v\n", g.identifier, e.ID, err)
		return false
	}
	if frame.GatewayID != g.identifier {
		// Crossed gateway id: ignored, no HoldPeer posted (spec §8
		// scenario 6).
		return false
	}
	uri, ok := g.innerTransport.GetURI(e.ID)
	if !ok {
		return false
	}
	g.innerDHT.Post(dht.HoldPeerCmd{Record: dht.PeerRecord{
		PeerAddress: frame.PeerAddress,
		URI:         uri,
		Timestamp:   frame.Timestamp,
	}})
	// Materialize the HoldPeer immediately so the peer is resolvable on
	// the very next workflow retry, rather than waiting for the host's
	// next independent ProcessDHT call.
	g.innerDHT.Process()
	return false
}

// dispatchOutcome routes an inner transport SuccessResult/FailureResult
// according to how its request id was registered.
func (g *Gateway) dispatchOutcome(requestID string, sendErr error) {
	tt, ok := g.requestTrack[requestID]
	if !ok {
		return
	}
	delete(g.requestTrack, requestID)
	switch t := tt.(type) {
	case FireAndForget:
		if sendErr != nil {
			logger.Printf(logger.WARN, "[gateway:%s] fire-and-forget send failed: %v\n", g.identifier, sendErr)
		}
	case DelegateLower:
		if sendErr != nil {
			g.transportOutbox = append(g.transportOutbox, transport.FailureResultEvent{RequestID: t.UpperRequestID, Err: sendErr})
		} else {
			g.transportOutbox = append(g.transportOutbox, transport.SuccessResultEvent{RequestID: t.UpperRequestID})
		}
	}
}

// serveWorkflowItem advances one reliable-send work item one step,
// returning whether it made any observable progress this call.
func (g *Gateway) serveWorkflowItem(item workflowItem) bool {
	now := g.clk.SinceEpochMs()
	if now-item.lastTickleMs < sendRetryIntervalMs {
		g.workflow = append(g.workflow, item)
		return false
	}
	item.lastTickleMs = now

	err := g.attemptSend(item.msg)
	if err == nil {
		return true
	}
	if now < item.expiresMs {
		g.workflow = append(g.workflow, item)
		return true
	}
	if item.msg.RequestID != nil {
		g.transportOutbox = append(g.transportOutbox, transport.FailureResultEvent{RequestID: *item.msg.RequestID, Err: err})
	} else {
		logger.Printf(logger.ERROR, "[gateway:%s] reliable send expired: %v\n", g.identifier, err)
	}
	return true
}

// attemptSend resolves msg's peer addresses to inner connection ids and
// posts a SendReliable to the inner transport. A nil return means the
// post happened (not that delivery succeeded — that outcome arrives
// later as a SuccessResult/FailureResult event).
func (g *Gateway) attemptSend(msg transport.SendData) error {
	uris, err := g.dhtAddressToURIList(msg.IDList)
	if err != nil {
		return err
	}
	connIDs := make([]string, 0, len(uris))
	for _, uri := range uris {
		id, ok := g.connectionMap[uri]
		if !ok {
			return fmt.Errorf("%w: %s", ErrInvariantViolation, uri)
		}
		connIDs = append(connIDs, string(id))
	}

	var innerRequestID *string
	if msg.RequestID != nil {
		id := g.registerTrack(DelegateLower{UpperRequestID: *msg.RequestID})
		innerRequestID = &id
	}
	g.innerTransport.Post(transport.SendReliableCmd{Data: transport.SendData{
		IDList:    connIDs,
		Payload:   msg.Payload,
		RequestID: innerRequestID,
	}})
	return nil
}

// dhtAddressToURIList resolves every peer address in addresses to a
// URI via the inner DHT, failing on the first unknown address.
func (g *Gateway) dhtAddressToURIList(addresses []string) ([]transport.URI, error) {
	uris := make([]transport.URI, 0, len(addresses))
	for _, addr := range addresses {
		rec, ok := g.innerDHT.Peer(addr)
		if !ok {
			return nil, fmt.Errorf("%w: %s", dht.ErrUnknownPeer, addr)
		}
		uris = append(uris, rec.URI)
	}
	return uris, nil
}

func (g *Gateway) registerTrack(tt TrackType) string {
	g.reqCounter++
	id := fmt.Sprintf("%s.req.%d", g.identifier, g.reqCounter)
	g.requestTrack[id] = tt
	return id
}
