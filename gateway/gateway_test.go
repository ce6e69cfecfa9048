package gateway

import (
	"testing"
	"time"

	"meshnet/clock"
	"meshnet/dht"
	"meshnet/dht/memdht"
	"meshnet/transport"
	"meshnet/transport/mocknet"
	"meshnet/wire"
)

// pair builds two network gateways, "a" and "b", sharing one mock
// network, each with its own memdht and an established ThisPeer
// record, bound at mocknet://a and mocknet://b.
func pair(t *testing.T, clk *clock.Clock) (gwA, gwB *Gateway, dhtA, dhtB *memdht.DHT) {
	t.Helper()
	net := mocknet.NewNetwork()
	nodeA := net.NewNode("a")
	nodeB := net.NewNode("b")

	dhtA = memdht.New()
	dhtB = memdht.New()
	dhtA.SetThisPeer(dht.PeerRecord{PeerAddress: "peerA", URI: "mocknet://a", Timestamp: 1})
	dhtB.SetThisPeer(dht.PeerRecord{PeerAddress: "peerB", URI: "mocknet://b", Timestamp: 1})

	gwA = New("net", nodeA, dhtA, clk)
	gwB = New("net", nodeB, dhtB, clk)

	if _, err := gwA.Bind("mocknet://a"); err != nil {
		t.Fatalf("bind a: %v", err)
	}
	if _, err := gwB.Bind("mocknet://b"); err != nil {
		t.Fatalf("bind b: %v", err)
	}
	return gwA, gwB, dhtA, dhtB
}

// TestHandshakeAdvertisesAndPopulatesPeer covers the incoming-connection
// protocol: once A connects to B, each side learns the other's
// PeerRecord purely from the PeerAddress advertisement, with no
// application payload sent first.
func TestHandshakeAdvertisesAndPopulatesPeer(t *testing.T) {
	clk := clock.New()
	gwA, gwB, dhtA, dhtB := pair(t, clk)

	if _, err := gwA.Connect("mocknet://b"); err != nil {
		t.Fatalf("connect: %v", err)
	}

	// B observes the incoming connection and immediately advertises
	// back to A; A observes its own ConnectResult plus B's frame and
	// advertises back to B.
	gwB.Process()
	gwA.Process()
	gwB.Process()

	recB, ok := dhtA.Peer("peerB")
	if !ok {
		t.Fatalf("A never learned peerB")
	}
	if recB.URI != "mocknet://b" {
		t.Fatalf("unexpected uri for peerB: %s", recB.URI)
	}
	recA, ok := dhtB.Peer("peerA")
	if !ok {
		t.Fatalf("B never learned peerA")
	}
	if recA.URI != "mocknet://a" {
		t.Fatalf("unexpected uri for peerA: %s", recA.URI)
	}

	if _, ok := gwA.ConnectionIDForPeer("peerB"); !ok {
		t.Fatalf("A has no connection id for peerB")
	}
}

// TestPeerAddressFramesAreNotForwarded asserts that a recognized,
// correctly-addressed control frame is consumed internally and never
// appears as a ReceivedDataEvent in the gateway's own outbox.
func TestPeerAddressFramesAreNotForwarded(t *testing.T) {
	clk := clock.New()
	gwA, gwB, _, _ := pair(t, clk)

	if _, err := gwA.Connect("mocknet://b"); err != nil {
		t.Fatalf("connect: %v", err)
	}

	_, eventsB := gwB.Process()
	for _, e := range eventsB {
		if _, ok := e.(transport.ReceivedDataEvent); ok {
			t.Fatalf("PeerAddress frame leaked to B's outbox as application data: %+v", e)
		}
	}
	_, eventsA := gwA.Process()
	for _, e := range eventsA {
		if _, ok := e.(transport.ReceivedDataEvent); ok {
			t.Fatalf("PeerAddress frame leaked to A's outbox as application data: %+v", e)
		}
	}
}

// TestUnrecognizedPayloadIsForwarded asserts the opposite: a payload
// that is not a recognized control frame passes through untouched.
func TestUnrecognizedPayloadIsForwarded(t *testing.T) {
	clk := clock.New()
	gwA, gwB, _, _ := pair(t, clk)

	id, err := gwA.Connect("mocknet://b")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	gwB.Process()
	gwA.Process()
	gwB.Process()

	_ = id

	reqID := "app.1"
	gwA.Post(transport.SendReliableCmd{Data: transport.SendData{
		IDList:    []string{"peerB"},
		Payload:   []byte("hello"),
		RequestID: &reqID,
	}})
	// The first round only queues the send: the workflow is drained
	// before the inbox. The next round, once the clock has passed
	// sendRetryIntervalMs, attempts it.
	if _, events := gwA.Process(); events != nil {
		t.Fatalf("expected no events from the queuing round, got %v", events)
	}
	time.Sleep(time.Duration(sendRetryIntervalMs) * time.Millisecond)
	gwA.Process()

	_, eventsB := gwB.Process()
	var sawPayload bool
	for _, e := range eventsB {
		if rd, ok := e.(transport.ReceivedDataEvent); ok {
			if string(rd.Payload) != "hello" {
				t.Fatalf("unexpected payload: %s", rd.Payload)
			}
			sawPayload = true
		}
	}
	if !sawPayload {
		t.Fatalf("expected application payload forwarded to B")
	}
}

// TestDelegatedSendSucceeds covers scenario 4: a SendReliable whose
// peer is already known to the DHT resolves and reports success under
// the caller's own request id.
func TestDelegatedSendSucceeds(t *testing.T) {
	clk := clock.New()
	gwA, gwB, _, _ := pair(t, clk)
	gwA.Connect("mocknet://b")
	gwB.Process()
	gwA.Process()
	gwB.Process()

	reqID := "R"
	gwA.Post(transport.SendReliableCmd{Data: transport.SendData{
		IDList:    []string{"peerB"},
		Payload:   []byte("ping"),
		RequestID: &reqID,
	}})

	// Ten rounds of 2ms carry the clock past sendRetryIntervalMs, before
	// which no first attempt is made.
	var gotSuccess bool
	for i := 0; i < 10 && !gotSuccess; i++ {
		_, events := gwA.Process()
		for _, e := range events {
			if s, ok := e.(transport.SuccessResultEvent); ok {
				if s.RequestID != "R" {
					t.Fatalf("unexpected request id: %s", s.RequestID)
				}
				gotSuccess = true
			}
			if f, ok := e.(transport.FailureResultEvent); ok {
				t.Fatalf("unexpected failure: %v", f.Err)
			}
		}
		time.Sleep(2 * time.Millisecond)
	}
	if !gotSuccess {
		t.Fatalf("expected a SuccessResultEvent for request R")
	}
}

// TestSendFailsAfterDeadlineWhenPeerNeverResolves covers scenario 5
// (and the expires_ms boundary): a peer that never becomes known to
// the DHT yields a FailureResult once the work item's deadline has
// passed, never a SuccessResult.
func TestSendFailsAfterDeadlineWhenPeerNeverResolves(t *testing.T) {
	clk := clock.New()
	gwA, _, _, _ := pair(t, clk)

	reqID := "R"
	expires := clk.Deadline(20 * time.Millisecond)
	gwA.workflow = append(gwA.workflow, workflowItem{
		msg: transport.SendData{
			IDList:    []string{"nobody"},
			Payload:   []byte("ping"),
			RequestID: &reqID,
		},
		expiresMs: expires,
	})

	var gotFailure bool
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) && !gotFailure {
		_, events := gwA.Process()
		for _, e := range events {
			if f, ok := e.(transport.FailureResultEvent); ok {
				if f.RequestID != "R" {
					t.Fatalf("unexpected request id: %s", f.RequestID)
				}
				gotFailure = true
			}
			if _, ok := e.(transport.SuccessResultEvent); ok {
				t.Fatalf("unexpected success for a peer that was never known")
			}
		}
		time.Sleep(2 * time.Millisecond)
	}
	if !gotFailure {
		t.Fatalf("expected a FailureResultEvent once the deadline passed")
	}
}

// TestSendSucceedsWhenPeerResolvesJustBeforeDeadline covers the other
// half of the boundary: the peer becomes known while the work item is
// still within its deadline, and the send completes successfully
// instead of expiring.
func TestSendSucceedsWhenPeerResolvesJustBeforeDeadline(t *testing.T) {
	clk := clock.New()
	gwA, gwB, dhtA, _ := pair(t, clk)
	gwA.Connect("mocknet://b")
	// Drive only the raw connection handshake via the inner transport,
	// without yet letting A's DHT learn about peerB, so the work item
	// below starts out unresolvable.
	gwB.Process()
	gwA.innerTransport.Process()

	reqID := "R"
	expires := clk.Deadline(100 * time.Millisecond)
	gwA.workflow = append(gwA.workflow, workflowItem{
		msg: transport.SendData{
			IDList:    []string{"peerB"},
			Payload:   []byte("ping"),
			RequestID: &reqID,
		},
		expiresMs: expires,
	})

	// Run two rounds while the peer is still unknown; the second, past
	// sendRetryIntervalMs, attempts the send and fails.
	for i := 0; i < 2; i++ {
		gwA.Process()
		time.Sleep(12 * time.Millisecond)
	}

	// Now the peer becomes known, well before expires.
	dhtA.Post(dht.HoldPeerCmd{Record: dht.PeerRecord{PeerAddress: "peerB", URI: "mocknet://b", Timestamp: 2}})
	dhtA.Process()

	var gotSuccess bool
	deadline := time.Now().Add(90 * time.Millisecond)
	for time.Now().Before(deadline) && !gotSuccess {
		_, events := gwA.Process()
		for _, e := range events {
			if s, ok := e.(transport.SuccessResultEvent); ok && s.RequestID == "R" {
				gotSuccess = true
			}
			if f, ok := e.(transport.FailureResultEvent); ok {
				t.Fatalf("unexpected failure once peer resolved: %v", f.Err)
			}
		}
		time.Sleep(2 * time.Millisecond)
	}
	if !gotSuccess {
		t.Fatalf("expected success once peerB resolved before the deadline")
	}
}

// TestCrossedGatewayIDIsIgnored covers scenario 6: a frame addressed to
// a different gateway identifier is dropped with no HoldPeer effect.
func TestCrossedGatewayIDIsIgnored(t *testing.T) {
	clk := clock.New()
	d := memdht.New()
	d.SetThisPeer(dht.PeerRecord{PeerAddress: "peerA", URI: "mocknet://a", Timestamp: 1})
	net := mocknet.NewNetwork()
	node := net.NewNode("a")
	gw := New("space.one", node, d, clk)
	if _, err := gw.Bind("mocknet://a"); err != nil {
		t.Fatalf("bind: %v", err)
	}

	payload, err := wire.EncodePeerAddress(wire.PeerAddress{
		GatewayID:   "space.two",
		PeerAddress: "peerX",
		Timestamp:   5,
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	forward := gw.handleReceivedData(transport.ReceivedDataEvent{ID: "conn-1", Payload: payload})
	if forward {
		t.Fatalf("a crossed-gateway frame must not be forwarded as application data")
	}
	if _, ok := d.Peer("peerX"); ok {
		t.Fatalf("crossed-gateway frame must not populate the DHT")
	}
}

// TestProcessIsIdempotentWhenNothingPending asserts a gateway with no
// pending commands, workflow items or inner-transport events reports
// no work and an empty event slice.
func TestProcessIsIdempotentWhenNothingPending(t *testing.T) {
	clk := clock.New()
	d := memdht.New()
	net := mocknet.NewNetwork()
	node := net.NewNode("a")
	gw := New("net", node, d, clk)
	if _, err := gw.Bind("mocknet://a"); err != nil {
		t.Fatalf("bind: %v", err)
	}

	didWork, events := gw.Process()
	if didWork || len(events) != 0 {
		t.Fatalf("expected idle process to be a no-op, got work=%v events=%v", didWork, events)
	}
}
