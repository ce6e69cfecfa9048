package wire

import "testing"

func TestPeerAddressRoundTrip(t *testing.T) {
	in := PeerAddress{
		GatewayID:   "space.chat.alice",
		PeerAddress: "HcScJ4nPeerAddressExample",
		Timestamp:   1234567890,
	}
	b, err := EncodePeerAddress(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := DecodePeerAddress(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestPeerAddressRoundTripEmptyFields(t *testing.T) {
	in := PeerAddress{}
	b, err := EncodePeerAddress(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := DecodePeerAddress(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestDecodeUnrecognizedFrameType(t *testing.T) {
	in := PeerAddress{GatewayID: "g", PeerAddress: "p", Timestamp: 1}
	b, err := EncodePeerAddress(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	// Corrupt the frame type so it no longer matches FrameTypePeerAddress.
	b[3] = 0xff

	if _, err := DecodePeerAddress(b); err != ErrUnrecognizedFrame {
		t.Fatalf("expected ErrUnrecognizedFrame, got %v", err)
	}
}

func TestDecodeFrameTooShort(t *testing.T) {
	if _, err := DecodePeerAddress([]byte{0x01, 0x02}); err != ErrFrameTooShort {
		t.Fatalf("expected ErrFrameTooShort, got %v", err)
	}
}
