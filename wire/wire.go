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

// Package wire is the protocol codec of spec component E: a single
// tagged, length-self-describing control frame, PeerAddress, that a
// gateway advertises to a newly connected peer before any application
// payload crosses the connection.
package wire

import (
	"errors"
	"fmt"

	"github.com/bfix/gospel/data"
)

// Errors returned by DecodePeerAddress and PeekFrameType.
var (
	// ErrFrameTooShort means the byte slice is too small to even hold a
	// frame header.
	ErrFrameTooShort = errors.New("wire: frame too short")
	// ErrUnrecognizedFrame means the header parsed but its FrameType does
	// not match any frame this package knows how to decode (design note
	// 9, open question 2: payload bytes that do not parse as a known
	// control frame are not a protocol violation — they are handed to
	// the application layer as opaque data instead).
	ErrUnrecognizedFrame = errors.New("wire: unrecognized frame type")
)

// frameHeader is the common prefix of every frame this package encodes:
// total size (header + body) and a type tag, both big-endian — the same
// shape as MessageHeader in the library this codec is adapted from.
type frameHeader struct {
	FrameSize uint16 `order:"big"`
	FrameType uint16 `order:"big"`
}

const (
	// FrameTypePeerAddress tags a serialized PeerAddress frame.
	FrameTypePeerAddress uint16 = 1
)

// PeerAddress is the one control frame spec component E defines: a
// gateway's self-announcement, sent once to a freshly connected peer so
// the peer can learn which gateway (space) this connection belongs to
// and record the sender in its DHT.
type PeerAddress struct {
	GatewayID   string
	PeerAddress string
	Timestamp   uint64
}

// wirePeerAddress is the on-the-wire layout: length-prefixed strings (as
// byte slices, not NUL-terminated, since gateway/peer identifiers may
// contain arbitrary bytes) followed by a big-endian timestamp.
type wirePeerAddress struct {
	Header frameHeader

	GatewayIDLen uint16 `order:"big"`
	GatewayID    []byte `size:"GatewayIDLen"`

	PeerAddressLen uint16 `order:"big"`
	PeerAddress    []byte `size:"PeerAddressLen"`

	Timestamp uint64 `order:"big"`
}

// EncodePeerAddress serializes a PeerAddress frame.
func EncodePeerAddress(p PeerAddress) ([]byte, error) {
	w := &wirePeerAddress{
		GatewayIDLen:   uint16(len(p.GatewayID)),
		GatewayID:      []byte(p.GatewayID),
		PeerAddressLen: uint16(len(p.PeerAddress)),
		PeerAddress:    []byte(p.PeerAddress),
		Timestamp:      p.Timestamp,
	}
	// Marshal once with a zero header to learn the full frame size
	// (header included), then fix up FrameSize and marshal again — mirrors how the header this is
	// adapted from is computed after the fact from the encoded body.
	body, err := data.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal peer address: %w", err)
	}
	w.Header = frameHeader{
		FrameSize: uint16(len(body)),
		FrameType: FrameTypePeerAddress,
	}
	out, err := data.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal peer address: %w", err)
	}
	return out, nil
}

// PeekFrameType reads only the 4-byte header to report the frame type
// without attempting to decode the body. Returns ErrFrameTooShort if b
// does not hold a full header.
func PeekFrameType(b []byte) (uint16, error) {
	if len(b) < 4 {
		return 0, ErrFrameTooShort
	}
	var h frameHeader
	if err := data.Unmarshal(&h, b[:4]); err != nil {
		return 0, fmt.Errorf("wire: decode header: %w", err)
	}
	return h.FrameType, nil
}

// DecodePeerAddress deserializes b as a PeerAddress frame. It returns
// ErrUnrecognizedFrame if the header's FrameType is not
// FrameTypePeerAddress, leaving the caller free to treat b as opaque
// application payload instead of a protocol violation.
func DecodePeerAddress(b []byte) (PeerAddress, error) {
	ft, err := PeekFrameType(b)
	if err != nil {
		return PeerAddress{}, err
	}
	if ft != FrameTypePeerAddress {
		return PeerAddress{}, ErrUnrecognizedFrame
	}
	var w wirePeerAddress
	if err := data.Unmarshal(&w, b); err != nil {
		return PeerAddress{}, fmt.Errorf("wire: decode peer address: %w", err)
	}
	return PeerAddress{
		GatewayID:   string(w.GatewayID),
		PeerAddress: string(w.PeerAddress),
		Timestamp:   w.Timestamp,
	}, nil
}
