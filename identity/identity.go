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

// Package identity derives the long-term keypair and short peer address
// string a local node uses to identify itself to a DHT and to other
// peers (SPEC_FULL §3, domain stack item "gospel").
package identity

import (
	"encoding/base64"
	"fmt"

	"meshnet/util"

	"github.com/bfix/gospel/crypto/ed25519"
	"golang.org/x/crypto/blake2b"
)

// Identity holds a local node's signing keypair and the derived peer
// address it presents to the DHT and to other gateways.
type Identity struct {
	Priv        *ed25519.PrivateKey
	Pub         *ed25519.PublicKey
	PeerAddress string
}

// NewFromSeed derives an Identity from a base64-encoded 32-byte EdDSA
// seed, the same seed encoding the node's configuration file carries
// (mirrors how a local node's long-term key is loaded from its seed).
func NewFromSeed(seedB64 string) (*Identity, error) {
	seed, err := base64.StdEncoding.DecodeString(seedB64)
	if err != nil {
		return nil, fmt.Errorf("identity: decode seed: %w", err)
	}
	return fromSeedBytes(seed)
}

// Generate creates a fresh random Identity, for bootstrap and tests
// where no persisted seed exists yet.
func Generate() (*Identity, error) {
	return fromSeedBytes(util.NewRndArray(32))
}

func fromSeedBytes(seed []byte) (*Identity, error) {
	prv := ed25519.NewPrivateKeyFromSeed(seed)
	pub := prv.Public()
	addr, err := peerAddress(pub)
	if err != nil {
		return nil, err
	}
	return &Identity{Priv: prv, Pub: pub, PeerAddress: addr}, nil
}

// peerAddress derives a short, DHT-key-sized peer address from a public
// key by hashing it with blake2b-256 and base64-url-encoding the
// digest, rather than using the full public key as the address on the
// wire.
func peerAddress(pub *ed25519.PublicKey) (string, error) {
	sum := blake2b.Sum256(pub.Bytes())
	return base64.RawURLEncoding.EncodeToString(sum[:]), nil
}
