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

// meshctl is a small standalone binary that drives one engine through
// its public API, the way the teacher's own cmd/ binaries wrap a
// single service for an operator to poke at from the command line.
//
// It has no real socket transport to dial: the only transport
// component this core ships is the in-process mock (spec component
// H), so meshctl binds and connects to a second in-process peer rather
// than a remote host, then prints the events both engines report over
// a number of process() rounds; it joins no space and sends no
// payload. A real
// wire transport is a separate, pluggable implementation of
// transport.Transport left to deployment, per spec §1.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"meshnet/bootstrap"
	"meshnet/clock"
	"meshnet/config"
	"meshnet/dht"
	"meshnet/dht/memdht"
	"meshnet/engine"
	"meshnet/identity"
	"meshnet/transport"
	"meshnet/transport/mocknet"

	"github.com/bfix/gospel/logger"
)

func main() {
	var (
		configPath string
		seed       string
		ticks      int
	)
	flag.StringVar(&configPath, "config", "", "path to an engine config JSON file")
	flag.StringVar(&seed, "seed", "", "base64 seed for a deterministic identity (random if empty)")
	flag.IntVar(&ticks, "ticks", 20, "number of process() rounds to run")
	flag.Parse()

	fmt.Println("======================================================================")
	fmt.Println("meshctl - peer-to-peer agent runtime core (demo driver)")
	fmt.Println("======================================================================")

	var cfg *config.EngineConfig
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg = &config.EngineConfig{BindURL: "mocknet://local", LogLevel: "INFO"}
	}

	id, err := newIdentity(seed)
	if err != nil {
		fmt.Fprintf(os.Stderr, "identity: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("local peer address: %s\n", id.PeerAddress)

	if len(cfg.BootstrapNodes) > 0 {
		resolver := bootstrap.NewResolver("8.8.8.8:53")
		nodes, err := resolver.ResolveNodes(cfg.BootstrapNodes)
		if err != nil {
			logger.Printf(logger.WARN, "[meshctl] bootstrap resolution failed: %v\n", err)
		} else {
			fmt.Printf("bootstrap nodes: %v\n", nodes)
		}
	}

	clk := clock.New()
	net := mocknet.NewNetwork()

	localDHT := memdht.New()
	localDHT.SetThisPeer(dht.PeerRecord{PeerAddress: id.PeerAddress, URI: transport.URI(cfg.BindURL), Timestamp: clk.SinceEpochMs()})

	peerDHT := memdht.New()
	peerIdentity, err := identity.Generate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate peer identity: %v\n", err)
		os.Exit(1)
	}
	peerDHT.SetThisPeer(dht.PeerRecord{PeerAddress: peerIdentity.PeerAddress, URI: "mocknet://peer", Timestamp: clk.SinceEpochMs()})

	dhtFactory := func() dht.DHT { return memdht.New() }
	eng := engine.New("local", net.NewNode("local"), localDHT, dhtFactory, clk)
	peerEngine := engine.New("peer", net.NewNode("peer"), peerDHT, dhtFactory, clk)

	eng.Post(engine.BindRequest{URI: transport.URI(cfg.BindURL)})
	peerEngine.Post(engine.BindRequest{URI: "mocknet://peer"})
	eng.Process()
	peerEngine.Process()

	eng.Post(engine.ConnectRequest{URI: "mocknet://peer"})

	for i := 0; i < ticks; i++ {
		_, events := eng.Process()
		for _, ev := range events {
			fmt.Printf("tick %d: local observed %T\n", i, ev.Event)
		}
		_, peerEvents := peerEngine.Process()
		for _, ev := range peerEvents {
			fmt.Printf("tick %d: peer observed %T\n", i, ev.Event)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func newIdentity(seed string) (*identity.Identity, error) {
	if seed == "" {
		return identity.Generate()
	}
	return identity.NewFromSeed(seed)
}
