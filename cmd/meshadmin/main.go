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

// meshadmin is a debug/introspection HTTP server for a running engine:
// list known peers, list open connections, and trigger a manual
// process() tick, over JSON-RPC. Grounded on the teacher's
// service/rpc.go ("JSON-RPC interface ... for perform, manage and
// monitor GNUnet activities"), adapted from a global per-service
// router to a single admin router wrapping one engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"meshnet/clock"
	"meshnet/dht"
	"meshnet/dht/memdht"
	"meshnet/engine"
	"meshnet/identity"
	"meshnet/transport"
	"meshnet/transport/mocknet"

	"github.com/bfix/gospel/logger"
	"github.com/gorilla/mux"
	"github.com/gorilla/rpc"
	rpcjson "github.com/gorilla/rpc/json"
)

func main() {
	var addr string
	flag.StringVar(&addr, "addr", "127.0.0.1:8088", "listen address for the admin RPC endpoint")
	flag.Parse()

	clk := clock.New()
	net := mocknet.NewNetwork()
	d := memdht.New()
	id, err := identity.Generate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate identity: %v\n", err)
		os.Exit(1)
	}
	d.SetThisPeer(dht.PeerRecord{PeerAddress: id.PeerAddress, URI: "mocknet://admin", Timestamp: clk.SinceEpochMs()})

	eng := engine.New("admin", net.NewNode("admin"), d, func() dht.DHT { return memdht.New() }, clk)
	eng.Post(engine.BindRequest{URI: transport.URI("mocknet://admin")})
	eng.Process()

	var mu sync.Mutex
	admin := NewAdminService(eng, &mu)

	rpcServer := rpc.NewServer()
	rpcServer.RegisterCodec(rpcjson.NewCodec(), "application/json")
	if err := rpcServer.RegisterService(admin, ""); err != nil {
		fmt.Fprintf(os.Stderr, "register admin service: %v\n", err)
		os.Exit(1)
	}

	router := mux.NewRouter()
	router.Handle("/rpc", rpcServer)

	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		logger.Printf(logger.INFO, "[meshadmin] listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf(logger.WARN, "[meshadmin] server stopped: %v\n", err)
		}
	}()

	// Background pump: drive the engine's own process() round
	// independently of incoming RPC calls, under the same mutex the
	// RPC handlers take.
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
			return
		case <-ticker.C:
			mu.Lock()
			eng.Process()
			mu.Unlock()
		}
	}
}
