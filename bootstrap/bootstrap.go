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

// Package bootstrap resolves config.EngineConfig.BootstrapNodes entries
// of the form "dns:<name>" into concrete transport URIs via DNS TXT
// records (SPEC_FULL §3, domain stack item "miekg/dns"). The engine does
// not consume the resolved URIs itself.
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/bfix/gospel/logger"
	"github.com/miekg/dns"
)

// Resolver resolves "dns:" bootstrap entries using a configured DNS
// server. Other entry forms (already-concrete URIs) pass through
// unchanged.
type Resolver struct {
	dnsServer string // "host:port" of the resolver to query
	client    *dns.Client
}

// NewResolver creates a Resolver that queries dnsServer ("host:port")
// for TXT records.
func NewResolver(dnsServer string) *Resolver {
	return &Resolver{dnsServer: dnsServer, client: &dns.Client{Timeout: 5 * time.Second}}
}

// ResolveNodes expands every "dns:<name>" entry in nodes into the URIs
// carried in that name's TXT records (one URI per TXT string), and
// passes every other entry through unchanged.
func (r *Resolver) ResolveNodes(nodes []string) ([]string, error) {
	var out []string
	for _, n := range nodes {
		name, ok := strings.CutPrefix(n, "dns:")
		if !ok {
			out = append(out, n)
			continue
		}
		uris, err := r.resolveTXT(name)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: resolve %s: %w", name, err)
		}
		logger.Printf(logger.INFO, "[bootstrap] %s -> %d node(s)\n", name, len(uris))
		out = append(out, uris...)
	}
	return out, nil
}

func (r *Resolver) resolveTXT(name string) ([]string, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), dns.TypeTXT)

	resp, _, err := r.client.Exchange(msg, r.dnsServer)
	if err != nil {
		return nil, err
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("dns rcode %d", resp.Rcode)
	}
	var uris []string
	for _, rr := range resp.Answer {
		txt, ok := rr.(*dns.TXT)
		if !ok {
			continue
		}
		uris = append(uris, txt.Txt...)
	}
	return uris, nil
}
