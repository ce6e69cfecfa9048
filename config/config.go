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

// Package config loads the engine's JSON configuration file (ambient
// stack: spec §1 explicitly places "configuration/CLI loading" out of
// the core's scope, but SPEC_FULL §2 still wants a concrete loader in
// the teacher's idiom for cmd/meshctl and cmd/meshadmin to share).
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strings"

	"github.com/bfix/gospel/logger"
)

// ErrNoBindURL is returned by Validate when BindURL is empty — the only
// field the core engine itself reads (SPEC_FULL §2).
var ErrNoBindURL = errors.New("config: bind_url is required")

// Environ is a map of substitution variables applied to every string
// field of EngineConfig after it is loaded.
type Environ map[string]string

// EngineConfig is the full configuration surface spec §6 names for a
// running node: socket type, bootstrap peers, working directory, log
// level, the local bind address, and an opaque blob forwarded to the
// DHT factory.
type EngineConfig struct {
	Env Environ `json:"environ"`

	SocketType     string   `json:"socket_type"`
	BootstrapNodes []string `json:"bootstrap_nodes"`
	WorkDir        string   `json:"work_dir"`
	LogLevel       string   `json:"log_level"`
	BindURL        string   `json:"bind_url"`
	// DHTCustomConfig is opaque to the engine; it is handed to whatever
	// dht.DHT factory the caller constructs (SPEC_FULL §4 item 5).
	DHTCustomConfig json.RawMessage `json:"dht_custom_config"`
}

// Load reads fileName as JSON into an EngineConfig, applies
// ${VAR}-style substitutions from its own "environ" section, and
// validates the result.
func Load(fileName string) (*EngineConfig, error) {
	raw, err := os.ReadFile(fileName)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", fileName, err)
	}
	cfg := new(EngineConfig)
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", fileName, err)
	}
	applySubstitutions(cfg, cfg.Env)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields the engine itself depends on.
func (c *EngineConfig) Validate() error {
	if c.BindURL == "" {
		return ErrNoBindURL
	}
	return nil
}

var substRx = regexp.MustCompile(`\$\{([^}]*)\}`)

// substString replaces every ${NAME} occurrence in s with env[NAME],
// leaving unknown names untouched.
func substString(s string, env map[string]string) string {
	matches := substRx.FindAllStringSubmatch(s, -1)
	for _, m := range matches {
		if len(m[1]) == 0 {
			continue
		}
		subst, ok := env[m[1]]
		if !ok {
			continue
		}
		s = strings.ReplaceAll(s, "${"+m[1]+"}", subst)
	}
	return s
}

// applySubstitutions walks x (a pointer to a struct) and substitutes
// ${VAR} references: every string field repeatedly, until a pass makes
// no further change; every string-slice element in a single pass.
func applySubstitutions(x any, env map[string]string) {
	v := reflect.ValueOf(x)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return
	}
	var process func(v reflect.Value)
	process = func(v reflect.Value) {
		for i := 0; i < v.NumField(); i++ {
			fld := v.Field(i)
			if !fld.CanSet() {
				continue
			}
			switch fld.Kind() {
			case reflect.String:
				s := fld.String()
				for {
					s1 := substString(s, env)
					if s1 == s {
						break
					}
					logger.Printf(logger.DBG, "[config] %s --> %s\n", s, s1)
					s = s1
				}
				fld.SetString(s)
			case reflect.Struct:
				process(fld)
			case reflect.Slice:
				for j := 0; j < fld.Len(); j++ {
					e := fld.Index(j)
					if e.Kind() == reflect.String {
						e.SetString(substString(e.String(), env))
					}
				}
			}
		}
	}
	process(v.Elem())
}
