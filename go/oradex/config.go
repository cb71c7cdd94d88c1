// Copyright 2025 Oradex, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package oradex is the public driver surface: connections, statements,
// and session pools over the ODX wire protocol.
package oradex

import (
	"crypto/tls"
	"log/slog"
	"maps"
	"strconv"
	"strings"
	"time"

	"github.com/oradex/oradex-go/go/odxerrors"
	"github.com/oradex/oradex-go/go/odxprotocol/client"
	"github.com/oradex/oradex-go/go/pools/connpool"
)

// Driver defaults.
const (
	DefaultStmtCacheSize    = 30
	DefaultFetchArraySize   = 100
	DefaultMinSessions      = 2
	DefaultMaxSessions      = 10
	DefaultSessionIncrement = 1
	DefaultGetTimeout       = 60 * time.Second
)

// Privilege selects an administrative session privilege.
type Privilege int

const (
	PrivNone Privilege = iota
	PrivSysDBA
	PrivSysOPER
)

func (p Privilege) String() string {
	switch p {
	case PrivSysDBA:
		return "SYSDBA"
	case PrivSysOPER:
		return "SYSOPER"
	}
	return ""
}

// ParsePrivilege converts a privilege name as found in config files or
// flags. The empty string means no elevated privilege.
func ParsePrivilege(s string) (Privilege, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return PrivNone, nil
	case "SYSDBA":
		return PrivSysDBA, nil
	case "SYSOPER":
		return PrivSysOPER, nil
	}
	return PrivNone, odxerrors.InvalidConfigurationf("unknown privilege %q", s)
}

// Config describes how to reach and authenticate against one service.
// The driver treats a Config as immutable: every use copies it, so a
// Config may be shared and reused freely after the call returns.
type Config struct {
	// ConnectString locates the service, "host[:port]/service".
	ConnectString string

	// Username and Password select the authentication strategy: both
	// empty means external authentication, a password with the "TOKEN:"
	// prefix means bearer-token authentication, anything else is a
	// salted password exchange.
	Username string
	Password string

	// Privilege requests SYSDBA or SYSOPER on the session.
	Privilege Privilege

	// StmtCacheSize bounds the per-connection statement cache.
	// Zero means DefaultStmtCacheSize; negative disables caching.
	StmtCacheSize int

	// FetchArraySize is the row prefetch hint sent to the server.
	FetchArraySize int

	// DialTimeout bounds transport establishment.
	DialTimeout time.Duration

	// TLSConfig enables encrypted transports when non-nil.
	TLSConfig *tls.Config

	// Params are extra session parameters sent on connect.
	Params map[string]string

	// Dialer opens the transport. Required; integrations and tests
	// supply one (the driver ships no production dialer).
	Dialer client.Dialer

	// Logger receives driver events. Defaults to slog.Default().
	Logger *slog.Logger
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	if c.Params != nil {
		out.Params = maps.Clone(c.Params)
	}
	return &out
}

// Validate checks the connect string without dialing.
func (c *Config) Validate() error {
	_, err := client.ParseConnectString(c.ConnectString)
	return err
}

// withDefaults clones and fills unset fields; callers keep their Config
// untouched.
func (c *Config) withDefaults() *Config {
	out := c.Clone()
	if out.StmtCacheSize == 0 {
		out.StmtCacheSize = DefaultStmtCacheSize
	}
	if out.FetchArraySize <= 0 {
		out.FetchArraySize = DefaultFetchArraySize
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	return out
}

// sessionConfig maps the driver config onto the protocol layer. Session
// attributes carry the privilege and fetch hints.
func (c *Config) sessionConfig() *client.Config {
	params := maps.Clone(c.Params)
	if params == nil {
		params = make(map[string]string)
	}
	if c.Privilege != PrivNone {
		params["privilege"] = c.Privilege.String()
	}
	params["fetch_array_size"] = strconv.Itoa(c.FetchArraySize)

	return &client.Config{
		ConnectString: c.ConnectString,
		Username:      c.Username,
		Password:      c.Password,
		DialTimeout:   c.DialTimeout,
		TLSConfig:     c.TLSConfig,
		Params:        params,
		Dialer:        c.Dialer,
		Logger:        c.Logger,
	}
}

// PoolConfig sizes a session pool.
type PoolConfig struct {
	// MinSessions is the warm floor, opened eagerly. Default 2.
	MinSessions int

	// MaxSessions caps live sessions. Default 10.
	MaxSessions int

	// SessionIncrement is the exhaustion growth burst. Default 1.
	SessionIncrement int

	// GetTimeout bounds waiting for a session. Default 60s.
	GetTimeout time.Duration

	// IdleTimeout discards idle sessions older than this on reuse.
	IdleTimeout time.Duration

	// MaxLifetime bounds total session age.
	MaxLifetime time.Duration

	// ReapInterval is how often a background sweep closes expired idle
	// sessions. Zero disables the sweep.
	ReapInterval time.Duration

	// PingOnGet revalidates reused idle sessions against the server.
	PingOnGet bool

	// Name labels the pool in logs and metrics.
	Name string

	// Logger receives pool events. Defaults to the connection logger.
	Logger *slog.Logger
}

// Clone returns a copy.
func (pc *PoolConfig) Clone() *PoolConfig {
	out := *pc
	return &out
}

// Validate rejects impossible sizings. Defaults are applied first, so
// a zero PoolConfig is valid.
func (pc *PoolConfig) Validate() error {
	cfg := pc.withDefaults().poolConfig()
	return cfg.Validate()
}

func (pc *PoolConfig) withDefaults() *PoolConfig {
	out := pc.Clone()
	if out.MinSessions == 0 {
		out.MinSessions = DefaultMinSessions
	}
	if out.MaxSessions == 0 {
		out.MaxSessions = DefaultMaxSessions
	}
	if out.SessionIncrement == 0 {
		out.SessionIncrement = DefaultSessionIncrement
	}
	if out.GetTimeout == 0 {
		out.GetTimeout = DefaultGetTimeout
	}
	if out.Name == "" {
		out.Name = "oradex"
	}
	return out
}

func (pc *PoolConfig) poolConfig() connpool.Config {
	return connpool.Config{
		Name:             pc.Name,
		MinSessions:      pc.MinSessions,
		MaxSessions:      pc.MaxSessions,
		SessionIncrement: pc.SessionIncrement,
		GetTimeout:       pc.GetTimeout,
		IdleTimeout:      pc.IdleTimeout,
		MaxLifetime:      pc.MaxLifetime,
		ReapInterval:     pc.ReapInterval,
		PingOnGet:        pc.PingOnGet,
		Logger:           pc.Logger,
	}
}
