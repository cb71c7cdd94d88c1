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

// Package config loads driver settings from files, environment
// variables, flags, and named profiles, in ascending precedence.
package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/oradex/oradex-go/go/odxerrors"
	"github.com/oradex/oradex-go/go/oradex"
)

// File is the full on-disk configuration schema. Viper keys follow the
// mapstructure tags, so connect.username maps to the environment
// variable ORADEX_CONNECT_USERNAME.
type File struct {
	Connect ConnectSettings `mapstructure:"connect"`
	Pool    PoolSettings    `mapstructure:"pool"`
	Logging LogSettings     `mapstructure:"logging"`
}

// ConnectSettings configure a single connection.
type ConnectSettings struct {
	ConnectString  string            `mapstructure:"connect_string"`
	Username       string            `mapstructure:"username"`
	Password       string            `mapstructure:"password"`
	Privilege      oradex.Privilege  `mapstructure:"privilege"`
	StmtCacheSize  int               `mapstructure:"stmt_cache_size"`
	FetchArraySize int               `mapstructure:"fetch_array_size"`
	DialTimeout    time.Duration     `mapstructure:"dial_timeout"`
	Params         map[string]string `mapstructure:"params"`
}

// PoolSettings size a session pool.
type PoolSettings struct {
	MinSessions      int           `mapstructure:"min_sessions"`
	MaxSessions      int           `mapstructure:"max_sessions"`
	SessionIncrement int           `mapstructure:"session_increment"`
	GetTimeout       time.Duration `mapstructure:"get_timeout"`
	IdleTimeout      time.Duration `mapstructure:"idle_timeout"`
	MaxLifetime      time.Duration `mapstructure:"max_lifetime"`
	ReapInterval     time.Duration `mapstructure:"reap_interval"`
	PingOnGet        bool          `mapstructure:"ping_on_get"`
	Name             string        `mapstructure:"name"`
}

// LogSettings configure the slog handler.
type LogSettings struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// DriverConfig maps the loaded settings onto a driver Config. The
// transport dialer must still be supplied by the caller.
func (f *File) DriverConfig() *oradex.Config {
	return &oradex.Config{
		ConnectString:  f.Connect.ConnectString,
		Username:       f.Connect.Username,
		Password:       f.Connect.Password,
		Privilege:      f.Connect.Privilege,
		StmtCacheSize:  f.Connect.StmtCacheSize,
		FetchArraySize: f.Connect.FetchArraySize,
		DialTimeout:    f.Connect.DialTimeout,
		Params:         f.Connect.Params,
	}
}

// PoolConfig maps the loaded settings onto a pool sizing.
func (f *File) PoolConfig() *oradex.PoolConfig {
	return &oradex.PoolConfig{
		MinSessions:      f.Pool.MinSessions,
		MaxSessions:      f.Pool.MaxSessions,
		SessionIncrement: f.Pool.SessionIncrement,
		GetTimeout:       f.Pool.GetTimeout,
		IdleTimeout:      f.Pool.IdleTimeout,
		MaxLifetime:      f.Pool.MaxLifetime,
		ReapInterval:     f.Pool.ReapInterval,
		PingOnGet:        f.Pool.PingOnGet,
		Name:             f.Pool.Name,
	}
}

// Validate checks the merged settings before any connection attempt.
func (f *File) Validate() error {
	if f.Connect.ConnectString != "" {
		if err := f.DriverConfig().Validate(); err != nil {
			return err
		}
	}
	if err := f.PoolConfig().Validate(); err != nil {
		return err
	}
	if _, err := parseLevel(f.Logging.Level); err != nil {
		return err
	}
	return nil
}

// privilegeHookFunc decodes privilege names in config files into the
// driver enum.
func privilegeHookFunc(from, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(oradex.PrivNone) {
		return data, nil
	}
	switch from.Kind() {
	case reflect.String:
		return oradex.ParsePrivilege(data.(string))
	case reflect.Int:
		return oradex.Privilege(data.(int)), nil
	}
	return data, nil
}

// NotFoundHandling controls what Load does when no config file exists in
// any search path. It implements pflag.Value.
type NotFoundHandling int

const (
	// IgnoreNotFound proceeds silently on defaults, environment, and
	// flags.
	IgnoreNotFound NotFoundHandling = iota
	// WarnNotFound logs a warning, then proceeds as IgnoreNotFound.
	WarnNotFound
	// ErrorNotFound fails the load.
	ErrorNotFound
)

var handlingNames = map[string]NotFoundHandling{
	"ignore": IgnoreNotFound,
	"warn":   WarnNotFound,
	"error":  ErrorNotFound,
}

func (h *NotFoundHandling) Set(arg string) error {
	v, ok := handlingNames[strings.ToLower(arg)]
	if !ok {
		return fmt.Errorf("unknown handling name %s (options: error, ignore, warn)", arg)
	}
	*h = v
	return nil
}

func (h *NotFoundHandling) String() string {
	for name, v := range handlingNames {
		if v == *h {
			return name
		}
	}
	return "<UNKNOWN>"
}

func (h *NotFoundHandling) Type() string { return "NotFoundHandling" }

func parseLevel(s string) (string, error) {
	switch strings.ToLower(s) {
	case "", "debug", "info", "warn", "error":
		return strings.ToLower(s), nil
	}
	return "", odxerrors.InvalidConfigurationf("unknown log level %q", s)
}
