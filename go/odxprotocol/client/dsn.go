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

package client

import (
	"net"
	"strconv"
	"strings"

	"github.com/oradex/oradex-go/go/odxerrors"
)

// DefaultPort is the well-known ODX listener port.
const DefaultPort = 1521

// ConnectionInfo is a parsed connect string.
type ConnectionInfo struct {
	Host    string
	Port    int
	Service string
}

// Addr returns the host:port dial address.
func (i ConnectionInfo) Addr() string {
	return net.JoinHostPort(i.Host, strconv.Itoa(i.Port))
}

// ParseConnectString parses the easy-connect form "host[:port]/service".
// The port defaults to DefaultPort. Full descriptor strings (the
// parenthesized DESCRIPTION form) are recognized but not supported.
func ParseConnectString(s string) (ConnectionInfo, error) {
	if s == "" {
		return ConnectionInfo{}, odxerrors.InvalidConfigurationf("empty connect string")
	}
	if strings.HasPrefix(s, "(") {
		return ConnectionInfo{}, odxerrors.NotImplementedf("descriptor connect strings")
	}

	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return ConnectionInfo{}, odxerrors.InvalidConfigurationf("invalid connect string: %s", s)
	}

	host := parts[0]
	port := DefaultPort
	if h, p, ok := strings.Cut(parts[0], ":"); ok {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > 65535 {
			return ConnectionInfo{}, odxerrors.InvalidConfigurationf("invalid port number: %s", p)
		}
		host = h
		port = n
	}
	if host == "" {
		return ConnectionInfo{}, odxerrors.InvalidConfigurationf("invalid connect string: %s", s)
	}

	return ConnectionInfo{Host: host, Port: port, Service: parts[1]}, nil
}
