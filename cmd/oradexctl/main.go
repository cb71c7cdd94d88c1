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

// oradexctl is the diagnostic companion for the Oradex Go driver:
// connect-string checks, auth digest computation, statement execution
// against the built-in demo server, and pool load runs.
package main

import (
	"log/slog"
	"os"

	"github.com/oradex/oradex-go/go/cmd/oradexctl/command"
)

func main() {
	if err := command.GetRootCommand().Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}
