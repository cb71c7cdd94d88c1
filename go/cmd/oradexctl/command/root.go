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

// Package command implements the oradexctl CLI.
package command

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/oradex/oradex-go/go/config"
)

// OradexCommand holds the state shared by oradexctl subcommands: the
// config loader, the merged settings, and the logger built from them.
// The settings are populated by the root PersistentPreRunE, so RunE
// implementations may rely on them.
type OradexCommand struct {
	loader *config.Loader
	file   *config.File
	logger *slog.Logger
}

// Config returns the merged settings. Valid once the root command's
// PersistentPreRunE has run.
func (oc *OradexCommand) Config() *config.File {
	return oc.file
}

// Logger returns the logger configured from the merged settings.
func (oc *OradexCommand) Logger() *slog.Logger {
	if oc.logger == nil {
		return slog.Default()
	}
	return oc.logger
}

// GetRootCommand creates and returns the root command for oradexctl with
// all subcommands.
func GetRootCommand() *cobra.Command {
	oc := &OradexCommand{
		loader: config.NewLoader(nil),
	}

	root := &cobra.Command{
		Use:   "oradexctl",
		Short: "Diagnostics and utilities for the Oradex Go driver",
		Long: `oradexctl bundles small diagnostic tools for working with Oradex
connections: connect-string checks, auth digest computation, statement
execution against the built-in demo server, and pool load runs.

Configuration:
  Settings are merged from an oradex.yaml config file, a named profile
  (--profile), ORADEX_* environment variables, and flags, in ascending
  precedence. The config file is searched for in the current directory
  and ~/.oradex unless --config-file pins an exact path.`,
	}

	oc.loader.RegisterFlags(root.PersistentFlags())
	root.PersistentFlags().String("log-level", "",
		"Log level overriding the config file. (Options: debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "",
		"Log format overriding the config file. (Options: text, json)")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Silence usage for application errors, but allow it for flag
		// errors. This runs after flag parsing, so flag errors still
		// show usage.
		cmd.SilenceUsage = true

		if err := oc.loader.BindFlags(root.PersistentFlags(), map[string]string{
			"log-level":  "logging.level",
			"log-format": "logging.format",
		}); err != nil {
			return err
		}

		file, err := oc.loader.Load()
		if err != nil {
			return err
		}
		oc.file = file
		oc.logger = config.SetupLogging(file.Logging)
		slog.SetDefault(oc.logger)
		return nil
	}

	root.AddCommand(AddCheckCommand(oc))
	root.AddCommand(AddDigestCommand())
	root.AddCommand(AddExecCommand(oc))
	root.AddCommand(AddBenchCommand(oc))
	root.AddCommand(AddProfileCommand(oc))

	return root
}
