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

package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oradex/oradex-go/go/odxprotocol/client"
)

// AddCheckCommand adds the check subcommand.
func AddCheckCommand(oc *OradexCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "check <connect-string>",
		Short: "Parse and validate a connect string",
		Long: `check parses a connect string of the form host[:port]/service and
prints the resolved endpoint. It also validates the merged pool and
logging settings, so a broken config file surfaces here rather than at
connect time.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, oc, args[0])
		},
	}
}

func runCheck(cmd *cobra.Command, oc *OradexCommand, dsn string) error {
	info, err := client.ParseConnectString(dsn)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "host:    %s\n", info.Host)
	fmt.Fprintf(w, "port:    %d\n", info.Port)
	fmt.Fprintf(w, "service: %s\n", info.Service)
	fmt.Fprintf(w, "address: %s\n", info.Addr())

	if file := oc.Config(); file != nil {
		if err := file.Validate(); err != nil {
			return err
		}
		fmt.Fprintln(w, "config:  ok")
	}
	return nil
}
