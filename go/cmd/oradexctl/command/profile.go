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

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/oradex/oradex-go/go/config"
	"github.com/oradex/oradex-go/go/odxerrors"
)

// AddProfileCommand adds the profile subcommand group.
func AddProfileCommand(oc *OradexCommand) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage named connection profiles",
		Long: `Profiles are connection shorthands stored in a YAML file (default
~/.oradex/profiles.yaml) and applied with the global --profile flag.`,
	}

	cmd.AddCommand(addProfileListCommand())
	cmd.AddCommand(addProfileSetCommand())
	cmd.AddCommand(addProfileDeleteCommand())
	return cmd
}

func addProfileListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openProfileStore(cmd)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if store.Len() == 0 {
				fmt.Fprintln(w, "no profiles")
				return nil
			}
			for _, name := range store.Names() {
				p, _ := store.Get(name)
				fmt.Fprintf(w, "%s\t%s", name, p.ConnectString)
				if p.Username != "" {
					fmt.Fprintf(w, "\t%s", p.Username)
				}
				fmt.Fprintln(w)
			}
			return nil
		},
	}
}

func addProfileSetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <name>",
		Short: "Add or replace a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			connectString, _ := cmd.Flags().GetString("connect-string")
			username, _ := cmd.Flags().GetString("user")
			password, _ := cmd.Flags().GetString("password")
			privilege, _ := cmd.Flags().GetString("privilege")

			store, err := openProfileStore(cmd)
			if err != nil {
				return err
			}
			store.Set(args[0], config.Profile{
				ConnectString: connectString,
				Username:      username,
				Password:      password,
				Privilege:     privilege,
			})
			if err := store.Save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved profile %q\n", args[0])
			return nil
		},
	}

	cmd.Flags().String("connect-string", "", "Connect string, host[:port]/service (required)")
	cmd.Flags().String("user", "", "Username")
	cmd.Flags().String("password", "", "Password or TOKEN:-prefixed bearer token")
	cmd.Flags().String("privilege", "", "Session privilege. (Options: SYSDBA, SYSOPER)")
	_ = cmd.MarkFlagRequired("connect-string")

	return cmd
}

func addProfileDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openProfileStore(cmd)
			if err != nil {
				return err
			}
			if !store.Delete(args[0]) {
				return odxerrors.InvalidConfigurationf("no profile named %q", args[0])
			}
			if err := store.Save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted profile %q\n", args[0])
			return nil
		},
	}
}

// openProfileStore resolves the profiles path from the global
// --profiles-file flag, falling back to the default location.
func openProfileStore(cmd *cobra.Command) (*config.ProfileStore, error) {
	path, _ := cmd.Flags().GetString("profiles-file")
	if path == "" {
		var err error
		path, err = config.DefaultProfilesPath()
		if err != nil {
			return nil, err
		}
	}
	return config.LoadProfiles(afero.NewOsFs(), path)
}
