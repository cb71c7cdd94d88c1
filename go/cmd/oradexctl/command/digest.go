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
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oradex/oradex-go/go/odxerrors"
	"github.com/oradex/oradex-go/go/odxprotocol/auth"
)

// AddDigestCommand adds the digest subcommand.
func AddDigestCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Compute the challenge response for a password and salt",
		Long: `digest computes the response the driver would send for a password
challenge, printed as hex. Feed it the salt captured from a server trace
to compare digests when diagnosing logon denials.`,
		Args: cobra.NoArgs,
		RunE: runDigest,
	}

	cmd.Flags().String("password", "", "Password to digest (required)")
	cmd.Flags().String("salt-hex", "", "Challenge salt as a hex string (required)")

	_ = cmd.MarkFlagRequired("password")
	_ = cmd.MarkFlagRequired("salt-hex")

	return cmd
}

func runDigest(cmd *cobra.Command, args []string) error {
	password, _ := cmd.Flags().GetString("password")
	saltHex, _ := cmd.Flags().GetString("salt-hex")

	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return odxerrors.InvalidConfigurationf("decode salt: %s", err)
	}

	digest := auth.PasswordDigest(password, salt)
	fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(digest))
	return nil
}
