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
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/oradex/oradex-go/go/common/odxtypes"
	"github.com/oradex/oradex-go/go/odxerrors"
	"github.com/oradex/oradex-go/go/oradex"
	"github.com/oradex/oradex-go/go/tools/fakeodxdb"
)

const execTimeout = 30 * time.Second

// AddExecCommand adds the exec subcommand.
func AddExecCommand(oc *OradexCommand) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec <statement>",
		Short: "Run one statement against the built-in demo server",
		Long: `exec connects to an in-process demo server seeded with a small
EMPLOYEES dataset, runs the given statement, and prints the result.
It exists to try out statements, positional binds, and output formats
without a real server: any SELECT returns the demo rows, any DML
reports one affected row.`,
		Example: `  oradexctl exec 'SELECT * FROM employees'
  oradexctl exec --bind 42 --bind King 'SELECT * FROM employees WHERE id = :1 AND name = :2'
  oradexctl exec --format json 'SELECT first_name, salary FROM employees'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(cmd, oc, args[0])
		},
	}

	cmd.Flags().String("dsn", "", "Connect string; defaults to the configured one, then localhost/DEMO")
	cmd.Flags().String("user", "", "Username overriding the configured one")
	cmd.Flags().String("password", "", "Password overriding the configured one")
	cmd.Flags().StringArray("bind", nil, "Positional bind value, repeatable; numbers and booleans are detected")
	cmd.Flags().String("format", "table", "Output format. (Options: table, json)")

	return cmd
}

func runExec(cmd *cobra.Command, oc *OradexCommand, sql string) error {
	dsn, _ := cmd.Flags().GetString("dsn")
	user, _ := cmd.Flags().GetString("user")
	password, _ := cmd.Flags().GetString("password")
	format, _ := cmd.Flags().GetString("format")
	bindArgs, _ := cmd.Flags().GetStringArray("bind")

	if format != "table" && format != "json" {
		return odxerrors.InvalidConfigurationf("unknown output format %q (options: table, json)", format)
	}

	cfg := oc.Config().DriverConfig()
	if dsn != "" {
		cfg.ConnectString = dsn
	}
	if cfg.ConnectString == "" {
		cfg.ConnectString = "localhost/DEMO"
	}
	if user != "" {
		cfg.Username = user
	}
	if password != "" {
		cfg.Password = password
	}
	cfg.Logger = oc.Logger()
	cfg.Dialer = demoServer().Dialer()

	binds := make([]any, len(bindArgs))
	for i, raw := range bindArgs {
		binds[i] = parseBind(raw)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), execTimeout)
	defer cancel()

	conn, err := oradex.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close(context.Background()) }()

	rs, err := conn.Execute(ctx, sql, binds...)
	if err != nil {
		return err
	}

	if format == "json" {
		return printJSON(cmd.OutOrStdout(), rs)
	}
	return printTable(cmd.OutOrStdout(), rs)
}

// demoServer seeds a standalone fake server so arbitrary statements have
// something to answer with.
func demoServer() *fakeodxdb.Server {
	srv := fakeodxdb.NewStandalone()
	srv.SetName("demo")
	srv.AddQueryPattern(`select\s.*`, &fakeodxdb.ExpectedResult{
		Columns: demoColumns(),
		Rows:    demoRows(),
	})
	srv.AddQueryPattern(`(insert|update|delete)\s.*`, &fakeodxdb.ExpectedResult{
		RowsAffected: 1,
	})
	srv.SetNeverFail(true)
	return srv
}

func demoColumns() []odxtypes.ColumnInfo {
	return []odxtypes.ColumnInfo{
		{Name: "EMPLOYEE_ID", Type: odxtypes.TypeNumber, Precision: 6},
		{Name: "FIRST_NAME", Type: odxtypes.TypeVarchar2, Size: 20},
		{Name: "LAST_NAME", Type: odxtypes.TypeVarchar2, Size: 25},
		{Name: "SALARY", Type: odxtypes.TypeNumber, Precision: 8, Scale: 2},
	}
}

func demoRows() [][]odxtypes.Value {
	return [][]odxtypes.Value{
		{odxtypes.NewInt64(100), odxtypes.NewString("Steven"), odxtypes.NewString("King"), odxtypes.NewFloat64(24000)},
		{odxtypes.NewInt64(101), odxtypes.NewString("Neena"), odxtypes.NewString("Kochhar"), odxtypes.NewFloat64(17000)},
		{odxtypes.NewInt64(102), odxtypes.NewString("Lex"), odxtypes.NewString("De Haan"), odxtypes.NewFloat64(17000)},
	}
}

// parseBind interprets a --bind argument. Integers, decimals, and
// booleans are detected; everything else stays a string.
func parseBind(raw string) any {
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseBool(raw); err == nil {
		return v
	}
	return raw
}

func printTable(w io.Writer, rs *odxtypes.ResultSet) error {
	cols := rs.Columns()
	if len(cols) == 0 {
		_, err := fmt.Fprintf(w, "%d rows affected\n", rs.RowsAffected())
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = col.Name
	}
	fmt.Fprintln(tw, strings.Join(names, "\t"))

	err := rs.Collect(func(row *odxtypes.Row) error {
		cells := make([]string, row.Len())
		for i, v := range row.Values() {
			cells[i] = v.String()
		}
		_, err := fmt.Fprintln(tw, strings.Join(cells, "\t"))
		return err
	})
	if err != nil {
		return err
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "\n%d rows\n", rs.Len())
	return err
}

func printJSON(w io.Writer, rs *odxtypes.ResultSet) error {
	raw, err := json.MarshalIndent(rs, "", "  ")
	if err != nil {
		return odxerrors.Encodingf("encode result: %s", err)
	}
	_, err = fmt.Fprintln(w, string(raw))
	return err
}
