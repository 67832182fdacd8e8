package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wanmail/seleniumexample/database"

	_ "modernc.org/sqlite"
)

func newQueryCommand() *cobra.Command {
	var (
		action     string
		procedure  bool
		paramNames []string
	)
	cmd := &cobra.Command{
		Use:   "query [flags] SQL|PROCEDURE [values...]",
		Short: "Run a query, command or stored procedure against the test database",
		Example: `  webspec query --dsn test.db "SELECT name FROM users"
  webspec query --dsn test.db --action delete "DELETE FROM users WHERE active = 0"
  webspec query --db-driver sqlserver --dsn "$DSN" --procedure --param @FirstName GetUser Ann`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			h, err := conf.Database()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			switch {
			case action != "":
				a, err := database.ParseAction(action)
				if err != nil {
					return err
				}
				n, err := h.ExecuteCommand(ctx, a, args[0], toAny(args[1:])...)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%d rows affected\n", n)
				return nil
			case procedure:
				t, err := h.ExecuteStoredProcedure(ctx, args[0], paramNames, toAny(args[1:]))
				if err != nil {
					return err
				}
				return printTable(out, t)
			}
			t, err := h.QueryTable(ctx, args[0], toAny(args[1:])...)
			if err != nil {
				return err
			}
			return printTable(out, t)
		},
	}
	fs := cmd.Flags()
	fs.SortFlags = false
	fs.String("db-driver", "sqlite", "database/sql driver `name`")
	fs.String("dsn", "", "data source `name` of the database")
	fs.String("procedure-style", "exec", "stored procedure call `style`: exec or call")
	fs.StringVar(&action, "action", "", "run a data-changing statement: insert, update or delete")
	fs.BoolVar(&procedure, "procedure", false, "call the named stored procedure")
	fs.StringSliceVar(&paramNames, "param", nil, "stored procedure parameter `name`, repeated in order")
	return cmd
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func printTable(w io.Writer, t *database.Table) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(t.Columns, "\t"))
	for _, row := range t.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				cells[i] = "NULL"
				continue
			}
			cells[i] = fmt.Sprint(v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "(%d rows)\n", t.RowCount())
	return err
}
