package main

import (
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/hexgate/smime-engine/internal/engine"
)

func keylistCmd() *cobra.Command {
	var secret, extended bool
	var patterns []string

	cmd := &cobra.Command{
		Use:   "keylist",
		Short: "List keys/certificates known to the helper",
		RunE: func(cmd *cobra.Command, args []string) error {
			var records [][]byte

			colonFn := func(record []byte) int {
				cp := make([]byte, len(record))
				copy(cp, record)
				records = append(records, cp)
				return 0
			}

			err := runSession(func(s *engine.Session) *engine.Error {
				if extended {
					return s.ListKeysExtended(patterns, secret)
				}
				pattern := ""
				if len(patterns) > 0 {
					pattern = patterns[0]
				}
				return s.ListKeys(pattern, secret)
			}, defaultStatusHandler("keylist"), colonFn)
			if err != nil {
				return err
			}

			renderKeylist(records)
			return nil
		},
	}
	cmd.Flags().BoolVar(&secret, "secret", false, "list secret keys instead of certificates")
	cmd.Flags().BoolVar(&extended, "extended", false, "use the extended (multi-pattern) list form")
	cmd.Flags().StringArrayVar(&patterns, "pattern", nil, "search pattern (repeatable with --extended)")
	return cmd
}

// renderKeylist prints the helper's colon-delimited records (the same
// convention as `gpg --with-colons`) as a five-column table: missing
// fields are left empty, and fields past the fourth are joined with ':'
// into the last column.
func renderKeylist(records [][]byte) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"type", "field2", "field3", "keyid/uid", "rest"})

	for _, rec := range records {
		fields := strings.Split(string(rec), ":")
		row := make([]string, 5)
		for i := range row {
			if i < len(fields) {
				row[i] = fields[i]
			}
		}
		if len(fields) > 5 {
			row[4] = strings.Join(fields[4:], ":")
		}
		table.Append(row)
	}
	table.Render()
}
