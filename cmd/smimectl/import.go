package main

import (
	"github.com/spf13/cobra"

	"github.com/hexgate/smime-engine/internal/engine"
)

func importCmd() *cobra.Command {
	var inPath string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import certificates / keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := openInput(inPath)
			if err != nil {
				return err
			}
			defer in.Close()

			return runSession(func(s *engine.Session) *engine.Error {
				return s.Import(in, engine.EncNone)
			}, defaultStatusHandler("import"), nil)
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "-", "key material input path (- for stdin)")
	return cmd
}
