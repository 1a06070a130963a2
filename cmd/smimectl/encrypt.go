package main

import (
	"github.com/spf13/cobra"

	"github.com/hexgate/smime-engine/internal/engine"
)

func encryptCmd() *cobra.Command {
	var inPath, outPath string
	var armor bool
	var recipients []string

	cmd := &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt plaintext for one or more recipients",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(recipients) == 0 {
				return errNoRecipients
			}
			in, err := openInput(inPath)
			if err != nil {
				return err
			}
			defer in.Close()
			out, err := createOutput(outPath)
			if err != nil {
				return err
			}
			defer out.Close()

			return runSession(func(s *engine.Session) *engine.Error {
				return s.Encrypt(in, engine.EncNone, out, armor, recipients)
			}, defaultStatusHandler("encrypt"), nil)
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "-", "plaintext input path (- for stdin)")
	cmd.Flags().StringVar(&outPath, "out", "-", "ciphertext output path (- for stdout)")
	cmd.Flags().BoolVar(&armor, "armor", true, "emit armored (PEM) ciphertext")
	cmd.Flags().StringArrayVar(&recipients, "recipient", nil, "recipient certificate identifier (repeatable)")
	return cmd
}

var errNoRecipients = fmtError("at least one --recipient is required")
