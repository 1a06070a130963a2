package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/hexgate/smime-engine/internal/engine"
)

func decryptCmd() *cobra.Command {
	var inPath, outPath string
	var armor bool

	cmd := &cobra.Command{
		Use:   "decrypt",
		Short: "Decrypt S/MIME ciphertext",
		RunE: func(cmd *cobra.Command, args []string) error {
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

			enc := engine.EncNone
			if armor {
				enc = engine.EncArmor
			}

			return runSession(func(s *engine.Session) *engine.Error {
				return s.Decrypt(in, enc, out)
			}, defaultStatusHandler("decrypt"), nil)
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "-", "ciphertext input path (- for stdin)")
	cmd.Flags().StringVar(&outPath, "out", "-", "plaintext output path (- for stdout)")
	cmd.Flags().BoolVar(&armor, "armor", false, "ciphertext is PEM/armored")
	return cmd
}

func openInput(path string) (*os.File, error) {
	if path == "-" || path == "" {
		return os.Stdin, nil
	}
	return os.Open(path)
}

func createOutput(path string) (*os.File, error) {
	if path == "-" || path == "" {
		return os.Stdout, nil
	}
	return os.Create(path)
}
