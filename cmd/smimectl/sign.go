package main

import (
	"github.com/spf13/cobra"

	"github.com/hexgate/smime-engine/internal/engine"
)

func signCmd() *cobra.Command {
	var inPath, outPath string
	var armor, detached bool
	var includeCerts int

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a document",
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

			return runSession(func(s *engine.Session) *engine.Error {
				return s.Sign(in, engine.EncNone, out, armor, detached, includeCerts)
			}, defaultStatusHandler("sign"), nil)
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "-", "document input path (- for stdin)")
	cmd.Flags().StringVar(&outPath, "out", "-", "signature output path (- for stdout)")
	cmd.Flags().BoolVar(&armor, "armor", true, "emit armored (PEM) signature")
	cmd.Flags().BoolVar(&detached, "detached", false, "produce a detached signature")
	cmd.Flags().IntVar(&includeCerts, "include-certs", -1, "number of certificates to embed (-2 chain, -1 default, 0 none)")
	return cmd
}
