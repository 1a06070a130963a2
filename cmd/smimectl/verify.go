package main

import (
	"github.com/spf13/cobra"

	"github.com/hexgate/smime-engine/internal/engine"
)

func verifyCmd() *cobra.Command {
	var sigPath, textPath, messagePath string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a signature, inline or detached",
		RunE: func(cmd *cobra.Command, args []string) error {
			sig, err := openInput(sigPath)
			if err != nil {
				return err
			}
			defer sig.Close()

			if messagePath != "" {
				msg, err := openInput(messagePath)
				if err != nil {
					return err
				}
				defer msg.Close()
				return runSession(func(s *engine.Session) *engine.Error {
					return s.VerifyDetached(sig, engine.EncNone, msg)
				}, defaultStatusHandler("verify"), nil)
			}

			out, err := createOutput(textPath)
			if err != nil {
				return err
			}
			defer out.Close()
			return runSession(func(s *engine.Session) *engine.Error {
				return s.VerifyInline(sig, engine.EncNone, out)
			}, defaultStatusHandler("verify"), nil)
		},
	}
	cmd.Flags().StringVar(&sigPath, "sig", "-", "signature input path (- for stdin)")
	cmd.Flags().StringVar(&textPath, "text-out", "-", "recovered message output path (inline signatures)")
	cmd.Flags().StringVar(&messagePath, "message", "", "original message input path (detached signatures)")
	return cmd
}
