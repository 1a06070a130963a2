package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hexgate/smime-engine/internal/engine"
)

// genkeyParams mirrors the subset of the helper's Libgcrypt-style
// key-generation parameter block this CLI exposes.
type genkeyParams struct {
	KeyType    string `mapstructure:"key_type"`
	KeyLength  int    `mapstructure:"key_length"`
	NameDN     string `mapstructure:"name_dn"`
	NameEmail  string `mapstructure:"name_email"`
	ExpireDate string `mapstructure:"expire_date"`
}

func genkeyCmd() *cobra.Command {
	var paramsPath, outPath string

	cmd := &cobra.Command{
		Use:   "genkey",
		Short: "Generate a new key pair from a YAML parameter file",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(paramsPath)
			if err != nil {
				return err
			}

			var asMap map[string]any
			if err := yaml.Unmarshal(raw, &asMap); err != nil {
				return fmt.Errorf("parsing %s: %w", paramsPath, err)
			}

			var p genkeyParams
			if err := mapstructure.Decode(asMap, &p); err != nil {
				return fmt.Errorf("decoding genkey params: %w", err)
			}
			if p.KeyType == "" {
				return fmtError("key_type is required")
			}

			doc := renderGenkeyDocument(p)

			out, err := createOutput(outPath)
			if err != nil {
				return err
			}
			defer out.Close()

			return runSession(func(s *engine.Session) *engine.Error {
				return s.Genkey(strings.NewReader(doc), out, false)
			}, defaultStatusHandler("genkey"), nil)
		},
	}
	cmd.Flags().StringVar(&paramsPath, "params", "", "YAML file describing the key to generate (required)")
	cmd.Flags().StringVar(&outPath, "out", "-", "public key output path (- for stdout)")
	cmd.MarkFlagRequired("params")
	return cmd
}

// renderGenkeyDocument formats p as the line-oriented parameter block
// the helper's GENKEY command expects on INPUT.
func renderGenkeyDocument(p genkeyParams) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Key-Type: %s\n", p.KeyType)
	if p.KeyLength > 0 {
		fmt.Fprintf(&b, "Key-Length: %d\n", p.KeyLength)
	}
	if p.NameDN != "" {
		fmt.Fprintf(&b, "Name-DN: %s\n", p.NameDN)
	}
	if p.NameEmail != "" {
		fmt.Fprintf(&b, "Name-Email: %s\n", p.NameEmail)
	}
	if p.ExpireDate != "" {
		fmt.Fprintf(&b, "Expire-Date: %s\n", p.ExpireDate)
	}
	b.WriteString("%commit\n")
	return b.String()
}
