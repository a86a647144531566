package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openconceptlab/ocldev/checksum"
)

var (
	checksumKind  string
	checksumSmart bool
)

var checksumCmd = &cobra.Command{
	Use:   "checksum <file.json>",
	Short: "Compute the checksum of an OCL resource",
	Long: `Compute the standard or smart checksum of a resource, matching the
checksums the OCL API reports.

The input is a single JSON object (or a JSON array, which checksums
as a combined list). The resource kind is taken from the object's
"type" field unless --kind is given. Pass "-" to read stdin.

Examples:
  ocldev checksum concept.json
  ocldev checksum concept.json --smart
  cat mapping.json | ocldev checksum - --kind mapping`,
	Args: cobra.ExactArgs(1),
	RunE: runChecksum,
}

func init() {
	checksumCmd.Flags().StringVarP(&checksumKind, "kind", "k", "",
		"Resource kind, e.g. concept, mapping, source (default from the type field)")
	checksumCmd.Flags().BoolVar(&checksumSmart, "smart", false, "Compute the smart checksum")
}

func runChecksum(cmd *cobra.Command, args []string) error {
	var (
		raw []byte
		err error
	)
	if args[0] == "-" {
		raw, err = io.ReadAll(cmd.InOrStdin())
	} else {
		raw, err = os.ReadFile(args[0])
	}
	if err != nil {
		return err
	}

	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("parse resource JSON: %w", err)
	}

	kind := checksumKind
	if kind == "" {
		if m, ok := data.(map[string]any); ok {
			if t, ok := m["type"].(string); ok {
				kind = strings.ToLower(strings.ReplaceAll(t, " ", "_"))
			}
		}
		if kind == "" {
			return fmt.Errorf("resource has no type field; pass --kind")
		}
	}

	checksumType := checksum.Standard
	if checksumSmart {
		checksumType = checksum.Smart
	}

	sum, err := checksum.Generate(kind, data, checksumType)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), sum)
	return nil
}
