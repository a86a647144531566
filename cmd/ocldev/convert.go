package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openconceptlab/ocldev/converter"
	"github.com/openconceptlab/ocldev/resources"
)

var (
	convertOutput       string
	convertDefinitions  string
	convertSpecialChars bool
)

var convertCmd = &cobra.Command{
	Use:   "convert <file.csv>",
	Short: "Convert a CSV file to OCL-formatted JSON lines",
	Long: `Convert a CSV file of OCL resources into the JSON-lines format the
bulk import API accepts.

The standard column definitions cover concepts, mappings, sources,
collections, organizations, and repository versions. Pass a YAML
definitions file to convert custom layouts.

Examples:
  ocldev convert concepts.csv                       # JSON lines on stdout
  ocldev convert concepts.csv -o concepts.json
  ocldev convert custom.csv -d definitions.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVarP(&convertOutput, "output", "o", "", "Output file (default stdout)")
	convertCmd.Flags().StringVarP(&convertDefinitions, "definitions", "d", "", "YAML resource definitions file")
	convertCmd.Flags().BoolVar(&convertSpecialChars, "allow-special-chars", false,
		"Keep special characters in resource IDs")
}

func runConvert(cmd *cobra.Command, args []string) error {
	list, err := resources.LoadCSVFile(args[0])
	if err != nil {
		return err
	}

	defs := converter.StandardDefinitions()
	if convertDefinitions != "" {
		defs, err = converter.LoadDefinitionsFile(convertDefinitions)
		if err != nil {
			return err
		}
	}

	var opts []converter.Option
	if convertSpecialChars {
		opts = append(opts, converter.AllowSpecialCharacters())
	}

	out, err := converter.New(defs, opts...).Process(cmd.Context(), converter.InputFromResourceList(list))
	if err != nil {
		return fmt.Errorf("convert %s: %w", args[0], err)
	}

	w, closeOut, err := outputWriter(convertOutput)
	if err != nil {
		return err
	}
	if err := out.WriteJSONLines(w); err != nil {
		closeOut()
		return err
	}
	return closeOut()
}
