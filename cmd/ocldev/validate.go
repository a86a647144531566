package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openconceptlab/ocldev/resources"
	"github.com/openconceptlab/ocldev/validator"
)

var validateSkipUnknown bool

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate OCL resources against their schemas",
	Long: `Validate a JSON-lines or CSV file of OCL resources against the
resource schemas.

The file format is detected from the extension: .csv files validate
as CSV rows, everything else as JSON lines. JSON validation rejects
unknown resource types; CSV validation skips them. Use
--skip-unknown to change either behavior.

Examples:
  ocldev validate concepts.json
  ocldev validate concepts.csv
  ocldev validate concepts.json --skip-unknown`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateSkipUnknown, "skip-unknown", false,
		"Skip resources with unrecognized types instead of failing")
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := args[0]

	var opts []validator.Option
	if cmd.Flags().Changed("skip-unknown") {
		opts = append(opts, validator.SkipUnknownTypes(validateSkipUnknown))
	}

	var (
		v    *validator.Validator
		list *resources.ResourceList
		err  error
	)
	if strings.HasSuffix(strings.ToLower(path), ".csv") {
		v, err = validator.NewCSV(opts...)
		if err != nil {
			return err
		}
		csvList, loadErr := resources.LoadCSVFile(path)
		if loadErr != nil {
			return loadErr
		}
		list = &csvList.ResourceList
	} else {
		v, err = validator.NewJSON(opts...)
		if err != nil {
			return err
		}
		jsonList, loadErr := resources.LoadJSONLinesFile(path)
		if loadErr != nil {
			return loadErr
		}
		list = &jsonList.ResourceList
	}

	result := v.Validate(list)
	for _, finding := range result.Findings {
		fmt.Fprintln(cmd.OutOrStdout(), finding.Error())
	}
	if !result.Valid() {
		return fmt.Errorf("%s: %d validation failure(s) in %d resource(s)",
			path, len(result.Findings), list.Len())
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d resource(s) valid\n", path, list.Len())
	return nil
}
