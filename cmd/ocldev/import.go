package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openconceptlab/ocldev/importer"
	"github.com/openconceptlab/ocldev/resources"
)

var (
	importFlex           bool
	importNoWait         bool
	importQueue          string
	importTestMode       bool
	importUpdateExisting bool
	importLimit          int
	importReport         string
)

var importCmd = &cobra.Command{
	Use:   "import <file.json>",
	Short: "Import a JSON-lines file into OCL",
	Long: `Import OCL-formatted JSON lines, by default through the asynchronous
bulk import API.

Bulk imports submit the whole file as one task and poll until the
server finishes. With --flex, resources are imported one at a time
through the REST API instead, which supports update-if-exists.

Examples:
  ocldev import concepts.json
  ocldev import concepts.json --queue my-queue --report json
  ocldev import concepts.json --no-wait          # print the task ID and exit
  ocldev import concepts.json --flex --update-existing`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().BoolVar(&importFlex, "flex", false, "Import resource-by-resource through the REST API")
	importCmd.Flags().BoolVar(&importNoWait, "no-wait", false, "Submit the bulk import and exit without polling")
	importCmd.Flags().StringVarP(&importQueue, "queue", "q", "", "Bulk import queue (default the standard queue)")
	importCmd.Flags().BoolVar(&importTestMode, "test", false, "Run without persisting any changes")
	importCmd.Flags().BoolVar(&importUpdateExisting, "update-existing", false,
		"Update resources that already exist (flex only)")
	importCmd.Flags().IntVar(&importLimit, "limit", 0, "Import at most N resources, 0 for all (flex only)")
	importCmd.Flags().StringVar(&importReport, "report", importer.ModeSummary,
		"Results format: summary, report, or json")
}

func runImport(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	list, err := resources.LoadJSONLinesFile(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	testMode := importTestMode || cfg.Import.TestMode
	queue := importQueue
	if queue == "" {
		queue = cfg.Import.Queue
	}

	var results *importer.ImportResults
	if importFlex {
		f := importer.NewFlexImporter(cfg.API.URL, cfg.API.Token,
			importer.UpdateIfExists(importUpdateExisting),
			importer.FlexTestMode(testMode),
			importer.Limit(importLimit),
		)
		results, err = f.Import(ctx, &list.ResourceList)
	} else {
		b := importer.NewBulkImporter(cfg.API.URL, cfg.API.Token,
			importer.WithQueue(queue),
			importer.WithPolling(cfg.Import.PollDelay, cfg.Import.MaxPollDelay, cfg.Import.MaxWait),
			importer.WithTestMode(testMode),
		)
		if importNoWait {
			task, submitErr := b.Submit(ctx, &list.ResourceList)
			if submitErr != nil {
				return submitErr
			}
			fmt.Fprintln(cmd.OutOrStdout(), task.ID)
			return nil
		}
		results, err = b.Run(ctx, &list.ResourceList)
	}
	if err != nil {
		return err
	}

	rendered, err := results.Render(importReport, "")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), rendered)

	if results.HasErrors() {
		return errors.New("import completed with errors")
	}
	return nil
}
