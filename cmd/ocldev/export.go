package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openconceptlab/ocldev/export"
	"github.com/openconceptlab/ocldev/resources"
)

var (
	exportOutput    string
	exportLatest    bool
	exportWait      bool
	exportStats     bool
	exportToImport  bool
	exportOwner     string
	exportOwnerType string
	exportVersion   string
	exportFull      bool
)

var exportCmd = &cobra.Command{
	Use:   "export <repo-version-url>",
	Short: "Download a repository version export",
	Long: `Download the export of a source or collection version and write its
resources as JSON lines.

The URL may be relative to the configured API root
(/orgs/MyOrg/sources/MySource/v1.0/) or absolute. With --latest the
URL names the repository instead and the latest released version is
exported.

With --to-import the export is rewritten as a bulk-importable file:
owner, repository, concepts, mappings, and the repository version,
with server-assigned fields stripped. Use --owner/--owner-type to
import under a different owner.

Examples:
  ocldev export /orgs/MyOrg/sources/MySource/v1.0/
  ocldev export /orgs/MyOrg/sources/MySource/ --latest --stats
  ocldev export /orgs/MyOrg/sources/MySource/v1.0/ --to-import --owner NewOrg`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default stdout)")
	exportCmd.Flags().BoolVar(&exportLatest, "latest", false, "Export the latest released version of the repository")
	exportCmd.Flags().BoolVar(&exportWait, "wait", false, "Trigger export generation and wait when none exists yet")
	exportCmd.Flags().BoolVar(&exportStats, "stats", false, "Print concept and mapping statistics instead of resources")
	exportCmd.Flags().BoolVar(&exportToImport, "to-import", false, "Rewrite the export as a bulk-importable file")
	exportCmd.Flags().StringVar(&exportOwner, "owner", "", "Replacement owner ID (with --to-import)")
	exportCmd.Flags().StringVar(&exportOwnerType, "owner-type", resources.OwnerTypeOrganization,
		"Replacement owner type: Organization or User")
	exportCmd.Flags().StringVar(&exportVersion, "version", "", "Override the repository version ID (with --to-import)")
	exportCmd.Flags().BoolVar(&exportFull, "full", false,
		"Include the repository, version, and references alongside concepts and mappings")
}

func runExport(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	url := args[0]
	if strings.HasPrefix(url, "/") {
		url = strings.TrimSuffix(cfg.API.URL, "/") + url
	}

	factory := export.NewFactory(cfg.API.Token,
		export.WaitForExport(exportWait),
		export.WithPolling(cfg.Export.PollDelay, cfg.Export.MaxWait),
	)

	ctx := cmd.Context()
	var (
		e   *export.Export
		err error
	)
	if exportLatest {
		e, err = factory.LoadLatest(ctx, url)
	} else {
		e, err = factory.Load(ctx, url)
	}
	if err != nil {
		return err
	}

	if exportStats {
		raw, marshalErr := json.MarshalIndent(e.Stats(), "", "  ")
		if marshalErr != nil {
			return marshalErr
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(raw))
		return nil
	}

	var list *resources.ResourceList
	if exportToImport {
		var opts []export.ConvertOption
		if exportOwner != "" {
			opts = append(opts, export.ReplaceOwner(exportOwner, exportOwnerType))
		}
		if exportVersion != "" {
			opts = append(opts, export.OverrideVersion(exportVersion))
		}
		c, convErr := export.NewImportConverter(e, opts...)
		if convErr != nil {
			return convErr
		}
		list, err = c.Convert()
	} else {
		opts := export.DefaultListOptions()
		if exportFull {
			opts.IncludeRepo = true
			opts.IncludeRepoVersion = true
			opts.IncludeReferences = true
		}
		list, err = e.ToResourceList(opts)
	}
	if err != nil {
		return err
	}

	w, closeOut, err := outputWriter(exportOutput)
	if err != nil {
		return err
	}
	if err := list.WriteJSONLines(w); err != nil {
		closeOut()
		return err
	}
	return closeOut()
}
