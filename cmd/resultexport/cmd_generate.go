package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"resultexport/internal/config"
	"resultexport/internal/delivery"
	"resultexport/internal/export"
	"resultexport/internal/results"
)

var (
	genDeliveries  []string
	genStrategy    string
	genPolicy      string
	genBlacklist   []string
	genRaw         bool
	genPrefix      string
	genNoTimestamp bool
	genAllowExotic bool
	genDaily       bool
	genDays        int
	genStdout      bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate the result CSV export",
	Long: `Generates one CSV artifact covering the selected deliveries, or one
artifact per trailing day with --daily.

Examples:
  resultexport generate -s itemRef --policy all
  resultexport generate -s label --policy outcome -d delivery-1 -d delivery-2
  resultexport generate -s itemRef --policy all --daily --days 7`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringSliceVarP(&genDeliveries, "delivery", "d", nil, "Delivery to export (repeatable; default: all)")
	generateCmd.Flags().StringVarP(&genStrategy, "strategy", "s", "", "Item identifier strategy: itemRef|title|label|identifier (required)")
	generateCmd.Flags().StringVar(&genPolicy, "policy", "", "Variable policy: all|response|outcome (required)")
	generateCmd.Flags().StringSliceVarP(&genBlacklist, "blacklist", "b", nil, "Variable or column to exclude (prefix * to force-include a column)")
	generateCmd.Flags().BoolVarP(&genRaw, "raw", "r", false, "Leave unanswered cells empty instead of the not-responded code")
	generateCmd.Flags().StringVarP(&genPrefix, "prefix", "p", "export", "Artifact filename prefix")
	generateCmd.Flags().BoolVar(&genNoTimestamp, "no-timestamp", false, "Omit the time suffix and replace an existing artifact")
	generateCmd.Flags().BoolVar(&genAllowExotic, "allow-exotic", false, "Keep exotic characters in free-text responses")
	generateCmd.Flags().BoolVar(&genDaily, "daily", false, "Export one artifact per trailing day")
	generateCmd.Flags().IntVar(&genDays, "days", 0, "Trailing days for --daily (default from config)")
	generateCmd.Flags().BoolVar(&genStdout, "stdout", false, "Stream the CSV to stdout instead of the artifact store")
	_ = generateCmd.MarkFlagRequired("strategy")
	_ = generateCmd.MarkFlagRequired("policy")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	strategy, err := export.ParseIdentifierStrategy(genStrategy)
	if err != nil {
		return err
	}
	policy, err := export.ParseVariablePolicy(genPolicy)
	if err != nil {
		return err
	}

	deliveries, err := resolveDeliveries(genDeliveries)
	if err != nil {
		return err
	}

	store, err := results.OpenSQLite(cfg.ResultsDB)
	if err != nil {
		return err
	}
	defer store.Close()

	builder := export.NewSchemaBuilder(delivery.FSReader{}, cfg, strategy, policy, logger)
	builder.SetBlacklist(genBlacklist)

	rows := export.NewRowBuilder(builder, store, store, cfg, genAllowExotic, logger)
	if genRaw {
		rows.AddOverride(config.MissingOverride{Code: cfg.Missing.NotResponded, Replacement: ""})
	}

	exporter := export.NewExporter(builder, rows, store, export.FSArtifactStore{Base: cfg.ExportDir}, cfg, logger)

	var rep *export.Report
	switch {
	case genStdout:
		rep = exporter.ExportTo(ctx, deliveries, export.NewStdoutRenderer(os.Stdout))
	case genDaily:
		rep = exporter.DailyExport(ctx, deliveries, genPrefix, !genNoTimestamp, genDays)
	default:
		rep = exporter.Export(ctx, deliveries, genPrefix, !genNoTimestamp)
	}

	out := cmd.OutOrStdout()
	if genStdout {
		out = cmd.ErrOrStderr()
	}
	fmt.Fprintln(out, rep.Render())

	if rep.ContainsError() {
		return errors.New("export finished with errors")
	}
	return nil
}

func resolveDeliveries(ids []string) ([]delivery.Delivery, error) {
	registry := delivery.NewRegistry(cfg.DeliveriesDir)
	var (
		deliveries []delivery.Delivery
		err        error
	)
	if len(ids) == 0 {
		deliveries, err = registry.All()
	} else {
		deliveries, err = registry.ByID(ids...)
	}
	if err != nil {
		return nil, err
	}
	if len(deliveries) == 0 {
		return nil, fmt.Errorf("no deliveries found under %s", cfg.DeliveriesDir)
	}
	return deliveries, nil
}
