package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"resultexport/internal/export"
	"resultexport/internal/results"
)

var (
	loginDeliveries  []string
	loginPrefix      string
	loginWithHeader  bool
	loginNoTimestamp bool
	loginStdout      bool
)

var loginsCmd = &cobra.Command{
	Use:   "logins",
	Short: "Export the logins of everyone who attempted the deliveries",
	RunE:  runLogins,
}

func init() {
	loginsCmd.Flags().StringSliceVarP(&loginDeliveries, "delivery", "d", nil, "Delivery to cover (repeatable; default: all)")
	loginsCmd.Flags().StringVarP(&loginPrefix, "prefix", "p", "logins", "Artifact filename prefix")
	loginsCmd.Flags().BoolVar(&loginWithHeader, "with-headers", false, "Write a header row")
	loginsCmd.Flags().BoolVar(&loginNoTimestamp, "no-timestamp", false, "Omit the time suffix and replace an existing artifact")
	loginsCmd.Flags().BoolVar(&loginStdout, "stdout", false, "Stream the CSV to stdout instead of the artifact store")
}

func runLogins(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	deliveries, err := resolveDeliveries(loginDeliveries)
	if err != nil {
		return err
	}

	store, err := results.OpenSQLite(cfg.ResultsDB)
	if err != nil {
		return err
	}
	defer store.Close()

	e := export.NewLoginExporter(store, store, export.FSArtifactStore{Base: cfg.ExportDir}, logger)

	var rep *export.Report
	if loginStdout {
		rep = e.ExportTo(ctx, deliveries, export.NewStdoutRenderer(os.Stdout), loginWithHeader)
	} else {
		rep = e.Export(ctx, deliveries, loginPrefix, loginWithHeader, !loginNoTimestamp)
	}

	out := cmd.OutOrStdout()
	if loginStdout {
		out = cmd.ErrOrStderr()
	}
	fmt.Fprintln(out, rep.Render())

	if rep.ContainsError() {
		return errors.New("login export finished with errors")
	}
	return nil
}
