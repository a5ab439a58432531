package export

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"resultexport/internal/config"
	"resultexport/internal/delivery"
)

// Exporter sequences schema discovery, row streaming and artifact rendering
// into a single run, one delivery and one execution at a time.
type Exporter struct {
	schemas   *SchemaBuilder
	rows      *RowBuilder
	store     ResultStore
	artifacts ArtifactStore
	cfg       *config.ExportConfig
	log       *zap.Logger

	// Injected for deterministic artifact paths in tests.
	now      func() time.Time
	hostname func() (string, error)
}

func NewExporter(schemas *SchemaBuilder, rows *RowBuilder, store ResultStore, artifacts ArtifactStore, cfg *config.ExportConfig, log *zap.Logger) *Exporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Exporter{
		schemas:   schemas,
		rows:      rows,
		store:     store,
		artifacts: artifacts,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
		hostname:  os.Hostname,
	}
}

// Export runs one export over deliveries into a CSV artifact. Without a
// timestamp in the filename the artifact path is stable, so a pre-existing
// artifact at that path is replaced.
func (e *Exporter) Export(ctx context.Context, deliveries []delivery.Delivery, prefix string, withTimestamp bool) *Report {
	return e.exportScoped(ctx, deliveries, prefix, withTimestamp, time.Time{}, "")
}

// DailyExport repeats the export once per trailing day, scoping each run to
// executions started on that day and writing each artifact below a
// day-stamped sub-directory. days <= 0 falls back to the configured default.
func (e *Exporter) DailyExport(ctx context.Context, deliveries []delivery.Delivery, prefix string, withTimestamp bool, days int) *Report {
	if days <= 0 {
		days = e.cfg.DailyExportDays
	}

	root := NewSuccess(fmt.Sprintf("daily export over %d day(s)", days))
	for i := 0; i < days; i++ {
		day := e.now().AddDate(0, 0, -i)
		sub := e.exportScoped(ctx, deliveries, prefix, withTimestamp, day, day.Format("2006_01_02"))
		root.Add(sub)
		root.Rows += sub.Rows
	}
	if root.ContainsError() {
		root.Type = ReportError
		root.Message = fmt.Sprintf("daily export over %d day(s) finished with errors", days)
	}
	return root
}

// ExportTo streams the export through a caller-supplied renderer instead of
// the artifact store, e.g. to stdout.
func (e *Exporter) ExportTo(ctx context.Context, deliveries []delivery.Delivery, r Renderer) *Report {
	return e.run(ctx, deliveries, r, time.Time{})
}

func (e *Exporter) exportScoped(ctx context.Context, deliveries []delivery.Delivery, prefix string, withTimestamp bool, day time.Time, subdir string) *Report {
	path := e.artifactPath(prefix, withTimestamp, subdir)
	renderer, err := NewCSVRenderer(e.artifacts, path, !withTimestamp)
	if err != nil {
		return NewError("preparing export artifact: %v", err)
	}
	return e.run(ctx, deliveries, renderer, day)
}

func (e *Exporter) run(ctx context.Context, deliveries []delivery.Delivery, renderer Renderer, day time.Time) *Report {
	headers, err := e.schemas.Headers(deliveries)
	if err != nil {
		return NewError("building export schema: %v", err)
	}
	if err := renderer.AddRow(headers); err != nil {
		return NewError("writing header row: %v", err)
	}

	rows := 0
	for _, d := range deliveries {
		execIDs, err := e.store.ResultsForDelivery(ctx, d.ID)
		if err != nil {
			return NewError("listing results for delivery %s: %v", d.ID, err)
		}

		for _, execID := range execIDs {
			if err := ctx.Err(); err != nil {
				return NewError("export cancelled: %v", err)
			}

			if !day.IsZero() {
				exec, err := e.store.ExecutionByID(ctx, execID)
				if err != nil {
					return NewError("loading execution %s: %v", execID, err)
				}
				if !sameDay(exec.StartedAt, day) {
					continue
				}
			}

			row, err := e.rows.BuildRow(ctx, headers, d, execID)
			if err != nil {
				// Fail fast: a partial export is worse than a failed one.
				return NewError("building row for execution %s: %v", execID, err)
			}
			if err := renderer.AddRow(row); err != nil {
				return NewError("writing row for execution %s: %v", execID, err)
			}
			rows++
		}
		e.log.Info("delivery exported",
			zap.String("delivery", d.ID),
			zap.Int("rows_so_far", rows))
	}

	artifact, err := renderer.Render()
	if err != nil {
		return NewError("rendering export artifact: %v", err)
	}

	rep := NewSuccess(fmt.Sprintf("%d row(s) exported to %s", rows, artifact))
	rep.Rows = rows
	return rep
}

func (e *Exporter) artifactPath(prefix string, withTimestamp bool, subdir string) string {
	host, err := e.hostname()
	if err != nil {
		host = ""
	}
	return artifactPath(e.now(), host, prefix, withTimestamp, subdir)
}

// artifactPath composes <date>/<host>[/<subdir>]/<prefix>[_<time>].csv using
// forward slashes; the artifact store maps it onto its own layout.
func artifactPath(now time.Time, host, prefix string, withTimestamp bool, subdir string) string {
	if host == "" {
		host = "localhost"
	}

	name := strings.TrimSuffix(prefix, "_")
	if name == "" {
		name = "export"
	}
	if withTimestamp {
		name += "_" + now.Format("150405")
	}

	parts := []string{now.Format("2006_01_02"), host}
	if subdir != "" {
		parts = append(parts, subdir)
	}
	parts = append(parts, name+".csv")
	return strings.Join(parts, "/")
}

func sameDay(t, day time.Time) bool {
	y1, m1, d1 := t.Date()
	y2, m2, d2 := day.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
