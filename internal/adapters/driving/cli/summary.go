package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/custodia-labs/lexcorpus/internal/core/domain"
)

// renderRun prints a run manifest as a per-source table.
func renderRun(w io.Writer, m *domain.RunManifest, warnings []string) {
	p := newPalette(w)

	header := fmt.Sprintf("Run %s", m.RunID)
	if m.VersionID != "" {
		header += fmt.Sprintf(" on version %s", m.VersionID)
		if m.VersionReused {
			header += " (unchanged corpus)"
		}
	}
	fmt.Fprintln(w, p.render(p.title, header))
	fmt.Fprintf(w, "State: %s  Duration: %s\n", p.state(m.State), m.FinishedAt.Sub(m.StartedAt).Round(time.Millisecond))
	if m.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", p.render(p.failure, m.Error))
	}

	names := m.Sources()
	if len(names) > 0 {
		width := len("SOURCE")
		for _, name := range names {
			width = max(width, len(name))
		}

		fmt.Fprintln(w)
		fmt.Fprintln(w, p.render(p.muted, fmt.Sprintf("%-*s  %-8s %6s %8s %8s %8s  %s",
			width, "SOURCE", "STATUS", "DOCS", "RECORDS", "CHUNKS", "FAILED", "SUMMARY")))
		for _, name := range names {
			r := m.PerSourceStatus[name]
			fmt.Fprintf(w, "%-*s  %s %6d %8d %8d %8d  %s\n",
				width, name, padRight(p.status(r.Status), 8),
				r.Documents, r.Records, r.Chunks, r.Failures(), r.ErrorSummary)
		}
	}

	if len(warnings) > 0 {
		fmt.Fprintln(w)
		for _, msg := range warnings {
			fmt.Fprintf(w, "%s %s\n", p.render(p.warning, "warning:"), msg)
		}
	}

	if failed := m.FailedSources(); len(failed) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Re-run failed sources with: lexcorpus ingest --retry-failed (%s)\n", strings.Join(failed, ", "))
	}
}

// renderVersions prints published versions, oldest first.
func renderVersions(w io.Writer, versions []domain.CorpusVersion) {
	p := newPalette(w)
	if len(versions) == 0 {
		fmt.Fprintln(w, "No versions published.")
		return
	}
	width := len("VERSION")
	for _, v := range versions {
		width = max(width, len(v.ID))
	}
	fmt.Fprintln(w, p.render(p.muted, fmt.Sprintf("%-*s  %-20s %6s  %s", width, "VERSION", "CREATED", "FILES", "SOURCES")))
	for _, v := range versions {
		fmt.Fprintf(w, "%-*s  %-20s %6d  %s\n",
			width, v.ID, v.CreatedAt.UTC().Format(time.RFC3339), len(v.FileHashes), strings.Join(v.Sources, ","))
	}
}

// renderDrift prints the difference between a version and the raw tree.
func renderDrift(w io.Writer, d *domain.Drift) {
	p := newPalette(w)
	if d.Clean() {
		fmt.Fprintf(w, "%s matches the raw tree\n", d.VersionID)
		return
	}
	fmt.Fprintf(w, "%s differs from the raw tree\n", d.VersionID)
	for _, path := range d.Added {
		fmt.Fprintf(w, "  %s %s\n", p.render(p.success, "+"), path)
	}
	for _, path := range d.Removed {
		fmt.Fprintf(w, "  %s %s\n", p.render(p.failure, "-"), path)
	}
	for _, path := range d.Modified {
		fmt.Fprintf(w, "  %s %s\n", p.render(p.warning, "~"), path)
	}
}

// renderHistory prints runs, newest first, one line per run.
func renderHistory(w io.Writer, runs []domain.RunManifest) {
	p := newPalette(w)
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	for _, m := range runs {
		var sources []string
		for _, name := range m.Sources() {
			sources = append(sources, fmt.Sprintf("%s=%s", name, p.status(m.PerSourceStatus[name].Status)))
		}
		fmt.Fprintf(w, "%s  %s  %-24s %s  %s\n",
			m.StartedAt.UTC().Format(time.RFC3339), m.RunID, m.VersionID,
			p.state(m.State), strings.Join(sources, " "))
	}
}
