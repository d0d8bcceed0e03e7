package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"

	"github.com/sells-group/impression-cli/internal/store"
)

// WriteRuns writes a tabular list of runs.
func WriteRuns(out io.Writer, runs []store.Run) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(out, "No runs found.")
		return eris.Wrap(err, "report: write runs")
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSOURCE\tSTOREFRONTS\tSEGMENTS\tMEDIAN_RAW\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t------\t-----------\t--------\t----------\t-------")
	for _, r := range runs {
		_, _ = printer.Fprintf(w, "%s\t%s\t%d\t%d\t%.1f\t%s\n",
			truncateID(r.ID),
			truncate(r.Source, 40),
			r.Count,
			r.Segments,
			r.Summary.Median,
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	return eris.Wrap(w.Flush(), "report: flush runs")
}

// WriteRun writes one run with its scores.
func WriteRun(w io.Writer, f Format, run *store.Run) error {
	switch f {
	case JSON:
		return writeJSON(w, run)
	case YAML:
		return writeYAML(w, run)
	case Table:
		if err := WriteRuns(w, []store.Run{*run}); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(w)
		return writeBatchTable(w, runRows(run))
	case CSV:
		return writeBatchCSV(w, runRows(run))
	default:
		return eris.Wrapf(ErrUnsupportedFormat, "report: run as %q", f)
	}
}

func runRows(run *store.Run) []Row {
	out := make([]Row, len(run.Scores))
	for i, s := range run.Scores {
		out[i] = Row{
			ID:         s.StorefrontID,
			Lat:        s.Lat,
			Lon:        s.Lon,
			Raw:        s.Raw,
			Cleaned:    s.Cleaned,
			Scaled:     s.Scaled,
			Normalized: s.Normalized,
		}
	}
	return out
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}
