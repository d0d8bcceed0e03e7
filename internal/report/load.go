package report

import (
	"fmt"
	"io"
	"slices"
	"text/tabwriter"

	"github.com/rotisserie/eris"

	"github.com/sells-group/impression-cli/internal/dataset"
)

// WriteLoadReport writes a dataset load report.
func WriteLoadReport(w io.Writer, f Format, r dataset.LoadReport) error {
	switch f {
	case JSON:
		return writeJSON(w, r)
	case YAML:
		return writeYAML(w, r)
	case Table, CSV:
	default:
		return eris.Wrapf(ErrUnsupportedFormat, "report: load report as %q", f)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "Source:\t%s\n", r.Source)
	_, _ = printer.Fprintf(tw, "Rows:\t%d\n", r.Rows)
	_, _ = printer.Fprintf(tw, "Loaded:\t%d\n", r.Loaded)
	_, _ = printer.Fprintf(tw, "Dropped:\t%d\n", r.Dropped)

	reasons := make([]string, 0, len(r.Reasons))
	for k := range r.Reasons {
		reasons = append(reasons, k)
	}
	slices.Sort(reasons)
	for _, k := range reasons {
		_, _ = printer.Fprintf(tw, "  %s:\t%d\n", k, r.Reasons[k])
	}
	return eris.Wrap(tw.Flush(), "report: flush load report")
}
