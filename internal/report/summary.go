package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"

	"github.com/sells-group/impression-cli/internal/impression"
	"github.com/sells-group/impression-cli/internal/normalize"
)

type stat struct {
	name         string
	raw, indexed float64
}

func summaryStats(raw, indexed normalize.Summary) []stat {
	return []stat{
		{"count", float64(raw.Count), float64(indexed.Count)},
		{"mean", raw.Mean, indexed.Mean},
		{"std", raw.Std, indexed.Std},
		{"min", raw.Min, indexed.Min},
		{"25%", raw.Q1, indexed.Q1},
		{"50%", raw.Median, indexed.Median},
		{"75%", raw.Q3, indexed.Q3},
		{"max", raw.Max, indexed.Max},
		{"skewness", raw.Skewness, indexed.Skewness},
		{"kurtosis", raw.Kurtosis, indexed.Kurtosis},
	}
}

// WriteSummary writes population statistics of a batch as a table, or as a
// structured document for json and yaml.
func WriteSummary(w io.Writer, f Format, b *impression.Batch) error {
	if b == nil {
		return eris.New("report: nil batch")
	}
	doc := struct {
		Bounds  normalize.Bounds  `json:"bounds" yaml:"bounds"`
		Raw     normalize.Summary `json:"raw_summary" yaml:"raw_summary"`
		Indexed normalize.Summary `json:"normalized_summary" yaml:"normalized_summary"`
	}{b.Bounds, b.Raw, b.Indexed}

	switch f {
	case JSON:
		return writeJSON(w, doc)
	case YAML:
		return writeYAML(w, doc)
	case Table, CSV, XLSX:
		return writeSummaryTable(w, b)
	default:
		return eris.Wrapf(ErrUnsupportedFormat, "report: summary as %q", f)
	}
}

func writeSummaryTable(out io.Writer, b *impression.Batch) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "STAT\tRAW\tNORMALIZED")
	for _, st := range summaryStats(b.Raw, b.Indexed) {
		_, _ = printer.Fprintf(w, "%s\t%.3f\t%.3f\n", st.name, st.raw, st.indexed)
	}
	_, _ = printer.Fprintf(w, "fences\t[%.1f, %.1f]\t\n", b.Bounds.Lower, b.Bounds.Upper)
	return eris.Wrap(w.Flush(), "report: flush summary")
}
