package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/impression-cli/internal/impression"
	"github.com/sells-group/impression-cli/internal/normalize"
)

// Row is one flattened storefront score.
type Row struct {
	ID         string  `json:"id" yaml:"id"`
	Lat        float64 `json:"lat" yaml:"lat"`
	Lon        float64 `json:"lon" yaml:"lon"`
	Raw        float64 `json:"raw" yaml:"raw"`
	Cleaned    float64 `json:"cleaned" yaml:"cleaned"`
	Scaled     float64 `json:"scaled" yaml:"scaled"`
	Normalized float64 `json:"normalized" yaml:"normalized"`
}

// BatchDocument is the structured encoding of a batch.
type BatchDocument struct {
	Rows    []Row             `json:"rows" yaml:"rows"`
	Bounds  normalize.Bounds  `json:"bounds" yaml:"bounds"`
	Raw     normalize.Summary `json:"raw_summary" yaml:"raw_summary"`
	Indexed normalize.Summary `json:"normalized_summary" yaml:"normalized_summary"`
}

var rowHeader = []string{"id", "lat", "lon", "raw", "cleaned", "scaled", "normalized"}

// Rows flattens batch rows.
func Rows(b *impression.Batch) []Row {
	out := make([]Row, len(b.Rows))
	for i, r := range b.Rows {
		out[i] = Row{
			ID:         r.ID,
			Lat:        r.Location.Lat,
			Lon:        r.Location.Lon,
			Raw:        r.Raw,
			Cleaned:    r.Cleaned,
			Scaled:     r.Scaled,
			Normalized: r.Normalized,
		}
	}
	return out
}

// Document converts a batch to its structured encoding.
func Document(b *impression.Batch) BatchDocument {
	return BatchDocument{Rows: Rows(b), Bounds: b.Bounds, Raw: b.Raw, Indexed: b.Indexed}
}

// WriteBatch renders a scored batch in format f.
func WriteBatch(w io.Writer, f Format, b *impression.Batch) error {
	if b == nil {
		return eris.New("report: nil batch")
	}
	switch f {
	case Table:
		return writeBatchTable(w, Rows(b))
	case CSV:
		return writeBatchCSV(w, Rows(b))
	case JSON:
		return writeJSON(w, Document(b))
	case YAML:
		return writeYAML(w, Document(b))
	case XLSX:
		return writeBatchXLSX(w, b)
	default:
		return eris.Wrapf(ErrUnsupportedFormat, "report: batch as %q", f)
	}
}

func writeBatchTable(out io.Writer, rows []Row) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintln(w, "ID\tLAT\tLON\tRAW\tNORMALIZED\t")
	for _, r := range rows {
		_, _ = printer.Fprintf(w, "%s\t%.6f\t%.6f\t%.1f\t%.2f\t\n",
			r.ID, r.Lat, r.Lon, r.Raw, r.Normalized)
	}
	return eris.Wrap(w.Flush(), "report: flush table")
}

func writeBatchCSV(out io.Writer, rows []Row) error {
	w := csv.NewWriter(out)
	if err := w.Write(rowHeader); err != nil {
		return eris.Wrap(err, "report: write csv header")
	}
	for _, r := range rows {
		rec := []string{r.ID, ftoa(r.Lat), ftoa(r.Lon), ftoa(r.Raw), ftoa(r.Cleaned), ftoa(r.Scaled), ftoa(r.Normalized)}
		if err := w.Write(rec); err != nil {
			return eris.Wrapf(err, "report: write csv row %s", r.ID)
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "report: flush csv")
}

func writeBatchXLSX(out io.Writer, b *impression.Batch) error {
	f := xlsx.NewFile()

	scores, err := f.AddSheet("scores")
	if err != nil {
		return eris.Wrap(err, "report: add scores sheet")
	}
	header := scores.AddRow()
	for _, h := range rowHeader {
		header.AddCell().SetString(h)
	}
	for _, r := range Rows(b) {
		row := scores.AddRow()
		row.AddCell().SetString(r.ID)
		for _, v := range []float64{r.Lat, r.Lon, r.Raw, r.Cleaned, r.Scaled, r.Normalized} {
			row.AddCell().SetFloat(v)
		}
	}

	summary, err := f.AddSheet("summary")
	if err != nil {
		return eris.Wrap(err, "report: add summary sheet")
	}
	head := summary.AddRow()
	for _, h := range []string{"stat", "raw", "normalized"} {
		head.AddCell().SetString(h)
	}
	for _, st := range summaryStats(b.Raw, b.Indexed) {
		row := summary.AddRow()
		row.AddCell().SetString(st.name)
		row.AddCell().SetFloat(st.raw)
		row.AddCell().SetFloat(st.indexed)
	}

	return eris.Wrap(f.Write(out), "report: write xlsx")
}
