package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"

	"github.com/sells-group/impression-cli/internal/geo"
	"github.com/sells-group/impression-cli/internal/impression"
)

// ScoreDocument is the structured encoding of a single-location score.
type ScoreDocument struct {
	Location       geo.Location              `json:"location" yaml:"location"`
	Raw            float64                   `json:"raw" yaml:"raw"`
	Subtotal       float64                   `json:"subtotal" yaml:"subtotal"`
	Contributing   int                       `json:"contributing" yaml:"contributing"`
	DiversityBonus float64                   `json:"diversity_bonus" yaml:"diversity_bonus"`
	Contributions  []impression.Contribution `json:"contributions,omitempty" yaml:"contributions,omitempty"`
}

// NewScoreDocument pairs a result with its location. Contributions are only
// kept when explain is set.
func NewScoreDocument(loc geo.Location, res *impression.Result, explain bool) ScoreDocument {
	doc := ScoreDocument{
		Location:       loc,
		Raw:            res.Raw,
		Subtotal:       res.Subtotal,
		Contributing:   res.Contributing,
		DiversityBonus: res.DiversityBonus,
	}
	if explain {
		doc.Contributions = res.Contributions
	}
	return doc
}

// WriteScore renders a single-location score.
func WriteScore(w io.Writer, f Format, doc ScoreDocument) error {
	switch f {
	case Table:
		return writeScoreTable(w, doc)
	case JSON:
		return writeJSON(w, doc)
	case YAML:
		return writeYAML(w, doc)
	default:
		return eris.Wrapf(ErrUnsupportedFormat, "report: score as %q", f)
	}
}

func writeScoreTable(out io.Writer, doc ScoreDocument) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = printer.Fprintf(w, "Location:\t%.6f, %.6f\n", doc.Location.Lat, doc.Location.Lon)
	_, _ = printer.Fprintf(w, "Raw impressions:\t%.1f\n", doc.Raw)
	_, _ = printer.Fprintf(w, "Contributing roads:\t%d\n", doc.Contributing)
	_, _ = printer.Fprintf(w, "Diversity bonus:\t%.4f\n", doc.DiversityBonus)
	if err := w.Flush(); err != nil {
		return eris.Wrap(err, "report: flush score")
	}
	if len(doc.Contributions) == 0 {
		return nil
	}

	_, _ = fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SEGMENT\tCLASS\tDIR\tVOLUME\tCONF\tROAD_W\tDIR_W\tDIST_M\tDECAY\tANGLE\tDURATION\tFACTOR\tIMPRESSIONS")
	for _, c := range doc.Contributions {
		b := c.Breakdown
		_, _ = printer.Fprintf(w, "%s\t%s\t%d\t%.0f\t%.3f\t%.2f\t%.2f\t%.1f\t%.3f\t%.3f\t%.3f\t%.4f\t%.1f\n",
			c.SegmentID, c.Class, c.Direction, c.Volume, c.Confidence,
			b.RoadWeight, b.DirectionWeight, b.DistanceM, b.Decay, b.Angle, b.Duration, b.Factor,
			c.Impressions)
	}
	return eris.Wrap(w.Flush(), "report: flush contributions")
}
