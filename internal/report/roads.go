package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/impression-cli/internal/geo"
	"github.com/sells-group/impression-cli/internal/segment"
)

// Road describes one segment near a storefront.
type Road struct {
	ID          string       `json:"id" yaml:"id"`
	Class       string       `json:"class" yaml:"class"`
	Direction   int          `json:"direction" yaml:"direction"`
	Volume      float64      `json:"volume" yaml:"volume"`
	SampleCount *float64     `json:"sample_count,omitempty" yaml:"sample_count,omitempty"`
	LengthM     float64      `json:"length_m" yaml:"length_m"`
	DistanceM   float64      `json:"distance_m" yaml:"distance_m"`
	Start       geo.Location `json:"start" yaml:"start"`
	End         geo.Location `json:"end" yaml:"end"`
}

// Roads describes segs relative to the projected point p.
func Roads(segs []*segment.Segment, p geom.Coord) []Road {
	out := make([]Road, 0, len(segs))
	for _, s := range segs {
		r := Road{
			ID:          s.ID,
			Class:       string(s.Class),
			Direction:   int(s.Direction),
			Volume:      s.Volume,
			SampleCount: s.SampleCount,
			LengthM:     s.Length(),
			DistanceM:   geo.DistanceToLine(p, s.Geometry),
		}
		if n := len(s.Coords); n > 0 {
			r.Start, r.End = s.Coords[0], s.Coords[n-1]
		}
		out = append(out, r)
	}
	return out
}

// WriteRoads renders the nearby-roads diagnostic.
func WriteRoads(w io.Writer, f Format, roads []Road) error {
	switch f {
	case Table:
		return writeRoadsTable(w, roads)
	case CSV:
		return writeRoadsCSV(w, roads)
	case JSON:
		return writeJSON(w, roads)
	case YAML:
		return writeYAML(w, roads)
	default:
		return eris.Wrapf(ErrUnsupportedFormat, "report: roads as %q", f)
	}
}

func writeRoadsTable(out io.Writer, roads []Road) error {
	if len(roads) == 0 {
		_, err := fmt.Fprintln(out, "No roads within radius.")
		return eris.Wrap(err, "report: write roads")
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCLASS\tDIR\tVOLUME\tSAMPLES\tLENGTH_M\tDIST_M\tSTART\tEND")
	for _, r := range roads {
		samples := "-"
		if r.SampleCount != nil {
			samples = printer.Sprintf("%.0f", *r.SampleCount)
		}
		_, _ = printer.Fprintf(w, "%s\t%s\t%d\t%.0f\t%s\t%.1f\t%.1f\t%.6f,%.6f\t%.6f,%.6f\n",
			r.ID, r.Class, r.Direction, r.Volume, samples, r.LengthM, r.DistanceM,
			r.Start.Lat, r.Start.Lon, r.End.Lat, r.End.Lon)
	}
	return eris.Wrap(w.Flush(), "report: flush roads")
}

func writeRoadsCSV(out io.Writer, roads []Road) error {
	w := csv.NewWriter(out)
	_ = w.Write([]string{"id", "class", "direction", "volume", "sample_count", "length_m", "distance_m",
		"start_lat", "start_lon", "end_lat", "end_lon"})
	for _, r := range roads {
		samples := ""
		if r.SampleCount != nil {
			samples = ftoa(*r.SampleCount)
		}
		_ = w.Write([]string{
			r.ID, r.Class, fmt.Sprint(r.Direction), ftoa(r.Volume), samples, ftoa(r.LengthM), ftoa(r.DistanceM),
			ftoa(r.Start.Lat), ftoa(r.Start.Lon), ftoa(r.End.Lat), ftoa(r.End.Lon),
		})
	}
	w.Flush()
	return eris.Wrap(w.Error(), "report: flush roads csv")
}
