package dataset

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/impression-cli/internal/geo"
	"github.com/sells-group/impression-cli/internal/segment"
)

// Dataset is a projected, indexed segment set ready for scoring.
type Dataset struct {
	Set       *segment.Set
	Projector geo.Projector
	Report    LoadReport
}

// Build projects records and indexes them. The local projection is centred
// on the mean of every vertex so storefronts near the data measure true
// meters.
func Build(records []Record, report LoadReport, projection string, cellSize float64) (*Dataset, error) {
	var all []geo.Location
	for _, r := range records {
		all = append(all, r.Coords...)
	}
	origin := geo.Centroid(all)

	proj, err := geo.NewProjector(projection, origin)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: build projector")
	}

	segs := make([]*segment.Segment, len(records))
	for i, r := range records {
		flat := make([]float64, 0, 2*len(r.Coords))
		for _, c := range r.Coords {
			p := proj.Project(c)
			flat = append(flat, p[0], p[1])
		}
		segs[i] = &segment.Segment{
			ID:          r.ID,
			Geometry:    geom.NewLineStringFlat(geom.XY, flat),
			Class:       segment.ParseRoadClass(r.Highway),
			Direction:   segment.Direction(r.MatchDir),
			Volume:      r.Volume,
			SampleCount: r.SampleCount,
			LengthM:     r.LengthM,
			Coords:      r.Coords,
		}
	}

	zap.L().Info("dataset: built segment set",
		zap.String("component", "dataset"),
		zap.String("source", report.Source),
		zap.String("projection", proj.Name()),
		zap.Int("rows", report.Rows),
		zap.Int("loaded", report.Loaded),
		zap.Int("dropped", report.Dropped),
		zap.Any("reasons", report.Reasons),
	)

	return &Dataset{
		Set:       segment.NewSet(segs, cellSize),
		Projector: proj,
		Report:    report,
	}, nil
}
