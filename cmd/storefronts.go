package main

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/impression-cli/internal/geo"
	"github.com/sells-group/impression-cli/internal/impression"
)

var (
	latColumns = []string{"lat", "latitude"}
	lonColumns = []string{"lon", "lng", "long", "longitude"}
	idColumns  = []string{"id", "store_id", "storefront_id", "name"}
)

// readStorefronts parses a storefront CSV with a header row. Latitude and
// longitude columns are required; rows without an id get "row-N".
func readStorefronts(r io.Reader) ([]impression.Storefront, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, eris.New("storefronts: empty input")
	}
	if err != nil {
		return nil, eris.Wrap(err, "storefronts: read header")
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	latIdx, lonIdx, idIdx := findColumn(header, latColumns), findColumn(header, lonColumns), findColumn(header, idColumns)
	if latIdx < 0 || lonIdx < 0 {
		return nil, eris.New("storefronts: header needs lat and lon columns")
	}

	var out []impression.Storefront
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "storefronts: read line %d", line)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}

		lat, err := field(rec, latIdx)
		if err != nil {
			return nil, eris.Wrapf(err, "storefronts: line %d lat", line)
		}
		lon, err := field(rec, lonIdx)
		if err != nil {
			return nil, eris.Wrapf(err, "storefronts: line %d lon", line)
		}
		loc := geo.Location{Lat: lat, Lon: lon}
		if err := loc.Validate(); err != nil {
			return nil, eris.Wrapf(err, "storefronts: line %d", line)
		}

		id := ""
		if idIdx >= 0 && idIdx < len(rec) {
			id = strings.TrimSpace(rec[idIdx])
		}
		if id == "" {
			id = "row-" + strconv.Itoa(len(out)+1)
		}
		out = append(out, impression.Storefront{ID: id, Location: loc})
	}
	return out, nil
}

// readStorefrontsFile reads storefronts from path, or stdin for "-".
func readStorefrontsFile(path string) ([]impression.Storefront, error) {
	if path == "-" {
		return readStorefronts(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "storefronts: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return readStorefronts(f)
}

func findColumn(header, names []string) int {
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		for _, n := range names {
			if h == n {
				return i
			}
		}
	}
	return -1
}

func field(rec []string, i int) (float64, error) {
	if i >= len(rec) {
		return 0, eris.New("missing value")
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
	if err != nil {
		return 0, eris.Wrapf(err, "parse %q", rec[i])
	}
	return v, nil
}
