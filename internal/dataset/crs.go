package dataset

import (
	"strings"

	"github.com/rotisserie/eris"
)

// geographicCRS lists the names accepted as WGS84 longitude/latitude.
var geographicCRS = map[string]bool{
	"epsg:4326":                     true,
	"4326":                          true,
	"wgs84":                         true,
	"crs84":                         true,
	"urn:ogc:def:crs:ogc:1.3:crs84": true,
	"urn:ogc:def:crs:epsg::4326":    true,
}

// CheckCRS returns ErrUnsupportedCRS unless name denotes WGS84 lon/lat.
// A blank name is taken as WGS84.
func CheckCRS(name string) error {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" || geographicCRS[n] {
		return nil
	}
	return eris.Wrapf(ErrUnsupportedCRS, "%q", name)
}

// checkPRJ inspects a shapefile .prj WKT. Geographic WGS84 is accepted;
// any projected system is rejected.
func checkPRJ(prj string) error {
	s := strings.ToUpper(strings.TrimSpace(prj))
	if s == "" {
		return nil
	}
	if strings.HasPrefix(s, "PROJCS") || strings.HasPrefix(s, "PROJCRS") {
		return eris.Wrap(ErrUnsupportedCRS, "dataset: shapefile is in a projected coordinate system")
	}
	if !strings.Contains(s, "WGS") || !strings.Contains(s, "84") {
		return eris.Wrap(ErrUnsupportedCRS, "dataset: shapefile datum is not WGS84")
	}
	return nil
}
