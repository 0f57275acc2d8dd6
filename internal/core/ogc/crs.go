package ogc

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"
)

const (
	EPSG4326 = "EPSG:4326"
	EPSG3857 = "EPSG:3857"
)

// ProjectionError reports a CRS pair the service cannot transform between.
type ProjectionError struct {
	From, To string
}

func (e *ProjectionError) Error() string {
	return fmt.Sprintf("unsupported reprojection %s -> %s", e.From, e.To)
}

// NormalizeCRS maps the common spellings of an EPSG code to "EPSG:<code>".
// Unknown forms are returned upper-cased and trimmed.
func NormalizeCRS(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	up := strings.ToUpper(s)
	switch {
	case strings.HasPrefix(up, "URN:OGC:DEF:CRS:EPSG:"):
		// urn:ogc:def:crs:EPSG::3857 or urn:ogc:def:crs:EPSG:6.6:3857
		code := up[strings.LastIndex(up, ":")+1:]
		return "EPSG:" + code
	case strings.Contains(up, "EPSG.XML#"):
		return "EPSG:" + up[strings.LastIndex(up, "#")+1:]
	case strings.HasPrefix(up, "HTTP://WWW.OPENGIS.NET/DEF/CRS/EPSG/"):
		return "EPSG:" + up[strings.LastIndex(up, "/")+1:]
	case up == "CRS:84" || up == "URN:OGC:DEF:CRS:OGC:1.3:CRS84":
		return EPSG4326
	case up == "EPSG:900913" || up == "EPSG:102100":
		return EPSG3857
	}
	return up
}

// ResponseCRS reads the named crs member of a GeoJSON document, if any.
func ResponseCRS(raw []byte) string {
	var doc struct {
		CRS *struct {
			Type       string `json:"type"`
			Properties struct {
				Name string `json:"name"`
			} `json:"properties"`
		} `json:"crs"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil || doc.CRS == nil {
		return ""
	}
	return NormalizeCRS(doc.CRS.Properties.Name)
}

// Projection returns the point transform from one CRS to another.
// A nil projection with a nil error means the CRSs are the same.
func Projection(from, to string) (orb.Projection, error) {
	from, to = NormalizeCRS(from), NormalizeCRS(to)
	if from == to {
		return nil, nil
	}
	switch {
	case from == EPSG4326 && to == EPSG3857:
		return project.WGS84.ToMercator, nil
	case from == EPSG3857 && to == EPSG4326:
		return project.Mercator.ToWGS84, nil
	}
	return nil, &ProjectionError{From: from, To: to}
}

// ReprojectFeatures transforms every feature geometry in place.
func ReprojectFeatures(fs []*geojson.Feature, from, to string) error {
	proj, err := Projection(from, to)
	if err != nil {
		return err
	}
	if proj == nil {
		return nil
	}
	for _, f := range fs {
		if f == nil || f.Geometry == nil {
			continue
		}
		f.Geometry = project.Geometry(f.Geometry, proj)
		// bbox is in the source crs
		f.BBox = nil
	}
	return nil
}
