package ogc

import (
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

func TestNormalizeCRS(t *testing.T) {
	cases := []struct{ in, want string }{
		{"EPSG:3857", "EPSG:3857"},
		{"epsg:4326", "EPSG:4326"},
		{"urn:ogc:def:crs:EPSG::3857", "EPSG:3857"},
		{"urn:ogc:def:crs:EPSG:6.6:4326", "EPSG:4326"},
		{"http://www.opengis.net/gml/srs/epsg.xml#3857", "EPSG:3857"},
		{"http://www.opengis.net/def/crs/EPSG/0/4326", "EPSG:4326"},
		{"urn:ogc:def:crs:OGC:1.3:CRS84", "EPSG:4326"},
		{"EPSG:900913", "EPSG:3857"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeCRS(tc.in); got != tc.want {
			t.Fatalf("NormalizeCRS(%q) got %q want %q", tc.in, got, tc.want)
		}
	}
}

func TestResponseCRS(t *testing.T) {
	raw := []byte(`{"type":"FeatureCollection","features":[],"crs":{"type":"name","properties":{"name":"urn:ogc:def:crs:EPSG::4326"}}}`)
	if got := ResponseCRS(raw); got != "EPSG:4326" {
		t.Fatalf("got %q", got)
	}
	if got := ResponseCRS([]byte(`{"type":"FeatureCollection","features":[]}`)); got != "" {
		t.Fatalf("expected empty crs, got %q", got)
	}
}

func TestReprojectFeatures_WGS84ToMercator(t *testing.T) {
	f := geojson.NewFeature(orb.Point{0, 0})
	g := geojson.NewFeature(orb.Point{180, 0})
	if err := ReprojectFeatures([]*geojson.Feature{f, g}, EPSG4326, EPSG3857); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	p := f.Geometry.(orb.Point)
	if math.Abs(p[0]) > 1e-6 || math.Abs(p[1]) > 1e-6 {
		t.Fatalf("origin should stay at origin, got %v", p)
	}
	q := g.Geometry.(orb.Point)
	if math.Abs(q[0]-20037508.34) > 1 {
		t.Fatalf("lon 180 should map to ~20037508, got %v", q[0])
	}
}

func TestReprojectFeatures_SameCRSIsNoop(t *testing.T) {
	f := geojson.NewFeature(orb.Point{123, 456})
	if err := ReprojectFeatures([]*geojson.Feature{f}, "urn:ogc:def:crs:EPSG::3857", EPSG3857); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if p := f.Geometry.(orb.Point); p != (orb.Point{123, 456}) {
		t.Fatalf("geometry changed: %v", p)
	}
}

func TestReprojectFeatures_Unsupported(t *testing.T) {
	f := geojson.NewFeature(orb.Point{1, 1})
	err := ReprojectFeatures([]*geojson.Feature{f}, "EPSG:25832", EPSG3857)
	var pe *ProjectionError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProjectionError, got %v", err)
	}
}
