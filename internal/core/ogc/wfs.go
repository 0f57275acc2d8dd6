// Package ogc builds OGC WFS/WMS request parameters and handles CRS identifiers.
package ogc

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/mohammed-shakir/wfs-clickmap/internal/core/model"
)

const (
	wfsVersion   = "1.1.0"
	outputFormat = "application/json"
)

// ValidationError reports query parameters rejected before any I/O.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return "wfs query: " + e.Msg }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// BuildFeatureQuery returns the encoded GetFeature query string for a layer and bbox.
// An empty srs means model.DefaultSRS.
func BuildFeatureQuery(layer string, bbox [4]float64, srs string) (string, error) {
	params, err := BuildGetFeatureParams(model.SpatialQuery{
		Layer: layer,
		BBox:  model.BBox{X1: bbox[0], Y1: bbox[1], X2: bbox[2], Y2: bbox[3]},
		SRS:   srs,
	})
	if err != nil {
		return "", err
	}
	return params.Encode(), nil
}

func BuildGetFeatureParams(q model.SpatialQuery) (url.Values, error) {
	layer := strings.TrimSpace(q.Layer)
	if layer == "" {
		return nil, &ValidationError{Msg: "typeName not set"}
	}
	for i, v := range q.BBox.Coords() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &ValidationError{Msg: fmt.Sprintf("bbox[%d] is not finite", i)}
		}
	}
	srs := strings.TrimSpace(q.SRS)
	if srs == "" {
		srs = model.DefaultSRS
	}
	bb := q.BBox
	bb.SRID = srs

	params := url.Values{}
	params.Set("service", "WFS")
	params.Set("version", wfsVersion)
	params.Set("request", "GetFeature")
	params.Set("typeName", layer)
	params.Set("outputFormat", outputFormat)
	params.Set("bbox", bb.String())
	params.Set("srsName", srs)
	return params, nil
}

// ParseBBoxParam splits the bbox parameter of an encoded query into its
// four coordinates and CRS tokens.
func ParseBBoxParam(query string) ([]string, error) {
	v, err := url.ParseQuery(query)
	if err != nil {
		return nil, fmt.Errorf("parse query: %w", err)
	}
	raw := v.Get("bbox")
	if raw == "" {
		return nil, errors.New("bbox parameter missing")
	}
	parts := strings.Split(raw, ",")
	if len(parts) != 5 {
		return nil, fmt.Errorf("expected 5 comma-separated values in bbox, got %d", len(parts))
	}
	return parts, nil
}

// RequestURL joins a base endpoint and an encoded query string.
func RequestURL(base, query string) string {
	if query == "" {
		return base
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
		if strings.HasSuffix(base, "?") || strings.HasSuffix(base, "&") {
			sep = ""
		}
	}
	return base + sep + query
}

// Fingerprint is a short stable id for an encoded query, used to correlate
// log lines and events for the same request.
func Fingerprint(query string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(query))
}
