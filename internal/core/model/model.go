// Package model defines core domain types shared across the service.
package model

import (
	"context"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"
)

// DefaultSRS is the projected CRS used for queries and display when none is given.
const DefaultSRS = "EPSG:3857"

type BBox struct {
	X1, Y1 float64
	X2, Y2 float64
	SRID   string
}

// String representation matching the wfs bbox-with-crs format
func (b BBox) String() string {
	return strings.Join([]string{
		formatCoord(b.X1),
		formatCoord(b.Y1),
		formatCoord(b.X2),
		formatCoord(b.Y2),
		b.SRID,
	}, ",")
}

// Coords returns the bbox as [minX, minY, maxX, maxY].
func (b BBox) Coords() [4]float64 {
	return [4]float64{b.X1, b.Y1, b.X2, b.Y2}
}

// Around returns a square bbox centered on (x, y) with the given half-width.
func Around(x, y, delta float64, srid string) BBox {
	return BBox{X1: x - delta, Y1: y - delta, X2: x + delta, Y2: y + delta, SRID: srid}
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type SpatialQuery struct {
	Layer string
	BBox  BBox
	SRS   string
}

// ClickEvent is a single click on the map surface in display coordinates.
// Resolution is zero when the view did not report one.
type ClickEvent struct {
	Coordinate [2]float64 `json:"coordinate"`
	Resolution float64    `json:"resolution,omitempty"`
}

type ClickHandler func(ctx context.Context, ev ClickEvent)

type OutcomeKind string

const (
	OutcomeSuccess    OutcomeKind = "success"
	OutcomeEmpty      OutcomeKind = "empty"
	OutcomeFailure    OutcomeKind = "failure"
	OutcomeSuperseded OutcomeKind = "superseded"
)

// QueryOutcome is the result of one click-query-render cycle.
type QueryOutcome struct {
	Kind     OutcomeKind
	Features []*geojson.Feature
	Reason   string
	Err      error
}

func Success(fs []*geojson.Feature) QueryOutcome {
	return QueryOutcome{Kind: OutcomeSuccess, Features: fs}
}

func Empty() QueryOutcome {
	return QueryOutcome{Kind: OutcomeEmpty}
}

func Failure(err error) QueryOutcome {
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	return QueryOutcome{Kind: OutcomeFailure, Reason: reason, Err: err}
}

// VectorStyle is the stroke/fill used to draw a vector layer.
type VectorStyle struct {
	StrokeColor string  `json:"strokeColor"`
	StrokeWidth float64 `json:"strokeWidth"`
	FillColor   string  `json:"fillColor"`
}
