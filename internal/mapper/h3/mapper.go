package h3mapper

import (
	"errors"
	"fmt"
	"math"
	"sort"

	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/wfs-clickmap/internal/core/model"
	"github.com/mohammed-shakir/wfs-clickmap/internal/mapper"
)

// MaxCoverCells bounds CellsForBBox. Larger covers are refused before any
// polyfill runs.
const MaxCoverCells = 4096

// ErrCoverTooLarge is returned when a bbox would need more than MaxCoverCells.
var ErrCoverTooLarge = errors.New("h3 cover exceeds cell limit")

// average hexagon area at res 0; each finer resolution is 7 times smaller
const res0AreaKm2 = 4357449.416078381

const kmPerDegree = 111.32

type Mapper struct{}

var _ mapper.Interface = (*Mapper)(nil)

func New() *Mapper { return &Mapper{} }

// CellForPoint returns the cell containing lon/lat (EPSG:4326).
func (m *Mapper) CellForPoint(lon, lat float64, res int) (string, error) {
	if err := validateRes(res); err != nil {
		return "", err
	}
	c, err := h3.LatLngToCell(h3.LatLng{Lat: lat, Lng: lon}, res)
	if err != nil {
		return "", fmt.Errorf("h3 cell: %w", err)
	}
	return c.String(), nil
}

// CellsForBBox covers bb (EPSG:4326) with cells at res. A box smaller than
// one cell contains no cell center, so it is covered by the cell of its center.
func (m *Mapper) CellsForBBox(bb model.BBox, res int) ([]string, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}
	for _, v := range bb.Coords() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("bbox %s is not finite", bb)
		}
	}
	if bb.X2 < bb.X1 || bb.Y2 < bb.Y1 {
		return nil, fmt.Errorf("inverted bbox %s", bb)
	}
	if n := estimateCells(bb, res); n > MaxCoverCells {
		return nil, fmt.Errorf("%w: about %.0f cells at res %d", ErrCoverTooLarge, n, res)
	}
	// v4 wants degrees
	outer := h3.GeoLoop{
		{Lat: bb.Y1, Lng: bb.X1},
		{Lat: bb.Y1, Lng: bb.X2},
		{Lat: bb.Y2, Lng: bb.X2},
		{Lat: bb.Y2, Lng: bb.X1},
	}
	cells, err := polyfillOne(outer, res)
	if err != nil {
		return nil, err
	}
	if len(cells) > 0 {
		return cells, nil
	}
	c, err := m.CellForPoint((bb.X1+bb.X2)/2, (bb.Y1+bb.Y2)/2, res)
	if err != nil {
		return nil, err
	}
	return []string{c}, nil
}

// estimateCells approximates the cover size from the box area. Boxes wider
// than the world count as the whole world.
func estimateCells(bb model.BBox, res int) float64 {
	dLon := math.Min(bb.X2-bb.X1, 360)
	lo, hi := math.Max(bb.Y1, -90), math.Min(bb.Y2, 90)
	if hi <= lo {
		return 0
	}
	midLat := (lo + hi) / 2 * math.Pi / 180
	areaKm2 := (hi - lo) * kmPerDegree * dLon * kmPerDegree * math.Cos(midLat)
	return areaKm2 / (res0AreaKm2 / math.Pow(7, float64(res)))
}

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}

// polyfillOne computes unique cells and returns them sorted for determinism.
func polyfillOne(outer h3.GeoLoop, res int) ([]string, error) {
	if len(outer) < 4 {
		return nil, errors.New("outer ring has < 4 vertices")
	}
	indexes, err := h3.PolygonToCells(h3.GeoPolygon{GeoLoop: outer}, res)
	if err != nil {
		return nil, fmt.Errorf("h3 polyfill: %w", err)
	}

	out := make([]string, 0, len(indexes))
	seen := make(map[string]struct{}, len(indexes))
	for _, idx := range indexes {
		s := idx.String()
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}
