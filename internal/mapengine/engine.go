// Package mapengine is an in-memory map engine for one browser map view. It
// keeps the layers, view and popup overlay the browser should draw and
// dispatches single clicks the browser forwards.
package mapengine

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/wfs-clickmap/internal/core/model"
	"github.com/mohammed-shakir/wfs-clickmap/internal/core/ogc"
)

// ErrDetached is returned for clicks on an engine whose target was removed.
var ErrDetached = errors.New("map engine detached")

// resolution of zoom 0 for 256px web mercator tiles
const zoom0Resolution = 2 * math.Pi * 6378137 / 256

type View struct {
	Center     [2]float64 `json:"center"`
	Zoom       float64    `json:"zoom"`
	Resolution float64    `json:"resolution"`
	Projection string     `json:"projection"`
}

// ResolutionForZoom returns the web mercator resolution (map units per pixel) at zoom.
func ResolutionForZoom(zoom float64) float64 {
	return zoom0Resolution / math.Pow(2, zoom)
}

type Overlay struct {
	Visible     bool       `json:"visible"`
	Position    [2]float64 `json:"position"`
	HTML        string     `json:"html"`
	Offset      [2]int     `json:"offset"`
	Positioning string     `json:"positioning"`
}

type VectorLayer struct {
	Name     string                     `json:"name"`
	Style    model.VectorStyle          `json:"style"`
	Features *geojson.FeatureCollection `json:"features"`
}

// State is a point-in-time copy of everything the browser draws.
type State struct {
	Attached  bool           `json:"attached"`
	View      View           `json:"view"`
	TileLayer *ogc.TileLayer `json:"tileLayer,omitempty"`
	Vectors   []VectorLayer  `json:"vectors"`
	Overlay   Overlay        `json:"overlay"`
}

type vectorLayer struct {
	style    model.VectorStyle
	features []*geojson.Feature
}

type Engine struct {
	mu       sync.RWMutex
	attached bool
	view     View
	tile     *ogc.TileLayer
	order    []string
	vectors  map[string]*vectorLayer
	overlay  Overlay
	handlers []model.ClickHandler
}

func New(view View) *Engine {
	if view.Projection == "" {
		view.Projection = model.DefaultSRS
	}
	if view.Resolution <= 0 {
		view.Resolution = ResolutionForZoom(view.Zoom)
	}
	return &Engine{
		attached: true,
		view:     view,
		vectors:  make(map[string]*vectorLayer),
		overlay:  Overlay{Offset: [2]int{0, -10}, Positioning: "bottom-center"},
	}
}

func (e *Engine) RenderTileLayer(tl ogc.TileLayer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tile = &tl
}

// RenderVectorLayer adds an empty vector layer, or restyles an existing one.
func (e *Engine) RenderVectorLayer(name string, style model.VectorStyle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if l, ok := e.vectors[name]; ok {
		l.style = style
		return
	}
	e.vectors[name] = &vectorLayer{style: style}
	e.order = append(e.order, name)
}

// SetLayerFeatures replaces the layer's features wholesale.
func (e *Engine) SetLayerFeatures(name string, fs []*geojson.Feature) {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.vectors[name]
	if !ok {
		return
	}
	l.features = append([]*geojson.Feature(nil), fs...)
}

func (e *Engine) ClearLayer(name string) {
	e.SetLayerFeatures(name, nil)
}

func (e *Engine) LayerFeatures(name string) []*geojson.Feature {
	e.mu.RLock()
	defer e.mu.RUnlock()
	l, ok := e.vectors[name]
	if !ok {
		return nil
	}
	return append([]*geojson.Feature(nil), l.features...)
}

func (e *Engine) ShowOverlay(pos [2]float64, html string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.overlay.Visible = true
	e.overlay.Position = pos
	e.overlay.HTML = html
}

func (e *Engine) OverlayContent() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.overlay.HTML
}

func (e *Engine) OnSingleClick(h model.ClickHandler) {
	if h == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, h)
}

// CurrentResolution reports the view resolution; ok is false when unknown.
func (e *Engine) CurrentResolution() (float64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r := e.view.Resolution
	return r, r > 0 && !math.IsInf(r, 0) && !math.IsNaN(r)
}

// SetView records the browser's current view after pan/zoom.
func (e *Engine) SetView(v View) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if v.Projection == "" {
		v.Projection = e.view.Projection
	}
	e.view = v
}

// Click dispatches ev to every registered handler on the caller's goroutine
// and returns once they are done.
func (e *Engine) Click(ctx context.Context, ev model.ClickEvent) error {
	e.mu.Lock()
	if !e.attached {
		e.mu.Unlock()
		return ErrDetached
	}
	if ev.Resolution > 0 {
		e.view.Resolution = ev.Resolution
	}
	hs := append([]model.ClickHandler(nil), e.handlers...)
	e.mu.Unlock()

	for _, h := range hs {
		h(ctx, ev)
	}
	return nil
}

// Detach removes the engine from its rendering target. Later clicks are
// rejected; handlers already running finish.
func (e *Engine) Detach() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.attached = false
}

func (e *Engine) Attached() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.attached
}

func (e *Engine) Snapshot() State {
	e.mu.RLock()
	defer e.mu.RUnlock()

	st := State{
		Attached: e.attached,
		View:     e.view,
		Overlay:  e.overlay,
		Vectors:  make([]VectorLayer, 0, len(e.order)),
	}
	if e.tile != nil {
		tl := *e.tile
		tl.Params = make(map[string]string, len(e.tile.Params))
		for k, v := range e.tile.Params {
			tl.Params[k] = v
		}
		st.TileLayer = &tl
	}
	for _, name := range e.order {
		l := e.vectors[name]
		fc := geojson.NewFeatureCollection()
		fc.Features = append(fc.Features, l.features...)
		st.Vectors = append(st.Vectors, VectorLayer{Name: name, Style: l.style, Features: fc})
	}
	return st
}
