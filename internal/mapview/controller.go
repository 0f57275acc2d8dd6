// Package mapview owns one map view: the WMS base layer, the highlight layer
// and the popup. A single click on the map queries WFS for features around the
// click point and renders the result.
package mapview

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/wfs-clickmap/internal/core/executor"
	"github.com/mohammed-shakir/wfs-clickmap/internal/core/model"
	"github.com/mohammed-shakir/wfs-clickmap/internal/core/observability"
	"github.com/mohammed-shakir/wfs-clickmap/internal/core/ogc"
)

// QueryHalfWidthFactor scales the view resolution into the half-width of the
// square queried around a click, so the query area tracks the zoom level.
// The factor is empirical.
const QueryHalfWidthFactor = 5

const HighlightLayer = "highlight"

// HighlightStyle draws queried features in red with a translucent fill.
var HighlightStyle = model.VectorStyle{
	StrokeColor: "#ff0000",
	StrokeWidth: 2,
	FillColor:   "rgba(255,0,0,0.15)",
}

// MapEngine is the map capability the controller drives.
type MapEngine interface {
	RenderTileLayer(tl ogc.TileLayer)
	RenderVectorLayer(name string, style model.VectorStyle)
	SetLayerFeatures(name string, fs []*geojson.Feature)
	ClearLayer(name string)
	ShowOverlay(pos [2]float64, html string)
	OnSingleClick(h model.ClickHandler)
	CurrentResolution() (float64, bool)
	Detach()
}

type FeatureFetcher interface {
	FetchFeatures(ctx context.Context, baseURL, query string) (json.RawMessage, error)
}

// Cycle describes one completed click query, for event sinks.
type Cycle struct {
	Layer      string
	Coordinate [2]float64
	SRS        string
	Query      string
	BBox       model.BBox
	Outcome    model.OutcomeKind
	ErrClass   string
	Features   int
	Duration   time.Duration
}

type CycleSink interface {
	Observe(ctx context.Context, c Cycle)
}

type Config struct {
	WFSURL     string
	TypeName   string
	SRS        string // query CRS, default EPSG:3857
	DisplaySRS string // map CRS, default EPSG:3857
	WMSURL     string
	WMSLayers  string
}

type Option func(*Controller)

func WithSink(s CycleSink) Option {
	return func(c *Controller) { c.sink = s }
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

type Controller struct {
	cfg     Config
	engine  MapEngine
	fetcher FeatureFetcher
	logger  *slog.Logger
	sink    CycleSink
	now     func() time.Time

	gen      atomic.Uint64
	renderMu sync.Mutex
	closed   atomic.Bool
}

// New sets up the tile and highlight layers on engine and registers the
// click handler.
func New(cfg Config, engine MapEngine, fetcher FeatureFetcher, logger *slog.Logger, opts ...Option) *Controller {
	if cfg.SRS == "" {
		cfg.SRS = model.DefaultSRS
	}
	if cfg.DisplaySRS == "" {
		cfg.DisplaySRS = model.DefaultSRS
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Controller{
		cfg:     cfg,
		engine:  engine,
		fetcher: fetcher,
		logger:  logger,
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}

	engine.RenderTileLayer(ogc.WMSTileLayer(cfg.WMSURL, cfg.WMSLayers))
	engine.RenderVectorLayer(HighlightLayer, HighlightStyle)
	engine.OnSingleClick(func(ctx context.Context, ev model.ClickEvent) {
		c.HandleClick(ctx, ev)
	})
	return c
}

// QueryBBox is the square queried around a click at the given resolution.
func QueryBBox(coord [2]float64, resolution float64, srs string) model.BBox {
	delta := resolution * QueryHalfWidthFactor
	return model.Around(coord[0], coord[1], delta, srs)
}

func (c *Controller) resolution(ev model.ClickEvent) float64 {
	if ev.Resolution > 0 {
		return ev.Resolution
	}
	if r, ok := c.engine.CurrentResolution(); ok {
		return r
	}
	return 1
}

// HandleClick runs one query cycle for a click. It blocks until the fetch
// resolves. When a newer click started meanwhile the result is dropped and
// the engine is left to the newer cycle.
func (c *Controller) HandleClick(ctx context.Context, ev model.ClickEvent) model.QueryOutcome {
	start := c.now()

	c.renderMu.Lock()
	gen := c.gen.Add(1)
	c.engine.ShowOverlay(ev.Coordinate, LoadingText)
	c.renderMu.Unlock()

	bb := QueryBBox(ev.Coordinate, c.resolution(ev), c.cfg.SRS)
	q, err := ogc.BuildFeatureQuery(c.cfg.TypeName, bb.Coords(), c.cfg.SRS)

	var features []*geojson.Feature
	if err == nil {
		var raw json.RawMessage
		raw, err = c.fetcher.FetchFeatures(ctx, c.cfg.WFSURL, q)
		if err == nil {
			features, err = c.decode(raw)
		}
	}

	out := c.render(ctx, gen, ev, features, err)

	observability.IncClickOutcome(string(out.Kind))
	if c.sink != nil {
		c.sink.Observe(ctx, Cycle{
			Layer:      c.cfg.TypeName,
			Coordinate: ev.Coordinate,
			SRS:        c.cfg.DisplaySRS,
			Query:      q,
			BBox:       bb,
			Outcome:    out.Kind,
			ErrClass:   executor.Class(err),
			Features:   len(features),
			Duration:   c.now().Sub(start),
		})
	}
	return out
}

func (c *Controller) render(ctx context.Context, gen uint64, ev model.ClickEvent, fs []*geojson.Feature, err error) model.QueryOutcome {
	c.renderMu.Lock()
	defer c.renderMu.Unlock()

	if gen != c.gen.Load() {
		c.logger.DebugContext(ctx, "dropping superseded click result",
			"generation", gen,
			"latest", c.gen.Load())
		return model.QueryOutcome{Kind: model.OutcomeSuperseded, Err: err}
	}

	if err != nil {
		c.logger.ErrorContext(ctx, "wfs query failed",
			"err", err,
			"class", executor.Class(err),
			"layer", c.cfg.TypeName)
		c.engine.ShowOverlay(ev.Coordinate, FailureMessage)
		return model.Failure(err)
	}

	if len(fs) == 0 {
		c.engine.ClearLayer(HighlightLayer)
		c.engine.ShowOverlay(ev.Coordinate, NothingFound)
		return model.Empty()
	}

	// highlights change only once the popup rendered
	popup, rerr := renderAttributes(fs[0])
	if rerr != nil {
		c.logger.ErrorContext(ctx, "render attributes failed", "err", rerr)
		c.engine.ShowOverlay(ev.Coordinate, FailureMessage)
		return model.Failure(rerr)
	}
	c.engine.ClearLayer(HighlightLayer)
	c.engine.SetLayerFeatures(HighlightLayer, fs)
	c.engine.ShowOverlay(ev.Coordinate, popup)
	return model.Success(fs)
}

// decode reads the features member and reprojects them into the display CRS.
// A payload that is not an object, or has no features member, decodes to
// none. A features member that is not an array is an error.
func (c *Controller) decode(raw json.RawMessage) ([]*geojson.Feature, error) {
	var env map[string]json.RawMessage
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, nil
	}
	member, ok := env["features"]
	if !ok || bytes.Equal(bytes.TrimSpace(member), []byte("null")) {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(member, &items); err != nil {
		return nil, fmt.Errorf("decode features: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}

	fs := make([]*geojson.Feature, 0, len(items))
	for i, b := range items {
		f, err := geojson.UnmarshalFeature(b)
		if err != nil {
			return nil, fmt.Errorf("decode feature %d: %w", i, err)
		}
		fs = append(fs, f)
	}

	from := ogc.ResponseCRS(raw)
	if from == "" {
		from = c.cfg.SRS
	}
	if err := ogc.ReprojectFeatures(fs, from, c.cfg.DisplaySRS); err != nil {
		return nil, fmt.Errorf("reproject features: %w", err)
	}
	return fs, nil
}

// Close detaches the engine from its target. Fetches in flight are not cancelled.
func (c *Controller) Close() {
	if c.closed.Swap(true) {
		return
	}
	c.engine.Detach()
}
