// Package queryevents publishes one Kafka event per completed click query.
package queryevents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/wfs-clickmap/internal/core/model"
	"github.com/mohammed-shakir/wfs-clickmap/internal/core/ogc"
	"github.com/mohammed-shakir/wfs-clickmap/internal/mapper"
	h3mapper "github.com/mohammed-shakir/wfs-clickmap/internal/mapper/h3"
	"github.com/mohammed-shakir/wfs-clickmap/internal/mapview"
)

type Event struct {
	Layer      string    `json:"layer"`
	Lon        float64   `json:"lon"`
	Lat        float64   `json:"lat"`
	Cell       string    `json:"h3_cell,omitempty"`
	QueryCells []string  `json:"query_cells,omitempty"`
	Outcome    string    `json:"outcome"`
	ErrClass   string    `json:"err_class,omitempty"`
	Features   int       `json:"features"`
	QueryID    string    `json:"query_id,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	TS         time.Time `json:"ts"`
}

// FromCycle converts a cycle into an event, projecting the click into WGS84
// and tagging it, and the queried box, with H3 cells at res. Location fields
// stay empty when the cycle's CRS cannot be projected; query cells stay empty
// when the box needs more than h3mapper.MaxCoverCells.
func FromCycle(m mapper.Interface, c mapview.Cycle, res int, now time.Time) Event {
	ev := Event{
		Layer:      c.Layer,
		Outcome:    string(c.Outcome),
		Features:   c.Features,
		DurationMS: c.Duration.Milliseconds(),
		TS:         now.UTC(),
	}
	if c.ErrClass != "ok" {
		ev.ErrClass = c.ErrClass
	}
	if c.Query != "" {
		ev.QueryID = ogc.Fingerprint(c.Query)
	}

	proj, err := ogc.Projection(c.SRS, ogc.EPSG4326)
	if err != nil {
		return ev
	}
	pt := projectPoint(proj, orb.Point{c.Coordinate[0], c.Coordinate[1]})
	ev.Lon, ev.Lat = pt.Lon(), pt.Lat()
	if cell, err := m.CellForPoint(ev.Lon, ev.Lat, res); err == nil {
		ev.Cell = cell
	}

	if c.BBox == (model.BBox{}) {
		return ev
	}
	bproj, err := ogc.Projection(c.BBox.SRID, ogc.EPSG4326)
	if err != nil {
		return ev
	}
	lo := projectPoint(bproj, orb.Point{c.BBox.X1, c.BBox.Y1})
	hi := projectPoint(bproj, orb.Point{c.BBox.X2, c.BBox.Y2})
	wgs := model.BBox{X1: lo.Lon(), Y1: lo.Lat(), X2: hi.Lon(), Y2: hi.Lat(), SRID: ogc.EPSG4326}
	if cells, err := m.CellsForBBox(wgs, res); err == nil {
		ev.QueryCells = cells
	}
	return ev
}

func projectPoint(p orb.Projection, pt orb.Point) orb.Point {
	if p == nil {
		return pt
	}
	return p(pt)
}

type Publisher struct {
	logger   *slog.Logger
	topic    string
	h3Res    int
	mapper   mapper.Interface
	mu       sync.Mutex // guards closed and sends on events
	closed   bool
	once     sync.Once
	closeErr error
	events   chan Event
	prod     sarama.AsyncProducer
	stopped  chan struct{}
	now      func() time.Time
}

var _ mapview.CycleSink = (*Publisher)(nil)

func NewPublisher(logger *slog.Logger, brokers []string, topic string, h3Res, queueSize int) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false

	prod, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("queryevents: create async producer: %w", err)
	}
	return NewWithProducer(logger, prod, topic, h3Res, queueSize), nil
}

func NewWithProducer(logger *slog.Logger, prod sarama.AsyncProducer, topic string, h3Res, queueSize int) *Publisher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	p := &Publisher{
		logger:  logger,
		topic:   topic,
		h3Res:   h3Res,
		mapper:  h3mapper.New(),
		events:  make(chan Event, queueSize),
		prod:    prod,
		stopped: make(chan struct{}),
		now:     time.Now,
	}

	go func() {
		defer close(p.stopped)
		for ev := range p.events {
			b, err := json.Marshal(ev)
			if err != nil {
				p.logger.Warn("queryevents: marshal error", "err", err)
				continue
			}
			msg := &sarama.ProducerMessage{
				Topic: p.topic,
				Key:   sarama.StringEncoder(ev.Layer),
				Value: sarama.ByteEncoder(b),
			}
			p.prod.Input() <- msg
		}
	}()

	go func() {
		for err := range p.prod.Errors() {
			if err != nil {
				p.logger.Warn("queryevents: producer error", "err", err)
			}
		}
	}()

	return p
}

// Observe queues the cycle. A full queue drops the event; clicks never wait on Kafka.
func (p *Publisher) Observe(_ context.Context, c mapview.Cycle) {
	p.Publish(FromCycle(p.mapper, c, p.h3Res, p.now()))
}

// Publish queues ev without blocking. Events after Close are dropped.
func (p *Publisher) Publish(ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.events <- ev:
	default:
	}
}

// Close flushes queued events and closes the producer. Later calls return
// the first result.
func (p *Publisher) Close() error {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.events)
		p.mu.Unlock()
		<-p.stopped

		if err := p.prod.Close(); err != nil {
			p.closeErr = fmt.Errorf("queryevents: close producer: %w", err)
		}
	})
	return p.closeErr
}
