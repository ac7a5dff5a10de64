// Package ingest turns a station reading into the published document and
// the discovery announcements for sensors not yet announced.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/klagroix/ambient-weather-to-mqtt/internal/discovery"
	"github.com/klagroix/ambient-weather-to-mqtt/internal/document"
	"github.com/klagroix/ambient-weather-to-mqtt/internal/mapping"
	"github.com/klagroix/ambient-weather-to-mqtt/internal/metrics"
)

var ErrInvalidReading = errors.New("invalid reading")

const (
	DefaultStationType = "UNKNOWN"
	// UnknownStationKey stands in for the mac in topics when a reading has none.
	UnknownStationKey = "unknown"
)

// Cache is the announced-sensor set.
type Cache interface {
	Claim(ctx context.Context, id string) (bool, error)
	Forget(ctx context.Context, id string) error
}

// Announcer publishes a discovery announcement.
type Announcer interface {
	PublishDiscovery(ctx context.Context, a discovery.Announcement) error
}

type Identity struct {
	MAC         string
	StationType string
}

func (id Identity) HasMAC() bool { return id.MAC != "" }

type Result struct {
	Document  *document.Document
	Identity  Identity
	Announced int
}

// TopicKey is the station's segment in the document topic.
func (r *Result) TopicKey() string {
	if !r.Identity.HasMAC() {
		return UnknownStationKey
	}
	return discovery.Sanitize(r.Identity.MAC)
}

type Options struct {
	Precision int
	Builder   discovery.Builder
	Cache     Cache
	Announcer Announcer
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

type Pipeline struct {
	precision int
	builder   discovery.Builder
	cache     Cache
	announcer Announcer
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewPipeline(o Options) *Pipeline {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		precision: o.Precision,
		builder:   o.Builder,
		cache:     o.Cache,
		announcer: o.Announcer,
		metrics:   o.Metrics,
		logger:    logger,
	}
}

// ResolveIdentity reads the station identity. mac wins over PASSKEY; blank
// values count as absent.
func ResolveIdentity(r Reading) Identity {
	id := Identity{StationType: DefaultStationType}
	if v, ok := r.Get(mapping.KeyMAC); ok && strings.TrimSpace(v) != "" {
		id.MAC = v
	} else if v, ok := r.Get(mapping.KeyPassKey); ok && strings.TrimSpace(v) != "" {
		id.MAC = v
	}
	if v, ok := r.Get(mapping.KeyStationType); ok && strings.TrimSpace(v) != "" {
		id.StationType = v
	}
	return id
}

// Process builds the document for r. The whole reading is validated before
// anything is announced, so a rejected reading has no side effects.
// Announcement failures are logged and never fail the reading.
func (p *Pipeline) Process(ctx context.Context, r Reading, announce bool) (*Result, error) {
	id := ResolveIdentity(r)
	doc := document.New()

	if id.HasMAC() {
		if err := doc.Insert(mapping.PathStationMAC, document.String(id.MAC)); err != nil {
			return nil, err
		}
	}
	if v, ok := r.Get(mapping.KeyStationType); ok && strings.TrimSpace(v) != "" {
		if err := doc.Insert(mapping.PathStationType, document.String(v)); err != nil {
			return nil, err
		}
	}

	var fields []mapping.Field
	for _, pair := range r {
		f, ok := mapping.Lookup(pair.Key)
		if !ok {
			continue
		}
		if err := f.Apply(doc, pair.Value, p.precision); err != nil {
			p.metrics.Reading(metrics.ReadingRejected)
			return nil, fmt.Errorf("%w: %w", ErrInvalidReading, err)
		}
		fields = append(fields, f)
	}
	p.metrics.Reading(metrics.ReadingAccepted)

	res := &Result{Document: doc, Identity: id}
	if !announce {
		return res, nil
	}
	if !id.HasMAC() {
		p.logger.Debug("no station mac, skipping discovery")
		return res, nil
	}
	for _, f := range fields {
		for _, s := range f.Sensors {
			if p.announceIfNeeded(ctx, id, s) {
				res.Announced++
			}
		}
	}
	return res, nil
}

func (p *Pipeline) announceIfNeeded(ctx context.Context, id Identity, s mapping.Sensor) bool {
	if p.cache == nil || p.announcer == nil {
		return false
	}
	a := p.builder.Build(id.MAC, id.StationType, s)

	claimed, err := p.cache.Claim(ctx, a.UniqueID)
	if err != nil {
		p.metrics.Announcement(metrics.AnnounceCacheErr)
		p.logger.Error("announced sensors lookup failed", "sensor", a.UniqueID, "error", err)
		return false
	}
	if !claimed {
		p.logger.Debug("sensor already announced", "sensor", a.UniqueID)
		return false
	}

	if err := p.announcer.PublishDiscovery(ctx, a); err != nil {
		p.metrics.Announcement(metrics.AnnounceFailed)
		p.logger.Error("discovery publish failed", "sensor", a.UniqueID, "topic", a.Topic, "error", err)
		if err := p.cache.Forget(ctx, a.UniqueID); err != nil {
			p.logger.Error("announced sensors rollback failed", "sensor", a.UniqueID, "error", err)
		}
		return false
	}
	p.metrics.Announcement(metrics.AnnouncePublished)
	p.logger.Info("sensor announced", "sensor", a.UniqueID, "name", s.Name, "mac", discovery.Sanitize(id.MAC))
	return true
}
