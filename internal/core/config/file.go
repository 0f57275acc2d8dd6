package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Config for YAML files; nil fields keep the value from
// the environment.
type fileConfig struct {
	Addr     *string `yaml:"addr"`
	LogLevel *string `yaml:"log_level"`

	WMS struct {
		URL    *string `yaml:"url"`
		Layers *string `yaml:"layers"`
	} `yaml:"wms"`

	WFS struct {
		URL      *string `yaml:"url"`
		TypeName *string `yaml:"type_name"`
		SRS      *string `yaml:"srs"`
		Timeout  *string `yaml:"timeout"`
	} `yaml:"wfs"`

	Map struct {
		Center *[2]float64 `yaml:"center"` // lon, lat
		Zoom   *float64    `yaml:"zoom"`
	} `yaml:"map"`

	Sessions struct {
		Max *int    `yaml:"max"`
		TTL *string `yaml:"ttl"`
	} `yaml:"sessions"`

	Events struct {
		Enabled *bool   `yaml:"enabled"`
		Brokers *string `yaml:"brokers"`
		Topic   *string `yaml:"topic"`
		H3Res   *int    `yaml:"h3_res"`
	} `yaml:"events"`
}

// LoadFile overlays the YAML file at path onto base.
func LoadFile(path string, base Config) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read config %s: %w", path, err)
	}
	return Overlay(b, base)
}

func Overlay(doc []byte, base Config) (Config, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(doc, &fc); err != nil {
		return base, fmt.Errorf("parse config: %w", err)
	}

	cfg := base
	setStr(&cfg.Addr, fc.Addr)
	setStr(&cfg.LogLevel, fc.LogLevel)
	setStr(&cfg.WMSURL, fc.WMS.URL)
	setStr(&cfg.WMSLayers, fc.WMS.Layers)
	setStr(&cfg.WFSURL, fc.WFS.URL)
	setStr(&cfg.WFSTypeName, fc.WFS.TypeName)
	setStr(&cfg.WFSSRS, fc.WFS.SRS)
	if err := setDur(&cfg.WFSTimeout, fc.WFS.Timeout); err != nil {
		return base, fmt.Errorf("wfs.timeout: %w", err)
	}
	if c := fc.Map.Center; c != nil {
		cfg.MapCenterLon, cfg.MapCenterLat = c[0], c[1]
	}
	if fc.Map.Zoom != nil {
		cfg.MapZoom = *fc.Map.Zoom
	}
	if fc.Sessions.Max != nil {
		cfg.SessionMax = *fc.Sessions.Max
	}
	if err := setDur(&cfg.SessionTTL, fc.Sessions.TTL); err != nil {
		return base, fmt.Errorf("sessions.ttl: %w", err)
	}
	if fc.Events.Enabled != nil {
		cfg.Events.Enabled = *fc.Events.Enabled
	}
	setStr(&cfg.Events.Brokers, fc.Events.Brokers)
	setStr(&cfg.Events.Topic, fc.Events.Topic)
	if r := fc.Events.H3Res; r != nil {
		if *r < 0 || *r > 15 {
			return base, fmt.Errorf("events.h3_res %d out of range [0,15]", *r)
		}
		cfg.Events.H3Res = *r
	}
	return cfg, nil
}

func setStr(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func setDur(dst *time.Duration, v *string) error {
	if v == nil {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(*v))
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
