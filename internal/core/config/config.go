package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type EventsCfg struct {
	Enabled   bool
	Brokers   string
	Topic     string
	H3Res     int
	QueueSize int
}

// Config is read once at startup and passed by value; nothing mutates it
// after construction.
type Config struct {
	Addr       string
	LogLevel   string
	LogConsole bool
	LogSampleN int

	WMSURL      string
	WMSLayers   string
	WFSURL      string
	WFSTypeName string
	WFSSRS      string
	WFSTimeout  time.Duration

	MapCenterLon float64
	MapCenterLat float64
	MapZoom      float64

	SessionMax int
	SessionTTL time.Duration

	Events EventsCfg
}

func FromEnv() Config {
	h3Res := getint("EVENTS_H3_RES", 8)
	if h3Res < 0 {
		h3Res = 0
	}
	if h3Res > 15 {
		h3Res = 15
	}

	return Config{
		Addr:       getenv("ADDR", ":8090"),
		LogLevel:   getenv("LOG_LEVEL", "info"),
		LogConsole: getbool("LOG_CONSOLE", false),
		LogSampleN: getint("LOG_SAMPLE_N", 0),

		WMSURL:      getenv("WMS_URL", "http://localhost:8080/geoserver/wms"),
		WMSLayers:   getenv("WMS_LAYERS", ""),
		WFSURL:      getenv("WFS_URL", "http://localhost:8080/geoserver/wfs"),
		WFSTypeName: strings.TrimSpace(os.Getenv("WFS_TYPENAME")),
		WFSSRS:      getenv("WFS_SRS", "EPSG:3857"),
		WFSTimeout:  getduration("WFS_TIMEOUT", 0),

		// Moscow, zoom 12
		MapCenterLon: getfloat("MAP_CENTER_LON", 37.6173),
		MapCenterLat: getfloat("MAP_CENTER_LAT", 55.7558),
		MapZoom:      getfloat("MAP_ZOOM", 12),

		SessionMax: getint("SESSION_MAX", 1024),
		SessionTTL: getduration("SESSION_TTL", 30*time.Minute),

		Events: EventsCfg{
			Enabled:   getbool("EVENTS_ENABLED", false),
			Brokers:   getenv("KAFKA_BROKERS", "localhost:9092"),
			Topic:     getenv("KAFKA_TOPIC", "map-click-queries"),
			H3Res:     h3Res,
			QueueSize: getint("EVENTS_QUEUE", 1024),
		},
	}
}

// BrokerList splits the comma-separated broker list.
func (e EventsCfg) BrokerList() []string {
	var out []string
	for b := range strings.SplitSeq(e.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
