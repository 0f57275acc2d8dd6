package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"ADDR", "WFS_TYPENAME", "WFS_SRS", "WFS_TIMEOUT", "MAP_ZOOM", "EVENTS_ENABLED"} {
		t.Setenv(k, "")
	}
	cfg := FromEnv()
	if cfg.Addr != ":8090" || cfg.WFSSRS != "EPSG:3857" || cfg.MapZoom != 12 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.WFSTypeName != "" {
		t.Fatalf("type name should stay empty until a click validates it, got %q", cfg.WFSTypeName)
	}
	if cfg.WFSTimeout != 0 {
		t.Fatalf("wfs timeout should default to none, got %v", cfg.WFSTimeout)
	}
	if cfg.Events.Enabled {
		t.Fatal("events should be off by default")
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("WMS_URL", "http://gs/wms")
	t.Setenv("WMS_LAYERS", "a,b")
	t.Setenv("WFS_URL", "http://gs/wfs")
	t.Setenv("WFS_TYPENAME", " demo:parks ")
	t.Setenv("WFS_TIMEOUT", "3s")
	t.Setenv("SESSION_TTL", "5m")
	t.Setenv("EVENTS_ENABLED", "yes")
	t.Setenv("EVENTS_H3_RES", "99")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")

	cfg := FromEnv()
	if cfg.WMSURL != "http://gs/wms" || cfg.WMSLayers != "a,b" || cfg.WFSURL != "http://gs/wfs" {
		t.Fatalf("urls got %+v", cfg)
	}
	if cfg.WFSTypeName != "demo:parks" {
		t.Fatalf("type name got %q", cfg.WFSTypeName)
	}
	if cfg.WFSTimeout != 3*time.Second || cfg.SessionTTL != 5*time.Minute {
		t.Fatalf("durations got %v %v", cfg.WFSTimeout, cfg.SessionTTL)
	}
	if !cfg.Events.Enabled || cfg.Events.H3Res != 15 {
		t.Fatalf("events got %+v", cfg.Events)
	}
	if got := cfg.Events.BrokerList(); !reflect.DeepEqual(got, []string{"k1:9092", "k2:9092"}) {
		t.Fatalf("brokers got %v", got)
	}
}

func TestLoadFile_Overlay(t *testing.T) {
	doc := `
addr: ":9000"
wfs:
  url: http://gs/wfs
  type_name: demo:roads
  timeout: 2s
map:
  center: [18.07, 59.33]
  zoom: 10
events:
  enabled: true
  h3_res: 7
`
	path := filepath.Join(t.TempDir(), "clickmap.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	base := Config{Addr: ":8090", WMSURL: "http://keep/wms", WFSSRS: "EPSG:3857"}
	cfg, err := LoadFile(path, base)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Addr != ":9000" || cfg.WFSTypeName != "demo:roads" || cfg.WFSTimeout != 2*time.Second {
		t.Fatalf("overlay got %+v", cfg)
	}
	if cfg.WMSURL != "http://keep/wms" || cfg.WFSSRS != "EPSG:3857" {
		t.Fatalf("unset fields must keep base values, got %+v", cfg)
	}
	if cfg.MapCenterLon != 18.07 || cfg.MapCenterLat != 59.33 || cfg.MapZoom != 10 {
		t.Fatalf("map got %v %v %v", cfg.MapCenterLon, cfg.MapCenterLat, cfg.MapZoom)
	}
	if !cfg.Events.Enabled || cfg.Events.H3Res != 7 {
		t.Fatalf("events got %+v", cfg.Events)
	}
}

func TestOverlay_Errors(t *testing.T) {
	cases := []string{
		"wfs: {timeout: soon}",
		"events: {h3_res: 16}",
		"addr: [unclosed",
	}
	for _, doc := range cases {
		if _, err := Overlay([]byte(doc), Config{}); err == nil {
			t.Fatalf("expected error for %q", doc)
		}
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"), Config{}); err == nil {
		t.Fatal("expected error for missing file")
	}
}
