package ogc

import "strings"

// TileLayer is the WMS tile source handed to the map engine. The engine's
// own tiling logic issues the GetMap requests.
type TileLayer struct {
	URL         string            `json:"url"`
	Params      map[string]string `json:"params"`
	CrossOrigin string            `json:"crossOrigin"`
}

func WMSTileLayer(baseURL, layers string) TileLayer {
	return TileLayer{
		URL: strings.TrimSpace(baseURL),
		Params: map[string]string{
			"LAYERS": normalizeLayerList(layers),
			"TILED":  "true",
		},
		CrossOrigin: "anonymous",
	}
}

// trims blanks around each comma-separated layer name
func normalizeLayerList(s string) string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ",")
}
