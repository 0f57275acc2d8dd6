package mapview

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"html/template"
	"strings"

	"github.com/paulmach/orb/geojson"
)

const (
	LoadingText    = "Loading..."
	NothingFound   = "Nothing found"
	FailureMessage = "Failed to load data"
)

var attributesTmpl = template.Must(template.New("attributes").Parse(
	`<b>Attributes:</b>
<pre style="font-size:12px">{{.}}</pre>`))

// FormatAttributes renders the feature's properties as indented JSON with
// any geometry key removed.
func FormatAttributes(f *geojson.Feature) (string, error) {
	props := make(map[string]any, len(f.Properties))
	for k, v := range f.Properties {
		if k == "geometry" {
			continue
		}
		props[k] = v
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false) // escaped once, by the popup template
	enc.SetIndent("", "  ")
	if err := enc.Encode(props); err != nil {
		return "", fmt.Errorf("marshal attributes: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func renderAttributes(f *geojson.Feature) (string, error) {
	text, err := FormatAttributes(f)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := attributesTmpl.Execute(&buf, text); err != nil {
		return "", fmt.Errorf("render attributes: %w", err)
	}
	return buf.String(), nil
}

// PlainText strips the popup markup, for terminals.
func PlainText(markup string) string {
	var b strings.Builder
	in := false
	for _, r := range markup {
		switch {
		case r == '<':
			in = true
		case r == '>':
			in = false
		case !in:
			b.WriteRune(r)
		}
	}
	return html.UnescapeString(b.String())
}
