// Package web serves the browser page that draws a map session.
package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
)

//go:embed assets/index.html
var assets embed.FS

var pageTmpl = template.Must(template.ParseFS(assets, "assets/index.html"))

type Page struct {
	Title   string
	APIBase string
}

// Index renders the page once and serves the cached bytes.
func Index(p Page) (http.HandlerFunc, error) {
	if p.Title == "" {
		p.Title = "WMS WFS Demo"
	}
	if p.APIBase == "" {
		p.APIBase = "/api"
	}
	var buf bytes.Buffer
	if err := pageTmpl.Execute(&buf, p); err != nil {
		return nil, err
	}
	body := buf.Bytes()
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}, nil
}
