// Package frontend carries the embedded web assets.
package frontend

import (
	"embed"
	"html/template"
)

//go:embed templates/*
var content embed.FS

// Templates parses the embedded page templates.
func Templates() (*template.Template, error) {
	return template.ParseFS(content, "templates/*.html")
}
