package server

import (
	"html/template"
	"log"

	"github.com/larsks/qthrss/frontend"
)

// devTemplateGlob locates the on-disk templates relative to the
// checkout root.
const devTemplateGlob = "frontend/templates/*.html"

// templateLoader returns the template source handed to the HTTP API.
// The embedded templates are parsed once up front. In dev mode the glob
// is re-parsed on every call instead, so template edits show up on the
// next request without a rebuild.
func templateLoader(dev bool, glob string) (func() (*template.Template, error), error) {
	if dev {
		log.Println("Using local instead of embedded templates")
		return func() (*template.Template, error) {
			return template.ParseGlob(glob)
		}, nil
	}

	tmpl, err := frontend.Templates()
	if err != nil {
		return nil, err
	}

	return func() (*template.Template, error) {
		return tmpl, nil
	}, nil
}
