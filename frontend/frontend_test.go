package frontend

import (
	"bytes"
	"strings"
	"testing"
)

func TestTemplates(t *testing.T) {
	tmpl, err := Templates()
	if err != nil {
		t.Fatal("Error parsing templates: ", err)
	}

	links := []struct {
		Title string
		Path  string
	}{
		{Title: "Antennas", Path: "Antennas.xml"},
		{Title: "CW Keys & Keyers", Path: "CW%20Keys%20&%20Keyers.xml"},
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "feeds.html", links); err != nil {
		t.Fatal("Error rendering feeds.html: ", err)
	}

	out := buf.String()

	if !strings.Contains(out, `<a href="feed/Antennas.xml">Antennas</a>`) {
		t.Error("Expected feed link in output:\n", out)
	}

	if !strings.Contains(out, "CW Keys &amp; Keyers") {
		t.Error("Expected escaped category title in output:\n", out)
	}
}
