package transform

import (
	"strings"
	"testing"

	"nightcss/config"
)

func TestExpandTemplate(t *testing.T) {
	tests := []struct {
		name     string
		template string
		src      string
		want     string
	}{
		{"simple text", "simple-text", "site.css", "simple-text"},
		{"name", "{{ .Name }}-night", "themes/dark/site.min.css", "site.min-night"},
		{"dir", "{{ .Dir }}/{{ .Name }}", "themes/dark/site.css", "themes/dark/site"},
		{"dir of top level file", "[{{ .Dir }}]{{ .Name }}", "site.css", "[]site"},
		{"ext", "{{ .Name }}{{ .Ext }}", "site.wxss", "site.wxss"},
		{"source", "{{ .Source }}", "themes/site.css", "themes/site.css"},
		{"context", "{{ .Context }}", "site.css", string(config.OutputNameTemplateFieldName)},
		{"sprig functions", "{{ .Name | upper | replace \"-\" \"_\" }}", "main-theme.css", "MAIN_THEME"},
		{"conditional", "{{ if .Dir }}{{ .Dir | base }}-{{ end }}{{ .Name }}", "a/b/site.css", "b-site"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expandTemplate(config.OutputNameTemplateFieldName, tt.template, tt.src)
			if err != nil {
				t.Fatalf("expandTemplate() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("expandTemplate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExpandTemplate_InvalidTemplate(t *testing.T) {
	_, err := expandTemplate(config.OutputNameTemplateFieldName, "{{ .Name", "site.css")
	if err == nil {
		t.Fatal("Expected error for invalid template")
	}
	if !strings.Contains(err.Error(), string(config.OutputNameTemplateFieldName)) {
		t.Errorf("Error should name the template field, got: %v", err)
	}
}

func TestExpandTemplate_InvalidField(t *testing.T) {
	_, err := expandTemplate(config.OutputNameTemplateFieldName, "{{ .Title }}", "site.css")
	if err == nil {
		t.Error("Expected error for unknown field")
	}
}

func TestNewValues(t *testing.T) {
	v := newValues(config.OutputNameTemplateFieldName, "themes/dark/site.css")
	want := Values{
		Context: string(config.OutputNameTemplateFieldName),
		Name:    "site",
		Dir:     "themes/dark",
		Ext:     ".css",
		Source:  "themes/dark/site.css",
	}
	if v != want {
		t.Errorf("newValues() = %+v, want %+v", v, want)
	}
}
