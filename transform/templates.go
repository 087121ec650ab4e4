package transform

import (
	"bytes"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"text/template"

	sprig "github.com/go-task/slim-sprig/v3"

	"nightcss/config"
)

// Values is a struct that holds variables we make available for template expansion
type Values struct {
	Context string
	// Name is source file name without directory and extension
	Name string
	// Dir is directory of the source relative to processed root, always with
	// forward slashes, empty for top level files
	Dir string
	// Ext is source extension including leading dot
	Ext string
	// Source is full relative source path with forward slashes
	Source string
}

func newValues(name config.TemplateFieldName, src string) Values {
	src = filepath.ToSlash(src)
	base := path.Base(src)
	ext := path.Ext(base)
	dir := path.Dir(src)
	if dir == "." {
		dir = ""
	}
	return Values{
		Context: string(name),
		Name:    strings.TrimSuffix(base, ext),
		Dir:     dir,
		Ext:     ext,
		Source:  src,
	}
}

func expandTemplate(name config.TemplateFieldName, field, src string) (string, error) {
	funcMap := sprig.FuncMap()

	tmpl, err := template.New(string(name)).Funcs(funcMap).Parse(field)
	if err != nil {
		return "", fmt.Errorf("unable to parse template field %s: %w", name, err)
	}

	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, newValues(name, src)); err != nil {
		return "", err
	}
	return buf.String(), nil
}
