package night

import (
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"nightcss/css"
)

// Loader is the build pipeline step: it runs Transform on stylesheets unless
// the file is listed in UndoFiles.
type Loader struct {
	Options
	// UndoFiles maps file names to true when they must pass through
	// untouched. Names are matched as given and by base name.
	UndoFiles map[string]bool
}

// NewLoader creates a loader which skips the listed files.
func NewLoader(opts Options, undo ...string) *Loader {
	l := &Loader{Options: opts, UndoFiles: make(map[string]bool, len(undo))}
	for _, name := range undo {
		l.UndoFiles[name] = true
	}
	return l
}

// Skipped reports whether filename is excluded from transformation.
func (l *Loader) Skipped(filename string) bool {
	if l == nil || len(l.UndoFiles) == 0 {
		return false
	}
	return l.UndoFiles[filename] || l.UndoFiles[filepath.ToSlash(filename)] || l.UndoFiles[filepath.Base(filename)]
}

// Stats describes what Load did to a single stylesheet.
type Stats struct {
	Skipped  bool     // listed in UndoFiles, content returned as is
	Rules    int      // color related rules extracted
	Blocks   int      // night rules appended
	Warnings []string // constructs the extractor handles only approximately
}

// Load returns content with night rules appended, or content unchanged when
// the file is excluded.
func (l *Loader) Load(filename, content string) (string, Stats) {
	if l.Skipped(filename) {
		l.logger().Debug("File excluded from night mode", zap.String("file", filename))
		return content, Stats{Skipped: true}
	}
	sheet := css.NewParser(l.Log).Parse([]byte(content), filename)
	block := Synthesize(sheet.Rules, l.Options)
	return content + block, Stats{
		Rules:    len(sheet.Rules),
		Blocks:   strings.Count(block, "}"),
		Warnings: sheet.Warnings,
	}
}
