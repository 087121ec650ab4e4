package transform

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"nightcss/config"
	"nightcss/night"
	"nightcss/state"
)

const (
	sampleCSS   = ".a{background:#5eb4ed}"
	sampleNight = ".a{background:#5eb4ed}.night .a{background-color:#2f5a77;}"
)

// setupTestEnv creates a test environment with proper context and logger
func setupTestEnv(t *testing.T) (context.Context, *state.LocalEnv) {
	t.Helper()
	logger := zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	ctx := state.ContextWithEnv(context.Background())
	env := state.EnvFromContext(ctx)
	env.Log = logger
	env.Cfg = cfg
	env.Loader = night.NewLoader(night.Options{Match: cfg.Transform.NamedColors, Log: logger})
	return ctx, env
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", path, err)
	}
	return string(data)
}

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	zipFile, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create zip file: %v", err)
	}
	defer zipFile.Close()

	w := zip.NewWriter(zipFile)
	for name, content := range files {
		f, err := w.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
		if err != nil {
			t.Fatalf("Failed to create file in zip: %v", err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("Failed to write to zip: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close zip: %v", err)
	}
}

func TestProcess_NonExistentPath(t *testing.T) {
	ctx, env := setupTestEnv(t)

	err := process(ctx, "/nonexistent/path/site.css", t.TempDir(), env.Log)
	if err == nil {
		t.Fatal("Expected error for non-existent path, got nil")
	}
	if !strings.Contains(err.Error(), "input source was not found") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestProcess_CancelledContext(t *testing.T) {
	ctx, env := setupTestEnv(t)
	cancelCtx, cancel := context.WithCancel(ctx)
	cancel()

	tmpDir := t.TempDir()
	if err := process(cancelCtx, tmpDir, tmpDir, env.Log); err != context.Canceled {
		t.Errorf("Expected context.Canceled error, got %v", err)
	}
}

func TestProcess_SingleFile(t *testing.T) {
	ctx, env := setupTestEnv(t)
	srcDir, dstDir := t.TempDir(), t.TempDir()

	src := filepath.Join(srcDir, "site.css")
	writeFile(t, src, []byte(sampleCSS))

	if err := process(ctx, src, dstDir, env.Log); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	if got := readFile(t, filepath.Join(dstDir, "site.css")); got != sampleNight {
		t.Errorf("output = %q, want %q", got, sampleNight)
	}
	if got := readFile(t, src); got != sampleCSS {
		t.Errorf("source changed: %q", got)
	}
}

func TestProcess_NotStylesheet(t *testing.T) {
	ctx, env := setupTestEnv(t)
	src := filepath.Join(t.TempDir(), "notes.txt")
	writeFile(t, src, []byte(sampleCSS))

	err := process(ctx, src, t.TempDir(), env.Log)
	if err == nil || !strings.Contains(err.Error(), "not recognized as stylesheet") {
		t.Errorf("Expected not recognized error, got %v", err)
	}
}

func TestProcess_FileWithTail(t *testing.T) {
	ctx, env := setupTestEnv(t)
	src := filepath.Join(t.TempDir(), "site.css")
	writeFile(t, src, []byte(sampleCSS))

	if err := process(ctx, filepath.Join(src, "inner.css"), t.TempDir(), env.Log); err == nil {
		t.Error("Expected error for stylesheet with tail")
	}
}

func TestProcess_DirectoryWithTail(t *testing.T) {
	ctx, env := setupTestEnv(t)
	dir := filepath.Join(t.TempDir(), "themes")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}

	err := process(ctx, filepath.Join(dir, "nonexistent.css"), t.TempDir(), env.Log)
	if err == nil || !strings.Contains(err.Error(), "input source was not found") {
		t.Errorf("Expected not found error, got %v", err)
	}
}

func TestProcess_Directory(t *testing.T) {
	tests := []struct {
		name   string
		noDirs bool
		want   []string
	}{
		{"keep structure", false, []string{"site.css", filepath.Join("themes", "dark.css"), filepath.Join("vendor", "lib.css")}},
		{"flat", true, []string{"site.css", "dark.css", "lib.css"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, env := setupTestEnv(t)
			env.NoDirs = tt.noDirs
			srcDir, dstDir := t.TempDir(), t.TempDir()

			writeFile(t, filepath.Join(srcDir, "site.css"), []byte(sampleCSS))
			writeFile(t, filepath.Join(srcDir, "themes", "dark.css"), []byte(sampleCSS))
			writeFile(t, filepath.Join(srcDir, "readme.md"), []byte("# not css"))
			writeZip(t, filepath.Join(srcDir, "bundle.zip"), map[string]string{"vendor/lib.css": sampleCSS})

			if err := process(ctx, srcDir, dstDir, env.Log); err != nil {
				t.Fatalf("process() error = %v", err)
			}
			for _, name := range tt.want {
				if got := readFile(t, filepath.Join(dstDir, name)); got != sampleNight {
					t.Errorf("%s = %q, want %q", name, got, sampleNight)
				}
			}
			if _, err := os.Stat(filepath.Join(dstDir, "readme.md")); !os.IsNotExist(err) {
				t.Error("non stylesheet must not be copied")
			}
		})
	}
}

func TestProcess_Archive(t *testing.T) {
	ctx, env := setupTestEnv(t)
	srcDir, dstDir := t.TempDir(), t.TempDir()

	zipPath := filepath.Join(srcDir, "styles.zip")
	writeZip(t, zipPath, map[string]string{
		"css/site.css":  sampleCSS,
		"css/notes.txt": "text",
		"print.css":     ".p{background:#000}",
	})

	if err := process(ctx, zipPath, dstDir, env.Log); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	if got := readFile(t, filepath.Join(dstDir, "css", "site.css")); got != sampleNight {
		t.Errorf("css/site.css = %q", got)
	}
	// too dark to produce anything, still written out
	if got := readFile(t, filepath.Join(dstDir, "print.css")); got != ".p{background:#000}" {
		t.Errorf("print.css = %q", got)
	}
	if _, err := os.Stat(filepath.Join(dstDir, "css", "notes.txt")); !os.IsNotExist(err) {
		t.Error("non stylesheet must not be extracted")
	}
}

func writeZipNonUTF8(t *testing.T, path, name, content string) {
	t.Helper()
	zipFile, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create zip file: %v", err)
	}
	defer zipFile.Close()

	encoded, err := charmap.Windows1251.NewEncoder().String(name)
	if err != nil {
		t.Fatalf("Failed to encode name: %v", err)
	}
	w := zip.NewWriter(zipFile)
	f, err := w.CreateHeader(&zip.FileHeader{Name: encoded, Method: zip.Deflate, NonUTF8: true})
	if err != nil {
		t.Fatalf("Failed to create file in zip: %v", err)
	}
	if _, err := f.Write([]byte(content)); err != nil {
		t.Fatalf("Failed to write to zip: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close zip: %v", err)
	}
}

func TestProcess_ArchiveCodePage(t *testing.T) {
	ctx, env := setupTestEnv(t)
	env.Cfg.Transform.FileNameTransliterate = false
	env.CodePage = charmap.Windows1251
	srcDir, dstDir := t.TempDir(), t.TempDir()

	zipPath := filepath.Join(srcDir, "old.zip")
	writeZipNonUTF8(t, zipPath, "тема.css", sampleCSS)

	if err := process(ctx, zipPath, dstDir, env.Log); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	if got := readFile(t, filepath.Join(dstDir, "тема.css")); got != sampleNight {
		t.Errorf("тема.css = %q", got)
	}
}

func TestRun_ForceZipCodePage(t *testing.T) {
	tests := []struct {
		name    string
		charset string
		decoded bool
	}{
		{"known charset", "windows-1251", true},
		{"unknown charset", "no-such-charset", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, env := setupTestEnv(t)
			env.Cfg.Transform.FileNameTransliterate = false
			srcDir, dstDir := t.TempDir(), t.TempDir()

			zipPath := filepath.Join(srcDir, "old.zip")
			writeZipNonUTF8(t, zipPath, "тема.css", sampleCSS)

			cmd := &cli.Command{
				Name:   "transform",
				Flags:  Flags(),
				Action: Run,
			}
			if err := cmd.Run(ctx, []string{"transform", "--force-zip-cp", tt.charset, zipPath, dstDir}); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if got := env.CodePage != nil; got != tt.decoded {
				t.Errorf("code page set = %v, want %v", got, tt.decoded)
			}
			_, err := os.Stat(filepath.Join(dstDir, "тема.css"))
			if tt.decoded && err != nil {
				t.Errorf("decoded name not found: %v", err)
			}
			if !tt.decoded && err == nil {
				t.Error("name must stay undecoded without a code page")
			}
		})
	}
}

func TestProcess_ArchiveWithPath(t *testing.T) {
	ctx, env := setupTestEnv(t)
	srcDir, dstDir := t.TempDir(), t.TempDir()

	zipPath := filepath.Join(srcDir, "styles.zip")
	writeZip(t, zipPath, map[string]string{
		"css/site.css":   sampleCSS,
		"other/skip.css": sampleCSS,
	})

	if err := process(ctx, filepath.Join(zipPath, "css"), dstDir, env.Log); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	if got := readFile(t, filepath.Join(dstDir, "css", "site.css")); got != sampleNight {
		t.Errorf("css/site.css = %q", got)
	}
	if _, err := os.Stat(filepath.Join(dstDir, "other")); !os.IsNotExist(err) {
		t.Error("entries outside requested path must not be processed")
	}
}

func TestProcess_ExistingOutput(t *testing.T) {
	for _, overwrite := range []bool{false, true} {
		t.Run(map[bool]string{false: "keep", true: "overwrite"}[overwrite], func(t *testing.T) {
			ctx, env := setupTestEnv(t)
			env.Overwrite = overwrite
			srcDir, dstDir := t.TempDir(), t.TempDir()

			src := filepath.Join(srcDir, "site.css")
			writeFile(t, src, []byte(sampleCSS))
			writeFile(t, filepath.Join(dstDir, "site.css"), []byte("old"))

			if err := process(ctx, src, dstDir, env.Log); err != nil {
				t.Fatalf("process() error = %v", err)
			}
			want := "old"
			if overwrite {
				want = sampleNight
			}
			if got := readFile(t, filepath.Join(dstDir, "site.css")); got != want {
				t.Errorf("output = %q, want %q", got, want)
			}
		})
	}
}

func TestProcess_DefaultDestinationIsSource(t *testing.T) {
	for _, overwrite := range []bool{false, true} {
		t.Run(map[bool]string{false: "keep", true: "overwrite"}[overwrite], func(t *testing.T) {
			ctx, env := setupTestEnv(t)
			env.Overwrite = overwrite
			srcDir := t.TempDir()

			src := filepath.Join(srcDir, "site.css")
			writeFile(t, src, []byte(sampleCSS))

			if err := process(ctx, src, srcDir, env.Log); err != nil {
				t.Fatalf("process() error = %v", err)
			}
			if got := readFile(t, src); got != sampleCSS {
				t.Errorf("source = %q, want it untouched", got)
			}
		})
	}
}

func TestRun_DefaultDestinationIsSource(t *testing.T) {
	ctx, _ := setupTestEnv(t)
	srcDir := t.TempDir()
	writeFile(t, filepath.Join(srcDir, "site.css"), []byte(sampleCSS))
	t.Chdir(srcDir)

	cmd := &cli.Command{
		Name:   "transform",
		Flags:  Flags(),
		Action: Run,
	}
	if err := cmd.Run(ctx, []string{"transform", "--overwrite", "site.css"}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := readFile(t, filepath.Join(srcDir, "site.css")); got != sampleCSS {
		t.Errorf("source = %q, want it untouched", got)
	}
}

func TestSameFile(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.css")
	writeFile(t, a, []byte(sampleCSS))

	tests := []struct {
		name string
		x, y string
		want bool
	}{
		{"identical", a, a, true},
		{"unclean", a, filepath.Join(dir, ".", "sub", "..", "a.css"), true},
		{"different", a, filepath.Join(dir, "b.css"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sameFile(tt.x, tt.y); got != tt.want {
				t.Errorf("sameFile(%q, %q) = %v, want %v", tt.x, tt.y, got, tt.want)
			}
		})
	}
}

func TestProcess_InPlace(t *testing.T) {
	ctx, env := setupTestEnv(t)
	env.InPlace = true
	srcDir, dstDir := t.TempDir(), t.TempDir()

	writeFile(t, filepath.Join(srcDir, "site.css"), []byte(sampleCSS))
	writeFile(t, filepath.Join(srcDir, "themes", "dark.css"), []byte(sampleCSS))
	writeZip(t, filepath.Join(srcDir, "bundle.zip"), map[string]string{"lib.css": sampleCSS})

	if err := process(ctx, srcDir, dstDir, env.Log); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	for _, name := range []string{"site.css", filepath.Join("themes", "dark.css")} {
		if got := readFile(t, filepath.Join(srcDir, name)); got != sampleNight {
			t.Errorf("%s = %q, want %q", name, got, sampleNight)
		}
	}
	entries, err := os.ReadDir(dstDir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("destination must stay empty, got %d entries", len(entries))
	}

	err = process(ctx, filepath.Join(srcDir, "bundle.zip"), dstDir, env.Log)
	if err == nil || !strings.Contains(err.Error(), "in place") {
		t.Errorf("Expected in place archive error, got %v", err)
	}
}

func TestProcess_UndoFiles(t *testing.T) {
	ctx, env := setupTestEnv(t)
	env.Loader = night.NewLoader(env.Loader.Options, "vendor.css", "themes/raw.css")
	srcDir, dstDir := t.TempDir(), t.TempDir()

	writeFile(t, filepath.Join(srcDir, "vendor.css"), []byte(sampleCSS))
	writeFile(t, filepath.Join(srcDir, "lib", "vendor.css"), []byte(sampleCSS))
	writeFile(t, filepath.Join(srcDir, "themes", "raw.css"), []byte(sampleCSS))
	writeFile(t, filepath.Join(srcDir, "themes", "main.css"), []byte(sampleCSS))

	if err := process(ctx, srcDir, dstDir, env.Log); err != nil {
		t.Fatalf("process() error = %v", err)
	}

	tests := []struct {
		name string
		want string
	}{
		{"vendor.css", sampleCSS},
		{filepath.Join("lib", "vendor.css"), sampleCSS},
		{filepath.Join("themes", "raw.css"), sampleCSS},
		{filepath.Join("themes", "main.css"), sampleNight},
	}
	for _, tt := range tests {
		if got := readFile(t, filepath.Join(dstDir, tt.name)); got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestProcess_UTF16Source(t *testing.T) {
	ctx, env := setupTestEnv(t)
	srcDir, dstDir := t.TempDir(), t.TempDir()

	encoded, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().Bytes([]byte(sampleCSS))
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}
	src := filepath.Join(srcDir, "site.css")
	writeFile(t, src, encoded)

	if err := process(ctx, src, dstDir, env.Log); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	if got := readFile(t, filepath.Join(dstDir, "site.css")); got != sampleNight {
		t.Errorf("output = %q, want %q", got, sampleNight)
	}
}

func TestProcessStream(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
	}{
		{"plain", []byte(sampleCSS)},
		{"utf-8 bom", append([]byte{0xEF, 0xBB, 0xBF}, sampleCSS...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, env := setupTestEnv(t)
			out := new(bytes.Buffer)
			if err := processStream(ctx, bytes.NewReader(tt.in), out, env.Log); err != nil {
				t.Fatalf("processStream() error = %v", err)
			}
			if out.String() != sampleNight {
				t.Errorf("processStream() = %q, want %q", out.String(), sampleNight)
			}
		})
	}
}

func TestProcessStream_Empty(t *testing.T) {
	ctx, env := setupTestEnv(t)
	out := new(bytes.Buffer)
	if err := processStream(ctx, strings.NewReader(""), out, env.Log); err != nil {
		t.Fatalf("processStream() error = %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("processStream() = %q, want empty", out.String())
	}
}

func TestTransformStylesheet_RecoversPanic(t *testing.T) {
	ctx, env := setupTestEnv(t)
	env.Loader = nil

	_, err := transformStylesheet(ctx, []byte(sampleCSS), "site.css", env.Log)
	if err == nil || !strings.Contains(err.Error(), "panic") {
		t.Errorf("Expected panic to be turned into error, got %v", err)
	}
}

func TestTransformStylesheet_Report(t *testing.T) {
	ctx, env := setupTestEnv(t)
	rptCfg := config.ReporterConfig{Destination: filepath.Join(t.TempDir(), "report.zip")}
	rpt, err := rptCfg.Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	env.Rpt = rpt

	if _, err := transformStylesheet(ctx, []byte(sampleCSS), filepath.Join("themes", "site.css"), env.Log); err != nil {
		t.Fatalf("transformStylesheet() error = %v", err)
	}
	name := rpt.Name()
	if err := rpt.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	zr, err := zip.OpenReader(name)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer zr.Close()

	got := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		got[f.Name] = string(data)
	}
	if got["source/themes/site.css"] != sampleCSS {
		t.Errorf("source in report = %q", got["source/themes/site.css"])
	}
	if got["result/themes/site.css"] != sampleNight {
		t.Errorf("result in report = %q", got["result/themes/site.css"])
	}
}

func TestNaturalOrder(t *testing.T) {
	paths := []string{"page10.css", "page2.css", "page1.css", "a/page3.css"}
	slices.SortStableFunc(paths, naturalOrder)
	want := []string{"a/page3.css", "page1.css", "page2.css", "page10.css"}
	if !slices.Equal(paths, want) {
		t.Errorf("naturalOrder sorted %v, want %v", paths, want)
	}
}

func TestRun(t *testing.T) {
	ctx, env := setupTestEnv(t)
	srcDir, dstDir := t.TempDir(), t.TempDir()

	writeFile(t, filepath.Join(srcDir, "themes", "site.css"), []byte(sampleCSS))
	writeFile(t, filepath.Join(srcDir, "themes", "raw.css"), []byte(sampleCSS))
	writeFile(t, filepath.Join(srcDir, "named.css"), []byte(".n{color:lightgoldenrodyellow}"))

	cmd := &cli.Command{
		Name:   "transform",
		Flags:  Flags(),
		Action: Run,
	}
	args := []string{"transform", "--nodirs", "--undo", "raw.css", "--named-colors", "substring", srcDir, dstDir}
	if err := cmd.Run(ctx, args); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !env.NoDirs || env.Overwrite || env.InPlace {
		t.Errorf("flags not applied: nodirs=%v overwrite=%v inplace=%v", env.NoDirs, env.Overwrite, env.InPlace)
	}
	if got := readFile(t, filepath.Join(dstDir, "site.css")); got != sampleNight {
		t.Errorf("site.css = %q", got)
	}
	if got := readFile(t, filepath.Join(dstDir, "raw.css")); got != sampleCSS {
		t.Errorf("raw.css = %q, want unchanged", got)
	}
	if got := readFile(t, filepath.Join(dstDir, "named.css")); got != ".n{color:lightgoldenrodyellow}.night .n{color:#808000;}" {
		t.Errorf("named.css = %q", got)
	}
}

func TestRun_NoSource(t *testing.T) {
	ctx, _ := setupTestEnv(t)
	cmd := &cli.Command{Name: "transform", Flags: Flags(), Action: Run}
	if err := cmd.Run(ctx, []string{"transform"}); err == nil {
		t.Error("Expected error when no source is given")
	}
}
