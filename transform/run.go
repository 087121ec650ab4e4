// Package transform drives night mode transformation of stylesheets found in
// files, directories, zip archives or standard input.
package transform

import (
	"archive/zip"
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"github.com/maruel/natural"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/ianaindex"

	"nightcss/archive"
	"nightcss/common"
	"nightcss/night"
	"nightcss/state"
)

// StdinSource is the SOURCE argument requesting to read stylesheet from
// standard input and write result to standard output.
const StdinSource = "-"

// Flags returns command line flags Run understands.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "nodirs", Aliases: []string{"nd"}, Usage: "when producing output do not keep input directory structure"},
		&cli.BoolFlag{Name: "overwrite", Aliases: []string{"ow"}, Usage: "continue even if destination exits, overwrite files"},
		&cli.BoolFlag{Name: "inplace", Aliases: []string{"ip"}, Usage: "rewrite source stylesheets instead of writing to destination (archives are not supported)"},
		&cli.StringSliceFlag{Name: "undo", Usage: "keep stylesheet `NAME` unchanged, may be repeated (added to undo_files from configuration)"},
		&cli.StringFlag{Name: "named-colors",
			Usage: "how named colors are recognized in values, `MODE` (supported modes: " + strings.Join(common.MatchModeNames(), ", ") + ")"},
		&cli.StringFlag{Name: "force-zip-cp",
			Usage: "Force `ENCODING` for ALL non UTF-8 file names in processed archives (see IANA.org for character set names)"},
	}
}

func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("transform")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}

	mode := env.Cfg.Transform.NamedColors
	if name := cmd.String("named-colors"); len(name) > 0 {
		if mode, err = common.ParseMatchMode(name); err != nil {
			log.Warn("Unknown named colors mode requested, using configured one", zap.Error(err), zap.Stringer("mode", env.Cfg.Transform.NamedColors))
			mode = env.Cfg.Transform.NamedColors
		}
	}
	undo := append(slices.Clone(env.Cfg.Transform.UndoFiles), cmd.StringSlice("undo")...)
	env.Loader = night.NewLoader(night.Options{Match: mode, Log: log.Named("night")}, undo...)

	if src == StdinSource {
		if cmd.Args().Len() > 1 {
			log.Warn("Reading from STDIN, result goes to STDOUT, ignoring destination", zap.Strings("ignoring", cmd.Args().Slice()[1:]))
		}
		return processStream(ctx, os.Stdin, os.Stdout, log)
	}

	if src, err = filepath.Abs(src); err != nil {
		return err
	}

	env.NoDirs, env.Overwrite, env.InPlace = cmd.Bool("nodirs"), cmd.Bool("overwrite"), cmd.Bool("inplace")

	dst := cmd.Args().Get(1)
	if env.InPlace && len(dst) > 0 {
		log.Warn("Transforming in place, ignoring destination", zap.String("ignoring", dst))
	}
	if len(dst) == 0 {
		if dst, err = os.Getwd(); err != nil {
			return fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return err
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Mailformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	// Since zip "standard" does not define file name encoding we may need to
	// force archaic code page for old archives
	cp := cmd.String("force-zip-cp")
	if len(cp) > 0 {
		env.CodePage, err = ianaindex.IANA.Encoding(cp)
		if err != nil || env.CodePage == nil {
			log.Warn("Unknown character set specification. Ignoring...", zap.String("charset", cp), zap.Error(err))
			env.CodePage = nil
		} else {
			n, _ := ianaindex.IANA.Name(env.CodePage)
			log.Debug("Forcefully converting all non UTF-8 file names in archives", zap.String("charset", n))
		}
	}

	log.Info("Processing starting", zap.String("source", src), zap.String("destination", dst),
		zap.Stringer("named_colors", mode), zap.Strings("undo", undo), zap.Bool("inplace", env.InPlace))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	return process(ctx, src, dst, log)
}

// process handles the core logic independently of CLI framework. It
// determines the input type (directory, archive, or single file) and processes
// accordingly.
func process(ctx context.Context, src, dst string, log *zap.Logger) error {
	env := state.EnvFromContext(ctx)
	extensions := env.Cfg.Transform.Extensions

	var head, tail string
	for head = src; len(head) != 0; head, tail = filepath.Split(head) {
		if err := ctx.Err(); err != nil {
			return err
		}

		head = strings.TrimSuffix(head, string(filepath.Separator))

		fi, err := os.Stat(head)
		if err != nil {
			// does not exists - probably path in archive
			continue
		}

		if fi.Mode().IsDir() {
			if len(tail) != 0 {
				// directory cannot have tail - it would be simple file
				return fmt.Errorf("input source was not found (%s) => (%s)", head, strings.TrimPrefix(src, head))
			}
			if err := processDir(ctx, head, dst, log); err != nil {
				return fmt.Errorf("unable to process directory: %w", err)
			}
			break
		}

		if !fi.Mode().IsRegular() {
			return fmt.Errorf("unexpected path mode for (%s) => (%s)", head, strings.TrimPrefix(src, head))
		}

		arc, err := isArchiveFile(head)
		if err != nil {
			// checking format - but cannot open target file
			return fmt.Errorf("unable to check archive type: %w", err)
		}
		if arc {
			if env.InPlace {
				return fmt.Errorf("archives cannot be transformed in place (%s)", head)
			}
			// we need to look inside to see if path makes sense
			tail = filepath.ToSlash(strings.TrimPrefix(strings.TrimPrefix(src, head), string(filepath.Separator)))
			if err := processArchive(ctx, head, tail, "", dst, log); err != nil {
				return fmt.Errorf("unable to process archive: %w", err)
			}
			break
		}

		sheet, enc, err := isStylesheetFile(head, extensions)
		if err != nil {
			// checking format - but cannot open target file
			return fmt.Errorf("unable to check file type: %w", err)
		}
		if sheet && len(tail) == 0 {
			// encoding will be handled properly by processStylesheet
			if err := processFile(ctx, head, filepath.Base(head), enc, dst, log); err != nil {
				log.Error("Unable to process file", zap.String("file", head), zap.Error(err))
			}
			break
		}
		return fmt.Errorf("input was not recognized as stylesheet (%s), expected extensions %v", head, extensions)
	}
	if len(head) == 0 {
		return fmt.Errorf("input source was not found (%s)", src)
	}
	return nil
}

func naturalOrder(a, b string) int {
	switch {
	case natural.Less(a, b):
		return -1
	case natural.Less(b, a):
		return 1
	}
	return 0
}

// processDir walks directory tree finding stylesheets and archives and
// processes them in natural order of their paths. Symbolic links are not
// followed.
func processDir(ctx context.Context, dir, dst string, log *zap.Logger) (err error) {
	env := state.EnvFromContext(ctx)
	extensions := env.Cfg.Transform.Extensions

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err != nil {
			log.Warn("Skipping path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if d.Type().IsRegular() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return err
	}
	slices.SortStableFunc(paths, naturalOrder)

	count := 0
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}

		rel := strings.TrimPrefix(strings.TrimPrefix(path, dir), string(filepath.Separator))

		arc, err := isArchiveFile(path)
		if err != nil {
			// checking format - but cannot open target file
			log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			continue
		}
		if arc {
			if env.InPlace {
				log.Warn("Skipping archive, cannot transform in place", zap.String("file", path))
				continue
			}
			if err := processArchive(ctx, path, "", filepath.Dir(rel), dst, log); err != nil {
				log.Error("Unable to process archive", zap.String("file", path), zap.Error(err))
			}
			continue
		}

		sheet, enc, err := isStylesheetFile(path, extensions)
		if err != nil {
			log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			continue
		}
		if !sheet {
			log.Debug("Skipping file, not recognized as stylesheet or archive", zap.String("file", path))
			continue
		}

		count++
		if err := processFile(ctx, path, rel, enc, dst, log); err != nil {
			log.Error("Unable to process file", zap.String("file", path), zap.Error(err))
		}
	}
	if count == 0 {
		log.Debug("Nothing to process", zap.String("dir", dir))
	}
	return nil
}

func processFile(ctx context.Context, path, src string, enc srcEncoding, dst string, log *zap.Logger) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return processStylesheet(ctx, selectReader(file, enc), src, path, dst, log)
}

// processArchive walks all files inside archive, finds stylesheets under
// "pathIn" and processes them. Output names are relative to "pathOut".
func processArchive(ctx context.Context, path, pathIn, pathOut, dst string, log *zap.Logger) (err error) {
	env := state.EnvFromContext(ctx)
	extensions := env.Cfg.Transform.Extensions

	count := 0
	defer func() {
		if err == nil && count == 0 {
			log.Debug("Nothing to process", zap.String("archive", path))
		}
	}()

	return archive.Walk(path, pathIn, func(archive string, f *zip.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		sheet, enc, err := isStylesheetInArchive(f, extensions)
		if err != nil {
			log.Warn("Skipping file in archive",
				zap.String("archive", archive), zap.String("path", f.FileHeader.Name), zap.Error(err))
			return nil
		}
		if !sheet {
			log.Debug("Skipping file, not recognized as stylesheet", zap.String("archive", archive), zap.String("file", f.FileHeader.Name))
			return nil
		}

		count++

		r, err := f.Open()
		if err != nil {
			log.Error("Unable to process file in archive",
				zap.String("archive", archive), zap.String("file", f.FileHeader.Name), zap.Error(err))
			return nil
		}
		defer r.Close()

		pathInArchive := f.FileHeader.Name
		if cp := env.CodePage; cp != nil && f.FileHeader.NonUTF8 {
			// forcing zip file name encoding
			if n, err := cp.NewDecoder().String(pathInArchive); err == nil {
				pathInArchive = n
			} else {
				n, _ = ianaindex.IANA.Name(cp)
				log.Warn("Unable to convert archive name from specified encoding",
					zap.String("charset", n), zap.String("path", pathInArchive), zap.Error(err))
			}
		}
		if err := processStylesheet(ctx, selectReader(r, enc), filepath.Join(pathOut, filepath.FromSlash(pathInArchive)), "", dst, log); err != nil {
			log.Error("Unable to process file in archive",
				zap.String("archive", archive), zap.String("file", f.FileHeader.Name), zap.Error(err))
		}
		return nil
	})
}

// processStream transforms a single stylesheet from r writing result to w.
func processStream(ctx context.Context, r io.Reader, w io.Writer, log *zap.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	br := bufio.NewReader(r)
	// short input is fine, we only need to see the BOM if it is there
	header, _ := br.Peek(4)
	enc := detectUTF(header)

	data, err := io.ReadAll(selectReader(br, enc))
	if err != nil {
		return fmt.Errorf("unable to read stylesheet from STDIN: %w", err)
	}

	result, err := transformStylesheet(ctx, data, "stdin.css", log)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, result); err != nil {
		return fmt.Errorf("unable to write stylesheet to STDOUT: %w", err)
	}
	return nil
}

// processStylesheet processes single stylesheet. "src" is part of the source
// path (always including file name) relative to the original path. When actual
// file was specified it will be just base file name without a path. When
// looking inside archive or directory it will be relative path inside archive
// or directory (including base file name). "origin" is the actual file path
// for regular files and is empty for archive entries. "dst" is the destination
// directory.
func processStylesheet(ctx context.Context, r io.Reader, src, origin, dst string, log *zap.Logger) error {
	env := state.EnvFromContext(ctx)

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("unable to read stylesheet (%s): %w", src, err)
	}

	result, err := transformStylesheet(ctx, data, src, log)
	if err != nil {
		return err
	}

	var outputName string
	if env.InPlace && len(origin) > 0 {
		outputName = origin
	} else {
		outputName = buildOutputPath(src, dst, env)
		if len(origin) > 0 && sameFile(origin, outputName) {
			return fmt.Errorf("output file is the source itself (%s), use --inplace or specify DESTINATION", outputName)
		}
		if err := prepareDestination(outputName, env.Overwrite, log); err != nil {
			return err
		}
	}

	if err := os.WriteFile(outputName, []byte(result), 0644); err != nil {
		return fmt.Errorf("unable to write stylesheet: %w", err)
	}
	log.Debug("Stylesheet written", zap.String("from", src), zap.String("to", outputName))
	return nil
}

func sameFile(a, b string) bool {
	if filepath.Clean(a) == filepath.Clean(b) {
		return true
	}
	ia, err := os.Stat(a)
	if err != nil {
		return false
	}
	ib, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ia, ib)
}

// Check if output file already exists.
func prepareDestination(outputName string, overwrite bool, log *zap.Logger) error {
	if _, err := os.Stat(outputName); err == nil {
		if !overwrite {
			return fmt.Errorf("output file already exists: %s", outputName)
		}
		log.Warn("Overwriting existing file", zap.String("file", outputName))
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outputName), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}
	return nil
}

// transformStylesheet appends night rules to stylesheet text unless source is
// listed in undo files. Panics are turned into errors, so a single bad file
// does not stop directory or archive processing.
func transformStylesheet(ctx context.Context, data []byte, src string, log *zap.Logger) (result string, rerr error) {
	env := state.EnvFromContext(ctx)

	var rules, blocks, warnings int
	log.Info("Transformation starting", zap.String("from", src))
	defer func(start time.Time) {
		if r := recover(); r != nil {
			log.Error("Transformation ended with panic",
				zap.Any("panic", r), zap.Duration("elapsed", time.Since(start)), zap.String("from", src), zap.ByteString("stack", debug.Stack()))
			rerr = fmt.Errorf("transformation panic: %v", r)
		} else {
			log.Info("Transformation completed", zap.Duration("elapsed", time.Since(start)), zap.String("from", src),
				zap.Int("rules", rules), zap.Int("night_blocks", blocks), zap.Int("warnings", warnings))
		}
	}(time.Now())

	text := string(data)
	name := filepath.ToSlash(src)

	result, stats := env.Loader.Load(name, text)
	if stats.Skipped {
		log.Info("Stylesheet is listed in undo files, keeping it unchanged", zap.String("from", src))
	}
	rules, blocks, warnings = stats.Rules, stats.Blocks, len(stats.Warnings)

	if env.Rpt != nil {
		env.Rpt.StoreData(path.Join("source", name), data)
		env.Rpt.StoreData(path.Join("result", name), []byte(result))
	}
	return result, nil
}
