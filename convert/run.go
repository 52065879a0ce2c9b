package convert

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/maruel/natural"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"dxc/archive"
	"dxc/css"
	"dxc/docx"
	"dxc/misc"
	"dxc/render"
	"dxc/state"
)

// Run is the convert command action.
func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("convert")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	src, err = filepath.Abs(src)
	if err != nil {
		return err
	}

	dst := cmd.Args().Get(1)
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

	// command line overrides configuration
	doc := &env.Cfg.Document
	if cmd.Bool("no-map") {
		doc.MapStyles = false
	}
	if cmd.IsSet("verbose") {
		doc.PreserveFormatting = cmd.Bool("verbose")
	}
	if cmd.IsSet("sanitize") {
		doc.Sanitize = cmd.Bool("sanitize")
	}
	if cmd.IsSet("keep-docx") {
		doc.KeepDocx = cmd.Bool("keep-docx")
	}
	if cmd.IsSet("stylemap") {
		doc.SaveStyleMap = cmd.Bool("stylemap")
	}
	if cmd.IsSet("css") {
		doc.StylesheetPath = cmd.String("css")
	}
	env.NoDirs, env.Overwrite = cmd.Bool("nodirs"), cmd.Bool("overwrite")

	if doc.StylesheetPath != "" {
		if env.Stylesheet, err = css.NewParser(log).Load(doc.StylesheetPath); err != nil {
			return err
		}
		env.Rpt.Store("stylesheet.css", doc.StylesheetPath)
	}

	log.Info("Processing starting", zap.String("source", src), zap.String("destination", dst),
		zap.Bool("map_styles", doc.MapStyles), zap.Bool("preserve_formatting", doc.PreserveFormatting))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)),
			zap.Int("converted", env.Converted), zap.Int("failed", env.Failed))
	}(time.Now())

	if err := process(ctx, src, dst, log); err != nil {
		return err
	}
	if env.Failed > 0 && env.Converted == 0 {
		return fmt.Errorf("none of %d documents were converted", env.Failed)
	}
	return nil
}

// newPipeline builds pipeline for the current environment with the built-in
// engine.
func newPipeline(env *state.LocalEnv, log *zap.Logger) *Pipeline {
	engine := render.New(log.Named("render"), render.WithNormalization(env.Cfg.Document.NormalizeText))
	return NewPipeline(engine, log, WithReport(env.Rpt))
}

// process determines the input type (directory, archive with documents or
// single document) and processes it accordingly.
func process(ctx context.Context, src, dst string, log *zap.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fi, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("input source was not found (%s): %w", src, err)
	}

	if fi.IsDir() {
		if err := processDir(ctx, src, dst, log); err != nil {
			return fmt.Errorf("unable to process directory: %w", err)
		}
		return nil
	}
	if !fi.Mode().IsRegular() {
		return fmt.Errorf("unexpected path mode for (%s)", src)
	}

	kind, err := detectFile(src)
	if err != nil {
		return fmt.Errorf("unable to check file type: %w", err)
	}
	switch kind {
	case inputPackage:
		if err := processFile(ctx, src, filepath.Base(src), dst, log); err != nil {
			log.Error("Unable to process file", zap.String("file", src), zap.Error(err))
		}
		return nil
	case inputArchive:
		if err := processArchive(ctx, src, "", dst, log); err != nil {
			return fmt.Errorf("unable to process archive: %w", err)
		}
		return nil
	}
	return fmt.Errorf("%w (%s)", ErrNotPackage, src)
}

// processDir finds documents and archives under dir and processes them in
// natural name order.
func processDir(ctx context.Context, dir, dst string, log *zap.Logger) error {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err != nil {
			log.Warn("Skipping path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return err
	}
	slices.SortFunc(files, func(a, b string) int {
		switch {
		case natural.Less(a, b):
			return -1
		case natural.Less(b, a):
			return 1
		}
		return 0
	})

	count := 0
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		kind, err := detectFile(path)
		if err != nil {
			log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			continue
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(path, dir), string(filepath.Separator))

		switch kind {
		case inputPackage:
			count++
			if err := processFile(ctx, path, rel, dst, log); err != nil {
				log.Error("Unable to process file", zap.String("file", path), zap.Error(err))
			}
		case inputArchive:
			count++
			if err := processArchive(ctx, path, filepath.Dir(rel), dst, log); err != nil {
				log.Error("Unable to process archive", zap.String("file", path), zap.Error(err))
			}
		default:
			log.Debug("Skipping file, not recognized as document or archive", zap.String("file", path))
		}
	}
	if count == 0 {
		log.Debug("Nothing to process", zap.String("dir", dir))
	}
	return nil
}

// processArchive extracts every document found in zip archive into temporary
// location and processes it. "pathOut" is prepended to the path inside
// archive when building output name.
func processArchive(ctx context.Context, path, pathOut, dst string, log *zap.Logger) error {
	tmp, err := os.MkdirTemp("", misc.GetAppName()+"-a-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	count := 0
	err = archive.Walk(path, func(arc string, f *zip.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		ok, err := isPackageInArchive(f)
		if err != nil {
			log.Warn("Skipping file in archive", zap.String("archive", arc), zap.String("path", f.Name), zap.Error(err))
			return nil
		}
		if !ok {
			log.Debug("Skipping file, not recognized as document", zap.String("archive", arc), zap.String("file", f.Name))
			return nil
		}
		count++

		extracted, err := extract(f, tmp, count)
		if err != nil {
			log.Error("Unable to extract file from archive", zap.String("archive", arc), zap.String("file", f.Name), zap.Error(err))
			return nil
		}
		defer os.Remove(extracted)

		if err := processFile(ctx, extracted, filepath.Join(pathOut, filepath.FromSlash(f.Name)), dst, log); err != nil {
			log.Error("Unable to process file in archive", zap.String("archive", arc), zap.String("file", f.Name), zap.Error(err))
		}
		return nil
	}, archive.WithExtensions(extDocx), archive.WithMaxSize(archive.MaxPartSize), archive.Sorted())
	if err == nil && count == 0 {
		log.Debug("Nothing to process", zap.String("archive", path))
	}
	return err
}

func extract(f *zip.File, dir string, n int) (string, error) {
	r, err := f.Open()
	if err != nil {
		return "", err
	}
	defer r.Close()

	name := filepath.Join(dir, fmt.Sprintf("%d-%s", n, filepath.Base(filepath.FromSlash(f.Name))))
	out, err := os.Create(name)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return "", err
	}
	return name, out.Close()
}

// processFile converts single document. "path" is where the document
// actually is, "src" is source path relative to what was requested (always
// including file name) and is used to build output name.
func processFile(ctx context.Context, path, src, dst string, log *zap.Logger) (rerr error) {
	env := state.EnvFromContext(ctx)

	id := uuid.New().String()
	log = log.With(zap.String("run_id", id))

	var outputName string

	log.Info("Conversion starting", zap.String("from", src))
	defer func(start time.Time) {
		if r := recover(); r != nil {
			log.Error("Conversion ended with panic",
				zap.Any("panic", r), zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName), zap.ByteString("stack", debug.Stack()))
			rerr = fmt.Errorf("conversion panic: %v", r)
		}
		if rerr != nil {
			env.Failed++
			return
		}
		env.Converted++
		log.Info("Conversion completed", zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName))
	}(time.Now())

	var props *docx.CoreProperties
	if env.Cfg.Document.OutputNameTemplate != "" {
		var err error
		if props, err = readCoreProperties(path); err != nil {
			log.Warn("Unable to read document metadata, using default output name", zap.Error(err))
		}
	}
	outputName = buildOutputPath(src, dst, props, env)

	if _, err := os.Stat(outputName); err == nil {
		if !env.Overwrite {
			return fmt.Errorf("output file already exists: %s", outputName)
		}
		log.Warn("Overwriting existing file", zap.String("file", outputName))
	} else if !os.IsNotExist(err) {
		return err
	} else if err := os.MkdirAll(filepath.Dir(outputName), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}

	opts := OptionsFromConfig(&env.Cfg.Document)
	opts.Stylesheet = env.Stylesheet
	if env.Cfg.Document.KeepDocx {
		opts.KeepDocx = siblingPath(outputName, extDocx)
		if filepath.Clean(opts.KeepDocx) == filepath.Clean(path) {
			return fmt.Errorf("promoted package would overwrite source: %s", path)
		}
	}

	out, err := newPipeline(env, log).Convert(ctx, path, outputName, opts)
	if err != nil {
		return err
	}

	if env.Cfg.Document.SaveStyleMap {
		if err := os.WriteFile(siblingPath(outputName, extStyleMap), []byte(docx.FormatStyleMap(out.StyleMap)+"\n"), 0644); err != nil {
			return fmt.Errorf("unable to save style map: %w", err)
		}
	}

	log.Debug("Document converted",
		zap.Int("synthesized", len(out.Synthesized)),
		zap.Int("markers", out.Markers),
		zap.Int("rules", len(out.StyleMap)),
		zap.Int("messages", len(out.Messages)))

	// store conversion result for debugging
	env.Rpt.Store(fmt.Sprintf("result-%s%s", id, extHTML), outputName)
	return nil
}
