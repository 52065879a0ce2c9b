package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/beevik/etree"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"dxc/archive"
	"dxc/common"
	"dxc/config"
	"dxc/css"
	"dxc/docx"
	"dxc/misc"
	"dxc/render"
	"dxc/repair"
)

// Engine turns document package at path into HTML following style map
// rules.
type Engine interface {
	Convert(ctx context.Context, path, styleMap string) (*render.Result, error)
}

// Options control single conversion.
type Options struct {
	MapStyles          bool
	PreserveFormatting bool
	Sanitize           bool
	// when not empty promoted package is also written there
	KeepDocx string
	// embedded into resulting document when present
	Stylesheet *css.Stylesheet
}

// OptionsFromConfig returns conversion options for the document section of
// configuration.
func OptionsFromConfig(cfg *config.DocumentConfig) Options {
	return Options{
		MapStyles:          cfg.MapStyles,
		PreserveFormatting: cfg.PreserveFormatting,
		Sanitize:           cfg.Sanitize,
	}
}

// Prepared is a package after direct formatting promotion, ready to be
// handed to the engine.
type Prepared struct {
	Package  *archive.Package
	Catalog  *docx.Catalog
	StyleMap []docx.StyleMapRule
	Promoted *docx.PromoteResult
	Messages []common.Message
}

// Outcome describes finished conversion.
type Outcome struct {
	Output      string
	Messages    []common.Message
	Synthesized []string
	Markers     int
	StyleMap    []docx.StyleMapRule
	Catalog     *docx.Catalog
}

// Pipeline runs conversion stages in order: promotion, style map, engine,
// repair. It is not safe for concurrent use when report is attached.
type Pipeline struct {
	engine Engine
	log    *zap.Logger
	rpt    *config.Report
}

type PipelineOption func(*Pipeline)

// WithReport makes pipeline store intermediate results in debug report.
func WithReport(rpt *config.Report) PipelineOption {
	return func(p *Pipeline) {
		p.rpt = rpt
	}
}

func NewPipeline(engine Engine, log *zap.Logger, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{engine: engine, log: log}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = zap.NewNop()
	}
	return p
}

// Prepare reads package at src, promotes direct formatting and builds style
// catalog and style map for the result. When style mapping is off the only
// rule maps source identifier markers.
func (p *Pipeline) Prepare(ctx context.Context, src string, mapStyles bool) (*Prepared, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pkg, err := archive.Open(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotPackage, err)
	}
	if err := pkg.Require(docx.PartDocument, docx.PartStyles); err != nil {
		return nil, err
	}

	document, err := readPart(pkg, docx.PartDocument)
	if err != nil {
		return nil, err
	}
	styles, err := readPart(pkg, docx.PartStyles)
	if err != nil {
		return nil, err
	}

	// messages are collected from the catalog built after promotion, it
	// reports the same style problems since promotion only adds styles
	original, _, err := docx.BuildCatalog(styles)
	if err != nil {
		return nil, err
	}
	p.log.Debug("Styles found", zap.Int("count", original.Len()))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	promoter := docx.NewPromoter(docx.WithSequence(docx.NewSequence()), docx.WithLogger(p.log.Named("promote")))
	res, err := promoter.Promote(document, styles)
	if err != nil {
		return nil, fmt.Errorf("unable to promote direct formatting: %w", err)
	}

	for _, part := range []struct {
		name string
		doc  *etree.Document
	}{
		{docx.PartDocument, document},
		{docx.PartStyles, styles},
	} {
		data, err := part.doc.WriteToBytes()
		if err != nil {
			return nil, fmt.Errorf("unable to serialize %s: %w", part.name, err)
		}
		pkg.SetPart(part.name, data)
	}

	// catalog must describe exactly what the engine is going to see
	updated, err := readPart(pkg, docx.PartStyles)
	if err != nil {
		return nil, err
	}
	catalog, msgs, err := docx.BuildCatalog(updated)
	if err != nil {
		return nil, err
	}
	msgs = append(msgs, res.Messages...)

	rules := []docx.StyleMapRule{docx.MarkerRule()}
	if mapStyles {
		generated, m, err := docx.GenerateStyleMap(catalog)
		if err != nil {
			return nil, fmt.Errorf("unable to generate style map: %w", err)
		}
		rules = generated
		msgs = append(msgs, m...)
	}

	return &Prepared{
		Package:  pkg,
		Catalog:  catalog,
		StyleMap: rules,
		Promoted: res,
		Messages: msgs,
	}, nil
}

// Convert runs full conversion of src and writes HTML to dst. Output is
// replaced atomically, temporary workspace is removed on every path.
func (p *Pipeline) Convert(ctx context.Context, src, dst string, opts Options) (out *Outcome, rerr error) {
	prep, err := p.Prepare(ctx, src, opts.MapStyles)
	if err != nil {
		return nil, err
	}

	styleMap := docx.FormatStyleMap(prep.StyleMap)
	p.rpt.StoreData("catalog.txt", []byte(prep.Catalog.String()))
	p.rpt.StoreData("stylemap.txt", []byte(styleMap))

	dir, err := os.MkdirTemp("", misc.GetAppName()+"-w-")
	if err != nil {
		return nil, fmt.Errorf("unable to create workspace: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			rerr = multierr.Append(rerr, fmt.Errorf("unable to remove workspace: %w", err))
			out = nil
		}
	}()

	promoted := filepath.Join(dir, filepath.Base(src))
	if err := prep.Package.WriteTo(promoted); err != nil {
		return nil, fmt.Errorf("unable to assemble promoted package: %w", err)
	}
	if err := p.rpt.StoreCopy("promoted.docx", promoted); err != nil {
		p.log.Warn("Unable to store promoted package in report", zap.Error(err))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := p.engine.Convert(ctx, promoted, styleMap)
	if err != nil {
		return nil, fmt.Errorf("conversion engine failed: %w", err)
	}
	p.log.Debug("Engine finished", zap.Duration("elapsed", time.Since(start)), zap.Int("messages", len(res.Messages)))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ropts := repair.Options{
		PreserveFormatting: opts.PreserveFormatting,
		Sanitize:           opts.Sanitize,
	}
	msgs := append(prep.Messages, res.Messages...)
	if opts.Stylesheet != nil {
		ropts.Stylesheet = opts.Stylesheet.String()
		msgs = append(msgs, checkStylesheet(opts.Stylesheet, prep.Catalog)...)
	}

	data, err := repair.Repair(strings.NewReader(res.HTML), prep.Catalog, ropts)
	if err != nil {
		return nil, fmt.Errorf("unable to repair html: %w", err)
	}

	if err := writeAtomic(dst, data); err != nil {
		return nil, err
	}
	// kept package goes out only with successful conversion
	if opts.KeepDocx != "" {
		if err := prep.Package.WriteTo(opts.KeepDocx); err != nil {
			return nil, multierr.Append(fmt.Errorf("unable to keep promoted package: %w", err), os.Remove(dst))
		}
	}

	for _, m := range msgs {
		switch m.Type {
		case common.MessageWarning:
			p.log.Warn(m.Text, zap.String("file", src))
		default:
			p.log.Debug(m.Text, zap.String("file", src))
		}
	}

	return &Outcome{
		Output:      dst,
		Messages:    msgs,
		Synthesized: prep.Promoted.Synthesized,
		Markers:     prep.Promoted.Markers,
		StyleMap:    prep.StyleMap,
		Catalog:     prep.Catalog,
	}, nil
}

// checkStylesheet reports stylesheet classes which no document style will
// produce. Synthesized styles never reach output under their own names.
func checkStylesheet(sheet *css.Stylesheet, c *docx.Catalog) []common.Message {
	var msgs []common.Message
	for _, w := range sheet.Warnings {
		msgs = append(msgs, common.Infof("stylesheet: %s", w))
	}
	for _, class := range sheet.Classes() {
		if _, ok := c.Get(class); !ok || docx.IsSynthesized(class) {
			msgs = append(msgs, common.Warningf("stylesheet class %q does not match any document style", class))
		}
	}
	return msgs
}

func readPart(pkg *archive.Package, name string) (*etree.Document, error) {
	data, _ := pkg.Part(name)
	return parsePart(name, data)
}

func parsePart(name string, data []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", name, err)
	}
	return doc, nil
}

// writeAtomic writes data next to dst and renames it into place, so readers
// never see partial output.
func writeAtomic(dst string, data []byte) (err error) {
	f, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return fmt.Errorf("unable to create output: %w", err)
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, os.Remove(f.Name()))
		}
	}()

	if err = f.Chmod(0644); err != nil {
		f.Close()
		return fmt.Errorf("unable to write output: %w", err)
	}
	if _, err = f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("unable to write output: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("unable to write output: %w", err)
	}
	if err = os.Rename(f.Name(), dst); err != nil {
		return fmt.Errorf("unable to write output: %w", err)
	}
	return nil
}
