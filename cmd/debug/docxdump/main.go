// docxdump reads DOCX package and produces readable dumps of its parts,
// style catalog before and after direct formatting promotion and the
// promoted package itself. Useful when HTML output does not look as expected.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/beevik/etree"

	"dxc/archive"
	"dxc/cmd/debug/internal/dumputil"
	"dxc/docx"
)

func main() {
	all := flag.Bool("all", false, "enable all dump flags (-parts, -media, -styles, -document, -promoted)")
	parts := flag.Bool("parts", false, "list package parts into <file>-parts.txt")
	media := flag.Bool("media", false, "dump word/media/* into <file>-media.zip")
	styles := flag.Bool("styles", false, "dump style catalog before and after promotion into <file>-styles.txt")
	document := flag.Bool("document", false, "dump document part tree into <file>-document.txt")
	promoted := flag.Bool("promoted", false, "write package with promoted formatting to <file>-promoted.docx and its tree to <file>-promoted.txt")
	overwrite := flag.Bool("overwrite", false, "overwrite existing output")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: docxdump [-all] [-parts] [-media] [-styles] [-document] [-promoted] [-overwrite] <file.docx> [outdir]\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 || flag.NArg() > 2 {
		flag.Usage()
		os.Exit(2)
	}

	if *all {
		*parts, *media, *styles, *document, *promoted = true, true, true, true, true
	}
	if !*parts && !*media && !*styles && !*document && !*promoted {
		flag.Usage()
		os.Exit(2)
	}

	defer func(startedAt time.Time) {
		fmt.Fprintf(os.Stderr, "\nExecution time: %s\n", time.Since(startedAt))
	}(time.Now())

	inPath := flag.Arg(0)
	outDir := ""
	if flag.NArg() == 2 {
		outDir = flag.Arg(1)
	}

	pkg, err := archive.Open(inPath)
	if err != nil {
		fail("open %s: %v", inPath, err)
	}

	if *parts {
		if err := dumputil.DumpParts(pkg, inPath, outDir, *overwrite); err != nil {
			fail("parts: %v", err)
		}
	}
	if *media {
		if err := dumputil.DumpMedia(pkg, inPath, outDir, *overwrite); err != nil {
			fail("media: %v", err)
		}
	}
	if *document {
		if err := dumputil.DumpXML(pkg, docx.PartDocument, inPath, outDir, "-document.txt", *overwrite); err != nil {
			fail("document: %v", err)
		}
	}
	if *styles || *promoted {
		if err := dumpPromotion(pkg, inPath, outDir, *styles, *promoted, *overwrite); err != nil {
			fail("promotion: %v", err)
		}
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func parse(pkg *archive.Package, name string) (*etree.Document, error) {
	data, ok := pkg.Part(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", archive.ErrMissingPart, name)
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return doc, nil
}

func dumpPromotion(pkg *archive.Package, inPath, outDir string, styles, promoted, overwrite bool) error {
	document, err := parse(pkg, docx.PartDocument)
	if err != nil {
		return err
	}
	stylesDoc, err := parse(pkg, docx.PartStyles)
	if err != nil {
		return err
	}

	before, msgs, err := docx.BuildCatalog(stylesDoc)
	if err != nil {
		return err
	}

	res, err := docx.NewPromoter().Promote(document, stylesDoc)
	if err != nil {
		return err
	}
	msgs = append(msgs, res.Messages...)

	after, _, err := docx.BuildCatalog(stylesDoc)
	if err != nil {
		return err
	}

	if styles {
		var b strings.Builder
		fmt.Fprintf(&b, "Promoted: paragraphs[%d] runs[%d] markers[%d] synthesized%q\n\n", res.Paragraphs, res.Runs, res.Markers, res.Synthesized)
		for _, m := range msgs {
			fmt.Fprintf(&b, "%s\n", m)
		}
		b.WriteString("\nBefore promotion\n")
		b.WriteString(before.String())
		b.WriteString("\nAfter promotion\n")
		b.WriteString(after.String())
		b.WriteString("\nStyle map\n")
		if rules, _, err := docx.GenerateStyleMap(after); err == nil {
			b.WriteString(docx.FormatStyleMap(rules))
			b.WriteByte('\n')
		}
		if err := dumputil.WriteOutput(inPath, outDir, "-styles.txt", []byte(b.String()), overwrite); err != nil {
			return err
		}
	}

	if promoted {
		for name, doc := range map[string]*etree.Document{docx.PartDocument: document, docx.PartStyles: stylesDoc} {
			data, err := doc.WriteToBytes()
			if err != nil {
				return err
			}
			pkg.SetPart(name, data)
		}
		base := filepath.Base(inPath)
		dir := filepath.Dir(inPath)
		if outDir != "" {
			dir = outDir
		}
		out := filepath.Join(dir, strings.TrimSuffix(base, filepath.Ext(base))+"-promoted.docx")
		if _, err := os.Stat(out); err == nil && !overwrite {
			return fmt.Errorf("output file already exists: %s (use -overwrite)", out)
		}
		if err := pkg.WriteTo(out); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "wrote %s\n", out)
		if err := dumputil.DumpXML(pkg, docx.PartDocument, inPath, outDir, "-promoted.txt", overwrite); err != nil {
			return err
		}
	}
	return nil
}
