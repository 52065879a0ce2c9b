package convert

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"dxc/config"
	"dxc/docx"
	"dxc/state"
)

const (
	extHTML     = ".html"
	extDocx     = ".docx"
	extStyleMap = ".stylemap.txt"
)

// buildOutputPath returns constructed output file path/name. "src" is source
// path relative to what was requested on command line (just base name for
// single file). Unless flat output is requested source directory structure
// is kept. When output name template is configured it is expanded with
// document metadata and may add subdirectories of its own. Every path
// segment is cleaned and, if requested, transliterated.
func buildOutputPath(src, dst string, props *docx.CoreProperties, env *state.LocalEnv) string {
	parts := []string{dst}
	if !env.NoDirs {
		for _, segment := range splitPath(filepath.Dir(src)) {
			if segment == "." {
				continue
			}
			parts = append(parts, cleanPathSegment(segment, env))
		}
	}

	names := []string{strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))}
	if expanded := expandOutputNameTemplate(props, src, env); len(expanded) > 0 {
		names = expanded
	}
	for _, segment := range names[:len(names)-1] {
		parts = append(parts, cleanPathSegment(segment, env))
	}
	parts = append(parts, cleanPathSegment(names[len(names)-1], env)+extHTML)
	return filepath.Join(parts...)
}

// expandOutputNameTemplate returns path segments of expanded template or nil
// when there is no template or it cannot be used.
func expandOutputNameTemplate(props *docx.CoreProperties, src string, env *state.LocalEnv) []string {
	field := env.Cfg.Document.OutputNameTemplate
	if field == "" || props == nil {
		return nil
	}
	expanded, err := expandTemplate(props, src, config.OutputNameTemplateFieldName, field)
	if err != nil {
		env.Log.Warn("Unable to prepare output filename", zap.Error(err))
		return nil
	}
	var segments []string
	for _, s := range splitPath(filepath.FromSlash(strings.TrimSpace(expanded))) {
		if s = strings.TrimSpace(s); s != "" && s != "." && s != ".." {
			segments = append(segments, s)
		}
	}
	if len(segments) == 0 {
		env.Log.Warn("Output filename template expanded to nothing, using default name", zap.String("template", field))
	}
	return segments
}

// siblingPath returns name of an additional artifact stored next to the
// output file.
func siblingPath(output, ext string) string {
	return strings.TrimSuffix(output, extHTML) + ext
}

func splitPath(path string) []string {
	path = strings.TrimSuffix(path, string(os.PathSeparator))
	segments := make([]string, 0, 8)

	for head, tail := filepath.Split(path); tail != ""; head, tail = filepath.Split(head) {
		segments = slices.Insert(segments, 0, tail)
		head = strings.TrimSuffix(head, string(os.PathSeparator))
		if head == "" {
			break
		}
	}
	return segments
}

func cleanPathSegment(segment string, env *state.LocalEnv) string {
	if env.Cfg.Document.FileNameTransliterate {
		segment = slug.Make(segment)
	}
	return config.CleanFileName(segment)
}
