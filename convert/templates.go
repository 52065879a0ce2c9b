package convert

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"

	sprig "github.com/go-task/slim-sprig/v3"

	"dxc/archive"
	"dxc/config"
	"dxc/docx"
)

// Values is a struct that holds variables we make available for template
// expansion.
type Values struct {
	Context        string
	Title          string
	Subject        string
	Creator        string
	Keywords       []string
	Description    string
	LastModifiedBy string
	Revision       string
	Language       string
	Created        string
	Modified       string
	Format         string
	SourceFile     string
}

// readCoreProperties returns metadata of the package at path. Package without
// core properties part has empty metadata.
func readCoreProperties(path string) (*docx.CoreProperties, error) {
	pkg, err := archive.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotPackage, err)
	}
	data, ok := pkg.Part(docx.PartCore)
	if !ok {
		return &docx.CoreProperties{}, nil
	}
	doc, err := parsePart(docx.PartCore, data)
	if err != nil {
		return nil, err
	}
	return docx.ReadCoreProperties(doc), nil
}

func expandTemplate(props *docx.CoreProperties, src string, name config.TemplateFieldName, field string) (string, error) {
	tmpl, err := template.New(string(name)).Funcs(sprig.FuncMap()).Parse(field)
	if err != nil {
		return "", fmt.Errorf("unable to parse template field %s: %w", name, err)
	}

	values := Values{
		Context:        string(name),
		Title:          props.Title,
		Subject:        props.Subject,
		Creator:        props.Creator,
		Keywords:       props.Keywords,
		Description:    props.Description,
		LastModifiedBy: props.LastModifiedBy,
		Revision:       props.Revision,
		Language:       props.Language,
		Format:         strings.TrimPrefix(extHTML, "."),
		SourceFile:     strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)),
	}
	if !props.Created.IsZero() {
		values.Created = props.Created.Format("2006-01-02")
	}
	if !props.Modified.IsZero() {
		values.Modified = props.Modified.Format("2006-01-02")
	}

	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, values); err != nil {
		return "", err
	}
	return buf.String(), nil
}
