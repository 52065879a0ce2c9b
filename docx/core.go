package docx

import (
	"strings"
	"time"

	"github.com/beevik/etree"
)

// CoreProperties is document metadata from docProps/core.xml.
type CoreProperties struct {
	Title          string
	Subject        string
	Creator        string
	Keywords       []string
	Description    string
	LastModifiedBy string
	Revision       string
	Language       string
	Created        time.Time
	Modified       time.Time
}

// ReadCoreProperties extracts metadata from core properties part. Elements
// are matched by local name, unknown elements and malformed dates are
// ignored.
func ReadCoreProperties(doc *etree.Document) *CoreProperties {
	props := &CoreProperties{}
	root := doc.Root()
	if root == nil {
		return props
	}
	for _, el := range root.ChildElements() {
		text := strings.TrimSpace(el.Text())
		switch el.Tag {
		case "title":
			props.Title = text
		case "subject":
			props.Subject = text
		case "creator":
			props.Creator = text
		case "keywords":
			for kw := range strings.FieldsFuncSeq(text, func(r rune) bool { return r == ',' || r == ';' }) {
				if kw = strings.TrimSpace(kw); kw != "" {
					props.Keywords = append(props.Keywords, kw)
				}
			}
		case "description":
			props.Description = text
		case "lastModifiedBy":
			props.LastModifiedBy = text
		case "revision":
			props.Revision = text
		case "language":
			props.Language = text
		case "created":
			props.Created, _ = time.Parse(time.RFC3339, text)
		case "modified":
			props.Modified, _ = time.Parse(time.RFC3339, text)
		}
	}
	return props
}
