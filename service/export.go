package service

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"
	"unicode/utf16"
)

// ExportFormat is a download format for generated contracts
type ExportFormat string

const (
	FormatHTML ExportFormat = "html"
	FormatRTF  ExportFormat = "rtf"
)

// Content types of exported artifacts
const (
	ContentTypeHTML = "text/html; charset=utf-8"
	ContentTypeRTF  = "application/rtf"
)

// ParseExportFormat accepts "html" or "rtf" in any case
func ParseExportFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatHTML, FormatRTF:
		return f, nil
	}
	return "", newValidationError("format", fmt.Sprintf("unsupported export format %q, use html or rtf", s))
}

// Artifact is an encoded contract ready to be saved
type Artifact struct {
	Filename    string
	ContentType string
	Body        []byte
}

// Export encodes text in the given format. The filename is derived from label and now.
func Export(format ExportFormat, text, label string, now time.Time) (*Artifact, error) {
	artifact := &Artifact{Filename: ExportFilename(label, now, format)}
	switch format {
	case FormatHTML:
		artifact.ContentType = ContentTypeHTML
		artifact.Body = ToHTML(text, label)
	case FormatRTF:
		artifact.ContentType = ContentTypeRTF
		artifact.Body = ToRTF(text, label)
	default:
		return nil, newValidationError("format", fmt.Sprintf("unsupported export format %q", format))
	}
	return artifact, nil
}

// ExportFilename returns "{label}-{YYYY-MM-DD}.{format}"
func ExportFilename(label string, date time.Time, format ExportFormat) string {
	return fmt.Sprintf("%s-%s.%s", label, date.Format("2006-01-02"), format)
}

func normalizeNewlines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

var htmlExportTemplate = template.Must(template.New("contract").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: "Times New Roman", Times, serif; font-size: 12pt; line-height: 1.6; margin: 2.5cm; color: #000; }
h1 { font-size: 16pt; text-align: center; margin-bottom: 1.5em; }
.contract { white-space: normal; }
@media print {
  body { margin: 0; }
  @page { size: A4; margin: 2.5cm; }
}
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<div class="contract">{{.Body}}</div>
</body>
</html>
`))

// ToHTML renders text as a standalone printable HTML document.
// All markup-significant characters are escaped; each newline becomes <br>.
func ToHTML(text, title string) []byte {
	lines := strings.Split(normalizeNewlines(text), "\n")
	for i, line := range lines {
		lines[i] = template.HTMLEscapeString(line)
	}

	var buf bytes.Buffer
	// the template and its inputs are fixed, Execute cannot fail here
	_ = htmlExportTemplate.Execute(&buf, struct {
		Title string
		Body  template.HTML
	}{
		Title: title,
		Body:  template.HTML(strings.Join(lines, "<br>")),
	})
	return buf.Bytes()
}

// ToRTF renders text as an RTF document in 12pt Times New Roman
func ToRTF(text, title string) []byte {
	var b strings.Builder
	b.WriteString(`{\rtf1\ansi\deff0{\fonttbl{\f0 Times New Roman;}}`)
	b.WriteString(`{\info{\title `)
	b.WriteString(escapeRTF(title))
	b.WriteString("}}\n")
	b.WriteString(`\f0\fs24 `)
	b.WriteString(escapeRTF(normalizeNewlines(text)))
	b.WriteString("\n}")
	return []byte(b.String())
}

func escapeRTF(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == '{':
			b.WriteString(`\{`)
		case r == '}':
			b.WriteString(`\}`)
		case r == '\n':
			b.WriteString(`\par `)
		case r == '\t':
			b.WriteString(`\tab `)
		case r < 0x20:
			// other control characters have no RTF meaning
		case r < 0x80:
			b.WriteRune(r)
		default:
			for _, unit := range utf16.Encode([]rune{r}) {
				fmt.Fprintf(&b, `\u%d?`, int16(unit))
			}
		}
	}
	return b.String()
}
