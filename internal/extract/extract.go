// Package extract converts uploaded documents of any supported format into
// plain text. Extraction is best-effort: malformed input degrades to a raw
// text decode and never fails the enclosing ingestion run.
package extract

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"

	"github.com/cloo-solutions/caseforge/internal/domain"
)

// Text extracts plain text from a document according to its format tag.
// Always returns a string, possibly empty.
func Text(doc domain.Document) string {
	switch doc.Format {
	case domain.FormatPDF:
		return pdfText(doc.Data)
	case domain.FormatJSON:
		return jsonText(doc.Data)
	case domain.FormatHTML:
		return htmlText(doc.Data)
	default:
		return rawText(doc.Data)
	}
}

// pdfText concatenates per-page text in page order, newline separated. The
// pdf reader panics on some malformed files, so recovery falls back to a raw
// decode.
func pdfText(data []byte) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = rawText(data)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return rawText(data)
	}

	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pages = append(pages, text)
	}
	return strings.Join(pages, "\n")
}

// jsonText pretty-prints parsed JSON with 2-space indentation so structural
// keys remain visible to the chunker. Parse failures fall back to raw text.
func jsonText(data []byte) string {
	var parsed interface{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return rawText(data)
	}
	pretty, err := json.MarshalIndent(parsed, "", "  ")
	if err != nil {
		return rawText(data)
	}
	return string(pretty)
}

// blockTags end a visual block; their closing tag becomes a newline so block
// boundaries survive markup stripping.
var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"tr": true, "td": true, "table": true, "section": true, "article": true,
	"header": true, "footer": true, "form": true, "fieldset": true, "label": true,
}

// htmlText strips markup, preserving block boundaries as newlines and
// discarding script and style content.
func htmlText(data []byte) string {
	tokenizer := html.NewTokenizer(bytes.NewReader(data))

	var sb strings.Builder
	skipDepth := 0
	for {
		tokenType := tokenizer.Next()
		switch tokenType {
		case html.ErrorToken:
			return collapseBlankLines(sb.String())
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" {
				skipDepth++
			}
			if blockTags[tag] {
				sb.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" {
				if skipDepth > 0 {
					skipDepth--
				}
			}
			if blockTags[tag] {
				sb.WriteByte('\n')
			}
		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			text := strings.TrimSpace(string(tokenizer.Text()))
			if text != "" {
				sb.WriteString(text)
				sb.WriteByte(' ')
			}
		}
	}
}

// rawText decodes bytes as UTF-8 text, dropping undecodable sequences rather
// than failing.
func rawText(data []byte) string {
	return strings.ToValidUTF8(string(data), "")
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
