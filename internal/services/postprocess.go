package services

import (
	"regexp"
	"strings"
)

// The remote assistant embeds citations in a sentinel-delimited form such as
// 【64:0†notes.pdf】: an opening bracket, an internal locator, a dagger, the
// source filename, a closing bracket. Markers are stripped from the body and
// the filenames surface as the citation list.
var citationMarkerRe = regexp.MustCompile(`【[^†]*†([^】]+)】`)

// Fallback source formats used before the sentinel form existed:
// "[Fuente: archivo.pdf]" or a parenthesized filename.
var (
	bracketSourceRe = regexp.MustCompile(`\[Fuente:\s*([^\]]+)\]`)
	parenSourceRe   = regexp.MustCompile(`\(([^)]+\.(?:pdf|py|R|ipynb|txt|docx))\)`)
)

var (
	numberedItemRe = regexp.MustCompile(`(\d+\. [A-Z])`)
	headingRe      = regexp.MustCompile(`(### [^-\n])`)
	excessBlankRe  = regexp.MustCompile(`\n{3,}`)
)

// ProcessResponse extracts citation markers from raw assistant output and
// reformats the body into presentation-ready Markdown. Pure and
// deterministic; identical input yields identical output.
func ProcessResponse(raw string) (string, []string) {
	citations := dedupe(collectCitations(raw))

	body := citationMarkerRe.ReplaceAllString(raw, "")
	body = reformatBody(body)

	if len(citations) > 0 {
		var sb strings.Builder
		sb.WriteString(body)
		sb.WriteString("\n\n---\n\n**Fuentes utilizadas:**\n")
		for i, source := range citations {
			if i > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString("- `" + source + "`")
		}
		body = sb.String()
	}

	return body, citations
}

func collectCitations(raw string) []string {
	matches := citationMarkerRe.FindAllStringSubmatch(raw, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.TrimSpace(m[1]))
	}
	return out
}

// dedupe removes repeats while keeping first-seen order so output is stable.
func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}

func reformatBody(text string) string {
	// Paragraph break before numbered items ("1. Geocoding") and level-3
	// headings; collapsing afterwards keeps runs that were already
	// separated at a single blank line.
	text = numberedItemRe.ReplaceAllString(text, "\n\n$1")
	text = headingRe.ReplaceAllString(text, "\n\n$1")
	text = excessBlankRe.ReplaceAllString(text, "\n\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		stripped := strings.TrimSpace(line)
		if strings.HasPrefix(stripped, "- ") && !strings.HasPrefix(line, "- ") && !strings.HasPrefix(line, "  - ") {
			lines[i] = "- " + stripped[2:]
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// ExtractSources pulls source references out of answers that predate the
// sentinel marker form. It never returns an empty list; the course-documents
// placeholder stands in when nothing matches.
func ExtractSources(answer string) []string {
	var out []string
	for _, m := range bracketSourceRe.FindAllStringSubmatch(answer, -1) {
		out = append(out, strings.TrimSpace(m[1]))
	}
	if len(out) == 0 {
		for _, m := range parenSourceRe.FindAllStringSubmatch(answer, -1) {
			out = append(out, strings.TrimSpace(m[1]))
		}
	}
	if len(out) == 0 {
		return []string{"Documentos del curso"}
	}
	return dedupe(out)
}
