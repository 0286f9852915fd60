package parser

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/ncastellanos/transmail/internal/domain"
)

// blockTags are elements that end a line when HTML is flattened to text.
var blockTags = map[string]bool{
	"br": true, "p": true, "div": true, "li": true,
	"tr": true, "table": true, "h1": true, "h2": true, "h3": true,
}

var spaceRun = regexp.MustCompile(`[ \t\r\f\v]+`)

// collapseSpaces trims s and squeezes internal whitespace runs, including
// non-breaking spaces, down to single spaces.
func collapseSpaces(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

// renderText flattens an HTML body to plain text. Script and style subtrees
// are dropped, block elements become line breaks, and each resulting line is
// whitespace-normalized. Empty lines are removed.
func renderText(htmlBody string) string {
	doc, err := html.Parse(strings.NewReader(htmlBody))
	if err != nil {
		// html.Parse is tolerant of almost anything; treat a hard failure
		// as already-plain text.
		return collapseSpaces(htmlBody)
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if n.Data == "script" || n.Data == "style" {
				return
			}
			if blockTags[n.Data] {
				b.WriteByte('\n')
			}
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockTags[n.Data] {
			b.WriteByte('\n')
		}
	}
	walk(doc)

	var lines []string
	for _, line := range strings.Split(b.String(), "\n") {
		if line = collapseSpaces(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// nodeText concatenates the visible text content under n.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// tableRows extracts every table row of an HTML body as a slice of trimmed
// cell texts, in document order.
func tableRows(htmlBody string) [][]string {
	doc, err := html.Parse(strings.NewReader(htmlBody))
	if err != nil {
		return nil
	}

	var rows [][]string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			var cells []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
					cells = append(cells, collapseSpaces(nodeText(c)))
				}
			}
			if len(cells) > 0 {
				rows = append(rows, cells)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return rows
}

var plainCellSplit = regexp.MustCompile(`\t+| {2,}`)

// plainRows approximates table rows from a plain-text body by splitting each
// line on tab runs or two-plus spaces. Used when a tabular notification
// arrives without an HTML part.
func plainRows(text string) [][]string {
	var rows [][]string
	for _, line := range strings.Split(text, "\n") {
		var cells []string
		for _, cell := range plainCellSplit.Split(strings.TrimSpace(line), -1) {
			if cell = collapseSpaces(cell); cell != "" {
				cells = append(cells, cell)
			}
		}
		if len(cells) > 0 {
			rows = append(rows, cells)
		}
	}
	return rows
}

// flatText returns the document body as one whitespace-normalized line, the
// shape the narrative extractors run their patterns against. The HTML body
// wins when both are present because issuers put the real template there.
func flatText(doc domain.Document) string {
	body := doc.PlainBody
	if doc.HTMLBody != "" {
		body = renderText(doc.HTMLBody)
	}
	return collapseSpaces(strings.ReplaceAll(body, "\n", " "))
}
