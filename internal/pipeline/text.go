package pipeline

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"mwb/internal/util"
)

var blockTags = map[string]bool{
	"p": true, "div": true, "li": true, "ul": true, "ol": true, "tr": true, "table": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "footer": true, "section": true, "article": true, "main": true,
	"figure": true, "figcaption": true, "blockquote": true, "dd": true, "dt": true,
}

var skipTags = map[string]bool{"script": true, "style": true, "noscript": true, "template": true}

// mainRegion picks the content container of a workbook page.
func mainRegion(doc *goquery.Document) *goquery.Selection {
	for _, sel := range []string{"main", "#regionMain", "article"} {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			return s
		}
	}
	if body := doc.Find("body"); body.Length() > 0 {
		return body
	}
	return doc.Selection
}

// blockText flattens a selection to text, keeping one line per block element.
func blockText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		writeNode(&b, n)
	}
	lines := util.SplitLines(b.String())
	return strings.Join(lines, "\n")
}

func writeNode(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		if skipTags[n.Data] {
			return
		}
		if n.Data == "br" {
			b.WriteByte('\n')
			return
		}
	}

	block := n.Type == html.ElementNode && blockTags[n.Data]
	if block {
		b.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeNode(b, c)
	}
	if block {
		b.WriteByte('\n')
	}
}

// StripHTML converts markup to line-oriented text. Input that does not look
// like markup is returned unchanged.
func StripHTML(markup string) string {
	if !strings.Contains(markup, "<") {
		return markup
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return markup
	}
	return blockText(mainRegion(doc))
}
