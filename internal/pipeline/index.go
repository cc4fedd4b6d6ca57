package pipeline

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"mwb/internal/period"
	"mwb/internal/util"
)

// Link is one week entry found on an issue index page.
type Link struct {
	Period string
	URL    string
}

var (
	editionPDFHint = regexp.MustCompile(`(?i)mwb|apostila|vida.*minist|workbook`)
	pdfFormatParam = regexp.MustCompile(`(?i)fileformat=pdf`)
)

// HarvestLinks returns the anchors of an index page whose text names a week,
// with hrefs resolved against baseURL, de-duplicated, in document order.
func HarvestLinks(markup, baseURL string) []Link {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil
	}
	base, _ := url.Parse(baseURL)

	seen := map[string]struct{}{}
	out := []Link{}
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		full := resolveHref(base, href)
		if full == "" {
			return
		}
		phrase := linkPeriod(util.NormalizeSpaces(a.Text()))
		if phrase == "" {
			phrase = linkPeriod(hrefWords(full))
		}
		if phrase == "" {
			return
		}
		if _, ok := seen[full]; ok {
			return
		}
		seen[full] = struct{}{}
		out = append(out, Link{Period: phrase, URL: full})
	})
	return out
}

// FindEditionPDF returns the whole-edition PDF link of an index page, or "".
func FindEditionPDF(markup, baseURL string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	base, _ := url.Parse(baseURL)

	found := ""
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		lower := strings.ToLower(href)
		isPDF := strings.HasSuffix(strings.SplitN(lower, "?", 2)[0], ".pdf") || pdfFormatParam.MatchString(href)
		if !isPDF || !editionPDFHint.MatchString(href) {
			return true
		}
		found = resolveHref(base, href)
		return found == ""
	})
	return found
}

// IssueSlug names the two-month issue starting at the odd month containing
// month, e.g. "marco-abril-2026-mwb".
func IssueSlug(year int, month time.Month, lang string) string {
	y, first := period.IssueStart(year, month)
	return fmt.Sprintf("%s-%s-%d-mwb",
		util.Fold(period.MonthName(first, lang)),
		util.Fold(period.MonthName(first+1, lang)),
		y)
}

// IssueIndexURL is the index page listing the weeks of an issue.
func IssueIndexURL(baseURL string, year int, month time.Month, lang string) string {
	base := strings.TrimRight(baseURL, "/")
	if lang == "en" {
		return base + "/en/library/jw-meeting-workbook/" + IssueSlug(year, month, lang) + "/"
	}
	return base + "/pt/biblioteca/jw-apostila-do-mes/" + IssueSlug(year, month, lang) + "/"
}

func resolveHref(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

func linkPeriod(text string) string {
	if found := period.Find(text, 2000); len(found) > 0 {
		return util.NormalizeSpaces(found[0].Phrase)
	}
	return ""
}

// hrefWords turns the last path segment of a week URL into words, so
// ".../Programação-...-para-2-8-de-março-de-2026/" yields a searchable phrase.
func hrefWords(full string) string {
	u, err := url.Parse(full)
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	last := []byte(segments[len(segments)-1])
	for i, c := range last {
		if c != '-' {
			continue
		}
		if i > 0 && i+1 < len(last) && isDigit(last[i-1]) && isDigit(last[i+1]) {
			continue
		}
		last[i] = ' '
	}
	return string(last)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
