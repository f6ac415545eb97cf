package scraper

import (
	"fmt"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

// Elements that never carry page content.
const boilerplateSelector = "script, style, noscript, nav, footer, aside, iframe, form, svg"

var blankRuns = regexp.MustCompile(`\n{3,}`)

// Page is the readable part of an HTML document.
type Page struct {
	Title    string
	Markdown string
}

// ParseHTML extracts the title and the main content of html as markdown.
func ParseHTML(html, pageURL string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("scraper: failed to parse HTML: %w", err)
	}

	title := extractTitle(doc)
	doc.Find(boilerplateSelector).Remove()

	root := doc.Find("main, article, [role=main]").First()
	if root.Length() == 0 {
		root = doc.Find("body").First()
	}
	if root.Length() == 0 {
		root = doc.Selection
	}

	fragment, err := goquery.OuterHtml(root)
	if err != nil {
		return nil, fmt.Errorf("scraper: failed to render HTML: %w", err)
	}
	markdown, err := HTMLToMarkdown(fragment, pageURL)
	if err != nil {
		return nil, err
	}
	return &Page{Title: title, Markdown: markdown}, nil
}

// HTMLToMarkdown converts an HTML fragment, resolving links against
// pageURL.
func HTMLToMarkdown(html, pageURL string) (string, error) {
	converter := md.NewConverter(pageURL, true, nil)
	converter.Remove("script", "style", "noscript")
	out, err := converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("scraper: failed to convert HTML to markdown: %w", err)
	}
	return strings.TrimSpace(blankRuns.ReplaceAllString(out, "\n\n")), nil
}

func extractTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if og, ok := doc.Find("meta[property='og:title']").Attr("content"); ok && strings.TrimSpace(og) != "" {
		return strings.TrimSpace(og)
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}
