package extract

import (
	"fmt"
	"io"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

// boilerplate lists elements that never carry article content.
const boilerplate = "script, style, noscript, nav, header, footer, aside, form, iframe, svg"

// HTMLToMarkdown extracts the main content of an HTML document as
// Markdown. It prefers <article>, then <main>, then <body>.
func HTMLToMarkdown(r io.Reader, baseURL string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc.Find(boilerplate).Remove()

	content := doc.Find("article").First()
	if content.Length() == 0 {
		content = doc.Find("main").First()
	}
	if content.Length() == 0 {
		content = doc.Find("body").First()
	}

	html, err := goquery.OuterHtml(content)
	if err != nil {
		return "", fmt.Errorf("failed to render HTML: %w", err)
	}

	converter := md.NewConverter(baseURL, true, nil)
	markdown, err := converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML to markdown: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	markdown = strings.TrimSpace(markdown)
	if title != "" && !strings.Contains(markdown, title) {
		markdown = "# " + title + "\n\n" + markdown
	}
	return markdown, nil
}
