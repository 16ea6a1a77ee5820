// Package extract derives plain text from fetched HTML so page previews
// stay readable without the surrounding markup.
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Options controls HTML cleanup prior to text extraction.
type Options struct {
	RemoveScripts bool
	RemoveStyles  bool
	DropSelectors []string
}

// DefaultOptions strips executable and embedded content but keeps styles.
func DefaultOptions() Options {
	return Options{RemoveScripts: true}
}

// Text sanitises the document and returns its whitespace-normalised text.
func Text(body []byte, opts Options) (string, error) {
	if len(body) == 0 {
		return "", fmt.Errorf("page body empty")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	if opts.RemoveScripts {
		doc.Find("script,noscript,iframe").Remove()
	}
	if opts.RemoveStyles {
		doc.Find("style,link[rel='stylesheet']").Remove()
	}
	for _, sel := range opts.DropSelectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			s.Remove()
		})
	}

	htmlStr, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("serialise html: %w", err)
	}

	root, err := html.Parse(strings.NewReader(htmlStr))
	if err != nil {
		return "", fmt.Errorf("parse processed html: %w", err)
	}

	var b strings.Builder
	collectText(root, &b)
	return strings.Join(strings.Fields(b.String()), " "), nil
}

func collectText(node *html.Node, b *strings.Builder) {
	if node.Type == html.ElementNode {
		switch node.Data {
		case "script", "style", "noscript", "iframe", "head":
			return
		}
	}
	if node.Type == html.TextNode {
		b.WriteString(node.Data)
		b.WriteByte(' ')
		return
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		collectText(child, b)
	}
}
