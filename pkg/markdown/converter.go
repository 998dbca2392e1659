package markdown

import (
	"regexp"
	"strings"

	"github.com/russross/blackfriday/v2"
)

// Telegram accepts only a small HTML subset; everything else is
// stripped after rendering.
var supportedTags = []string{"b", "i", "u", "s", "code", "pre", "a", "br"}

var (
	paragraphRe  = regexp.MustCompile(`<p>(.*?)</p>`)
	codeBlockRe  = regexp.MustCompile(`<pre><code(?: class="[^"]*")?>(.*?)</code></pre>`)
	anyTagRe     = regexp.MustCompile(`</?([a-zA-Z]+)(?:\s[^>]*)?>`)
	tagNameRe    = regexp.MustCompile(`</?([a-zA-Z]+)`)
	extraLinesRe = regexp.MustCompile(`\n{3,}`)
)

// ToTelegramHTML converts a markdown completion answer into
// Telegram-compatible HTML.
func ToTelegramHTML(md string) string {
	if md == "" {
		return ""
	}

	html := string(blackfriday.Run([]byte(md), blackfriday.WithExtensions(blackfriday.CommonExtensions)))

	html = paragraphRe.ReplaceAllString(html, "$1\n")

	html = strings.ReplaceAll(html, "<strong>", "<b>")
	html = strings.ReplaceAll(html, "</strong>", "</b>")
	html = strings.ReplaceAll(html, "<em>", "<i>")
	html = strings.ReplaceAll(html, "</em>", "</i>")

	html = codeBlockRe.ReplaceAllString(html, "<pre>$1</pre>")

	// Lists become plain bullet lines
	html = strings.ReplaceAll(html, "<ul>", "")
	html = strings.ReplaceAll(html, "</ul>", "")
	html = strings.ReplaceAll(html, "<ol>", "")
	html = strings.ReplaceAll(html, "</ol>", "")
	html = strings.ReplaceAll(html, "<li>", "• ")
	html = strings.ReplaceAll(html, "</li>", "\n")

	html = anyTagRe.ReplaceAllStringFunc(html, func(match string) string {
		tagMatch := tagNameRe.FindStringSubmatch(match)
		if len(tagMatch) > 1 {
			for _, supported := range supportedTags {
				if tagMatch[1] == supported {
					return match
				}
			}
		}
		return ""
	})

	html = extraLinesRe.ReplaceAllString(html, "\n\n")

	return strings.TrimSpace(html)
}
