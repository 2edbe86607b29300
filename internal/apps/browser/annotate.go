package browser

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// clickableSelector must stay in sync with isClickable: the in-page click
// script queries the live DOM with this selector and relies on both
// producing the same element order.
const clickableSelector = "a[href], button, input[type=button], input[type=submit], input[type=reset]"

// Clickable is one interactive element found on a page, numbered in
// document order starting at 1.
type Clickable struct {
	Index int
	Tag   string
	Text  string
	Href  string
}

// Snapshot is the text rendering of one loaded page: the body text with
// clickable elements annotated as <N>, plus the index used to resolve a
// subsequent click action.
type Snapshot struct {
	URL        string
	Text       string
	Clickables []Clickable
}

// Annotate parses page HTML into a Snapshot. It is pure: the live DOM is
// not touched, so it can be unit tested without a browser.
func Annotate(pageURL, src string) (*Snapshot, error) {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parsing page HTML: %w", err)
	}

	r := &renderer{}
	r.walk(doc)

	return &Snapshot{
		URL:        pageURL,
		Text:       r.text(),
		Clickables: r.clickables,
	}, nil
}

// ResolveHref joins a possibly relative href against the page URL.
func ResolveHref(pageURL, href string) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parsing page URL %q: %w", pageURL, err)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("parsing href %q: %w", href, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// blockTags start a new output line when entered or left.
var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"br": true, "div": true, "dl": true, "dt": true, "dd": true,
	"fieldset": true, "figure": true, "footer": true, "form": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "hr": true, "li": true, "main": true, "nav": true,
	"ol": true, "p": true, "pre": true, "section": true, "table": true,
	"td": true, "th": true, "tr": true, "ul": true,
}

var skippedTags = map[string]bool{
	"head": true, "script": true, "style": true, "noscript": true, "template": true,
}

type renderer struct {
	b          strings.Builder
	clickables []Clickable
}

func (r *renderer) walk(n *html.Node) {
	if n.Type == html.ElementNode && skippedTags[n.Data] {
		return
	}

	if n.Type == html.TextNode {
		r.writeWords(n.Data)
		return
	}

	if n.Type == html.ElementNode && isClickable(n) {
		r.writeClickable(n)
		return
	}

	block := n.Type == html.ElementNode && blockTags[n.Data]
	if block {
		r.newline()
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		r.walk(c)
	}
	if block {
		r.newline()
	}
}

// writeClickable emits the element's label followed by its <N> marker and
// records it in the index. Children are consumed as the label, not walked.
func (r *renderer) writeClickable(n *html.Node) {
	label := strings.Join(strings.Fields(innerText(n)), " ")
	if label == "" {
		label = attr(n, "value")
	}
	if label == "" {
		label = "[No text]"
	}

	index := len(r.clickables) + 1
	r.clickables = append(r.clickables, Clickable{
		Index: index,
		Tag:   n.Data,
		Text:  label,
		Href:  attr(n, "href"),
	})
	r.writeWords(fmt.Sprintf("%s <%d>", label, index))
}

func (r *renderer) writeWords(s string) {
	words := strings.Fields(s)
	if len(words) == 0 {
		return
	}
	current := r.b.String()
	if current != "" && !strings.HasSuffix(current, "\n") {
		r.b.WriteString(" ")
	}
	r.b.WriteString(strings.Join(words, " "))
}

func (r *renderer) newline() {
	if s := r.b.String(); s != "" && !strings.HasSuffix(s, "\n") {
		r.b.WriteString("\n")
	}
}

func (r *renderer) text() string {
	return strings.TrimSpace(r.b.String())
}

func isClickable(n *html.Node) bool {
	switch n.Data {
	case "a":
		return attr(n, "href") != ""
	case "button":
		return true
	case "input":
		switch strings.ToLower(attr(n, "type")) {
		case "button", "submit", "reset":
			return true
		}
	}
	return false
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func innerText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(innerText(c))
	}
	return b.String()
}
