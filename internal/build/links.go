package build

import (
	"io"
	"net/url"
	"path"
	"sort"
	"strings"

	"golang.org/x/net/html"
)

// Links returns the same-site page paths linked from an HTML document
// served at base. Query strings, fragments and .json links are dropped, and
// the result is sorted and de-duplicated.
func Links(base string, r io.Reader) []string {
	doc, err := html.Parse(r)
	if err != nil {
		return nil
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil
	}

	set := make(map[string]bool)
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				if p, ok := resolve(baseURL, attr.Val); ok {
					set[p] = true
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)

	links := make([]string, 0, len(set))
	for p := range set {
		links = append(links, p)
	}
	sort.Strings(links)
	return links
}

func resolve(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil || ref.Scheme != "" || ref.Host != "" || ref.Opaque != "" {
		return "", false
	}
	u := base.ResolveReference(ref)
	p := path.Clean(u.EscapedPath())
	if p == "." || p == "" {
		p = "/"
	}
	if strings.HasSuffix(p, ".json") {
		return "", false
	}
	return p, true
}
