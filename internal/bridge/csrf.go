package bridge

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// CSRFHeader is the header Django reads the token from.
const CSRFHeader = "X-CSRFToken"

const (
	csrfFormField  = "csrfmiddlewaretoken"
	csrfCookieName = "csrftoken"
	csrfMetaName   = "csrf-token"
)

// ErrCSRFTokenMissing is returned when none of the token sources has a value.
var ErrCSRFTokenMissing = errors.New("csrf token not found")

// PageTokens are the CSRF tokens embedded in the test page.
type PageTokens struct {
	FormField string
	Meta      string
}

// ParsePageTokens extracts the hidden csrfmiddlewaretoken input and the
// csrf-token meta tag from an HTML document. The first occurrence of each wins.
func ParsePageTokens(r io.Reader) (PageTokens, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return PageTokens{}, fmt.Errorf("parse page: %w", err)
	}

	var tokens PageTokens
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "input":
				if tokens.FormField == "" && attr(n, "name") == csrfFormField {
					tokens.FormField = attr(n, "value")
				}
			case "meta":
				if tokens.Meta == "" && attr(n, "name") == csrfMetaName {
					tokens.Meta = attr(n, "content")
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return tokens, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

// cookieToken returns the csrftoken cookie the jar holds for u.
func cookieToken(jar http.CookieJar, u *url.URL) string {
	if jar == nil || u == nil {
		return ""
	}
	for _, c := range jar.Cookies(u) {
		if c.Name != csrfCookieName {
			continue
		}
		if v, err := url.QueryUnescape(c.Value); err == nil {
			return v
		}
		return c.Value
	}
	return ""
}

// resolveToken applies the lookup order: hidden form field, cookie, meta tag.
func resolveToken(page PageTokens, cookie string) string {
	switch {
	case page.FormField != "":
		return page.FormField
	case cookie != "":
		return cookie
	default:
		return page.Meta
	}
}
