package feedsource

import (
	"strings"

	"golang.org/x/net/html"
)

// firstImageSrc はHTML断片に含まれる最初のimg要素のsrc属性を返す。
// http/https以外のsrcは無視する。
func firstImageSrc(fragment string) string {
	if !strings.Contains(fragment, "<") {
		return ""
	}

	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken, html.SelfClosingTagToken:
			t := z.Token()
			if t.Data != "img" {
				continue
			}
			for _, attr := range t.Attr {
				if attr.Key != "src" {
					continue
				}
				src := strings.TrimSpace(attr.Val)
				lower := strings.ToLower(src)
				if strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "http://") {
					return src
				}
			}
		}
	}
}
