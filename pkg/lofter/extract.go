package lofter

import (
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	trailingName = regexp.MustCompile(`[A-Za-z0-9]+\.\w+$`)
	unsafeChars  = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]+`)
)

func parse(doc string) (*goquery.Document, bool) {
	if strings.TrimSpace(doc) == "" {
		return nil, false
	}
	d, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return nil, false
	}
	return d, true
}

func stripScheme(s string) string {
	if i := strings.Index(s, "://"); i >= 0 {
		return s[i+3:]
	}
	return s
}

// PostLinks returns the post addresses on a listing page that fall under
// prefix, in document order with duplicates dropped. Reposts from other blogs
// do not match the prefix and are skipped.
func PostLinks(doc, prefix string) []string {
	d, ok := parse(doc)
	if !ok {
		return nil
	}
	base, err := url.Parse(prefix)
	if err != nil {
		return nil
	}
	want := strings.ToLower(stripScheme(prefix))

	var links []string
	seen := make(map[string]struct{})
	d.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		link := base.ResolveReference(ref).String()
		if !strings.HasPrefix(strings.ToLower(stripScheme(link)), want) {
			return
		}
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})
	return links
}

// ImageLinks returns every full-size image address in a post, in document
// order. Repeated images are kept.
func ImageLinks(doc string) []string {
	d, ok := parse(doc)
	if !ok {
		return nil
	}
	var links []string
	d.Find("[bigimgsrc]").Each(func(_ int, sel *goquery.Selection) {
		if src := strings.TrimSpace(sel.AttrOr("bigimgsrc", "")); src != "" {
			links = append(links, src)
		}
	})
	return links
}

// Title returns the text of the document's <title>, or "".
func Title(doc string) string {
	d, ok := parse(doc)
	if !ok {
		return ""
	}
	return strings.TrimSpace(d.Find("title").First().Text())
}

// SanitizeDirName makes a blog title usable as a directory name.
func SanitizeDirName(s string) string {
	s = unsafeChars.ReplaceAllString(s, "_")
	s = strings.Join(strings.Fields(s), " ")
	return strings.Trim(s, " .")
}

// Filename derives the local file name of an image link: the query and
// fragment are dropped and the trailing name.ext is kept. Links without such
// a segment get a stable name derived from the whole link.
func Filename(link string) string {
	trimmed := link
	if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
		trimmed = trimmed[:i]
	}
	if name := trailingName.FindString(trimmed); name != "" {
		return name
	}

	sum := sha1.Sum([]byte(link))
	ext := path.Ext(trimmed)
	if ext == "" || strings.ContainsAny(ext, "/:") {
		ext = ".bin"
	}
	return "img_" + hex.EncodeToString(sum[:6]) + ext
}
