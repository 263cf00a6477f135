package lofter

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	apperrors "lofterscraper/pkg/errors"
)

// DefaultBaseDomain is the hosting domain blogs live under.
const DefaultBaseDomain = "lofter.com"

var domainToken = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]*$`)

// Site builds addresses for blogs hosted under a base domain.
type Site struct {
	Scheme     string
	BaseDomain string
}

// Target is the resolved crawl target. Post is set when the input named a
// single post rather than a whole blog.
type Target struct {
	Domain string
	Post   string
}

// IsPost reports whether the target is a single post.
func (t Target) IsPost() bool {
	return t.Post != ""
}

// NewSite returns a Site, filling in defaults for empty fields.
func NewSite(scheme, baseDomain string) Site {
	if scheme == "" {
		scheme = "http"
	}
	if baseDomain == "" {
		baseDomain = DefaultBaseDomain
	}
	return Site{Scheme: scheme, BaseDomain: strings.TrimPrefix(baseDomain, ".")}
}

func (s Site) host(domain string) string {
	return domain + "." + s.BaseDomain
}

// HomeURL returns the blog's front page address.
func (s Site) HomeURL(domain string) string {
	return fmt.Sprintf("%s://%s/", s.Scheme, s.host(domain))
}

// PageURL returns the address of listing page n. Page 1 is the front page.
func (s Site) PageURL(domain string, page int) (string, error) {
	if page < 1 {
		return "", apperrors.Fatal("page_url", "page number must be >= 1, got %d", page)
	}
	if page == 1 {
		return s.HomeURL(domain), nil
	}
	return fmt.Sprintf("%s://%s/?page=%d", s.Scheme, s.host(domain), page), nil
}

// PostPrefix is the address prefix shared by every post of the blog.
func (s Site) PostPrefix(domain string) string {
	return fmt.Sprintf("%s://%s/post", s.Scheme, s.host(domain))
}

// Resolve turns raw user input into a crawl target. Accepted forms are a bare
// domain token, a blog host, a blog address or a post address.
func (s Site) Resolve(raw string) (Target, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Target{}, apperrors.Fatal("resolve", "empty domain")
	}

	withScheme := raw
	if !strings.Contains(raw, "://") {
		withScheme = s.Scheme + "://" + raw
	}
	u, err := url.Parse(withScheme)
	if err != nil {
		return Target{}, apperrors.Fatal("resolve", "cannot parse %q: %v", raw, err)
	}

	host := strings.ToLower(u.Hostname())
	token := strings.TrimSuffix(host, "."+strings.ToLower(s.BaseDomain))
	if i := strings.Index(token, "."); i >= 0 {
		token = token[:i]
	}
	if !domainToken.MatchString(token) {
		return Target{}, apperrors.Fatal("resolve", "no blog domain in %q", raw)
	}

	target := Target{Domain: token}
	if strings.Contains(u.Path, "/post/") {
		u.Scheme = s.Scheme
		u.Host = s.host(token)
		u.Fragment = ""
		target.Post = u.String()
	}
	return target, nil
}
