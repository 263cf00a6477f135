// Package blogtest serves a fake blog for tests. Requests for any host are
// routed to a local httptest server by the client returned from HTTPClient,
// so code under test can keep using real blog addresses.
package blogtest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// ImageHost is the host image links point at
const ImageHost = "img.lofter.test"

// Blog describes the fake blog's shape
type Blog struct {
	Domain        string
	Title         string
	Pages         int
	PostsPerPage  int
	ImagesPerPost int
}

// Server simulates a blog host and its image CDN
type Server struct {
	*httptest.Server
	blog Blog

	mu      sync.Mutex
	hits    map[string]int
	failing map[string]int // image name -> remaining failures, -1 = always
	delays  map[string]time.Duration
}

// New starts a server for blog. It is closed when the test ends.
func New(t testing.TB, blog Blog) *Server {
	if blog.Title == "" {
		blog.Title = blog.Domain
	}
	s := &Server{
		blog:    blog,
		hits:    make(map[string]int),
		failing: make(map[string]int),
		delays:  make(map[string]time.Duration),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// rewriteTransport sends every request to the test server, keeping the
// original Host so the handler can route by it.
type rewriteTransport struct {
	target string
	base   http.RoundTripper
}

func (rt *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.Host = req.URL.Host
	out.URL.Scheme = "http"
	out.URL.Host = rt.target
	return rt.base.RoundTrip(out)
}

// HTTPClient returns a client whose requests all reach the server
func (s *Server) HTTPClient() *http.Client {
	host := strings.TrimPrefix(s.URL, "http://")
	return &http.Client{Transport: &rewriteTransport{target: host, base: http.DefaultTransport}}
}

// FailImage makes the named image fail with 500 for the next times requests,
// or always when times is negative.
func (s *Server) FailImage(name string, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if times < 0 {
		times = -1
	}
	s.failing[name] = times
}

// DelayImage makes the named image respond after d
func (s *Server) DelayImage(name string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[name] = d
}

// Hits returns how often host+path (with query) was requested
func (s *Server) Hits(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[key]
}

// ImageHits returns how often the named image was requested
func (s *Server) ImageHits(name string) int {
	return s.Hits(ImageHost + "/img/" + name)
}

// PostID names post i (0-based) on page n
func PostID(page, i int) string {
	return fmt.Sprintf("%d_%x", page, 0xa0+i)
}

// ImageName names image k of a post
func ImageName(postID string, k int) string {
	return fmt.Sprintf("%s%d.jpg", strings.ReplaceAll(postID, "_", "x"), k)
}

// PostURL is the address of a post on the fake blog
func (s *Server) PostURL(postID string) string {
	return fmt.Sprintf("http://%s.lofter.com/post/%s", s.blog.Domain, postID)
}

// ImageURL is the full-size address of an image, as a post lists it
func ImageURL(name string) string {
	return fmt.Sprintf("http://%s/img/%s?imageView&thumbnail=1680x0&quality=96", ImageHost, name)
}

// AllImages lists every image link the blog serves, in page order
func (s *Server) AllImages() []string {
	var links []string
	for page := 1; page <= s.blog.Pages; page++ {
		for i := 0; i < s.blog.PostsPerPage; i++ {
			for k := 0; k < s.blog.ImagesPerPost; k++ {
				links = append(links, ImageURL(ImageName(PostID(page, i), k)))
			}
		}
	}
	return links
}

func (s *Server) record(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits[key]++
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	key := r.Host + r.URL.Path
	if r.URL.RawQuery != "" && r.Host != ImageHost {
		key += "?" + r.URL.RawQuery
	}
	s.record(key)

	switch {
	case r.Host == ImageHost && strings.HasPrefix(r.URL.Path, "/img/"):
		s.serveImage(w, strings.TrimPrefix(r.URL.Path, "/img/"))
	case r.Host == s.blog.Domain+".lofter.com" && strings.HasPrefix(r.URL.Path, "/post/"):
		s.servePost(w, strings.TrimPrefix(r.URL.Path, "/post/"))
	case r.Host == s.blog.Domain+".lofter.com" && r.URL.Path == "/":
		page := 1
		if p := r.URL.Query().Get("page"); p != "" {
			n, err := strconv.Atoi(p)
			if err != nil {
				http.Error(w, "bad page", http.StatusBadRequest)
				return
			}
			page = n
		}
		s.serveListing(w, page)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) serveListing(w http.ResponseWriter, page int) {
	var b strings.Builder
	fmt.Fprintf(&b, "<html><head><title>%s</title></head><body>\n", s.blog.Title)
	if page >= 1 && page <= s.blog.Pages {
		for i := 0; i < s.blog.PostsPerPage; i++ {
			fmt.Fprintf(&b, "<div class=\"post\"><a href=\"%s\">post</a></div>\n", s.PostURL(PostID(page, i)))
		}
		if s.blog.PostsPerPage > 0 {
			// Some templates link the first post twice.
			fmt.Fprintf(&b, "<div class=\"hot\"><a href=\"%s\">hot</a></div>\n", s.PostURL(PostID(page, 0)))
		}
		fmt.Fprintf(&b, "<div class=\"repost\"><a href=\"http://elsewhere.lofter.com/post/%d_ff\">repost</a></div>\n", page)
	}
	b.WriteString("</body></html>")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, b.String())
}

// hasPost reports whether postID is listed on one of the blog's pages
func (s *Server) hasPost(postID string) bool {
	for page := 1; page <= s.blog.Pages; page++ {
		for i := 0; i < s.blog.PostsPerPage; i++ {
			if PostID(page, i) == postID {
				return true
			}
		}
	}
	return false
}

func (s *Server) servePost(w http.ResponseWriter, postID string) {
	if !s.hasPost(postID) {
		http.Error(w, "post not found", http.StatusNotFound)
		return
	}

	var b strings.Builder
	b.WriteString("<html><head><title>post</title></head><body>\n")
	for k := 0; k < s.blog.ImagesPerPost; k++ {
		link := strings.ReplaceAll(ImageURL(ImageName(postID, k)), "&", "&amp;")
		fmt.Fprintf(&b, "<a class=\"imgclasstag\" bigimgsrc=\"%s\"><img src=\"thumb.jpg\"></a>\n", link)
	}
	b.WriteString("</body></html>")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, b.String())
}

func (s *Server) serveImage(w http.ResponseWriter, name string) {
	s.mu.Lock()
	remaining, failing := s.failing[name]
	if failing && remaining > 0 {
		s.failing[name] = remaining - 1
	}
	delay := s.delays[name]
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if failing && remaining != 0 {
		http.Error(w, "unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	fmt.Fprintf(w, "image:%s", name)
}
