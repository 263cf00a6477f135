// Package harvest collects post links from listing pages and image links from
// posts. Both passes fan out over the shared worker pool and return only
// after every item has been processed. A page or post that cannot be fetched
// contributes no links; it never stops its siblings.
package harvest

import (
	"context"
	"time"

	"lofterscraper/internal/pool"
	"lofterscraper/pkg/lofter"
	"lofterscraper/pkg/logger"
	"lofterscraper/pkg/metrics"
)

// DocumentSource returns a document or reports it absent
type DocumentSource interface {
	Document(ctx context.Context, addr string) (string, bool)
}

// Harvester runs the page and post passes for one site
type Harvester struct {
	pool    *pool.Pool
	docs    DocumentSource
	site    lofter.Site
	logger  logger.Logger
	metrics *metrics.Metrics
}

// New creates a Harvester. m may be nil.
func New(p *pool.Pool, docs DocumentSource, site lofter.Site, log logger.Logger, m *metrics.Metrics) *Harvester {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Harvester{
		pool:    p,
		docs:    docs,
		site:    site,
		logger:  log,
		metrics: m,
	}
}

// PagePosts returns the post links listed on one page, deduplicated within
// the page.
func (h *Harvester) PagePosts(ctx context.Context, domain string, page int) []string {
	addr, err := h.site.PageURL(domain, page)
	if err != nil {
		return nil
	}
	doc, ok := h.docs.Document(ctx, addr)
	if !ok {
		return nil
	}
	return lofter.PostLinks(doc, h.site.PostPrefix(domain))
}

// Prober returns the page validity check used by page-range discovery
func (h *Harvester) Prober(domain string) func(ctx context.Context, page int) bool {
	return func(ctx context.Context, page int) bool {
		return len(h.PagePosts(ctx, domain, page)) > 0
	}
}

// Title returns the blog's title from its front page, or "" when unavailable
func (h *Harvester) Title(ctx context.Context, domain string) string {
	doc, ok := h.docs.Document(ctx, h.site.HomeURL(domain))
	if !ok {
		return ""
	}
	return lofter.Title(doc)
}

// Posts harvests the post links of every page in [start, end]. Posts listed
// on more than one page appear once per page.
func (h *Harvester) Posts(ctx context.Context, domain string, start, end int) []string {
	if end < start {
		return nil
	}
	began := time.Now()

	pages := make([]int, 0, end-start+1)
	for page := start; page <= end; page++ {
		pages = append(pages, page)
	}

	perPage := pool.Map(ctx, h.pool, pages, func(ctx context.Context, page int) []string {
		posts := h.PagePosts(ctx, domain, page)
		if len(posts) == 0 {
			h.logger.DebugWithFields("Page yielded no posts", map[string]interface{}{
				"domain": domain,
				"page":   page,
			})
		}
		return posts
	})

	posts := flatten(perPage)
	h.metrics.Harvested("post", len(posts))
	h.logger.DebugWithFields("Harvest pass finished", map[string]interface{}{
		"kind":       "posts",
		"count":      len(posts),
		"elapsed_ms": time.Since(began).Milliseconds(),
	})
	return posts
}

// Images harvests the image links of every post
func (h *Harvester) Images(ctx context.Context, posts []string) []string {
	began := time.Now()

	perPost := pool.Map(ctx, h.pool, posts, func(ctx context.Context, post string) []string {
		doc, ok := h.docs.Document(ctx, post)
		if !ok {
			return nil
		}
		return lofter.ImageLinks(doc)
	})

	images := flatten(perPost)
	h.metrics.Harvested("image", len(images))
	h.logger.DebugWithFields("Harvest pass finished", map[string]interface{}{
		"kind":       "images",
		"count":      len(images),
		"elapsed_ms": time.Since(began).Milliseconds(),
	})
	return images
}

func flatten(groups [][]string) []string {
	var n int
	for _, g := range groups {
		n += len(g)
	}
	out := make([]string, 0, n)
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
