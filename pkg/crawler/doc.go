// Package crawler runs a full crawl of one blog.
//
// The pipeline has four stages and each one finishes before the next starts:
//
//  1. discover: find the last listing page reachable from the start page
//  2. posts: harvest post links from every page in the range
//  3. images: harvest image links from every post
//  4. download: fetch every image in rounds with escalating timeouts
//
// A single post address skips the first two stages. Links that fail every
// download round are written to <failed_dir>/<domain>_failed.txt and can be
// re-driven later with Retry.
//
// Usage:
//
//	c := crawler.New(cfg, logger.GetLogger())
//	defer c.Close()
//
//	report, err := c.Run(ctx, "someblog")
//	if errors.IsFatal(err) {
//	    // bad domain or invalid start page
//	}
package crawler
