package crawl

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// reservedSections are directory path fragments that are site sections, not
// usernames. An href containing any of them is skipped during discovery.
var reservedSections = []string{
	"/models", "/datasets", "/spaces", "/docs", "/blog", "/tasks",
}

// canonicalLink strips query strings and fragments and trims a trailing
// slash so the same destination always dedups to one key.
func canonicalLink(href string) string {
	link := href
	if i := strings.Index(link, "?"); i >= 0 {
		link = link[:i]
	}
	if i := strings.Index(link, "#"); i >= 0 {
		link = link[:i]
	}
	return strings.TrimRight(link, "/")
}

// parseUsernames collects distinct top-level path segments from the
// directory listing that look like usernames: root-relative, not a reserved
// section, and below the length ceiling.
func parseUsernames(html string, maxLen int, into *LinkSet) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return
	}
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if !strings.HasPrefix(href, "/") {
			return
		}
		for _, section := range reservedSections {
			if strings.Contains(href, section) {
				return
			}
		}
		root, _, _ := strings.Cut(strings.Trim(href, "/"), "/")
		if root == "" || len(root) >= maxLen {
			return
		}
		into.Add(root)
	})
}

// parseProfileLinks collects GitHub account links and external website links
// from a profile page, canonicalized and deduplicated in page order.
func parseProfileLinks(html, hubHost string) (githubLinks, websiteLinks []string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, nil
	}
	gh := NewLinkSet()
	web := NewLinkSet()
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		if strings.Contains(strings.ToLower(href), "github.com") {
			gh.Add(canonicalLink(href))
		}
		if strings.HasPrefix(href, "http") && !strings.Contains(href, hubHost) {
			web.Add(canonicalLink(href))
		}
	})
	return gh.Items(), web.Items()
}

// parseGitHubLinks collects only the GitHub account links from a page.
func parseGitHubLinks(html string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	gh := NewLinkSet()
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if strings.Contains(strings.ToLower(href), "github.com") {
			gh.Add(canonicalLink(href))
		}
	})
	return gh.Items()
}

// parseModelSlugs collects the user's own item slugs ("/user/model") from a
// listing page of that user's models.
func parseModelSlugs(html, user string, into *LinkSet) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return
	}
	prefix := "/" + user + "/"
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if !strings.HasPrefix(href, prefix) {
			return
		}
		slug := canonicalLink(href)
		parts := strings.Split(strings.Trim(slug, "/"), "/")
		if len(parts) == 2 {
			into.Add(slug)
		}
	})
}
