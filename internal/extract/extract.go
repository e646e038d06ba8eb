// Package extract turns raw page text into filtered candidate email addresses.
//
// Extraction is a two-stage pipeline: obfuscation defeat first, then pattern
// matching with per-match reject rules. De-obfuscation must run before
// matching because wrapped addresses ("name [at] example [dot] com") do not
// contain the literal @ and . the pattern needs. The reject rules are local
// to each match, not a page-wide blocklist, because filename and no-reply
// false positives depend on the characters around a specific match.
package extract

import (
	"html"
	"regexp"
	"strings"
)

var (
	// Crawl-path pattern: commercial TLD only. The verification engine uses
	// the general any-TLD pattern instead; the two are intentionally
	// different and must not be unified.
	emailPattern = regexp.MustCompile(`(?i)[A-Z0-9._%+\-]+@[A-Z0-9.\-]+\.com\b`)

	bracketChars  = regexp.MustCompile(`[()\[\]{}<>]`)
	hyphenSpacing = regexp.MustCompile(`\s*-\s*`)
	// \p{Z} catches the non-breaking spaces entity decoding produces.
	whitespaceRun = regexp.MustCompile(`[\s\p{Z}]+`)

	obfuscations = []struct {
		pattern     *regexp.Regexp
		replacement string
	}{
		{regexp.MustCompile(`(?i)\s*\[\s*at\s*\]\s*`), "@"},
		{regexp.MustCompile(`(?i)\s*\(\s*at\s*\)\s*`), "@"},
		{regexp.MustCompile(`(?i)\s+at\s+`), "@"},
		{regexp.MustCompile(`(?i)\s*\[\s*dot\s*\]\s*`), "."},
		{regexp.MustCompile(`(?i)\s*\(\s*dot\s*\)\s*`), "."},
		{regexp.MustCompile(`(?i)\s+dot\s+`), "."},
		{regexp.MustCompile(`(?i)\s*\{\s*at\s*\}\s*`), "@"},
		{regexp.MustCompile(`(?i)\s*\{\s*dot\s*\}\s*`), "."},
	}

	// Asset file extensions that, when they immediately follow a match,
	// mark it as a filename mis-matched as an address (logo@2x.com.png).
	assetExtension = regexp.MustCompile(
		`(?i)^\.(?:jpg|jpeg|png|gif|webp|svg|bmp|tif|tiff|ico|heic|heif|psd)(?:\b|[?#/])`)
)

// tailWindow is how far past a match the asset-extension rule looks.
const tailWindow = 20

// rejectRule names one reason a matched address is dropped. Rules are
// evaluated in order; the first rejecting rule wins.
type rejectRule struct {
	name   string
	reject func(email, tail string) bool
}

var rejectRules = []rejectRule{
	{
		name: "noreply",
		reject: func(email, _ string) bool {
			return strings.Contains(strings.ToLower(email), "noreply")
		},
	},
	{
		name: "asset_extension",
		reject: func(_, tail string) bool {
			return assetExtension.MatchString(tail)
		},
	},
	{
		name: "broken_domain_label",
		reject: func(email, _ string) bool {
			_, domain, ok := strings.Cut(strings.ToLower(email), "@")
			if !ok {
				return true
			}
			for _, label := range strings.Split(domain, ".") {
				if label == "" || strings.Contains(label, "_") ||
					strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
					return true
				}
			}
			return false
		},
	},
}

// Deobfuscate decodes HTML entities and rewrites common address obfuscations
// so the extraction pattern can see a literal local@domain.tld form.
func Deobfuscate(text string) string {
	t := html.UnescapeString(text)
	t = bracketChars.ReplaceAllString(t, " ")
	t = hyphenSpacing.ReplaceAllString(t, "-")
	for _, o := range obfuscations {
		t = o.pattern.ReplaceAllString(t, o.replacement)
	}
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(t, " "))
}

// Emails extracts filtered candidate addresses from raw page text,
// deduplicated in first-seen order. Same input always yields the same list.
func Emails(text string) []string {
	t := Deobfuscate(text)
	if t == "" {
		return nil
	}

	seen := make(map[string]struct{})
	var out []string

	for _, loc := range emailPattern.FindAllStringIndex(t, -1) {
		email := t[loc[0]:loc[1]]
		end := loc[1] + tailWindow
		if end > len(t) {
			end = len(t)
		}
		if rejected(email, t[loc[1]:end]) {
			continue
		}
		if _, ok := seen[email]; ok {
			continue
		}
		seen[email] = struct{}{}
		out = append(out, email)
	}
	return out
}

// FilterCandidates re-runs already-isolated addresses (for example commit
// author fields) through the same reject rules and dedup as page extraction.
func FilterCandidates(addrs []string) []string {
	return Emails(strings.Join(addrs, "\n"))
}

func rejected(email, tail string) bool {
	for _, rule := range rejectRules {
		if rule.reject(email, tail) {
			return true
		}
	}
	return false
}
