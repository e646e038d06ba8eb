// Package kpi recomputes aggregate statistics from the persisted email
// store. The store file is the source of truth; every call rescans it so
// the numbers track the file with no cached state to go stale.
package kpi

import (
	"regexp"
	"sort"
	"strings"

	"github.com/jfaulkner/mailharvest/internal/store"
)

// topDomainCount is how many domains the recomputed view keeps, wider than
// the per-run summary because the store spans every run ever made.
const topDomainCount = 20

// addressShape is the plausibility gate for stored rows. Local part capped
// at 64 octets and labels at 63 per the usual mailbox limits.
var addressShape = regexp.MustCompile(`^(?i:[A-Z0-9._%+-]{1,64})@(?i:[A-Z0-9-]{1,63}\.)+(?i:[A-Z]{2,15})$`)

// assetSuffixes are file-extension tails that slip through page extraction
// when an image filename happens to contain an @.
var assetSuffixes = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".ico"}

// placeholderAddresses are documentation or CI artifacts, never a person.
var placeholderAddresses = map[string]struct{}{
	"name@example.com":   {},
	"user@domain.com":    {},
	"actions@github.com": {},
}

// internalTLDs never resolve on the public internet.
var internalTLDs = map[string]struct{}{
	"local":    {},
	"lan":      {},
	"internal": {},
}

// Plausible reports whether a stored address should count toward KPIs.
// Rows are filtered at read time rather than rewritten, so tightening these
// rules retroactively cleans historical data.
func Plausible(email string) bool {
	e := strings.Trim(strings.TrimSpace(email), `<>,"'`)
	lower := strings.ToLower(e)
	for _, suffix := range assetSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return false
		}
	}
	if _, bad := placeholderAddresses[lower]; bad {
		return false
	}
	if i := strings.LastIndex(lower, "."); i >= 0 {
		if _, bad := internalTLDs[lower[i+1:]]; bad {
			return false
		}
	}
	return addressShape.MatchString(e)
}

// Compute builds a fresh view from every record in the store. Run-only
// fields (run_seconds, users_discovered, hit_rate_percent) stay zero here;
// only a live run knows them, and Overlay fills them in when one does.
func Compute(emails *store.EmailStore) (store.Summary, error) {
	records, err := emails.All()
	if err != nil {
		return store.Summary{}, err
	}

	perSource := make(map[string]int)
	perUser := make(map[string]int)
	domains := make(map[string]int)
	written := 0

	for _, rec := range records {
		email := strings.TrimSpace(rec.Email)
		if email == "" || !Plausible(email) {
			continue
		}
		source := string(rec.Source)
		if source == "" {
			source = "unknown"
		}
		written++
		perSource[source]++
		if rec.Username != "" {
			perUser[rec.Username]++
		}
		if i := strings.LastIndex(email, "@"); i >= 0 {
			domains[strings.ToLower(email[i+1:])]++
		}
	}

	return store.Summary{
		UsersWithHits:    len(perUser),
		NewEmailsWritten: written,
		EmailsBySource:   perSource,
		UniqueDomains:    len(domains),
		TopDomains:       topDomains(domains, topDomainCount),
		OutPath:          emails.Path(),
	}, nil
}

// Overlay copies run-scoped fields from the latest run summary onto a
// store-derived view. File-derived counts stay untouched.
func Overlay(view *store.Summary, run *store.Summary) {
	if run == nil {
		return
	}
	view.RunSeconds = run.RunSeconds
	view.UsersDiscovered = run.UsersDiscovered
	view.UsersWithHits = run.UsersWithHits
	view.HitRatePercent = run.HitRatePercent
}

// FillFromSnapshot backfills zero-valued fields from the persisted snapshot
// side file. Used right after a restart, when the store has no plausible
// rows but the previous process left its final summary behind. Applied only
// when the view counted nothing; live file data always wins.
func FillFromSnapshot(view *store.Summary, snapshotPath string) {
	if view.NewEmailsWritten != 0 {
		return
	}
	stored, err := store.LoadSummary(snapshotPath)
	if err != nil || stored == nil {
		return
	}
	if view.RunSeconds == 0 {
		view.RunSeconds = stored.RunSeconds
	}
	if view.UsersDiscovered == 0 {
		view.UsersDiscovered = stored.UsersDiscovered
	}
	if view.UsersWithHits == 0 {
		view.UsersWithHits = stored.UsersWithHits
	}
	if view.HitRatePercent == 0 {
		view.HitRatePercent = stored.HitRatePercent
	}
	if view.NewEmailsWritten == 0 {
		view.NewEmailsWritten = stored.NewEmailsWritten
	}
	if len(view.EmailsBySource) == 0 {
		view.EmailsBySource = stored.EmailsBySource
	}
	if view.UniqueDomains == 0 {
		view.UniqueDomains = stored.UniqueDomains
	}
	if len(view.TopDomains) == 0 {
		view.TopDomains = stored.TopDomains
	}
	if view.OutPath == "" {
		view.OutPath = stored.OutPath
	}
}

func topDomains(domains map[string]int, n int) []store.DomainCount {
	out := make([]store.DomainCount, 0, len(domains))
	for domain, count := range domains {
		out = append(out, store.DomainCount{Domain: domain, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Domain < out[j].Domain
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
