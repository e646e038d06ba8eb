package crawl

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/jfaulkner/mailharvest/internal/store"
)

// topDomainCount is how many domains the summary's frequency table keeps.
const topDomainCount = 10

// runState is the mutable bookkeeping of one run: the dedup set seeded from
// the store, the quota counter, and the per-source and per-domain tallies.
// It exists only for the duration of the run.
type runState struct {
	limit         int
	seen          map[string]struct{}
	written       int
	usersWithHits int
	perSource     map[string]int
	domains       map[string]int
}

func newRunState(limit int, seen map[string]struct{}) *runState {
	if seen == nil {
		seen = make(map[string]struct{})
	}
	return &runState{
		limit: limit,
		seen:  seen,
		perSource: map[string]int{
			string(store.SourceProfile):    0,
			string(store.SourceModelPage):  0,
			string(store.SourceWebsite):    0,
			string(store.SourceSourceHost): 0,
		},
		domains: make(map[string]int),
	}
}

func (st *runState) quotaReached() bool {
	return st.written >= st.limit
}

func (st *runState) alreadySeen(email string) bool {
	_, ok := st.seen[email]
	return ok
}

func (st *runState) recordWrite(email string, source store.Source) {
	st.seen[email] = struct{}{}
	st.written++
	st.perSource[string(source)]++
	if i := strings.LastIndex(email, "@"); i >= 0 {
		st.domains[strings.ToLower(email[i+1:])]++
	}
}

func (st *runState) summary(elapsed time.Duration, usersDiscovered int, outPath string) store.Summary {
	hitRate := 0.0
	if usersDiscovered > 0 {
		hitRate = float64(st.usersWithHits) / float64(usersDiscovered) * 100
	}

	perSource := make(map[string]int, len(st.perSource))
	for source, count := range st.perSource {
		perSource[source] = count
	}

	return store.Summary{
		RunSeconds:       round2(elapsed.Seconds()),
		UsersDiscovered:  usersDiscovered,
		UsersWithHits:    st.usersWithHits,
		HitRatePercent:   round2(hitRate),
		NewEmailsWritten: st.written,
		EmailsBySource:   perSource,
		UniqueDomains:    len(st.domains),
		TopDomains:       topDomains(st.domains, topDomainCount),
		OutPath:          outPath,
	}
}

// topDomains returns the n most frequent domains, count descending with
// alphabetical tie-break for stable output.
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

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
