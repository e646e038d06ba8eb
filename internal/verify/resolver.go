package verify

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"
)

// NetResolver resolves MX records through the system resolver with a bounded
// lookup timeout.
type NetResolver struct {
	resolver *net.Resolver
	timeout  time.Duration
}

// NewNetResolver builds a NetResolver. A non-positive timeout gets a sane
// default.
func NewNetResolver(timeout time.Duration) *NetResolver {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &NetResolver{resolver: net.DefaultResolver, timeout: timeout}
}

// LookupMX returns the domain's mail exchangers ordered by preference,
// trailing dots trimmed.
func (r *NetResolver) LookupMX(ctx context.Context, domain string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	records, err := r.resolver.LookupMX(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("lookup mx %s: %w", domain, err)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Pref < records[j].Pref
	})

	hosts := make([]string, 0, len(records))
	for _, rec := range records {
		host := strings.TrimSuffix(rec.Host, ".")
		if host != "" {
			hosts = append(hosts, host)
		}
	}
	return hosts, nil
}
