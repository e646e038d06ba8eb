package store

import (
	"encoding/json"
	"fmt"
	"os"
)

// DomainCount pairs a domain with how many addresses used it.
type DomainCount struct {
	Domain string `json:"domain"`
	Count  int    `json:"count"`
}

// Summary is the snapshot of one completed crawl run. It is a single-slot,
// last-write-wins value; the side file is overwritten wholesale each run and
// serves only as a restart aid, never as the source of truth.
type Summary struct {
	RunSeconds       float64        `json:"run_seconds"`
	UsersDiscovered  int            `json:"users_discovered"`
	UsersWithHits    int            `json:"users_with_hits"`
	HitRatePercent   float64        `json:"hit_rate_percent"`
	NewEmailsWritten int            `json:"new_emails_written"`
	EmailsBySource   map[string]int `json:"emails_by_source"`
	UniqueDomains    int            `json:"unique_domains"`
	TopDomains       []DomainCount  `json:"top_domains"`
	OutPath          string         `json:"out_path"`
}

// SaveSummary overwrites the snapshot side file with the given summary.
func SaveSummary(path string, summary Summary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

// LoadSummary reads the snapshot side file. A missing file is not an error;
// it returns (nil, nil) so callers can treat the snapshot as best effort.
func LoadSummary(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read summary: %w", err)
	}
	var summary Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("unmarshal summary: %w", err)
	}
	return &summary, nil
}
