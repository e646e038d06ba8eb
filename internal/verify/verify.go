// Package verify classifies email addresses into a tri-state outcome.
//
// The ladder runs fixed checks in order: syntax, TLD policy, no-reply
// patterns, disposable providers, role-account annotation, MX resolution,
// then the optional live mailbox probe. The engine never claims valid
// without a definitive probe accept; MX presence alone only narrows the
// answer to uncertain, because MX records say nothing about one mailbox.
package verify

import (
	"context"
	"regexp"
	"strings"
)

// Status is the classification outcome.
type Status string

// Classification values.
const (
	StatusValid     Status = "valid"
	StatusInvalid   Status = "invalid"
	StatusUncertain Status = "uncertain"
)

// Reason codes accumulated during classification, in check order.
const (
	ReasonBadSyntax        = "bad_syntax"
	ReasonNotDotCom        = "not_dot_com"
	ReasonNoreplyGitHub    = "noreply_github"
	ReasonDisposableDomain = "disposable_domain"
	ReasonRoleAccount      = "role_account"
	ReasonMXUnavailable    = "mx_unavailable_or_absent"
	ReasonSMTPAccept       = "smtp_accept"
	ReasonSMTPReject       = "smtp_reject"
	ReasonSMTPUncertain    = "smtp_uncertain"
	ReasonMXOnlyPassed     = "mx_only_passed"
)

// Result is the classification plus the ordered reason codes behind it.
type Result struct {
	Status  Status   `json:"status"`
	Reasons []string `json:"reasons"`
}

// Options selects per-call policy.
type Options struct {
	RequireDotCom bool `json:"require_dot_com"`
	Probe         bool `json:"probe"`
}

// MXResolver resolves mail-exchange hosts for a domain, best first.
// Implementations must bound their own lookup time.
type MXResolver interface {
	LookupMX(ctx context.Context, domain string) ([]string, error)
}

// ProbeOutcome is the result of one mailbox existence probe.
type ProbeOutcome int

// Probe outcomes.
const (
	ProbeUncertain ProbeOutcome = iota
	ProbeAccept
	ProbeReject
)

// Prober attempts a live RCPT probe against a mail exchanger.
type Prober interface {
	Probe(ctx context.Context, mxHost, email string) ProbeOutcome
}

// Any-TLD pattern; the crawl path uses a stricter .com-only pattern and the
// two are intentionally different.
var addressPattern = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)

var noreplyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i).+@users\.noreply\.github\.com$`),
	regexp.MustCompile(`(?i).+@github\.noreply\.com$`),
}

var roleLocalParts = map[string]struct{}{
	"admin": {}, "support": {}, "info": {}, "sales": {}, "contact": {},
	"help": {}, "security": {}, "hr": {}, "billing": {}, "hello": {}, "team": {},
}

var disposableDomains = map[string]struct{}{
	"mailinator.com":    {},
	"guerrillamail.com": {},
	"10minutemail.com":  {},
	"tempmail.com":      {},
	"yopmail.com":       {},
}

// Verifier classifies addresses. A nil resolver is a deliberately absent
// capability and behaves exactly like a failed lookup.
type Verifier struct {
	resolver MXResolver
	prober   Prober
}

// New builds a Verifier from the given capabilities. Either may be nil.
func New(resolver MXResolver, prober Prober) *Verifier {
	return &Verifier{resolver: resolver, prober: prober}
}

// Verify classifies one address. It always returns an answer; live-check
// timeouts and errors collapse to uncertain rather than propagating.
func (v *Verifier) Verify(ctx context.Context, address string, opts Options) Result {
	email := strings.ToLower(strings.TrimSpace(address))

	if !addressPattern.MatchString(email) {
		return Result{Status: StatusInvalid, Reasons: []string{ReasonBadSyntax}}
	}

	local, domain, _ := strings.Cut(email, "@")

	if opts.RequireDotCom && !strings.HasSuffix(domain, ".com") {
		return Result{Status: StatusInvalid, Reasons: []string{ReasonNotDotCom}}
	}

	for _, pattern := range noreplyPatterns {
		if pattern.MatchString(email) {
			return Result{Status: StatusInvalid, Reasons: []string{ReasonNoreplyGitHub}}
		}
	}

	if _, ok := disposableDomains[domain]; ok {
		return Result{Status: StatusInvalid, Reasons: []string{ReasonDisposableDomain}}
	}

	var reasons []string
	if _, ok := roleLocalParts[local]; ok {
		// Annotation only; a role account is still potentially deliverable.
		reasons = append(reasons, ReasonRoleAccount)
	}

	hosts := v.lookupMX(ctx, domain)
	if len(hosts) == 0 {
		return Result{Status: StatusUncertain, Reasons: append(reasons, ReasonMXUnavailable)}
	}

	if opts.Probe && v.prober != nil {
		switch v.prober.Probe(ctx, hosts[0], email) {
		case ProbeAccept:
			return Result{Status: StatusValid, Reasons: append(reasons, ReasonSMTPAccept)}
		case ProbeReject:
			return Result{Status: StatusInvalid, Reasons: append(reasons, ReasonSMTPReject)}
		default:
			return Result{Status: StatusUncertain, Reasons: append(reasons, ReasonSMTPUncertain)}
		}
	}

	return Result{Status: StatusUncertain, Reasons: append(reasons, ReasonMXOnlyPassed)}
}

func (v *Verifier) lookupMX(ctx context.Context, domain string) []string {
	if v.resolver == nil {
		return nil
	}
	hosts, err := v.resolver.LookupMX(ctx, domain)
	if err != nil {
		return nil
	}
	return hosts
}
