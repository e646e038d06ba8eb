package verify

import (
	"context"
	"net"
	"net/smtp"
	"net/textproto"
	"time"
)

// SMTPProber performs a HELO / MAIL FROM / RCPT TO dialog against port 25 of
// a mail exchanger and reads the reply code for the candidate mailbox.
type SMTPProber struct {
	heloDomain string
	mailFrom   string
	timeout    time.Duration
}

// NewSMTPProber builds an SMTPProber. Zero values get sane defaults.
func NewSMTPProber(heloDomain, mailFrom string, timeout time.Duration) *SMTPProber {
	if heloDomain == "" {
		heloDomain = "example.com"
	}
	if mailFrom == "" {
		mailFrom = "validator@example.com"
	}
	if timeout <= 0 {
		timeout = 6 * time.Second
	}
	return &SMTPProber{heloDomain: heloDomain, mailFrom: mailFrom, timeout: timeout}
}

// Probe dials the exchanger and asks whether it would accept mail for email.
// A 250/251 reply is an accept and a 5xx reply is a reject. Anything
// else, including dial failures and timeouts, is uncertain.
func (p *SMTPProber) Probe(ctx context.Context, mxHost, email string) ProbeOutcome {
	dialer := net.Dialer{Timeout: p.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(mxHost, "25"))
	if err != nil {
		return ProbeUncertain
	}
	defer conn.Close() //nolint:errcheck // connection teardown

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(p.timeout))
	}

	client, err := smtp.NewClient(conn, mxHost)
	if err != nil {
		return ProbeUncertain
	}
	defer client.Close() //nolint:errcheck // session teardown

	if err := client.Hello(p.heloDomain); err != nil {
		return ProbeUncertain
	}
	if err := client.Mail(p.mailFrom); err != nil {
		return ProbeUncertain
	}

	err = client.Rcpt(email)
	if err == nil {
		return ProbeAccept
	}
	if protoErr, ok := err.(*textproto.Error); ok && protoErr.Code >= 500 && protoErr.Code < 600 {
		return ProbeReject
	}
	return ProbeUncertain
}
