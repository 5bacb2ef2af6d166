// Package mail provides the outbound email collaborators. The SMTP mailer is
// used in real deployments; the console mailer stands in during development
// and tests.
package mail

// Mailer sends a single HTML email. Any returned error is treated as
// delivery failure by callers.
type Mailer interface {
	Send(to, subject, htmlBody string) error
}
