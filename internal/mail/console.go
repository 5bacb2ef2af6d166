package mail

import (
	"log"
	"strings"
)

// ConsoleMailer logs messages instead of sending them. Used when no SMTP
// host is configured.
type ConsoleMailer struct{}

// NewConsoleMailer creates a console mailer.
func NewConsoleMailer() *ConsoleMailer { return &ConsoleMailer{} }

// Send logs the message headers. The body is withheld since it may carry a
// one-time code.
func (m *ConsoleMailer) Send(to, subject, htmlBody string) error {
	log.Printf("mail (console): to=%s subject=%q bytes=%d", maskEmail(to), subject, len(htmlBody))
	return nil
}

// maskEmail masks the local part of an address for logging (e.g. al***@x.edu).
func maskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 2 {
		if at < 0 {
			return "***"
		}
		return "***" + email[at:]
	}
	return email[:2] + "***" + email[at:]
}
