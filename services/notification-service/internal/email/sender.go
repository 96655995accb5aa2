package email

import (
	"encoding/base64"
	"fmt"
	"net/smtp"
	"strings"
)

// Message is a plain-text email with an optional calendar attachment.
type Message struct {
	To      string
	Subject string
	Body    string
	ICS     []byte // optional invite, attached as invite.ics
	Method  string // REQUEST or CANCEL, mirrored into the calendar part
}

type Sender interface {
	Send(msg Message) error
}

// SMTPSender sends email via unauthenticated SMTP (Mailpit-compatible).
type SMTPSender struct {
	addr string
	from string
}

func NewSMTPSender(host string, port string, from string) *SMTPSender {
	host = strings.TrimSpace(host)
	port = strings.TrimSpace(port)
	from = strings.TrimSpace(from)
	if from == "" {
		from = "no-reply@bookable.local"
	}
	return &SMTPSender{
		addr: fmt.Sprintf("%s:%s", host, port),
		from: from,
	}
}

func (s *SMTPSender) Send(msg Message) error {
	raw := BuildMIME(s.from, msg)
	return smtp.SendMail(s.addr, nil, s.from, []string{msg.To}, raw)
}

const mimeBoundary = "=_bookable_mixed"

// BuildMIME renders the full RFC 5322 message. Without an attachment it
// is a single text/plain part; with one it becomes multipart/mixed with
// a base64 text/calendar part so mail clients show an "add to calendar"
// action.
func BuildMIME(from string, msg Message) []byte {
	var b strings.Builder
	write := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteString("\r\n")
	}

	write("From: %s", from)
	write("To: %s", msg.To)
	write("Subject: %s", msg.Subject)
	write("MIME-Version: 1.0")

	if len(msg.ICS) == 0 {
		write("Content-Type: text/plain; charset=utf-8")
		write("")
		b.WriteString(msg.Body)
		b.WriteString("\r\n")
		return []byte(b.String())
	}

	method := msg.Method
	if method == "" {
		method = "REQUEST"
	}

	write("Content-Type: multipart/mixed; boundary=%q", mimeBoundary)
	write("")
	write("--%s", mimeBoundary)
	write("Content-Type: text/plain; charset=utf-8")
	write("")
	b.WriteString(msg.Body)
	write("")
	write("--%s", mimeBoundary)
	write("Content-Type: text/calendar; method=%s; charset=utf-8", method)
	write("Content-Transfer-Encoding: base64")
	write(`Content-Disposition: attachment; filename="invite.ics"`)
	write("")
	write("%s", base64.StdEncoding.EncodeToString(msg.ICS))
	write("--%s--", mimeBoundary)
	return []byte(b.String())
}
