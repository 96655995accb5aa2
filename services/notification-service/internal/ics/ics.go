// Package ics encodes calendar invites (RFC 5545) for appointment
// confirmation emails.
package ics

import (
	"fmt"
	"strings"
	"time"
)

const (
	MethodRequest = "REQUEST"
	MethodCancel  = "CANCEL"
)

// Event is a single appointment invite.
type Event struct {
	UID          string
	Start        time.Time
	DurationMins int
	Summary      string
	Description  string
	Location     string
	Organizer    string // email of the business
	Attendee     string // email of the customer
	Method       string // MethodRequest or MethodCancel
}

// Encode renders the event as a complete VCALENDAR document with CRLF
// line endings.
func (e Event) Encode() []byte {
	method := e.Method
	if method == "" {
		method = MethodRequest
	}
	status := "CONFIRMED"
	if method == MethodCancel {
		status = "CANCELLED"
	}

	var b strings.Builder
	line := func(s string) {
		b.WriteString(s)
		b.WriteString("\r\n")
	}

	line("BEGIN:VCALENDAR")
	line("VERSION:2.0")
	line("PRODID:-//Bookable//Booking//EN")
	line("METHOD:" + method)
	line("BEGIN:VEVENT")
	line("UID:" + escape(e.UID))
	line("DTSTAMP:" + time.Now().UTC().Format("20060102T150405Z"))
	line("DTSTART:" + e.Start.UTC().Format("20060102T150405Z"))
	if e.DurationMins > 0 {
		line(fmt.Sprintf("DURATION:PT%dM", e.DurationMins))
	}
	line("STATUS:" + status)
	line("SUMMARY:" + escape(e.Summary))
	if e.Description != "" {
		line("DESCRIPTION:" + escape(e.Description))
	}
	if e.Location != "" {
		line("LOCATION:" + escape(e.Location))
	}
	if e.Organizer != "" {
		line("ORGANIZER:mailto:" + e.Organizer)
	}
	if e.Attendee != "" {
		line("ATTENDEE;ROLE=REQ-PARTICIPANT:mailto:" + e.Attendee)
	}
	line("END:VEVENT")
	line("END:VCALENDAR")
	return []byte(b.String())
}

// escape applies RFC 5545 text escaping: backslash, semicolon, comma
// and newline.
func escape(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		";", `\;`,
		",", `\,`,
		"\n", `\n`,
		"\r", "",
	)
	return r.Replace(s)
}
