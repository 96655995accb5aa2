package email

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestBuildMIME_PlainText(t *testing.T) {
	raw := string(BuildMIME("no-reply@bookable.local", Message{
		To:      "jordan@example.com",
		Subject: "Your appointment is confirmed",
		Body:    "See you Monday at 10:00.",
	}))

	for _, want := range []string{
		"From: no-reply@bookable.local\r\n",
		"To: jordan@example.com\r\n",
		"Subject: Your appointment is confirmed\r\n",
		"Content-Type: text/plain; charset=utf-8\r\n",
		"See you Monday at 10:00.",
	} {
		if !strings.Contains(raw, want) {
			t.Fatalf("missing %q in:\n%s", want, raw)
		}
	}
	if strings.Contains(raw, "multipart/mixed") {
		t.Fatal("plain message must not be multipart")
	}
}

func TestBuildMIME_WithInvite(t *testing.T) {
	invite := []byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n")
	raw := string(BuildMIME("no-reply@bookable.local", Message{
		To:      "jordan@example.com",
		Subject: "Your appointment is confirmed",
		Body:    "See you Monday.",
		ICS:     invite,
		Method:  "REQUEST",
	}))

	if !strings.Contains(raw, "Content-Type: multipart/mixed") {
		t.Fatalf("expected multipart message:\n%s", raw)
	}
	if !strings.Contains(raw, "Content-Type: text/calendar; method=REQUEST") {
		t.Fatalf("calendar part missing method:\n%s", raw)
	}
	if !strings.Contains(raw, `filename="invite.ics"`) {
		t.Fatalf("attachment filename missing:\n%s", raw)
	}
	if !strings.Contains(raw, base64.StdEncoding.EncodeToString(invite)) {
		t.Fatalf("attachment body missing:\n%s", raw)
	}
	if !strings.Contains(raw, "--"+mimeBoundary+"--") {
		t.Fatalf("closing boundary missing:\n%s", raw)
	}
}
