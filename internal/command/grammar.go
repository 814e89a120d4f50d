// Package command parses the cloud command grammar and runs the parsed
// commands against Google Calendar, Drive and Gmail.
//
//	calendar <name> <start> <end>       start/end as 2006-01-02T15:04:05
//	drive <name> <contents...>
//	mail <recipient> <subject> <body...>
package command

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode"
)

type Kind string

const (
	KindCalendar Kind = "calendar"
	KindDrive    Kind = "drive"
	KindMail     Kind = "mail"
	KindUnknown  Kind = "unknown"
)

func (k Kind) String() string { return string(k) }

// TimeLayout is the accepted calendar timestamp form, interpreted as UTC.
const TimeLayout = "2006-01-02T15:04:05"

var ErrUnknownCommand = errors.New("unknown command")

// Command is one of CalendarEvent, DriveUpload or MailDraft.
type Command interface {
	Kind() Kind
}

type CalendarEvent struct {
	Name  string
	Start time.Time
	End   time.Time
}

func (CalendarEvent) Kind() Kind { return KindCalendar }

type DriveUpload struct {
	Name     string
	Contents string
}

func (DriveUpload) Kind() Kind { return KindDrive }

type MailDraft struct {
	To      string
	Subject string
	Body    string
}

func (MailDraft) Kind() Kind { return KindMail }

// UnknownReply is the text sent back for input Parse rejects.
func UnknownReply(text string) string {
	return "Unknown command: " + text
}

// Parse reads text once and returns the matching command. Every rejection
// wraps ErrUnknownCommand.
func Parse(text string) (Command, error) {
	verb, rest := cut(strings.TrimSpace(text))

	switch Kind(verb) {
	case KindCalendar:
		return parseCalendar(rest)
	case KindDrive:
		return parseDrive(rest)
	case KindMail:
		return parseMail(rest)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, verb)
	}
}

func parseCalendar(args string) (Command, error) {
	f := strings.Fields(args)
	if len(f) != 3 || !isWord(f[0]) {
		return nil, fmt.Errorf("%w: calendar wants <name> <start> <end>", ErrUnknownCommand)
	}

	start, err := time.ParseInLocation(TimeLayout, f[1], time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%w: calendar start: %v", ErrUnknownCommand, err)
	}
	end, err := time.ParseInLocation(TimeLayout, f[2], time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%w: calendar end: %v", ErrUnknownCommand, err)
	}
	if !end.After(start) {
		return nil, fmt.Errorf("%w: calendar end must be after start", ErrUnknownCommand)
	}

	return CalendarEvent{Name: f[0], Start: start, End: end}, nil
}

func parseDrive(args string) (Command, error) {
	name, contents := cut(args)
	if !isWord(name) {
		return nil, fmt.Errorf("%w: drive wants <name> <contents>", ErrUnknownCommand)
	}

	return DriveUpload{Name: name, Contents: contents}, nil
}

func parseMail(args string) (Command, error) {
	to, rest := cut(args)
	subject, body := cut(rest)
	if to == "" || subject == "" {
		return nil, fmt.Errorf("%w: mail wants <recipient> <subject> <body>", ErrUnknownCommand)
	}

	addr, err := mail.ParseAddress(to)
	if err != nil || addr.Address != to {
		return nil, fmt.Errorf("%w: mail recipient %q is not an address", ErrUnknownCommand, to)
	}

	return MailDraft{To: addr.Address, Subject: subject, Body: body}, nil
}

// cut splits s at its first whitespace run.
func cut(s string) (head, tail string) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}

	return s[:i], strings.TrimSpace(s[i:])
}

func isWord(s string) bool {
	if s == "" {
		return false
	}

	for _, r := range s {
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}

	return true
}
