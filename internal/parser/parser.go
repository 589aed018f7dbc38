package parser

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/X1ag/RemindBot/internal/domain"
)

// TomorrowKeyword selects the next calendar day as the reminder date.
const TomorrowKeyword = "завтра"

const (
	inputLayout = "2.1.2006 15:04"
	timeLayout  = "15:04"
)

// Request is a successfully parsed reminder.
type Request struct {
	Text       string
	RemindTime time.Time
}

// Split breaks raw into at most three whitespace-delimited fields; the third
// field keeps the rest of the input, inner spacing included.
func Split(raw string) []string {
	fields := make([]string, 0, 3)
	rest := strings.TrimSpace(raw)
	for len(fields) < 2 && rest != "" {
		end := strings.IndexFunc(rest, unicode.IsSpace)
		if end < 0 {
			fields = append(fields, rest)
			rest = ""
			break
		}
		fields = append(fields, rest[:end])
		rest = strings.TrimLeftFunc(rest[end:], unicode.IsSpace)
	}
	if rest != "" {
		fields = append(fields, rest)
	}
	return fields
}

// Parse turns "<date> <time> <text>" into a Request. now supplies the local
// date for the tomorrow keyword and the year for DD.MM dates.
func Parse(raw string, now time.Time) (Request, error) {
	fields := Split(raw)
	if len(fields) < 3 {
		return Request{}, &domain.FormatError{Input: raw, Reason: domain.ErrBadFormat}
	}
	remindTime, err := ParseTime(fields[0], fields[1], now)
	if err != nil {
		return Request{}, err
	}
	return Request{Text: fields[2], RemindTime: remindTime}, nil
}

// ParseTime resolves a date token and an HH:MM token to an absolute local
// time. Past times are accepted.
func ParseTime(dateToken, timeToken string, now time.Time) (time.Time, error) {
	input := dateToken + " " + timeToken

	if strings.EqualFold(dateToken, TomorrowKeyword) {
		clock, err := time.Parse(timeLayout, timeToken)
		if err != nil {
			return time.Time{}, badDateTime(input, err)
		}
		next := now.AddDate(0, 0, 1)
		return time.Date(next.Year(), next.Month(), next.Day(), clock.Hour(), clock.Minute(), 0, 0, now.Location()), nil
	}

	switch strings.Count(dateToken, ".") {
	case 1:
		dateToken = fmt.Sprintf("%s.%d", dateToken, now.Year())
	case 2:
	default:
		return time.Time{}, badDateTime(input, fmt.Errorf("unrecognized date %q", dateToken))
	}

	t, err := time.ParseInLocation(inputLayout, dateToken+" "+timeToken, now.Location())
	if err != nil {
		return time.Time{}, badDateTime(input, err)
	}
	return t, nil
}

func badDateTime(input string, err error) error {
	return &domain.FormatError{Input: input, Reason: fmt.Errorf("%w: %v", domain.ErrBadDateTime, err)}
}
