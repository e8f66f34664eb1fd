package session

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrUnparseable is returned when a reply does not match any known wording.
var ErrUnparseable = errors.New("session: unparseable reply")

// Parser turns the raw reply of the status command into a Status.
type Parser interface {
	Parse(reply string) (*Status, error)
}

var listPatterns = []*regexp.Regexp{
	// 1.13 and later.
	regexp.MustCompile(`(?s)There are (\d+) of a max of (\d+) players online:\s?(.*)$`),
	// 1.12 and earlier; names may follow on the next line.
	regexp.MustCompile(`(?s)There are (\d+)/(\d+) players online:\s?(.*)$`),
}

// ListParser parses the vanilla reply to the "list" command.
type ListParser struct{}

// Parse implements Parser.
func (ListParser) Parse(reply string) (*Status, error) {
	text := strings.TrimSpace(reply)
	for _, re := range listPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		online, err := strconv.ParseUint(m[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: current count %q: %v", ErrUnparseable, m[1], err)
		}
		limit, err := strconv.ParseUint(m[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: max count %q: %v", ErrUnparseable, m[2], err)
		}
		return &Status{Online: online, Max: limit, Players: splitNames(m[3])}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnparseable, text)
}

// splitNames accepts both space and comma separated lists.
func splitNames(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if len(fields) == 0 {
		return nil
	}
	return fields
}
