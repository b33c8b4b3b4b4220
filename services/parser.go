package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	goalToken  = regexp.MustCompile(`\[GOAL:\s*(.*?)\]`)
	titleToken = regexp.MustCompile(`\[TITLE:\s*(.*?)\]`)
)

// ParsedInsight is the structured part of a completion.
type ParsedInsight struct {
	Goal  int
	Title string
}

// ParseInsight extracts the first GOAL and TITLE tokens from text. Both must be present,
// the goal must start with a positive integer and the title must not be blank; partial
// matches are not recovered.
func ParseInsight(text string) (ParsedInsight, error) {
	var p ParsedInsight

	m := goalToken.FindStringSubmatch(text)
	if m == nil {
		return p, fmt.Errorf("%w: no [GOAL: ...] token", ErrInsightParse)
	}
	goal, ok := leadingInt(m[1])
	if !ok {
		return p, fmt.Errorf("%w: goal %q is not an integer", ErrInsightParse, m[1])
	}
	if goal <= 0 {
		return p, fmt.Errorf("%w: goal %d is not positive", ErrInsightParse, goal)
	}

	m = titleToken.FindStringSubmatch(text)
	if m == nil {
		return p, fmt.Errorf("%w: no [TITLE: ...] token", ErrInsightParse)
	}
	title := strings.TrimSpace(m[1])
	if title == "" {
		return p, fmt.Errorf("%w: empty title", ErrInsightParse)
	}

	p.Goal = goal
	p.Title = title
	return p, nil
}

// leadingInt reads an optionally signed run of digits at the start of s, ignoring what
// follows ("40 kg" is 40, "40.5" is 40).
func leadingInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
