package domain

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/examcell/duty-roster/pkg/util/errorutil"
)

type sessionKind uint8

const (
	sessionUnset sessionKind = iota
	sessionForenoon
	sessionAfternoon
	sessionPeriod
)

// Session is a sub-day duty period. The zero value is not a valid session.
type Session struct {
	kind   sessionKind
	period int
}

var (
	Forenoon  = Session{kind: sessionForenoon}
	Afternoon = Session{kind: sessionAfternoon}
)

// Period returns the numeric period session n (n >= 1).
func Period(n int) (Session, error) {
	if n < 1 {
		return Session{}, apperrors.NewInvalidInput("session period must be positive", map[string]any{"period": n})
	}
	return Session{kind: sessionPeriod, period: n}, nil
}

// ParseSession validates a session token once at the boundary.
func ParseSession(raw string) (Session, error) {
	token := strings.ToUpper(strings.TrimSpace(raw))
	switch token {
	case "FN", "FORENOON", "MORNING", "AM", "M":
		return Forenoon, nil
	case "AN", "AFTERNOON", "EVENING", "PM", "A", "E":
		return Afternoon, nil
	case "":
		return Session{}, apperrors.NewInvalidInput("session is required", nil)
	}
	token = strings.TrimPrefix(token, "P")
	n, err := strconv.Atoi(token)
	if err != nil {
		return Session{}, apperrors.NewInvalidInput(fmt.Sprintf("unknown session %q", raw), map[string]any{"session": raw})
	}
	return Period(n)
}

// MustSession is ParseSession for constants and fixtures.
func MustSession(raw string) Session {
	s, err := ParseSession(raw)
	if err != nil {
		panic(err)
	}
	return s
}

func (s Session) IsValid() bool {
	return s.kind != sessionUnset
}

// String returns the canonical token: FN, AN, or the period number.
func (s Session) String() string {
	switch s.kind {
	case sessionForenoon:
		return "FN"
	case sessionAfternoon:
		return "AN"
	case sessionPeriod:
		return strconv.Itoa(s.period)
	}
	return ""
}

// Compare orders forenoon before afternoon before numbered periods.
func (s Session) Compare(other Session) int {
	if c := cmp.Compare(s.kind, other.kind); c != 0 {
		return c
	}
	return cmp.Compare(s.period, other.period)
}

func (s Session) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("marshal unset session")
	}
	return []byte(s.String()), nil
}

func (s *Session) UnmarshalText(text []byte) error {
	parsed, err := ParseSession(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
