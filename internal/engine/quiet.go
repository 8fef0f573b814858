package engine

import (
	"strconv"
	"strings"
	"time"
)

// quietHoursEndUTC returns the UTC instant quiet hours end, if now falls
// inside the [start, end) window (wrapping midnight is supported), or nil
// if quiet hours don't apply right now. tzOffset is a fixed offset like
// "-05:00"; empty means host local time.
func quietHoursEndUTC(now time.Time, startHHMM, endHHMM, tzOffset string) *time.Time {
	start, ok := parseHHMM(startHHMM)
	if !ok {
		return nil
	}
	end, ok := parseHHMM(endHHMM)
	if !ok {
		return nil
	}

	loc := quietLocation(tzOffset)
	local := now.In(loc)

	startToday := time.Date(local.Year(), local.Month(), local.Day(), start.hour, start.minute, 0, 0, loc)
	endToday := time.Date(local.Year(), local.Month(), local.Day(), end.hour, end.minute, 0, 0, loc)

	var inWindow bool
	var endLocal time.Time
	if startToday.Before(endToday) {
		inWindow = !local.Before(startToday) && local.Before(endToday)
		endLocal = endToday
	} else {
		switch {
		case !local.Before(startToday):
			inWindow = true
			endLocal = endToday.Add(24 * time.Hour)
		case local.Before(endToday):
			inWindow = true
			endLocal = endToday
		default:
			inWindow = false
		}
	}

	if !inWindow {
		return nil
	}
	utc := endLocal.UTC()
	return &utc
}

type hhmm struct{ hour, minute int }

func parseHHMM(s string) (hhmm, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return hhmm{}, false
	}
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return hhmm{}, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return hhmm{}, false
	}
	return hhmm{hour: h, minute: m}, true
}

func quietLocation(tzOffset string) *time.Location {
	tzOffset = strings.TrimSpace(tzOffset)
	if tzOffset == "" {
		return time.Local
	}
	neg := strings.HasPrefix(tzOffset, "-")
	trimmed := strings.TrimPrefix(strings.TrimPrefix(tzOffset, "-"), "+")
	parts := strings.SplitN(trimmed, ":", 2)
	if len(parts) != 2 {
		return time.Local
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return time.Local
	}
	seconds := h*3600 + m*60
	if neg {
		seconds = -seconds
	}
	return time.FixedZone(tzOffset, seconds)
}
