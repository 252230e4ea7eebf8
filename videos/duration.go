package videos

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// DurationUnknown is displayed when a duration is missing or unreadable.
const DurationUnknown = "--:--"

// maxSeconds is 2^63, the first float64 that no longer fits in an int64.
const maxSeconds = float64(1 << 63)

var isoDuration = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

// ParseISODuration returns the whole seconds in an ISO-8601 duration such as
// PT1H2M3S or P1DT2H. Days count as 24 hours; fractional seconds are floored.
func ParseISODuration(s string) (int64, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	m := isoDuration.FindStringSubmatch(s)
	if m == nil || s == "P" || strings.HasSuffix(s, "T") {
		return 0, false
	}
	var total float64
	for i, unit := range []float64{86400, 3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.ParseFloat(m[i+1], 64)
		if err != nil {
			return 0, false
		}
		total += n * unit
	}
	if math.IsInf(total, 0) || total >= maxSeconds {
		return 0, false
	}
	return int64(math.Floor(total)), true
}

// FormatDuration renders an ISO-8601 duration or a number of seconds as
// H:MM:SS, or M:SS when under an hour. Anything else, including empty
// input, yields DurationUnknown.
func FormatDuration(v any) string {
	switch t := v.(type) {
	case nil:
		return DurationUnknown
	case *string:
		if t == nil {
			return DurationUnknown
		}
		return FormatDuration(*t)
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return DurationUnknown
		}
		if s[0] == 'P' || s[0] == 'p' {
			secs, ok := ParseISODuration(s)
			if !ok {
				return DurationUnknown
			}
			return formatSeconds(secs)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return DurationUnknown
		}
		return formatFloat(f)
	case float64:
		return formatFloat(t)
	case float32:
		return formatFloat(float64(t))
	case int:
		return formatFloat(float64(t))
	case int64:
		return formatFloat(float64(t))
	case int32:
		return formatFloat(float64(t))
	}
	return DurationUnknown
}

func formatFloat(f float64) string {
	if math.IsNaN(f) || f < 0 || f >= maxSeconds {
		return DurationUnknown
	}
	return formatSeconds(int64(math.Floor(f)))
}

func formatSeconds(total int64) string {
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// SecondsToISO converts a media length to the ISO-8601 form stored on
// videos, e.g. 3723.4 → PT1H2M3S. Non-finite or negative input gives "".
func SecondsToISO(secs float64) string {
	if math.IsNaN(secs) || secs < 0 || secs >= maxSeconds {
		return ""
	}
	total := int64(math.Floor(secs))
	h, m, s := total/3600, (total%3600)/60, total%60
	var b strings.Builder
	b.WriteString("PT")
	if h > 0 {
		fmt.Fprintf(&b, "%dH", h)
	}
	if m > 0 {
		fmt.Fprintf(&b, "%dM", m)
	}
	if s > 0 || (h == 0 && m == 0) {
		fmt.Fprintf(&b, "%dS", s)
	}
	return b.String()
}
