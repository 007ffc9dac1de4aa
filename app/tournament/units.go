package tournament

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	rankCommaGrouped = regexp.MustCompile(`^\d{1,3}(?:,\d{3})+$`)
	rankDecimalK     = regexp.MustCompile(`^(\d+)\.(\d+)[kK]$`)
	rankIntegerK     = regexp.MustCompile(`^(\d+)[kK]$`)
	rankPlain        = regexp.MustCompile(`^\d+$`)
)

// ConvertRankToNumber turns "#10,000", "25k", "99.9k" or "1234" into an integer.
func ConvertRankToNumber(token string) (int, bool) {
	s := strings.TrimSpace(token)
	s = strings.TrimPrefix(s, "#")
	s = strings.TrimSpace(s)

	switch {
	case rankCommaGrouped.MatchString(s):
		return atoi(strings.ReplaceAll(s, ",", ""))
	case rankDecimalK.MatchString(s):
		m := rankDecimalK.FindStringSubmatch(s)
		whole, ok := atoi(m[1])
		if !ok {
			return 0, false
		}
		// The fraction is read as thousandths: "99.9k" -> 99900, "1.25k" -> 1250.
		frac := (m[2] + "000")[:3]
		thousandths, ok := atoi(frac)
		if !ok {
			return 0, false
		}
		return whole*1000 + thousandths, true
	case rankIntegerK.MatchString(s):
		n, ok := atoi(rankIntegerK.FindStringSubmatch(s)[1])
		if !ok {
			return 0, false
		}
		return n * 1000, true
	case rankPlain.MatchString(s):
		return atoi(s)
	}
	return 0, false
}

func atoi(s string) (int, bool) {
	if len(s) > 9 {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

var gameModeAliases = map[string]GameMode{
	"std":            GameModeStandard,
	"standard":       GameModeStandard,
	"osu":            GameModeStandard,
	"osu!":           GameModeStandard,
	"osu!std":        GameModeStandard,
	"osu!standard":   GameModeStandard,
	"o!std":          GameModeStandard,
	"taiko":          GameModeTaiko,
	"osu!taiko":      GameModeTaiko,
	"o!t":            GameModeTaiko,
	"o!taiko":        GameModeTaiko,
	"catch":          GameModeCatch,
	"ctb":            GameModeCatch,
	"fruits":         GameModeCatch,
	"osu!catch":      GameModeCatch,
	"osu!ctb":        GameModeCatch,
	"catch the beat": GameModeCatch,
	"o!c":            GameModeCatch,
	"o!ctb":          GameModeCatch,
	"mania":          GameModeMania0,
	"osu!mania":      GameModeMania0,
	"o!m":            GameModeMania0,
	"o!mania":        GameModeMania0,
}

var (
	maniaKeyCount = regexp.MustCompile(`(?i)(\d{1,2})\s*k(?:eys?)?\b`)
	modeSpaces    = regexp.MustCompile(`\s+`)
)

// NormalizeGameMode maps a free-text mode token onto the GameMode enum. An empty
// token yields "" so the caller can apply its own default; any other
// unrecognised token yields GameModeOther.
func NormalizeGameMode(token string) GameMode {
	s := strings.ToLower(strings.TrimSpace(token))
	if s == "" {
		return ""
	}
	s = modeSpaces.ReplaceAllString(s, " ")

	if strings.Contains(s, "mania") || strings.HasPrefix(s, "o!m") || maniaKeyCount.MatchString(s) {
		if m := maniaKeyCount.FindStringSubmatch(s); m != nil {
			switch m[1] {
			case "4":
				return GameModeMania4
			case "7":
				return GameModeMania7
			}
		}
		return GameModeMania0
	}

	if mode, ok := gameModeAliases[s]; ok {
		return mode
	}
	if mode, ok := gameModeAliases[strings.ReplaceAll(s, " ", "")]; ok {
		return mode
	}
	return GameModeOther
}

var monthNames = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

const monthPattern = `(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)`

const timePattern = `(?:,?\s*(?:at\s+)?(\d{1,2}):(\d{2})(?::\d{2})?)?`

type dateLayout struct {
	name string
	re   *regexp.Regexp
	// build maps submatches onto year, month, day, hour, minute; year 0 means absent.
	build func(m []string) (year int, month time.Month, day, hour, minute int, ok bool)
}

var dateLayouts = []dateLayout{
	{
		name: "month_day",
		re:   regexp.MustCompile(`(?i)\b` + monthPattern + `\.?\s+(\d{1,2})(?:st|nd|rd|th)?\b(?:,?\s+(\d{4})\b)?` + timePattern),
		build: func(m []string) (int, time.Month, int, int, int, bool) {
			return wordDate(m[1], m[2], m[3], m[4], m[5])
		},
	},
	{
		name: "day_month",
		re:   regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\.?\s+` + monthPattern + `\b\.?(?:,?\s+(\d{4})\b)?` + timePattern),
		build: func(m []string) (int, time.Month, int, int, int, bool) {
			return wordDate(m[2], m[1], m[3], m[4], m[5])
		},
	},
	{
		name: "iso",
		re:   regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})(?:[ T](\d{1,2}):(\d{2})(?::\d{2})?)?`),
		build: func(m []string) (int, time.Month, int, int, int, bool) {
			year, _ := strconv.Atoi(m[1])
			month, _ := strconv.Atoi(m[2])
			day, _ := strconv.Atoi(m[3])
			hour, minute, ok := clockTime(m[4], m[5])
			return year, time.Month(month), day, hour, minute, ok
		},
	},
	{
		name: "numeric",
		re:   regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4}|\d{2})\b(?:\s+(\d{1,2}):(\d{2}))?`),
		build: func(m []string) (int, time.Month, int, int, int, bool) {
			first, _ := strconv.Atoi(m[1])
			second, _ := strconv.Atoi(m[2])
			year, _ := strconv.Atoi(m[3])
			if len(m[3]) == 2 {
				year = expandYear(year)
			}
			month, day := first, second
			if first > 12 {
				month, day = second, first
			}
			hour, minute, ok := clockTime(m[4], m[5])
			return year, time.Month(month), day, hour, minute, ok
		},
	},
}

func wordDate(monthName, dayStr, yearStr, hourStr, minuteStr string) (int, time.Month, int, int, int, bool) {
	month, ok := monthNames[strings.ToLower(monthName)]
	if !ok {
		return 0, 0, 0, 0, 0, false
	}
	day, _ := strconv.Atoi(dayStr)
	year := 0
	if yearStr != "" {
		year, _ = strconv.Atoi(yearStr)
	}
	hour, minute, ok := clockTime(hourStr, minuteStr)
	return year, month, day, hour, minute, ok
}

func clockTime(hourStr, minuteStr string) (int, int, bool) {
	if hourStr == "" {
		return 0, 0, true
	}
	hour, _ := strconv.Atoi(hourStr)
	minute, _ := strconv.Atoi(minuteStr)
	if hour > 23 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

func expandYear(twoDigit int) int {
	if twoDigit < 50 {
		return 2000 + twoDigit
	}
	return 1900 + twoDigit
}

// ParseDate finds the first date in s using the word-month, European, ISO and
// numeric layouts, in that order. A missing year defaults to the year of now.
// Only calendar-valid dates between 2020 and 2030 are accepted.
func ParseDate(s string, now time.Time) (DateTime, bool) {
	d, _, ok := parseDate(s, now)
	return d, ok
}

// parseDate is ParseDate that also reports whether the year was written out.
func parseDate(s string, now time.Time) (DateTime, bool, bool) {
	for _, layout := range dateLayouts {
		m := layout.re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		year, month, day, hour, minute, ok := layout.build(m)
		if !ok {
			continue
		}
		explicit := year != 0
		if !explicit {
			year = now.Year()
		}
		if d, ok := validDate(year, month, day, hour, minute); ok {
			return d, explicit, true
		}
	}
	return DateTime{}, false, false
}

func validDate(year int, month time.Month, day, hour, minute int) (DateTime, bool) {
	if year < 2020 || year > 2030 || month < time.January || month > time.December || day < 1 {
		return DateTime{}, false
	}
	d := NewDateTime(year, month, day, hour, minute, 0)
	if d.Year() != year || d.Month() != month || d.Day() != day {
		return DateTime{}, false
	}
	return d, true
}

// snapToSunday advances d to the Sunday closing its week (Sunday itself stays put).
func snapToSunday(d DateTime) DateTime {
	days := (7 - int(d.Weekday())) % 7
	return DateTime{d.AddDate(0, 0, days)}
}
