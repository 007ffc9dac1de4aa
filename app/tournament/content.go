package tournament

import (
	"html"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

var (
	imagemapBlock = regexp.MustCompile(`(?is)\[imagemap\](.*?)\[/imagemap\]`)
	markupTag     = regexp.MustCompile(`\[/?[a-zA-Z*][a-zA-Z0-9]*(?:=[^\]\n]*)?\]|<[^>\n]*>`)
)

// plainText drops BBCode and HTML tags and unescapes entities so that labels
// like "[b]Registrations:[/b]" read as "Registrations:".
func plainText(s string) string {
	return html.UnescapeString(markupTag.ReplaceAllString(s, ""))
}

func splitImagemaps(body string) (main string, maps string) {
	var blocks []string
	for _, m := range imagemapBlock.FindAllStringSubmatch(body, -1) {
		blocks = append(blocks, m[1])
	}
	return imagemapBlock.ReplaceAllString(body, "\n"), strings.Join(blocks, "\n")
}

type patternRule struct {
	name string
	re   *regexp.Regexp
}

const (
	minDiscordCode = 3
	maxDiscordCode = 20
)

var discordRules = []patternRule{
	{name: "discord_gg", re: regexp.MustCompile(`(?i)\bdiscord\.gg/([A-Za-z0-9-]+)`)},
	{name: "discord_invite", re: regexp.MustCompile(`(?i)\bdiscord\.com/invite/([A-Za-z0-9-]+)`)},
	{name: "discordapp_invite", re: regexp.MustCompile(`(?i)\bdiscordapp\.com/invite/([A-Za-z0-9-]+)`)},
}

func parseDiscord(body string, md *Metadata) {
	main, maps := splitImagemaps(body)
	scopes := []struct {
		suffix string
		text   string
	}{
		{"", main},
		{"_imagemap", maps},
	}

	for _, scope := range scopes {
		for _, rule := range discordRules {
			for _, m := range rule.re.FindAllStringSubmatch(scope.text, -1) {
				if len(m[1]) < minDiscordCode || len(m[1]) > maxDiscordCode {
					continue
				}
				md.DiscordLink = stringPtr(m[1])
				md.recordRule(FieldDiscordLink, rule.name+scope.suffix)
				return
			}
		}
	}
}

const (
	minStarRating = 0.5
	maxStarRating = 20.0
	starTolerance = 0.01

	starNumber = `(\d{1,2}(?:\.\d{1,2})?)`
)

var (
	primaryStarRules = []patternRule{
		{name: "bold_sr", re: regexp.MustCompile(`(?i)\[b\]\s*SR\s*[=:]\s*` + starNumber + `\s*\*?\s*\[/b\]`)},
		{name: "color_label", re: regexp.MustCompile(`(?i)\[color=[^\]]*\][^\[\]]*\[/color\]\s*[:-]?\s*` + starNumber + `\s*\*`)},
		{name: "paren_star", re: regexp.MustCompile(`\(\s*` + starNumber + `\s*\*\s*\)`)},
		{name: "bold_stage_paren", re: regexp.MustCompile(`(?i)\[b\][^\[\]]{1,40}\[/b\]\s*\(\s*` + starNumber + `\s*\*\s*\)`)},
		{name: "piped_bold_sr", re: regexp.MustCompile(`(?i)\|\s*\[b\]\s*SR\s*[=:]?\s*` + starNumber)},
		{name: "bare_star", re: regexp.MustCompile(`(?:^|[^\w.*])` + starNumber + `\s*\*`)},
	}

	qualifierKeyword = regexp.MustCompile(`(?i)\bqualifiers?\b|\bgroup\s+stage\b`)

	fallbackStarRanges = []patternRule{
		{name: "sr_range", re: regexp.MustCompile(`(?i)\bSR\s*[:=]?\s*` + starNumber + `\s*\*?\s*[-~]\s*` + starNumber)},
		{name: "star_prefix_range", re: regexp.MustCompile(`\*\s*` + starNumber + `\s*[-~]\s*\*\s*` + starNumber)},
		{name: "black_star_range", re: regexp.MustCompile(starNumber + `\s*★\s*[-~]\s*` + starNumber + `\s*★`)},
	}
	fallbackStarSingles = []patternRule{
		{name: "sr_single", re: regexp.MustCompile(`(?i)\bSR\s*[:=]\s*` + starNumber)},
		{name: "star_prefix", re: regexp.MustCompile(`(?:^|\s)\*` + starNumber + `\b`)},
		{name: "black_star", re: regexp.MustCompile(starNumber + `\s*★`)},
	}
	fallbackQualifier = regexp.MustCompile(`(?i)\bqualifiers?\b(?:\s+stage)?\s*(?:SR)?\s*[:=-]?\s*\*?\s*` + starNumber + `\s*[*★]?`)
)

type starMatch struct {
	offset int
	value  float64
	rule   string
}

func parseStar(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < minStarRating || v > maxStarRating {
		return 0, false
	}
	return v, true
}

// parseStarRatings reads the difficulty brackets. With a qualifier stage in the
// post, the first rating in reading order belongs to the qualifier and the rest
// form the main bracket.
func parseStarRatings(body string, md *Metadata) {
	var matches []starMatch
	for _, rule := range primaryStarRules {
		for _, loc := range rule.re.FindAllStringSubmatchIndex(body, -1) {
			v, ok := parseStar(body[loc[2]:loc[3]])
			if !ok {
				continue
			}
			matches = append(matches, starMatch{offset: loc[2], value: v, rule: rule.name})
		}
	}
	if len(matches) == 0 {
		parseFallbackStarRatings(body, md)
		return
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].offset < matches[j].offset
	})
	ratings := matches[:0]
	seen := make(map[float64]bool)
	for _, m := range matches {
		if seen[m.value] {
			continue
		}
		seen[m.value] = true
		ratings = append(ratings, m)
	}

	if qualifierKeyword.MatchString(body) {
		md.StarRatingQualifier = floatPtr(ratings[0].value)
		md.recordRule(FieldStarRatingQualifier, ratings[0].rule)
		ratings = ratings[1:]
	}
	if len(ratings) == 0 {
		return
	}

	lo, hi := ratings[0], ratings[0]
	for _, r := range ratings[1:] {
		if r.value < lo.value {
			lo = r
		}
		if r.value > hi.value {
			hi = r
		}
	}
	md.StarRatingMin = floatPtr(lo.value)
	md.StarRatingMax = floatPtr(hi.value)
	md.recordRule(FieldStarRatingMin, lo.rule)
	md.recordRule(FieldStarRatingMax, hi.rule)
}

func parseFallbackStarRatings(body string, md *Metadata) {
	var qualifier *float64
	if m := fallbackQualifier.FindStringSubmatch(body); m != nil {
		if v, ok := parseStar(m[1]); ok {
			qualifier = floatPtr(v)
			md.StarRatingQualifier = qualifier
			md.recordRule(FieldStarRatingQualifier, "qualifier_label")
		}
	}
	near := func(v float64) bool {
		return qualifier != nil && abs(v-*qualifier) < starTolerance
	}

	for _, rule := range fallbackStarRanges {
		for _, m := range rule.re.FindAllStringSubmatch(body, -1) {
			lo, ok := parseStar(m[1])
			if !ok {
				continue
			}
			hi, ok := parseStar(m[2])
			if !ok {
				continue
			}
			if lo > hi {
				lo, hi = hi, lo
			}
			switch {
			case near(lo):
				lo = hi
			case near(hi):
				hi = lo
			}
			md.StarRatingMin = floatPtr(lo)
			md.StarRatingMax = floatPtr(hi)
			md.recordRule(FieldStarRatingMin, rule.name)
			md.recordRule(FieldStarRatingMax, rule.name)
			return
		}
	}

	for _, rule := range fallbackStarSingles {
		for _, m := range rule.re.FindAllStringSubmatch(body, -1) {
			v, ok := parseStar(m[1])
			if !ok {
				continue
			}
			if near(v) {
				return
			}
			md.StarRatingMin = floatPtr(v)
			md.StarRatingMax = floatPtr(v)
			md.recordRule(FieldStarRatingMin, rule.name)
			md.recordRule(FieldStarRatingMax, rule.name)
			return
		}
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

const (
	lineLead      = `(?i)^[\s*•·>\-]*`
	registration  = `(?:player\s+)?registrations?`
	pairSeparator = `(?:\s+[-–—]+\s+|\s*[~～]\s*|\s+to\s+)`
)

var (
	registrationRules = []patternRule{
		{name: "registration_range", re: regexp.MustCompile(lineLead + registration + `(?:\s+period)?\s*:\s*(.+?)(?:\s+[-–—]+\s+|\s*[~～]\s*)(.+)$`)},
		{name: "registration_to", re: regexp.MustCompile(lineLead + registration + `(?:\s+period)?\s*:\s*(.+?)\s+to\s+(.+)$`)},
		{name: "registration_end", re: regexp.MustCompile(lineLead + registration + `\s+(?:ends?|close[sd]?|deadline)\s*:\s*(.+)$`)},
		{name: "registration_pipe", re: regexp.MustCompile(lineLead + registration + `\s*\|\s*(.+?)(?:\s+[-–—]+\s+|\s*[~～]\s*)(.+)$`)},
	}

	datePieceSeparator = regexp.MustCompile(pairSeparator)
	bareDayPattern     = regexp.MustCompile(`^\s*(\d{1,2})(?:st|nd|rd|th)?\b(?:,?\s*(?:at\s+)?(\d{1,2}):(\d{2}))?`)
)

// parseRegistrationDates tries the label rules in order; the first rule that
// yields at least one date settles both fields. A close-only result is kept as is.
func parseRegistrationDates(lines []string, now time.Time, md *Metadata) {
	for _, rule := range registrationRules {
		for _, line := range lines {
			m := rule.re.FindStringSubmatch(line)
			if m == nil {
				continue
			}

			var openDate, closeDate *DateTime
			if len(m) == 2 {
				if d, ok := ParseDate(m[1], now); ok {
					closeDate = datePtr(d)
				}
			} else {
				openDate, closeDate = parseDatePair(m[1], m[2], now)
			}
			if openDate == nil && closeDate == nil {
				continue
			}

			if openDate != nil {
				md.RegistrationOpenDate = openDate
				md.recordRule(FieldRegistrationOpenDate, rule.name)
			}
			if closeDate != nil {
				md.RegistrationCloseDate = closeDate
				md.recordRule(FieldRegistrationCloseDate, rule.name)
			}
			return
		}
	}
}

// parseDatePair reads "X - Y". A right side holding only a day ("Aug 1st - 14th")
// borrows month and year from the left side. A year written only on the right
// side ("Aug 1 - Aug 14, 2026") is borrowed back by the left side, stepping back
// a year when the pair wraps over New Year.
func parseDatePair(left, right string, now time.Time) (*DateTime, *DateTime) {
	var openDate, closeDate *DateTime
	leftDate, leftExplicit, leftOK := parseDate(left, now)
	if leftOK {
		openDate = datePtr(leftDate)
	}
	if d, rightExplicit, ok := parseDate(right, now); ok {
		closeDate = datePtr(d)
		if leftOK && !leftExplicit && rightExplicit && leftDate.Year() != d.Year() {
			openDate = borrowYear(left, d, leftDate)
		}
	} else if openDate != nil {
		if d, ok := inheritDay(right, *openDate); ok {
			closeDate = datePtr(d)
		}
	}
	if openDate != nil && closeDate != nil && openDate.After(closeDate.Time) {
		openDate, closeDate = closeDate, openDate
	}
	return openDate, closeDate
}

func borrowYear(left string, closeDate, fallback DateTime) *DateTime {
	for _, year := range []int{closeDate.Year(), closeDate.Year() - 1} {
		ref := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		if d, _, ok := parseDate(left, ref); ok && !d.After(closeDate.Time) {
			return datePtr(d)
		}
	}
	return datePtr(fallback)
}

func inheritDay(s string, from DateTime) (DateTime, bool) {
	m := bareDayPattern.FindStringSubmatch(s)
	if m == nil {
		return DateTime{}, false
	}
	day, _ := strconv.Atoi(m[1])
	hour, minute, ok := clockTime(m[2], m[3])
	if !ok {
		return DateTime{}, false
	}
	return validDate(from.Year(), from.Month(), day, hour, minute)
}

var endDateRules = []patternRule{
	{name: "grand_final", re: regexp.MustCompile(`(?i)\bgrand[\s-]*finals?\b`)},
	{name: "gf", re: regexp.MustCompile(`\bGF\b`)},
	{name: "finals", re: regexp.MustCompile(`(?i)\bfinals?\b`)},
}

// parseEndDate keeps the latest date on any grand-final line and snaps it to the
// Sunday that closes its week.
func parseEndDate(lines []string, now time.Time, md *Metadata) {
	var latest *DateTime
	var latestRule string

	for _, line := range lines {
		for _, rule := range endDateRules {
			loc := rule.re.FindStringIndex(line)
			if loc == nil {
				continue
			}
			for _, d := range datesIn(line[loc[1]:], now) {
				if latest == nil || d.After(latest.Time) {
					latest = datePtr(d)
					latestRule = rule.name
				}
			}
			break
		}
	}

	if latest == nil {
		return
	}
	md.EndDate = datePtr(snapToSunday(*latest))
	md.recordRule(FieldEndDate, latestRule)
}

func datesIn(s string, now time.Time) []DateTime {
	var dates []DateTime
	var prev *DateTime
	for _, piece := range datePieceSeparator.Split(s, -1) {
		d, ok := ParseDate(piece, now)
		if !ok && prev != nil {
			d, ok = inheritDay(piece, *prev)
		}
		if !ok {
			continue
		}
		dates = append(dates, d)
		prev = datePtr(d)
	}
	return dates
}

const maxBannerURLLength = 500

var (
	bannerImageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp"}

	bbcodeImagePattern   = regexp.MustCompile(`(?is)\[img\]\s*(.*?)\s*\[/img\]`)
	imagemapImagePattern = regexp.MustCompile(`(?is)\[imagemap\]\s*(\S+)`)
	markdownImagePattern = regexp.MustCompile(`!\[[^\]]*\]\(\s*(\S+?)\s*(?:"[^"]*")?\)`)
	bareImagePattern     = regexp.MustCompile(`(?i)https?://[^\s<>"'\[\]()]+?\.(?:png|jpe?g|gif|webp)(?:\?[^\s<>"'\[\]()]*)?`)
)

type bannerRule struct {
	name       string
	candidates func(body string) []string
}

var bannerRules = []bannerRule{
	{name: "bbcode_img", candidates: submatches(bbcodeImagePattern)},
	{name: "imagemap", candidates: submatches(imagemapImagePattern)},
	{name: "html_img", candidates: htmlImageSources},
	{name: "markdown_img", candidates: submatches(markdownImagePattern)},
	{name: "bare_url", candidates: func(body string) []string {
		return bareImagePattern.FindAllString(body, -1)
	}},
}

func submatches(re *regexp.Regexp) func(string) []string {
	return func(body string) []string {
		var out []string
		for _, m := range re.FindAllStringSubmatch(body, -1) {
			out = append(out, m[1])
		}
		return out
	}
}

func htmlImageSources(body string) []string {
	if !strings.Contains(strings.ToLower(body), "<img") {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil
	}
	var out []string
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			out = append(out, strings.TrimSpace(src))
		}
	})
	return out
}

func isBannerURL(raw string) bool {
	if len(raw) > maxBannerURLLength || !IsSafeURL(raw) {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	ext := strings.ToLower(path.Ext(u.Path))
	for _, allowed := range bannerImageExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func parseBanner(body string, md *Metadata) {
	for _, rule := range bannerRules {
		for _, candidate := range rule.candidates(body) {
			if isBannerURL(candidate) {
				md.BannerURL = stringPtr(candidate)
				md.recordRule(FieldBannerURL, rule.name)
				return
			}
		}
	}
}

type badgeRule struct {
	name   string
	re     *regexp.Regexp
	badged bool
}

// badgeRules are ordered by strength; an explicit "unbadged" overrides any
// positive signal elsewhere in the post.
var badgeRules = []badgeRule{
	{name: "unbadged", re: regexp.MustCompile(`(?i)\bun-?badged?\b`), badged: false},
	{name: "badge_request_link", re: regexp.MustCompile(`(?i)osu\.ppy\.sh/wiki/(?:[a-z]{2}(?:-[a-z]{2})?/)?Tournaments/Badged_tournaments`), badged: true},
	{name: "keyword", re: regexp.MustCompile(`(?i)\bbadged?\b`), badged: true},
}

func parseBadge(body string, md *Metadata) {
	for _, rule := range badgeRules {
		if rule.re.MatchString(body) {
			md.IsBadged = rule.badged
			md.recordRule(FieldIsBadged, rule.name)
			return
		}
	}
}

// parseContent extracts every body-derived field. now anchors dates that omit
// the year.
func parseContent(body string, now time.Time, md *Metadata) {
	lines := strings.Split(plainText(body), "\n")

	parseDiscord(body, md)
	parseStarRatings(body, md)
	parseRegistrationDates(lines, now, md)
	parseEndDate(lines, now, md)
	parseBanner(body, md)
	parseBadge(body, md)
}
