package tournament

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// titleRule is one entry of an ordered fallback chain. apply reports whether the
// rule settled its field; later rules of the same chain are then skipped.
type titleRule struct {
	name  string
	re    *regexp.Regexp
	apply func(m []string, md *Metadata) bool
}

func runTitleRules(rules []titleRule, field Field, title string, md *Metadata) {
	for _, rule := range rules {
		m := rule.re.FindStringSubmatch(title)
		if m == nil {
			continue
		}
		if rule.apply(m, md) {
			md.recordRule(field, rule.name)
			return
		}
	}
}

const modeToken = `(?:osu!?\s*)?(?:std|standard|taiko|ctb|catch(?:\s+the\s+beat)?|fruits|mania|o!(?:std|t|taiko|c|ctb|m|mania))(?:\s*\d{1,2}\s*k(?:eys?)?)?` +
	`|(?:osu!?\s*)?(?:10|[1-9])\s*k(?:eys?)?` +
	`|osu!?`

var (
	modeBracketPattern = regexp.MustCompile(`(?i)[\[(]\s*(?:` + modeToken + `)\s*[\])]`)

	gameModeRules = []titleRule{
		{
			name: "leading_bracket",
			re:   regexp.MustCompile(`(?i)^\s*(?:[\[(][^\])]*[\])]\s*){0,2}[\[(]\s*(` + modeToken + `)\s*[\])]`),
			apply: func(m []string, md *Metadata) bool {
				md.GameMode = NormalizeGameMode(m[1])
				return md.GameMode != ""
			},
		},
		{
			name: "leading_word",
			re:   regexp.MustCompile(`(?i)^\s*(osu!\s*(?:std|standard|taiko|catch|ctb|mania(?:\s*\d{1,2}\s*k)?))\b`),
			apply: func(m []string, md *Metadata) bool {
				md.GameMode = NormalizeGameMode(m[1])
				return md.GameMode != ""
			},
		},
	}

	teamVSRules = []titleRule{
		{
			name: "nvn",
			re:   regexp.MustCompile(`(?i)\b(\d{1,2})\s*v(?:s\.?)?\s*(\d{1,2})\b`),
			apply: func(m []string, md *Metadata) bool {
				n, ok := atoi(m[1])
				if !ok || n < 1 {
					return false
				}
				md.TeamVS = intPtr(n)
				return true
			},
		},
	}

	teamSizeRules = []titleRule{
		{
			name:  "ts",
			re:    regexp.MustCompile(`(?i)\bTS\s*[:=]?\s*(\d{1,2})(?:\s*[-~]\s*(\d{1,2}))?\b`),
			apply: applyTeamSize,
		},
		{
			name:  "team_size",
			re:    regexp.MustCompile(`(?i)\bteam\s*size\s*[:=]?\s*(\d{1,2})(?:\s*[-~]\s*(\d{1,2}))?\b`),
			apply: applyTeamSize,
		},
	}

	bwsRules = []titleRule{
		{
			name: "negated",
			re:   regexp.MustCompile(`(?i)\b(?:no|non)[\s-]*bws\b`),
			apply: func(m []string, md *Metadata) bool {
				md.IsBWS = false
				return true
			},
		},
		{
			name: "keyword",
			re:   regexp.MustCompile(`(?i)\bbws\b`),
			apply: func(m []string, md *Metadata) bool {
				md.IsBWS = true
				return true
			},
		},
	}
)

// applyTeamSize keeps the larger bound of "TS2-4": hosts advertise the maximum roster.
func applyTeamSize(m []string, md *Metadata) bool {
	size, ok := atoi(m[1])
	if !ok {
		return false
	}
	if m[2] != "" {
		if upper, ok := atoi(m[2]); ok && upper > size {
			size = upper
		}
	}
	if size < 1 {
		return false
	}
	md.TeamSize = intPtr(size)
	return true
}

const (
	rankCommaToken = `\d{1,3}(?:,\d{3})+`
	rankToken      = `(?:` + rankCommaToken + `|\d+\.\d+[kK]|\d+[kK]?)`
	rankSeparator  = `\s*[-~–]\s*`
	rankBoundary   = `(?:^|[^\w.,#])`

	minRank = 1
	maxRank = 10000000
)

// rankRule captures (hash, value) pairs: groups 1-2 hold the lower side, 3-4 the
// upper side. Open-ended rules have no upper side.
type rankRule struct {
	name   string
	re     *regexp.Regexp
	open   bool
	accept func(lo, hi string, hashed bool) bool
}

var (
	openRankPattern   = regexp.MustCompile(`(?i)\b(?:international\s+)?open[\s-]*rank(?:ed)?\b`)
	rankRangePattern  = regexp.MustCompile(rankBoundary + `(#?)(` + rankToken + `)` + rankSeparator + `(#?)(` + rankToken + `)\b`)
	rankPrefixPattern = regexp.MustCompile(`(?i)(?:\bts|team\s*size|size)\s*[:=]?\s*$`)
	numericDateTail   = regexp.MustCompile(`^[-/.]\d`)
	openRankTail      = regexp.MustCompile(`^[\s\])]*$`)

	rankRules = []rankRule{
		{
			name: "comma_range",
			re:   rankRangePattern,
			accept: func(lo, hi string, _ bool) bool {
				return strings.Contains(lo, ",") && strings.Contains(hi, ",")
			},
		},
		{
			name: "single_comma_range",
			re:   rankRangePattern,
			accept: func(lo, hi string, _ bool) bool {
				return strings.Contains(lo, ",") != strings.Contains(hi, ",")
			},
		},
		{
			name: "decimal_k_range",
			re:   rankRangePattern,
			accept: func(lo, hi string, _ bool) bool {
				return strings.Contains(lo, ".") || strings.Contains(hi, ".")
			},
		},
		{
			name: "plain_range",
			re:   rankRangePattern,
			accept: func(_, _ string, hashed bool) bool {
				return !hashed
			},
		},
		{
			name: "hash_range",
			re:   rankRangePattern,
			accept: func(_, _ string, hashed bool) bool {
				return hashed
			},
		},
		{
			name: "open_plus",
			re:   regexp.MustCompile(rankBoundary + `(#?)(` + rankToken + `)\s*\+`),
			open: true,
		},
		{
			name: "open_tilde",
			re:   regexp.MustCompile(rankBoundary + `(#?)(` + rankToken + `)\s*~\s*[\])]?\s*$`),
			open: true,
		},
		{
			name: "open_infinity",
			re:   regexp.MustCompile(`(?i)` + rankBoundary + `(#?)(` + rankToken + `)` + rankSeparator + `#?(?:inf(?:inity)?|∞)`),
			open: true,
		},
	}
)

// rankSpan is the byte range of the rank expression inside the title.
type rankSpan struct {
	start, end int
}

// parseRankRange fills the rank bounds from the title. An open-rank phrase leaves
// both bounds nil on purpose and still counts as a settled rule.
func parseRankRange(title string, md *Metadata) (rankSpan, bool) {
	if openRankPattern.MatchString(title) {
		md.recordRule(FieldRankRange, "open_rank")
		return rankSpan{}, false
	}

	for _, rule := range rankRules {
		for _, loc := range rule.re.FindAllStringSubmatchIndex(title, -1) {
			span := rankSpan{start: loc[2], end: loc[1]}
			if rankPrefixPattern.MatchString(title[:span.start]) {
				continue
			}

			labelled := rankLabel.MatchString(title[:span.start])
			loHash, lo := title[loc[2]:loc[3]], title[loc[4]:loc[5]]
			if rule.open {
				trailing := openRankTail.MatchString(title[loc[1]:])
				floor, ok := rankValue(loHash, lo, labelled, trailing)
				if !ok {
					continue
				}
				md.RankRangeMin = intPtr(floor)
				md.recordRule(FieldRankRange, rule.name)
				return span, true
			}

			hiHash, hi := title[loc[6]:loc[7]], title[loc[8]:loc[9]]
			hashed := loHash != "" || hiHash != ""
			if !rule.accept(lo, hi, hashed) || numericDateTail.MatchString(title[loc[1]:]) {
				continue
			}
			lower, upper, ok := rankBounds(loHash, lo, hiHash, hi, labelled)
			if !ok {
				continue
			}
			md.RankRangeMin = intPtr(lower)
			md.RankRangeMax = intPtr(upper)
			md.recordRule(FieldRankRange, rule.name)
			return span, true
		}
	}
	return rankSpan{}, false
}

// rankValue converts one open-ended bound. Unmarked years are skipped, and so are
// small bare numbers followed by more words ("16+ players"), which count players
// or ages rather than ranks.
func rankValue(hash, token string, labelled, trailing bool) (int, bool) {
	n, ok := ConvertRankToNumber(token)
	if !ok || n < minRank || n > maxRank {
		return 0, false
	}
	if labelled || isRankMarked(hash, token) {
		return n, true
	}
	if isYearLike(n) || n < 100 && !trailing {
		return 0, false
	}
	return n, true
}

// rankBounds converts a closed range. A "Rank"/"BWS" label, a # or a k/comma
// token marks it as a rank; unmarked ranges that look like years or small
// counts are skipped.
func rankBounds(loHash, lo, hiHash, hi string, labelled bool) (int, int, bool) {
	lower, ok := ConvertRankToNumber(lo)
	if !ok {
		return 0, 0, false
	}
	upper, ok := ConvertRankToNumber(hi)
	if !ok {
		return 0, 0, false
	}
	if lower < minRank || upper < minRank || lower > maxRank || upper > maxRank {
		return 0, 0, false
	}

	marked := labelled || isRankMarked(loHash, lo) || isRankMarked(hiHash, hi)
	if !marked {
		if isYearLike(lower) && (isYearLike(upper) || upper < 100) || isYearLike(upper) && lower < 100 {
			return 0, 0, false
		}
		if lower < 100 && upper < 100 {
			return 0, 0, false
		}
	}

	if lower > upper {
		lower, upper = upper, lower
	}
	return lower, upper, true
}

func isRankMarked(hash, token string) bool {
	return hash != "" || strings.ContainsAny(token, "kK,")
}

func isYearLike(n int) bool {
	return n >= 1990 && n <= 2100
}

var (
	htmlTagPattern     = regexp.MustCompile(`<[^>]*>`)
	statusBracket      = regexp.MustCompile(`(?i)^\s*[\[(]\s*(?:open(?:ed)?|closed?|ongoing|ended|finished|full|postponed|cancell?ed|(?:player\s+)?(?:reg(?:istration)?s?\.?)\s*(?:are\s+)?(?:open(?:ed)?|closed?|ended|soon))\s*[\])]\s*`)
	leadingRankLabel   = regexp.MustCompile(`(?i)^\s*rank\s*[:=]?\s*#?` + rankToken + `(?:` + rankSeparator + `#?` + rankToken + `|\s*\+|\s*~)?\s*`)
	leadingRankToken   = regexp.MustCompile(`^\s*#?` + rankToken + `(?:` + rankSeparator + `#?` + rankToken + `|\s*\+|\s*~)?\s*`)
	bracketGroup       = regexp.MustCompile(`\[[^\[\]]*\]|\([^()]*\)|【[^【】]*】`)
	trailingTeamToken  = regexp.MustCompile(`(?i)[\s\-–|:,/]*\b(?:\d{1,2}\s*v(?:s\.?)?\s*\d{1,2}|TS\s*\d{1,2}(?:\s*[-~]\s*\d{1,2})?|team\s*size\s*\d{1,2})\s*$`)
	trailingBang       = regexp.MustCompile(`\s*!+\s*$`)
	trailingAnnotation = regexp.MustCompile(`\s*(?:：|:\s).*$`)
	trailingRank       = regexp.MustCompile(`[\s\-–|:,/]*(?:#?` + rankToken + rankSeparator + `#?` + rankToken + `|#?` + rankToken + `\s*\+)\s*$`)
	trailingTag        = regexp.MustCompile(`(?i)[\s\-–|:,/]*(?:\brank\s*#?` + rankToken + `\S*|\b(?:no[\s-]*)?bws|\bopen[\s-]*rank)\s*$`)
	trailingRankLabel  = regexp.MustCompile(`(?i)[\s\-–|:,/]*\brank\s*[:=]?\s*$`)
	edgeNoise          = regexp.MustCompile(`^[\s\-–|:~,/]+|[\s\-–|:~,/]+$`)
	whitespaceRun      = regexp.MustCompile(`\s+`)
)

const minTitleLength = 3

// cleanTitle strips forum noise from a topic title, leaving the tournament name.
// hasRank tells whether a rank range was read from the title, which makes a
// leading numeric token safe to drop.
func cleanTitle(title string, hasRank bool) (string, bool) {
	s := htmlTagPattern.ReplaceAllString(title, " ")

	// Only a mode bracket in the leading run of bracket groups is a mode tag.
	if loc := modeBracketPattern.FindStringIndex(s); loc != nil && strings.TrimSpace(bracketGroup.ReplaceAllString(s[:loc[0]], "")) == "" {
		s = s[:loc[0]] + " " + s[loc[1]:]
	}
	s = statusBracket.ReplaceAllString(s, "")
	if hasRank {
		s = leadingRankLabel.ReplaceAllString(s, "")
		if m := leadingRankToken.FindString(s); strings.ContainsAny(m, "kK,#-~–+") {
			s = s[len(m):]
		}
	}

	s = replaceUntilStable(bracketGroup, s, " ")
	s = replaceUntilStable(trailingTeamToken, s, "")

	if i := strings.Index(s, "|"); i >= 0 {
		s = s[:i]
	}

	s = trailingBang.ReplaceAllString(s, "")
	s = trailingAnnotation.ReplaceAllString(s, "")
	if hasRank {
		s = replaceUntilStable(trailingRank, s, "")
		s = trailingRankLabel.ReplaceAllString(s, "")
	}
	s = replaceUntilStable(trailingTag, s, "")
	s = trailingBang.ReplaceAllString(s, "")
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = edgeNoise.ReplaceAllString(s, "")
	s = stripUnsafe(s)

	if utf8.RuneCountInString(s) < minTitleLength {
		return "", false
	}
	return s, true
}

// defaultGameMode falls back to STD when neither the title nor the body named a mode.
func defaultGameMode(md *Metadata) {
	if md.GameMode == "" {
		md.GameMode = GameModeStandard
		md.recordRule(FieldGameMode, "default")
	}
}

func replaceUntilStable(re *regexp.Regexp, s, repl string) string {
	for {
		next := re.ReplaceAllString(s, repl)
		if next == s {
			return s
		}
		s = next
	}
}

// parseTitle runs every title chain in order and then applies the defaults that
// hosts leave implicit: STD mode and a solo bracket.
func parseTitle(title string, md *Metadata) (rankSpan, bool) {
	runTitleRules(gameModeRules, FieldGameMode, title, md)
	runTitleRules(teamVSRules, FieldTeamVS, title, md)
	runTitleRules(teamSizeRules, FieldTeamSize, title, md)
	span, hasRank := parseRankRange(title, md)
	runTitleRules(bwsRules, FieldIsBWS, title, md)

	defaultGameMode(md)
	switch {
	case md.TeamVS == nil && md.TeamSize == nil:
		md.TeamVS = intPtr(1)
		md.TeamSize = intPtr(1)
		md.recordRule(FieldTeamVS, "default")
		md.recordRule(FieldTeamSize, "default")
	case md.TeamVS != nil && *md.TeamVS == 1 && md.TeamSize == nil:
		md.TeamSize = intPtr(1)
		md.recordRule(FieldTeamSize, "solo")
	}

	if cleaned, ok := cleanTitle(title, hasRank); ok {
		md.Title = stringPtr(cleaned)
		md.recordRule(FieldTitle, "topic_title")
	}
	return span, hasRank
}
