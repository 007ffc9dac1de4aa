package tournament

import (
	"regexp"
	"strings"
)

// parseTrace carries what the scorer needs beyond the extracted values: the
// sanitized inputs and where in the title the rank range was read.
type parseTrace struct {
	title   string
	body    string
	rank    rankSpan
	hasRank bool
}

var (
	headerLine   = regexp.MustCompile(`(?m)^\s*#{1,6}\s*(.+?)\s*#*\s*$`)
	bbcodeHeader = regexp.MustCompile(`(?is)\[(?:b|heading|size=\d+)\]\s*(.+?)\s*\[/(?:b|heading|size)\]`)
	markdownBold = regexp.MustCompile(`\*\*\s*(.+?)\s*\*\*`)

	rankLabel = regexp.MustCompile(`(?i)(?:rank|bws)[^\w\[\]()]*$`)
)

// scoreConfidence fills ExtractionConfidence for every extracted field. Which
// rule fired is part of the input: a defaulted value never outranks medium.
func scoreConfidence(md *Metadata, tr parseTrace) {
	md.ExtractionConfidence = make(map[Field]Confidence)
	set := func(field Field, c Confidence) {
		md.ExtractionConfidence[field] = c
	}

	if md.Title != nil {
		set(FieldTitle, scoreTitle(*md.Title, tr.body))
	}
	if md.HostName != nil {
		set(FieldHostName, scoreHost(*md.HostName, tr.body))
	}
	if md.RankRangeMin != nil || md.RankRangeMax != nil {
		set(FieldRankRange, scoreRank(tr))
	}

	flat := map[Field]bool{
		FieldTeamVS:                md.TeamVS != nil,
		FieldTeamSize:              md.TeamSize != nil,
		FieldGameMode:              md.GameMode != "",
		FieldDiscordLink:           md.DiscordLink != nil,
		FieldStarRatingMin:         md.StarRatingMin != nil,
		FieldStarRatingMax:         md.StarRatingMax != nil,
		FieldStarRatingQualifier:   md.StarRatingQualifier != nil,
		FieldRegistrationOpenDate:  md.RegistrationOpenDate != nil,
		FieldRegistrationCloseDate: md.RegistrationCloseDate != nil,
		FieldEndDate:               md.EndDate != nil,
		FieldBannerURL:             md.BannerURL != nil,
		FieldIsBWS:                 true,
		FieldIsBadged:              true,
	}
	for field, present := range flat {
		if present {
			set(field, ConfidenceMedium)
		}
	}
}

func scoreTitle(title, body string) Confidence {
	for _, re := range []*regexp.Regexp{headerLine, bbcodeHeader, markdownBold} {
		for _, m := range re.FindAllStringSubmatch(body, -1) {
			if strings.EqualFold(strings.TrimSpace(plainText(m[1])), title) {
				return ConfidenceHigh
			}
		}
	}
	labelled := regexp.MustCompile(`(?i)tournament(?:\s+name)?\s*:\s*` + regexp.QuoteMeta(title))
	if labelled.MatchString(plainText(body)) {
		return ConfidenceMedium
	}
	return ConfidenceLow
}

func scoreHost(host, body string) Confidence {
	text := plainText(body)
	quoted := regexp.QuoteMeta(host)
	if regexp.MustCompile(`(?i)(?:\bhost(?:ed\s+by)?|호스트)\s*[:：]?\s*` + quoted).MatchString(text) {
		return ConfidenceHigh
	}
	if regexp.MustCompile(`(?i)(?:\bstaff|진행)\s*[:：]?\s*` + quoted).MatchString(text) {
		return ConfidenceMedium
	}
	return ConfidenceLow
}

func scoreRank(tr parseTrace) Confidence {
	if !tr.hasRank {
		return ConfidenceLow
	}
	before := tr.title[:tr.rank.start]
	after := tr.title[tr.rank.end:]
	if rankLabel.MatchString(before) {
		return ConfidenceHigh
	}
	trimmedBefore := strings.TrimRight(before, " ")
	trimmedAfter := strings.TrimLeft(after, " ")
	if strings.HasSuffix(trimmedBefore, "[") && strings.HasPrefix(trimmedAfter, "]") ||
		strings.HasSuffix(trimmedBefore, "(") && strings.HasPrefix(trimmedAfter, ")") {
		return ConfidenceMedium
	}
	return ConfidenceLow
}
