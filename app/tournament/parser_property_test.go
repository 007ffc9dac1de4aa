package tournament

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

var bodyFragments = []string{
	"[b]SR=5.8[/b]", "(6.25*)", "7*", "SR: 4 - 9", "12★", "0.1*", "99*",
	"Qualifiers", "group stage", "Registrations: Aug 1st - Aug 14th",
	"Registrations End: Sep 30 23:59", "Grand Finals: Oct 5", "GF: 2025-10-12",
	"https://discord.gg/abcdef", "[img]https://i.imgur.com/x.png[/img]",
	"[imagemap]\nhttps://i.imgur.com/y.jpg\n[/imagemap]", "<img src=\"https://e.com/z.gif\">",
	"<script>alert(1)</script>", "javascript:", "JaVaScRiPt :", "<img onerror=alert(1)>",
	"unbadged", "badged", "\n", " ", "|", "[", "]", "(", ")", "#", "-", "~",
}

var titleFragments = []string{
	"[STD]", "[osu!mania 7K]", "(CTB)", "[OPEN]", "Cup", "2025", "2v2", "TS2-4", "team size 3",
	"#10,000", "25k", "99.9k", "1,500", "-", "~", "+", "INF", "∞", "|", "BWS", "no BWS",
	"open rank", "!", ":", "：", "<script>", "javascript:", " ",
}

func fragmentString(t *rapid.T, label string, fragments []string) string {
	parts := rapid.SliceOfN(rapid.SampledFrom(fragments), 0, 25).Draw(t, label)
	return strings.Join(parts, " ")
}

func checkInvariants(t *rapid.T, md *Metadata) {
	if md.RankRangeMin != nil && md.RankRangeMax != nil && *md.RankRangeMin > *md.RankRangeMax {
		t.Fatalf("Rank range out of order: %d > %d", *md.RankRangeMin, *md.RankRangeMax)
	}
	for name, v := range map[string]*float64{
		"min":       md.StarRatingMin,
		"max":       md.StarRatingMax,
		"qualifier": md.StarRatingQualifier,
	} {
		if v != nil && (*v < minStarRating || *v > maxStarRating) {
			t.Fatalf("Star rating %s out of bounds: %v", name, *v)
		}
	}
	for field := range md.ExtractionConfidence {
		if md.ExtractionConfidence[field] == ConfidenceFailed {
			t.Fatalf("Extracted field %s scored as failed", field)
		}
	}
}

func TestPropertyParserStructuredInput(t *testing.T) {
	parser := newTestParser(nil)

	rapid.Check(t, func(t *rapid.T) {
		body := fragmentString(t, "body", bodyFragments)
		title := fragmentString(t, "title", titleFragments)

		md, err := parser.Run(context.Background(), body, title, nil)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		checkInvariants(t, md)
	})
}

func TestPropertyParserArbitraryInput(t *testing.T) {
	parser := newTestParser(nil)

	rapid.Check(t, func(t *rapid.T) {
		body := rapid.String().Draw(t, "body")
		title := string(rapid.SliceOfN(rapid.Byte(), 0, 200).Draw(t, "title"))

		md, err := parser.Run(context.Background(), body, title, nil)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		checkInvariants(t, md)
	})
}

func TestPropertyParserIdempotent(t *testing.T) {
	parser := newTestParser(nil)

	rapid.Check(t, func(t *rapid.T) {
		body := fragmentString(t, "body", bodyFragments)
		title := fragmentString(t, "title", titleFragments)

		first, err := parser.Run(context.Background(), body, title, nil)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		second, err := parser.Run(context.Background(), body, title, nil)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		a, _ := json.Marshal(first)
		b, _ := json.Marshal(second)
		if string(a) != string(b) {
			t.Fatalf("Output differs between runs:\n%s\n%s", a, b)
		}
	})
}

func TestPropertyParserSanitizes(t *testing.T) {
	parser := newTestParser(nil)

	rapid.Check(t, func(t *rapid.T) {
		body := fragmentString(t, "body", bodyFragments)
		title := fragmentString(t, "title", titleFragments)

		md, err := parser.Run(context.Background(), body, title, nil)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		var values []string
		for _, v := range []*string{md.Title, md.HostName, md.DiscordLink, md.BannerURL} {
			if v != nil {
				values = append(values, *v)
			}
		}
		for _, rule := range md.ExtractionRules {
			values = append(values, rule)
		}

		for _, v := range values {
			lower := strings.ToLower(v)
			for _, forbidden := range []string{"<script", "javascript:"} {
				if strings.Contains(lower, forbidden) {
					t.Fatalf("Output value %q contains %q", v, forbidden)
				}
			}
		}
	})
}

func TestPropertyParserLengthGuard(t *testing.T) {
	parser := newTestParser(nil)

	rapid.Check(t, func(t *rapid.T) {
		piece := rapid.StringMatching(`[a-z ]{1,8}`).Draw(t, "piece")
		oversized := strings.Repeat(piece, MaxInputLength/len(piece)+1)
		inTitle := rapid.Bool().Draw(t, "inTitle")

		body, title := oversized, "Cup"
		if inTitle {
			body, title = "body", oversized
		}

		md, err := parser.Run(context.Background(), body, title, nil)
		if !errors.Is(err, ErrInputTooLarge) {
			t.Fatalf("Expected ErrInputTooLarge, got %v", err)
		}
		if md != nil {
			t.Fatal("Expected no partial output")
		}
	})
}
