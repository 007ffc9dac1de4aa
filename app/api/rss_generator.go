package api

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"html"
	"path"
	"strings"
	"time"

	"github.com/lysyi3m/tourney-comb/app/database"
)

type Generator struct {
	selfLink string
	version  string
}

// NewGenerator builds an RSS generator. An empty baseURL falls back to localhost on port.
func NewGenerator(baseURL, port, version string) *Generator {
	selfLink := fmt.Sprintf("http://localhost:%s/feeds/tournaments", port)
	if baseURL != "" {
		selfLink = strings.TrimSuffix(baseURL, "/") + "/feeds/tournaments"
	}

	return &Generator{selfLink: selfLink, version: version}
}

func (g *Generator) Run(tournaments []database.Tournament) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", "Tournament announcements", 4)
	g.writeElement(&buf, "link", g.selfLink, 4)
	g.writeElement(&buf, "description", "Tournaments parsed from forum announcements", 4)

	buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
		html.EscapeString(g.selfLink)))

	lastBuildDate := time.Now().In(time.Local)
	if len(tournaments) > 0 {
		lastBuildDate = publishedAt(tournaments[0])
	}

	g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("Tourney-Comb/%s", g.version), 4)

	for _, t := range tournaments {
		g.writeItem(&buf, t)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, t database.Tournament) {
	md := t.Metadata

	buf.WriteString("    <item>\n")

	buf.WriteString("      <guid isPermaLink=\"false\">")
	xml.EscapeText(buf, []byte(t.ID))
	buf.WriteString("</guid>\n")

	title := "Untitled tournament"
	if md.Title != nil {
		title = *md.Title
	}
	g.writeElement(buf, "title", title, 6)
	g.writeElement(buf, "link", t.TopicLink, 6)
	g.writeElement(buf, "description", summary(t), 6)
	g.writeElement(buf, "pubDate", publishedAt(t).Format(time.RFC1123Z), 6)

	if md.HostName != nil {
		g.writeElement(buf, "author", *md.HostName, 6)
	}
	if md.GameMode != "" {
		g.writeElement(buf, "category", string(md.GameMode), 6)
	}
	if md.IsBadged {
		g.writeElement(buf, "category", "badged", 6)
	}

	if md.BannerURL != nil {
		buf.WriteString(fmt.Sprintf("      <enclosure url=\"%s\" length=\"0\" type=\"%s\" />\n",
			html.EscapeString(*md.BannerURL),
			imageType(*md.BannerURL)))
	}

	buf.WriteString("    </item>\n")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

func publishedAt(t database.Tournament) time.Time {
	if t.PostedAt != nil {
		return *t.PostedAt
	}
	return t.CreatedAt
}

// summary renders the headline facts of a tournament as one line.
func summary(t database.Tournament) string {
	md := t.Metadata
	var parts []string

	if md.GameMode != "" {
		parts = append(parts, string(md.GameMode))
	}
	if md.TeamVS != nil && md.TeamSize != nil {
		parts = append(parts, fmt.Sprintf("%dv%d (team size %d)", *md.TeamVS, *md.TeamVS, *md.TeamSize))
	}
	if rank := rankRange(md.RankRangeMin, md.RankRangeMax); rank != "" {
		parts = append(parts, "rank "+rank)
	}
	if md.IsBWS {
		parts = append(parts, "BWS")
	}
	if md.IsBadged {
		parts = append(parts, "badged")
	}
	if md.RegistrationCloseDate != nil {
		parts = append(parts, "registration closes "+md.RegistrationCloseDate.String())
	}

	return strings.Join(parts, " | ")
}

func rankRange(lo, hi *int) string {
	switch {
	case lo != nil && hi != nil:
		return fmt.Sprintf("#%d-#%d", *lo, *hi)
	case lo != nil:
		return fmt.Sprintf("#%d+", *lo)
	case hi != nil:
		return fmt.Sprintf("up to #%d", *hi)
	}
	return ""
}

func imageType(url string) string {
	switch strings.ToLower(path.Ext(url)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/png"
	}
}
