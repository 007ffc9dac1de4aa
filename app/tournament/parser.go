package tournament

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jonboulle/clockwork"
)

// HostLookup resolves a forum user ID to a display name. Implementations apply
// their own timeout, pacing and retry policy.
type HostLookup interface {
	LookupUsername(ctx context.Context, userID int) (string, error)
}

// Parser turns a forum topic into tournament metadata. It holds no per-call
// state and is safe for concurrent use.
type Parser struct {
	lookup HostLookup
	clock  clockwork.Clock
}

// NewParser accepts a nil lookup, in which case host names are never resolved.
func NewParser(lookup HostLookup, clock clockwork.Clock) *Parser {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Parser{
		lookup: lookup,
		clock:  clock,
	}
}

// Run extracts metadata from a topic body and title. Only ErrInputTooLarge is
// ever returned; every other problem leaves the affected field empty.
func (p *Parser) Run(ctx context.Context, body, title string, authorID *int) (*Metadata, error) {
	if err := checkLength("body", body); err != nil {
		return nil, err
	}
	if err := checkLength("title", title); err != nil {
		return nil, err
	}

	body = sanitize(body)
	title = sanitize(title)
	now := p.clock.Now().UTC()

	md := &Metadata{}
	tr := parseTrace{title: title, body: body}

	if strings.TrimSpace(title) != "" {
		tr.rank, tr.hasRank = parseTitle(title, md)
	}
	parseContent(body, now, md)
	defaultGameMode(md)

	if authorID != nil && p.lookup != nil {
		md.HostName = p.resolveHost(ctx, *authorID)
	}

	scoreConfidence(md, tr)
	return md, nil
}

func (p *Parser) resolveHost(ctx context.Context, authorID int) *string {
	name, err := p.lookup.LookupUsername(ctx, authorID)
	if err != nil {
		slog.Debug("Host lookup failed", "author_id", authorID, "error", err)
		return nil
	}
	name = strings.TrimSpace(sanitize(name))
	if name == "" {
		return nil
	}
	return &name
}

// ExtractURLIDs returns the external-service IDs linked from a topic body. It
// is a sibling of Run and shares its length ceiling.
func (p *Parser) ExtractURLIDs(body string) (URLIDs, error) {
	if err := checkLength("body", body); err != nil {
		return nil, err
	}
	return ExtractAllURLIDs(sanitize(body)), nil
}
