package tournament

import (
	"net/url"
	"regexp"
	"strings"
)

const (
	minURLLength = 10
	maxURLLength = 2048
)

var (
	urlScanPattern = regexp.MustCompile(`(?i)https?://[^\s<>"'{}\\\[\]` + "`" + `]+`)

	forbiddenURLSchemes = []string{"javascript:", "data:", "vbscript:", "file:"}
)

const forbiddenURLChars = "<>\"'{}\\\r\n"

// urlServiceRule separates the loose identification pattern from the patterns
// that capture an ID, and from the shape the captured ID must satisfy.
type urlServiceRule struct {
	service  URLService
	identify *regexp.Regexp
	extract  []*regexp.Regexp
	idShape  *regexp.Regexp
	maxLen   int
	reserved map[string]bool
}

var urlServiceRules = []urlServiceRule{
	{
		service:  ServiceGoogleSheets,
		identify: regexp.MustCompile(`(?i)docs\.google\.com/spreadsheets/`),
		extract: []*regexp.Regexp{
			regexp.MustCompile(`/spreadsheets/(?:u/\d+/)?d/([A-Za-z0-9_-]+)`),
		},
		idShape: regexp.MustCompile(`^[A-Za-z0-9_-]{25,}$`),
		maxLen:  100,
	},
	{
		service:  ServiceGoogleForms,
		identify: regexp.MustCompile(`(?i)docs\.google\.com/forms/|forms\.gle/`),
		extract: []*regexp.Regexp{
			regexp.MustCompile(`/forms/(?:u/\d+/)?d/e/([A-Za-z0-9_-]+)`),
			regexp.MustCompile(`/forms/(?:u/\d+/)?d/([A-Za-z0-9_-]+)`),
			regexp.MustCompile(`(?i)forms\.gle/([A-Za-z0-9_-]+)`),
		},
		idShape: regexp.MustCompile(`^[A-Za-z0-9_-]{10,}$`),
		maxLen:  100,
	},
	{
		service:  ServiceChallonge,
		identify: regexp.MustCompile(`(?i)(?:^|[/.])challonge\.com/`),
		extract: []*regexp.Regexp{
			regexp.MustCompile(`(?i)challonge\.com/(?:[a-z]{2}/)?(?:tournaments/)?([A-Za-z0-9_-]+)`),
		},
		idShape: regexp.MustCompile(`^[A-Za-z0-9_-]{3,}$`),
		maxLen:  60,
		reserved: map[string]bool{
			"tournaments": true, "users": true, "settings": true, "communities": true,
			"search": true, "login": true, "signup": true,
		},
	},
	{
		service:  ServiceYouTube,
		identify: regexp.MustCompile(`(?i)(?:youtube\.com|youtu\.be)/`),
		extract: []*regexp.Regexp{
			regexp.MustCompile(`[?&]v=([A-Za-z0-9_-]{11})(?:[^A-Za-z0-9_-]|$)`),
			regexp.MustCompile(`(?i)youtu\.be/([A-Za-z0-9_-]{11})(?:[^A-Za-z0-9_-]|$)`),
			regexp.MustCompile(`/(?:embed|live|shorts)/([A-Za-z0-9_-]{11})(?:[^A-Za-z0-9_-]|$)`),
		},
		idShape: regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`),
		maxLen:  11,
	},
	{
		service:  ServiceTwitch,
		identify: regexp.MustCompile(`(?i)twitch\.tv/`),
		extract: []*regexp.Regexp{
			regexp.MustCompile(`(?i)twitch\.tv/videos/(\d{8,12})(?:[^\d]|$)`),
			regexp.MustCompile(`(?i)twitch\.tv/([A-Za-z0-9_]{4,25})(?:[/?#]|$)`),
		},
		idShape: regexp.MustCompile(`^(?:[A-Za-z0-9_]{4,25}|\d{8,12})$`),
		maxLen:  25,
		reserved: map[string]bool{
			"videos": true, "directory": true, "settings": true, "search": true, "downloads": true,
		},
	},
}

// IsSafeURL is the gate every URL passes before any ID is extracted from it.
func IsSafeURL(raw string) bool {
	if len(raw) < minURLLength || len(raw) > maxURLLength {
		return false
	}
	if strings.ContainsAny(raw, forbiddenURLChars) {
		return false
	}
	lower := strings.ToLower(raw)
	for _, scheme := range forbiddenURLSchemes {
		if strings.Contains(lower, scheme) {
			return false
		}
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// ExtractURLID returns the validated ID for one service, or false when the URL
// is not that service's, is unsafe, or carries a malformed ID.
func ExtractURLID(raw string, service URLService) (string, bool) {
	if !IsSafeURL(raw) {
		return "", false
	}
	for _, rule := range urlServiceRules {
		if rule.service == service {
			return rule.run(raw)
		}
	}
	return "", false
}

func (r urlServiceRule) run(raw string) (string, bool) {
	if !r.identify.MatchString(raw) {
		return "", false
	}
	for _, re := range r.extract {
		m := re.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		id := m[1]
		if len(id) > r.maxLen || !r.idShape.MatchString(id) || r.reserved[strings.ToLower(id)] {
			continue
		}
		return id, true
	}
	return "", false
}

// ExtractAllURLIDs scans free text for http(s) URLs and keeps the first valid ID
// found for each supported service.
func ExtractAllURLIDs(content string) URLIDs {
	ids := make(URLIDs)
	for _, raw := range scanURLs(content) {
		if !IsSafeURL(raw) {
			continue
		}
		for _, rule := range urlServiceRules {
			id, ok := rule.run(raw)
			if !ok {
				continue
			}
			if _, seen := ids[rule.service]; !seen {
				ids[rule.service] = id
			}
			break
		}
	}
	return ids
}

func scanURLs(content string) []string {
	var urls []string
	seen := make(map[string]bool)
	for _, match := range urlScanPattern.FindAllString(content, -1) {
		match = strings.TrimRight(match, ".,;:!?)")
		if match == "" || seen[match] {
			continue
		}
		seen[match] = true
		urls = append(urls, match)
	}
	return urls
}
