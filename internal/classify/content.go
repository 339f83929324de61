package classify

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/shelfmark/linkward/internal/domain/linkcheck"
	"github.com/shelfmark/linkward/internal/fetch"
)

// DefaultSoft404Patterns match pages that return 200 while telling the
// reader the content is gone. Heuristic configuration data, not a contract.
var DefaultSoft404Patterns = []string{
	"page not found",
	"404 not found",
	"content not found",
	"this page doesn't exist",
	"this page does not exist",
	"no longer available",
	"has been removed",
	"has been deleted",
	"video is unavailable",
	"video unavailable",
	"this post was deleted",
	"account suspended",
	"nothing was found",
	"couldn't find this page",
	"could not find this page",
}

// DefaultLoginPatterns match pages that serve a login wall instead of the
// saved content.
var DefaultLoginPatterns = []string{
	"sign in required",
	"log in to continue",
	"login to continue",
	"log in to view",
	"login required",
	"please sign in",
	"please log in",
	"members only",
	"you must be logged in",
	"create an account to",
	"subscribe to continue",
}

var defaultAuthPathRe = regexp.MustCompile(`(?i)/(login|signin|sign-in|auth|accounts/login|session/new)([/?#]|$)`)

// Diagnostics carries the classifier's extra findings alongside the status.
type Diagnostics struct {
	SoftNotFound   bool
	MatchedPattern string
}

// ContentClassifier turns a raw fetch outcome into a link status. Pure:
// same outcome in, same classification out.
type ContentClassifier struct {
	soft404    []string
	login      []string
	authPathRe *regexp.Regexp
}

type ContentConfig struct {
	Soft404Patterns []string
	LoginPatterns   []string
}

func NewContentClassifier(cfg ContentConfig) *ContentClassifier {
	c := &ContentClassifier{
		soft404:    cfg.Soft404Patterns,
		login:      cfg.LoginPatterns,
		authPathRe: defaultAuthPathRe,
	}
	if len(c.soft404) == 0 {
		c.soft404 = DefaultSoft404Patterns
	}
	if len(c.login) == 0 {
		c.login = DefaultLoginPatterns
	}
	// The haystack is lower-cased, so the patterns must be too.
	c.soft404 = lowerAll(c.soft404)
	c.login = lowerAll(c.login)
	return c
}

func lowerAll(patterns []string) []string {
	out := make([]string, len(patterns))
	for i, p := range patterns {
		out[i] = strings.ToLower(p)
	}
	return out
}

func (c *ContentClassifier) Classify(o fetch.Outcome) (linkcheck.Status, Diagnostics) {
	var d Diagnostics

	if !o.Responded() {
		return linkcheck.Status(o.ErrKind), d
	}

	switch {
	case o.StatusCode >= 400:
		return linkcheck.StatusBroken, d
	case o.StatusCode >= 300:
		// The client follows redirects, so a 3xx final hop means the chain
		// ended without a usable Location. Kept as a defensive branch.
		return linkcheck.StatusRedirect, d
	}

	text, title := visibleText(o.BodySample)
	haystack := title + " " + text

	if pat := matchAny(haystack, c.soft404); pat != "" {
		d.SoftNotFound = true
		d.MatchedPattern = pat
		return linkcheck.StatusOK, d
	}

	if pat := matchAny(haystack, c.login); pat != "" {
		d.MatchedPattern = pat
		return linkcheck.StatusLoginRequired, d
	}
	if o.Redirected && c.authPathRe.MatchString(o.FinalURL) {
		return linkcheck.StatusLoginRequired, d
	}

	return linkcheck.StatusOK, d
}

func matchAny(haystack string, patterns []string) string {
	for _, p := range patterns {
		if strings.Contains(haystack, p) {
			return p
		}
	}
	return ""
}

// visibleText strips markup from an HTML sample so phrase matching sees what
// a reader would. Falls back to the raw sample when parsing fails.
func visibleText(sample string) (text, title string) {
	if sample == "" {
		return "", ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(sample))
	if err != nil {
		return strings.ToLower(sample), ""
	}
	doc.Find("script, style, noscript").Remove()
	title = strings.ToLower(strings.TrimSpace(doc.Find("title").First().Text()))
	text = strings.ToLower(doc.Text())
	return text, title
}
