package classify

import (
	"net/url"
	"strings"
)

const (
	KindInvalidURL      = "invalid_url"
	KindInvalidProtocol = "invalid_protocol"
	KindNoURL           = "no_url"
)

// URLInfo is the result of inspecting a raw URL before any network attempt.
type URLInfo struct {
	Valid    bool
	Hostname string
	Skip     bool
	// Reason is the error kind when Valid is false.
	Reason string
}

// SkipList holds hostnames that reliably block automated requests. A URL is
// skipped when its hostname equals an entry or is a subdomain of one.
type SkipList struct {
	hosts map[string]struct{}
}

func NewSkipList(hosts []string) *SkipList {
	s := &SkipList{hosts: make(map[string]struct{}, len(hosts))}
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			s.hosts[h] = struct{}{}
		}
	}
	return s
}

func (s *SkipList) Contains(hostname string) bool {
	if s == nil || len(s.hosts) == 0 {
		return false
	}
	hostname = strings.ToLower(hostname)
	if _, ok := s.hosts[hostname]; ok {
		return true
	}
	for entry := range s.hosts {
		if strings.HasSuffix(hostname, "."+entry) {
			return true
		}
	}
	return false
}

// Inspect validates a raw URL and decides whether it may be fetched.
// Pure: no I/O, deterministic.
func (s *SkipList) Inspect(raw string) URLInfo {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return URLInfo{Reason: KindNoURL}
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return URLInfo{Reason: KindInvalidURL}
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return URLInfo{Reason: KindInvalidProtocol}
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return URLInfo{Reason: KindInvalidURL}
	}
	return URLInfo{
		Valid:    true,
		Hostname: host,
		Skip:     s.Contains(host),
	}
}

// DefaultSkipHosts lists destinations known to wall off or block plain GET
// requests, making any check result meaningless.
var DefaultSkipHosts = []string{
	"twitter.com",
	"x.com",
	"instagram.com",
	"facebook.com",
	"linkedin.com",
	"threads.net",
	"tiktok.com",
	"pinterest.com",
	"quora.com",
	"medium.com",
	"t.me",
}
