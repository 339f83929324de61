package fetch

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrKind labels the transport failure class of an attempt that never
// produced an HTTP response.
const (
	ErrKindTimeout    = "timeout"
	ErrKindDNS        = "dns_error"
	ErrKindSSL        = "ssl_error"
	ErrKindConnection = "connection_error"
	ErrKindUnknown    = "unknown"
)

// Outcome is the raw result of one fetch attempt. Exactly one of
// StatusCode>0 or ErrKind!="" holds.
type Outcome struct {
	URL           string
	StatusCode    int
	FinalURL      string
	Redirected    bool
	ContentType   string
	ContentLength int64
	BodySample    string
	Elapsed       time.Duration
	ErrKind       string
	ErrMsg        string
}

// Responded reports whether an HTTP response was actually received.
func (o Outcome) Responded() bool { return o.ErrKind == "" }

type Config struct {
	Timeout         time.Duration
	UserAgent       string
	Accept          string
	BodySampleLimit int64
}

type Fetcher struct {
	client *http.Client
	cfg    Config
}

func New(client *http.Client, cfg Config) *Fetcher {
	if cfg.BodySampleLimit <= 0 {
		cfg.BodySampleLimit = 64 << 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Fetcher{client: client, cfg: cfg}
}

// Do issues exactly one GET, following redirects, bounded by the configured
// timeout. Transport failures are mapped into the outcome, never returned.
func (f *Fetcher) Do(ctx context.Context, rawURL string) Outcome {
	out := Outcome{URL: rawURL}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		out.ErrKind = ErrKindUnknown
		out.ErrMsg = err.Error()
		return out
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	if f.cfg.Accept != "" {
		req.Header.Set("Accept", f.cfg.Accept)
	}
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	start := time.Now()
	resp, err := f.client.Do(req)
	out.Elapsed = time.Since(start)

	if err != nil {
		out.ErrKind, out.ErrMsg = mapTransportError(err)
		return out
	}
	defer resp.Body.Close()

	out.StatusCode = resp.StatusCode
	out.ContentType = resp.Header.Get("Content-Type")
	out.ContentLength = resp.ContentLength

	final := resp.Request.URL.String()
	if final != rawURL {
		out.FinalURL = final
		out.Redirected = true
	}

	if isHTML(out.ContentType) && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		sample, rerr := io.ReadAll(io.LimitReader(resp.Body, f.cfg.BodySampleLimit))
		if rerr == nil {
			out.BodySample = string(sample)
		}
	} else {
		// Drain a little so keep-alive connections can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
	}
	return out
}

func isHTML(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}

func mapTransportError(err error) (kind, msg string) {
	msg = err.Error()

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrKindTimeout, "request timed out"
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ErrKindTimeout, "request timed out"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrKindDNS, dnsErr.Error()
	}

	var certErr *tls.CertificateVerificationError
	var recErr tls.RecordHeaderError
	var unkAuth x509.UnknownAuthorityError
	var hostErr x509.HostnameError
	var invErr x509.CertificateInvalidError
	if errors.As(err, &certErr) || errors.As(err, &recErr) ||
		errors.As(err, &unkAuth) || errors.As(err, &hostErr) || errors.As(err, &invErr) {
		return ErrKindSSL, msg
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrKindConnection, opErr.Error()
	}
	var uerr *url.Error
	if errors.As(err, &uerr) {
		if strings.Contains(strings.ToLower(uerr.Err.Error()), "connection") {
			return ErrKindConnection, uerr.Err.Error()
		}
	}

	return ErrKindUnknown, msg
}
