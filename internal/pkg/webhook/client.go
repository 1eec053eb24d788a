// Package webhook builds claim-scoped notification payloads and delivers them
// to subscriber callbacks over HTTP POST.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"

	"github.com/gigfolio/gigfolio/internal/pkg/env"
)

// ErrInvalidTarget marks a webhook URL that must never be attempted: not an
// absolute http(s) URI, or resolving to a loopback/internal address. These
// are local configuration errors; redelivery cannot help.
type ErrInvalidTarget struct {
	URL    string
	Reason string
}

func (e *ErrInvalidTarget) Error() string {
	return fmt.Sprintf("invalid webhook target %q: %s", e.URL, e.Reason)
}

// DeliveryError is a transient delivery failure: network error or non-2xx
// response. Retryable with backoff.
type DeliveryError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("webhook delivery to %s failed: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("webhook delivery to %s failed with status %d", e.URL, e.StatusCode)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

var allowedSchemes = []string{"http", "https"}

// blockedNetworks are address ranges a webhook target must never resolve to.
// The safeurl dialer re-checks resolved addresses, covering DNS rebinding.
var blockedNetworks []net.IPNet

func init() {
	cidrs := []string{
		"10.0.0.0/8",     // private (RFC 1918)
		"172.16.0.0/12",  // private (RFC 1918)
		"192.168.0.0/16", // private (RFC 1918)
		"127.0.0.0/8",    // loopback
		"169.254.0.0/16", // link-local, includes cloud metadata
		"0.0.0.0/8",      // current network
		"::1/128",        // IPv6 loopback
		"fe80::/10",      // IPv6 link-local
		"fc00::/7",       // IPv6 unique local
	}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		blockedNetworks = append(blockedNetworks, *network)
	}
}

var blockedHostnames = []string{"localhost", "localhost.localdomain"}

// ValidateTargetURL statically checks a webhook URL before any attempt:
// absolute http(s) URI, non-empty host, and no loopback/internal target.
// DNS-resolution-time enforcement happens in the safeurl dialer.
func ValidateTargetURL(rawURL string) error {
	if rawURL == "" {
		return &ErrInvalidTarget{URL: rawURL, Reason: "empty URL"}
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return &ErrInvalidTarget{URL: rawURL, Reason: fmt.Sprintf("unparseable: %v", err)}
	}
	if !parsed.IsAbs() {
		return &ErrInvalidTarget{URL: rawURL, Reason: "not an absolute URI"}
	}

	scheme := strings.ToLower(parsed.Scheme)
	schemeOK := false
	for _, allowed := range allowedSchemes {
		if scheme == allowed {
			schemeOK = true
			break
		}
	}
	if !schemeOK {
		return &ErrInvalidTarget{URL: rawURL, Reason: fmt.Sprintf("disallowed scheme %q", scheme)}
	}

	host := parsed.Hostname()
	if host == "" {
		return &ErrInvalidTarget{URL: rawURL, Reason: "empty host"}
	}

	if ip := net.ParseIP(host); ip != nil {
		for _, network := range blockedNetworks {
			if network.Contains(ip) {
				return &ErrInvalidTarget{URL: rawURL, Reason: fmt.Sprintf("blocked address %s", ip)}
			}
		}
		return nil
	}

	for _, blocked := range blockedHostnames {
		if strings.EqualFold(host, blocked) {
			return &ErrInvalidTarget{URL: rawURL, Reason: fmt.Sprintf("blocked host %q", host)}
		}
	}

	return nil
}

// Client delivers webhook payloads through an SSRF-guarded HTTP client.
type Client struct {
	http *http.Client
}

// NewClient builds a delivery client. The safeurl transport blocks requests
// whose resolved address lands in a private, loopback, link-local or metadata
// range, so a hostname pointing at an internal address fails at dial time.
func NewClient() *Client {
	timeout := time.Duration(env.GetEnvInt("WEBHOOK_TIMEOUT_SECONDS", 30)) * time.Second

	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	return &Client{http: safeurl.Client(config).Client}
}

// Deliver POSTs the payload to the target URL. Any 2xx status counts as
// delivered. Returns *ErrInvalidTarget for targets that must not be retried
// and *DeliveryError for transient failures.
func (c *Client) Deliver(ctx context.Context, targetURL string, payload *Payload) error {
	if err := ValidateTargetURL(targetURL); err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(body))
	if err != nil {
		return &ErrInvalidTarget{URL: targetURL, Reason: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// The safeurl dialer rejects targets resolving to blocked ranges.
		if strings.Contains(err.Error(), "ip is not allowed") {
			return &ErrInvalidTarget{URL: targetURL, Reason: err.Error()}
		}
		return &DeliveryError{URL: targetURL, Err: err}
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &DeliveryError{URL: targetURL, StatusCode: resp.StatusCode}
	}

	return nil
}
