package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/netip"
	"regexp"
	"time"

	"github.com/dnsdrift/dnsdrift/metrics"
)

// ErrNoIPAvailable indicates every configured IP echo service failed.
var ErrNoIPAvailable = errors.New("no external IP available from any service")

// Resolver reports the machine's current external IPv4 address.
type Resolver interface {
	Resolve(ctx context.Context) (netip.Addr, error)
}

// maxBodySize caps how much of an echo service response is read. The
// address is expected within the first few bytes.
const maxBodySize = 64 << 10

var ipv4Pattern = regexp.MustCompile(`(?:\d{1,3}\.){3}\d{1,3}`)

type webResolver struct {
	services []string
	timeout  time.Duration
	http     *http.Client
	metrics  *metrics.Metrics
}

// NewWeb constructs a resolver that queries each service URL in order and
// returns the first IPv4 address found in a response body. The address may
// be embedded in surrounding text. There is no per-service retry; the retry
// policy is the next service in the list.
func NewWeb(services []string, timeout time.Duration, m *metrics.Metrics) Resolver {
	return &webResolver{
		services: services,
		timeout:  timeout,
		http:     &http.Client{},
		metrics:  m,
	}
}

func (r *webResolver) Resolve(ctx context.Context) (netip.Addr, error) {
	if len(r.services) == 0 {
		return netip.Addr{}, ErrNoIPAvailable
	}

	var errs []error
	for _, service := range r.services {
		addr, err := r.lookup(ctx, service)
		if err != nil {
			r.metrics.IncResolverRequest(service, false)
			slog.Warn("IP service failed, trying next", "service", service, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", service, err))
			continue
		}
		r.metrics.IncResolverRequest(service, true)
		slog.Info("Resolved external IP", "service", service, "ip", addr)
		return addr, nil
	}
	return netip.Addr{}, fmt.Errorf("%w: %w", ErrNoIPAvailable, errors.Join(errs...))
}

func (r *webResolver) lookup(ctx context.Context, service string) (netip.Addr, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, service, nil)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := r.http.Do(req)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return netip.Addr{}, fmt.Errorf("http request returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("read response body: %w", err)
	}

	return extractIPv4(string(body))
}

// extractIPv4 returns the first token in body that parses as an IPv4
// address. Dotted-quad shaped tokens that fail to parse (e.g. 999.1.1.1)
// are skipped.
func extractIPv4(body string) (netip.Addr, error) {
	for _, candidate := range ipv4Pattern.FindAllString(body, -1) {
		addr, err := netip.ParseAddr(candidate)
		if err != nil {
			continue
		}
		if addr.Is4() {
			return addr, nil
		}
	}
	return netip.Addr{}, errors.New("no IPv4 address in response body")
}

// Static is a resolver that always returns a fixed address.
type Static netip.Addr

func (s Static) Resolve(context.Context) (netip.Addr, error) {
	addr := netip.Addr(s)
	if !addr.IsValid() {
		return netip.Addr{}, errors.New("static resolver has no address")
	}
	return addr, nil
}

// FromString constructs a Static resolver from a textual IPv4 address.
func FromString(s string) (Resolver, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return nil, fmt.Errorf("parse IP address: %w", err)
	}
	if !addr.Is4() {
		return nil, fmt.Errorf("address %s is not IPv4", addr)
	}
	return Static(addr), nil
}
