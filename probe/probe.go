// Package probe checks live DNS answers after a run so the operator can
// see whether the new records have propagated. It is informational only
// and never affects the run's outcome.
package probe

import (
	"context"
	"net/netip"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/dnsdrift/dnsdrift/desired"
)

// Exchanger allows substituting the DNS client in tests.
type Exchanger interface {
	ExchangeContext(ctx context.Context, m *dns.Msg, addr string) (*dns.Msg, time.Duration, error)
}

// Result is the probe outcome for one desired entry.
type Result struct {
	Entry   desired.Entry
	Match   bool
	Answers []string
	Err     error
}

type Prober struct {
	server    string
	exchanger Exchanger
}

// New returns a prober that queries the given DNS server ("host:port").
func New(server string) *Prober {
	return &Prober{
		server:    server,
		exchanger: &dns.Client{Timeout: 5 * time.Second},
	}
}

// Check queries each desired entry's record type and reports whether the
// published answer already carries ip. Address types compare answer data
// to ip; other types only report that an answer exists.
func (p *Prober) Check(ctx context.Context, entries []desired.Entry, ip netip.Addr) []Result {
	want := ip.String()
	results := make([]Result, 0, len(entries))
	for _, entry := range entries {
		result := Result{Entry: entry}

		qtype, ok := dns.StringToType[entry.Type]
		if !ok {
			results = append(results, result)
			continue
		}

		msg := new(dns.Msg)
		msg.SetQuestion(dns.Fqdn(entry.Hostname), qtype)
		msg.RecursionDesired = true

		resp, _, err := p.exchanger.ExchangeContext(ctx, msg, p.server)
		if err != nil {
			result.Err = err
			results = append(results, result)
			continue
		}

		for _, rr := range resp.Answer {
			result.Answers = append(result.Answers, answerData(rr))
		}

		switch entry.Type {
		case "A", "AAAA":
			for _, answer := range result.Answers {
				if answer == want {
					result.Match = true
					break
				}
			}
		default:
			result.Match = len(result.Answers) > 0
		}
		results = append(results, result)
	}
	return results
}

func answerData(rr dns.RR) string {
	switch rr := rr.(type) {
	case *dns.A:
		return rr.A.String()
	case *dns.AAAA:
		return rr.AAAA.String()
	case *dns.CNAME:
		return rr.Target
	case *dns.TXT:
		return strings.Join(rr.Txt, " ")
	case *dns.NS:
		return rr.Ns
	default:
		return rr.String()
	}
}
