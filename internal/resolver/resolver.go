// Package resolver issues DNS queries for the lookup tools.
package resolver

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// FallbackServers are tried when no server is configured and the system
// resolver configuration cannot be read.
var FallbackServers = []string{"8.8.8.8:53", "1.1.1.1:53"}

// RecordTypes lists the types Lookup understands, in display order.
var RecordTypes = []string{"A", "AAAA", "MX", "NS", "TXT", "CNAME", "SOA"}

type Resolver struct {
	servers []string
	client  *dns.Client
}

// New returns a resolver that queries server, or the system resolvers when
// server is empty.
func New(server string, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	servers := systemServers()
	if server != "" {
		if _, _, err := net.SplitHostPort(server); err != nil {
			server = net.JoinHostPort(server, "53")
		}
		servers = []string{server}
	}
	return &Resolver{
		servers: servers,
		client:  &dns.Client{Timeout: timeout},
	}
}

func systemServers() []string {
	conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(conf.Servers) == 0 {
		return FallbackServers
	}
	out := make([]string, 0, len(conf.Servers))
	for _, s := range conf.Servers {
		out = append(out, net.JoinHostPort(s, conf.Port))
	}
	return out
}

// Record is one answer in presentation form.
type Record struct {
	Type  string `json:"type"`
	Value string `json:"value"`
	TTL   uint32 `json:"ttl"`
}

// Query asks for one record type, trying each server until one answers.
func (r *Resolver) Query(ctx context.Context, name, recordType string) ([]Record, error) {
	qtype, ok := dns.StringToType[strings.ToUpper(recordType)]
	if !ok {
		return nil, fmt.Errorf("unsupported record type %q", recordType)
	}

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), qtype)
	m.RecursionDesired = true

	var lastErr error
	for _, server := range r.servers {
		in, _, err := r.client.ExchangeContext(ctx, m, server)
		if err != nil {
			lastErr = err
			continue
		}
		if in.Rcode == dns.RcodeNameError {
			return nil, nil
		}
		if in.Rcode != dns.RcodeSuccess {
			lastErr = fmt.Errorf("%s query for %s: %s", recordType, name, dns.RcodeToString[in.Rcode])
			continue
		}
		return convert(in.Answer, qtype), nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no DNS servers configured")
	}
	return nil, lastErr
}

func convert(answers []dns.RR, qtype uint16) []Record {
	var out []Record
	for _, ans := range answers {
		rec := Record{TTL: ans.Header().Ttl}
		switch v := ans.(type) {
		case *dns.A:
			rec.Type, rec.Value = "A", v.A.String()
		case *dns.AAAA:
			rec.Type, rec.Value = "AAAA", v.AAAA.String()
		case *dns.MX:
			rec.Type, rec.Value = "MX", fmt.Sprintf("%d %s", v.Preference, strings.TrimSuffix(v.Mx, "."))
		case *dns.NS:
			rec.Type, rec.Value = "NS", strings.TrimSuffix(v.Ns, ".")
		case *dns.TXT:
			rec.Type, rec.Value = "TXT", strings.Join(v.Txt, "")
		case *dns.CNAME:
			rec.Type, rec.Value = "CNAME", strings.TrimSuffix(v.Target, ".")
		case *dns.PTR:
			rec.Type, rec.Value = "PTR", strings.TrimSuffix(v.Ptr, ".")
		case *dns.SOA:
			rec.Type = "SOA"
			rec.Value = fmt.Sprintf("%s %s %d", strings.TrimSuffix(v.Ns, "."), strings.TrimSuffix(v.Mbox, "."), v.Serial)
		default:
			continue
		}
		// CNAME chains are reported alongside A/AAAA answers.
		if ans.Header().Rrtype != qtype && rec.Type != "CNAME" {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// Addresses resolves A and AAAA records and reports any CNAME target.
func (r *Resolver) Addresses(ctx context.Context, name string) (ips []string, cname string, err error) {
	for _, t := range []string{"A", "AAAA"} {
		recs, qerr := r.Query(ctx, name, t)
		if qerr != nil {
			err = qerr
			continue
		}
		for _, rec := range recs {
			if rec.Type == "CNAME" {
				cname = rec.Value
				continue
			}
			ips = append(ips, rec.Value)
		}
	}
	if len(ips) > 0 || cname != "" {
		err = nil
	}
	return ips, cname, err
}

// TXT returns the TXT strings published at name.
func (r *Resolver) TXT(ctx context.Context, name string) ([]string, error) {
	recs, err := r.Query(ctx, name, "TXT")
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(recs))
	for _, rec := range recs {
		if rec.Type == "TXT" {
			out = append(out, rec.Value)
		}
	}
	return out, nil
}

// Reverse returns the PTR names for ip.
func (r *Resolver) Reverse(ctx context.Context, ip string) ([]string, error) {
	arpa, err := dns.ReverseAddr(ip)
	if err != nil {
		return nil, err
	}
	recs, err := r.Query(ctx, arpa, "PTR")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, rec := range recs {
		names = append(names, rec.Value)
	}
	return names, nil
}
