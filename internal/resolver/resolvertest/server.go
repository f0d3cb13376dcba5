// Package resolvertest runs an in-process DNS server for tests.
package resolvertest

import (
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/miekg/dns"
)

// Zone maps "name. TYPE" keys (for example "example.com. A") to answers in
// zone-file syntax. Wildcard names start with "*.".
type Zone map[string][]string

type Server struct {
	Addr string

	mu      sync.Mutex
	zone    Zone
	queries []string
}

// Start serves zone over UDP on a random loopback port until the test ends.
func Start(t testing.TB, zone Zone) *Server {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	s := &Server{Addr: pc.LocalAddr().String(), zone: zone}
	started := make(chan struct{})
	srv := &dns.Server{
		PacketConn:        pc,
		Handler:           dns.HandlerFunc(s.serve),
		NotifyStartedFunc: func() { close(started) },
	}
	go func() { _ = srv.ActivateAndServe() }()
	<-started

	t.Cleanup(func() { _ = srv.Shutdown() })
	return s
}

// Queries returns the names asked for so far.
func (s *Server) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

func (s *Server) serve(w dns.ResponseWriter, req *dns.Msg) {
	m := new(dns.Msg)
	m.SetReply(req)

	q := req.Question[0]
	s.mu.Lock()
	s.queries = append(s.queries, q.Name)
	s.mu.Unlock()

	answers := s.lookup(q.Name, dns.TypeToString[q.Qtype])
	if answers == nil {
		m.Rcode = dns.RcodeNameError
	}
	for _, line := range answers {
		rr, err := dns.NewRR(line)
		if err == nil {
			if strings.HasPrefix(rr.Header().Name, "*.") {
				rr.Header().Name = q.Name
			}
			m.Answer = append(m.Answer, rr)
		}
	}
	_ = w.WriteMsg(m)
}

func (s *Server) lookup(name, qtype string) []string {
	name = strings.ToLower(name)
	if recs, ok := s.zone[name+" "+qtype]; ok {
		return recs
	}
	// A name that exists with other types answers NOERROR with no records.
	for key := range s.zone {
		if strings.HasPrefix(key, name+" ") {
			return []string{}
		}
	}
	if i := strings.Index(name, "."); i > 0 {
		if recs, ok := s.zone["*"+name[i:]+" "+qtype]; ok {
			return recs
		}
	}
	return nil
}
