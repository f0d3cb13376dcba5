// Package tools wires the built-in catalogue into a registry.
package tools

import (
	"github.com/CodeMonkeyCybersecurity/pantest/internal/core"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/tools/clickjacking"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/tools/network"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/tools/osint"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/tools/phishing"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/tools/security"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/tools/utilities"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/tools/web"
)

type builtin struct {
	id   string
	ctor core.Constructor
}

// catalogue is registration order; listings sort by id.
var catalogue = []builtin{
	{"port-scan", network.NewPortScan},
	{"ping", network.NewPing},
	{"dns", network.NewDNS},
	{"whois", network.NewWhois},
	{"ssl-check", network.NewSSLCheck},
	{"traceroute", network.NewTraceroute},
	{"subnet-calc", network.NewSubnet},
	{"ddos-sim", network.NewDDoS},

	{"sql-inject", web.NewSQLInject},
	{"xss-detect", web.NewXSS},
	{"subdomain", web.NewSubdomain},
	{"crawler", web.NewCrawler},

	{"web-phishing", phishing.NewWebPhishing},
	{"email-phishing", phishing.NewEmailPhishing},

	{"clickjacking-check", clickjacking.NewCheck},
	{clickjacking.MakerID, clickjacking.NewMake},
	{"anti-clickjacking", clickjacking.NewDefense},

	{"waf-detect", security.NewWAF},
	{"pass-strength", security.NewPassword},

	{"ip-geo", osint.NewGeo},
	{"dorking", osint.NewDork},

	{"hash-cracker", utilities.NewCrack},
	{"jwt-decoder", utilities.NewJWT},

	{"hash", utilities.NewHash},
	{"encode", utilities.NewEncode},
	{"passgen", utilities.NewPassgen},
	{utilities.ShortenerID, utilities.NewShorten},
	{utilities.MaskerID, utilities.NewMask},
}

// IDs returns every built-in tool id in registration order.
func IDs() []string {
	out := make([]string, len(catalogue))
	for i, b := range catalogue {
		out[i] = b.id
	}
	return out
}

// RegisterDefaults adds the built-in catalogue to reg. It stops at the first
// registration error.
func RegisterDefaults(reg core.Registry) error {
	for _, b := range catalogue {
		if err := reg.Register(b.id, b.ctor); err != nil {
			return err
		}
	}
	return nil
}
