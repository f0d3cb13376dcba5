package network

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"math"
	"net"
	"strconv"
	"time"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/core"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/params"
	"github.com/CodeMonkeyCybersecurity/pantest/pkg/types"
)

var tlsVersions = map[uint16]string{
	tls.VersionTLS10: "TLSv1.0",
	tls.VersionTLS11: "TLSv1.1",
	tls.VersionTLS12: "TLSv1.2",
	tls.VersionTLS13: "TLSv1.3",
}

type SSLCheckTool struct {
	core.Base
	env *core.Env
	// roots verifies the chain; nil means the system pool.
	roots *x509.CertPool
}

type sslParams struct {
	Host string `param:"host"`
	Port int    `param:"port"`
}

func NewSSLCheck(env *core.Env) core.Tool {
	env = core.Ensure(env)
	return &SSLCheckTool{
		Base: core.NewBase(types.ToolMetadata{
			Name:        "SSL/TLS Checker",
			Category:    types.CategoryNetwork,
			Description: "Inspects a server's TLS handshake and certificate chain",
			Usage:       "pantest run ssl-check --host example.com [--port 443]",
			Tags:        []string{"network", "ssl", "tls", "certificate"},
		}, env.Log()),
		env: env,
	}
}

func (t *SSLCheckTool) parse(p params.Params) (sslParams, error) {
	sp := sslParams{Port: 443}
	if err := params.Require(p, "host"); err != nil {
		return sp, err
	}
	if err := params.Decode(p, &sp); err != nil {
		return sp, err
	}
	if err := params.MustBeHost("host", sp.Host); err != nil {
		return sp, err
	}
	if !params.IsPort(sp.Port) {
		return sp, types.NewError(types.KindValidation, "port must be between 1 and 65535")
	}
	return sp, nil
}

func (t *SSLCheckTool) Validate(p params.Params) bool {
	return t.Check(func() error { _, err := t.parse(p); return err })
}

func (t *SSLCheckTool) Run(ctx context.Context, p params.Params) types.Record {
	t.Begin()
	sp, err := t.parse(p)
	if err != nil {
		return t.Fail(err)
	}

	addr := net.JoinHostPort(sp.Host, strconv.Itoa(sp.Port))
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: t.env.Timeout()},
		Config: &tls.Config{
			ServerName:         sp.Host,
			InsecureSkipVerify: true, // #nosec G402 -- the chain is verified below so invalid certificates can still be reported
		},
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return t.Fail(types.Wrap(types.KindTool, err, "TLS handshake with %s failed", addr))
	}
	defer conn.Close()

	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return t.Fail(types.NewError(types.KindTool, "%s presented no certificate", addr))
	}
	leaf := state.PeerCertificates[0]

	now := t.env.Clock()
	daysLeft := int(math.Floor(leaf.NotAfter.Sub(now).Hours() / 24))
	result := types.Record{
		"host":            sp.Host,
		"port":            sp.Port,
		"ssl_version":     versionName(state.Version),
		"cipher_suite":    tls.CipherSuiteName(state.CipherSuite),
		"subject":         nameRecord(leaf.Subject.CommonName, leaf.Subject.Organization, leaf.Subject.Country),
		"issuer":          nameRecord(leaf.Issuer.CommonName, leaf.Issuer.Organization, leaf.Issuer.Country),
		"not_before":      types.Timestamp(leaf.NotBefore),
		"not_after":       types.Timestamp(leaf.NotAfter),
		"expires_in_days": daysLeft,
		"is_expired":      now.After(leaf.NotAfter),
		"alt_names":       altNames(leaf),
		"serial_number":   leaf.SerialNumber.String(),
		"chain_length":    len(state.PeerCertificates),
		"self_signed":     leaf.Issuer.String() == leaf.Subject.String(),
	}

	verifyErr := t.verify(sp.Host, state.PeerCertificates, now)
	result["chain_valid"] = verifyErr == nil
	if verifyErr != nil {
		result["verification_error"] = verifyErr.Error()
		t.AddWarning("certificate verification failed: " + verifyErr.Error())
	}
	if daysLeft < 30 && daysLeft >= 0 {
		t.AddWarning("certificate expires in " + strconv.Itoa(daysLeft) + " days")
		t.AddRecommendation("Renew the certificate before it expires")
	}
	if state.Version < tls.VersionTLS12 {
		t.AddRecommendation("Disable TLS versions older than 1.2")
	}

	t.AddResult(result)
	return types.Record{
		"host":            sp.Host,
		"ssl_version":     result["ssl_version"],
		"expires_in_days": daysLeft,
		"chain_valid":     verifyErr == nil,
	}
}

func (t *SSLCheckTool) verify(host string, chain []*x509.Certificate, now time.Time) error {
	inter := x509.NewCertPool()
	for _, c := range chain[1:] {
		inter.AddCert(c)
	}
	_, err := chain[0].Verify(x509.VerifyOptions{
		DNSName:       host,
		Roots:         t.roots,
		Intermediates: inter,
		CurrentTime:   now,
	})
	return err
}

func versionName(v uint16) string {
	if name, ok := tlsVersions[v]; ok {
		return name
	}
	return "unknown"
}

func nameRecord(cn string, org, country []string) types.Record {
	first := func(s []string) string {
		if len(s) == 0 {
			return ""
		}
		return s[0]
	}
	return types.Record{"commonName": cn, "organizationName": first(org), "countryName": first(country)}
}

func altNames(c *x509.Certificate) []string {
	names := append([]string{}, c.DNSNames...)
	for _, ip := range c.IPAddresses {
		names = append(names, ip.String())
	}
	return names
}
