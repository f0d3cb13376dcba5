package phishing

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/cache"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/core"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/params"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/resolver"
	"github.com/CodeMonkeyCybersecurity/pantest/pkg/types"
)

var spoofedBrands = []string{"paypal", "amazon", "apple", "google", "microsoft", "bank", "netflix", "facebook"}

var freeProviders = map[string]bool{
	"gmail.com":   true,
	"yahoo.com":   true,
	"hotmail.com": true,
	"outlook.com": true,
	"aol.com":     true,
}

// roleWords mark a local part that poses as an organisation mailbox.
var roleWords = []string{"support", "admin", "account", "billing", "noreply", "security", "service"}

var urgencyKeywords = []string{
	"urgent", "immediate", "verify now", "confirm", "action required",
	"activate", "validate", "click here", "limited time", "act now",
	"expire", "suspended", "locked", "compromised", "unauthorized",
}

var sensitiveKeywords = []string{
	"verify", "confirm", "password", "credit card", "ssn", "bank",
	"personal information", "update payment", "reactivate", "update account",
}

var emailRecommendations = map[types.Band][]string{
	types.BandHigh: {
		"This email is likely phishing",
		"Do not click any links or open attachments",
		"Report the message to your email provider",
		"Verify by contacting the organisation through a known channel",
	},
	types.BandMedium: {
		"This email has suspicious characteristics",
		"Verify the sender address carefully",
		"Hover over links to see the real destination",
		"Go to the website directly instead of following links",
	},
	types.BandLow: {
		"Email appears legitimate",
		"Still be cautious with personal information",
		"Verify links before clicking",
	},
}

type EmailPhishingTool struct {
	core.Base
	env *core.Env
}

type emailParams struct {
	Email   string `param:"email"`
	Subject string `param:"subject"`
}

func NewEmailPhishing(env *core.Env) core.Tool {
	env = core.Ensure(env)
	return &EmailPhishingTool{
		Base: core.NewBase(types.ToolMetadata{
			Name:        "Email Phishing Detector",
			Category:    types.CategoryPhishing,
			Version:     "2.0.0",
			Description: "Detects phishing emails from the sender address, subject line and sender domain DNS",
			Usage:       "pantest run email-phishing --email sender@example.com --subject 'Verify Account'",
			Tags:        []string{"phishing", "email", "spf", "dmarc"},
			RiskLevel:   types.RiskLow,
		}, env.Log()),
		env: env,
	}
}

func (t *EmailPhishingTool) parse(p params.Params) (emailParams, error) {
	var ep emailParams
	if err := params.Decode(p, &ep); err != nil {
		return ep, err
	}
	ep.Email = strings.TrimSpace(ep.Email)
	if ep.Email == "" && strings.TrimSpace(ep.Subject) == "" {
		return ep, types.NewError(types.KindValidation, "email address or subject is required")
	}
	return ep, nil
}

func (t *EmailPhishingTool) Validate(p params.Params) bool {
	return t.Check(func() error { _, err := t.parse(p); return err })
}

// senderDomain returns the lowercased part after the last "@".
func senderDomain(email string) string {
	i := strings.LastIndex(email, "@")
	if i < 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSuffix(email[i+1:], "."))
}

// mimickedBrand returns the brand a domain borrows without being the
// brand's own domain.
func mimickedBrand(domain string) string {
	for _, brand := range spoofedBrands {
		if !strings.Contains(domain, brand) {
			continue
		}
		if domain == brand+".com" || strings.HasSuffix(domain, "."+brand+".com") ||
			domain == brand+".co.uk" || strings.HasSuffix(domain, "."+brand+".co.uk") {
			continue
		}
		return brand
	}
	return ""
}

func containsAny(s string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(s, w) {
			n++
		}
	}
	return n
}

func scoreSender(email string, s *types.Score) types.Record {
	out := types.Record{"sender": email}
	valid := params.IsEmail(email)
	s.Add("invalid_format", 0.4, !valid, email)
	domain := senderDomain(email)
	if domain == "" {
		return out
	}
	out["domain"] = domain

	brand := mimickedBrand(domain)
	s.Add("domain_spoofing", 0.35, brand != "", brand)

	local := strings.ToLower(email[:strings.LastIndex(email, "@")])
	free := freeProviders[registrableDomain(domain)]
	s.Add("free_provider_impersonation", 0.25, free && containsAny(local, roleWords) > 0, local)
	s.Add("punycode_domain", 0.2, strings.Contains(domain, "xn--"), domain)
	out["free_provider"] = free
	return out
}

func scoreSubject(subject string, s *types.Score) types.Record {
	lower := strings.ToLower(subject)
	urgency := containsAny(lower, urgencyKeywords)
	sensitive := containsAny(lower, sensitiveKeywords)
	s.Add("urgency_indicators", 0.2, urgency > 0, fmt.Sprintf("%d keywords", urgency))
	s.Add("sensitive_requests", 0.3, sensitive > 0, fmt.Sprintf("%d keywords", sensitive))

	upper, total := 0, 0
	for _, r := range subject {
		total++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	ratio := 0.0
	if total > 0 {
		ratio = float64(upper) / float64(total)
	}
	s.Add("unusual_capitalization", 0.1, ratio > 0.3, fmt.Sprintf("%.2f uppercase", ratio))

	return types.Record{
		"subject":            subject,
		"urgency_keywords":   urgency,
		"sensitive_keywords": sensitive,
		"uppercase_ratio":    ratio,
	}
}

// mailDNS holds what the sender domain publishes for mail authentication.
type mailDNS struct {
	MX    []string `json:"mx"`
	SPF   string   `json:"spf"`
	DMARC string   `json:"dmarc"`
}

func (t *EmailPhishingTool) lookupMailDNS(ctx context.Context, domain string) (mailDNS, error) {
	var md mailDNS
	err := t.env.Cache.GetOrFetch(cache.Key("maildns", domain), &md, func() (interface{}, error) {
		r := resolver.New(t.env.Endpoints.DNSServer, t.env.Timeout())
		var out mailDNS
		mx, err := r.Query(ctx, domain, "MX")
		if err != nil {
			return nil, err
		}
		for _, rec := range mx {
			if rec.Type == "MX" {
				out.MX = append(out.MX, rec.Value)
			}
		}
		txt, err := r.TXT(ctx, domain)
		if err != nil {
			return nil, err
		}
		for _, v := range txt {
			if strings.HasPrefix(strings.ToLower(v), "v=spf1") {
				out.SPF = v
				break
			}
		}
		dmarc, err := r.TXT(ctx, "_dmarc."+domain)
		if err != nil {
			return nil, err
		}
		for _, v := range dmarc {
			if strings.HasPrefix(strings.ToUpper(v), "V=DMARC1") {
				out.DMARC = v
				break
			}
		}
		return out, nil
	})
	return md, err
}

// scoreMailDNS adds the sender domain authentication checks.
func scoreMailDNS(md mailDNS, s *types.Score) {
	s.Add("no_mx_records", 0.15, len(md.MX) == 0, strings.Join(md.MX, ", "))
	s.Add("missing_spf", 0.1, md.SPF == "", md.SPF)
	permissive := strings.HasSuffix(md.SPF, "+all") || strings.HasSuffix(md.SPF, "?all")
	s.Add("permissive_spf", 0.1, permissive, md.SPF)
	s.Add("missing_dmarc", 0.1, md.DMARC == "", md.DMARC)
}

func (t *EmailPhishingTool) Run(ctx context.Context, p params.Params) types.Record {
	t.Begin()
	ep, err := t.parse(p)
	if err != nil {
		return t.Fail(err)
	}

	var score types.Score
	summary := types.Record{}

	if ep.Email != "" {
		sender := scoreSender(ep.Email, &score)
		summary["sender"] = ep.Email
		if params.IsEmail(ep.Email) {
			domain := senderDomain(ep.Email)
			md, err := t.lookupMailDNS(ctx, domain)
			if err != nil {
				t.AddWarning(fmt.Sprintf("DNS lookup for %s failed: %v", domain, err))
				score.Note("mail_dns", "lookup failed")
			} else {
				scoreMailDNS(md, &score)
				sender["mx"] = md.MX
				sender["spf"] = md.SPF
				sender["dmarc"] = md.DMARC
			}
		}
		t.AddResult(sender)
	}
	if ep.Subject != "" {
		t.AddResult(scoreSubject(ep.Subject, &score))
		summary["subject"] = ep.Subject
	}

	checks := score.Checks()
	a := types.Assess(&score, types.PhishingVerdicts, emailRecommendations)
	for _, r := range a.Recommendations {
		t.AddRecommendation(r)
	}
	if a.Verdict != types.VerdictLegitimate {
		t.Log().Warnw("Phishing indicators found", "sender", ep.Email, "score", a.RiskScore, "verdict", a.Verdict)
	}
	t.AddSuccess(fmt.Sprintf("email scored %.2f (%s)", a.RiskScore, a.Verdict))
	summary["checks"] = checks
	return a.Apply(summary)
}
