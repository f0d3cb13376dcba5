package utilities

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/core"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/params"
	"github.com/CodeMonkeyCybersecurity/pantest/pkg/types"
)

// weakSecrets are HMAC keys seen in tutorials and default configs.
var weakSecrets = []string{
	"", "secret", "password", "123456", "changeme", "jwt", "key", "test",
	"admin", "your-256-bit-secret", "secretkey", "secret-key", "jwt-secret",
	"jwtsecret", "mysecret", "supersecret", "default", "qwerty", "token",
}

// sensitiveClaims are payload keys that should never travel in a token
// readable by its holder.
var sensitiveClaims = []string{"password", "passwd", "pwd", "secret", "ssn", "credit_card", "api_key"}

var jwtRecommendations = map[types.Band][]string{
	types.BandHigh: {
		"Reject tokens whose alg is none and pin the accepted algorithms on the verifier",
		"Rotate the signing key to a random value of at least 256 bits",
	},
	types.BandMedium: {
		"Set a short exp on every token",
		"Do not put secrets or personal data in the payload",
	},
	types.BandLow: {
		"Token structure looks sound; keep verifying signatures server-side",
	},
}

type JWTTool struct {
	core.Base
	env *core.Env
}

type jwtParams struct {
	Token string `param:"token"`
	File  string `param:"file"`
}

// decodedJWT is a token split into its parts without verifying it.
type decodedJWT struct {
	token     *jwt.Token
	claims    jwt.MapClaims
	signing   string
	signature []byte
}

func NewJWT(env *core.Env) core.Tool {
	env = core.Ensure(env)
	return &JWTTool{
		Base: core.NewBase(types.ToolMetadata{
			Name:        "JWT Decoder",
			Category:    types.CategoryCrypto,
			Description: "Decodes a JWT and checks it for alg none, weak HMAC secrets and missing expiry",
			Usage:       "pantest run jwt-decoder --token eyJhbGciOi... [--file secrets.txt]",
			Tags:        []string{"crypto", "jwt", "token", "authentication"},
		}, env.Log()),
		env: env,
	}
}

func decodeJWT(raw string) (decodedJWT, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		raw = strings.TrimSpace(raw[7:])
	}
	claims := jwt.MapClaims{}
	tok, parts, err := jwt.NewParser().ParseUnverified(raw, claims)
	if err != nil && !(errors.Is(err, jwt.ErrTokenUnverifiable) && tok != nil) {
		return decodedJWT{}, types.Wrap(types.KindValidation, err, "invalid JWT")
	}
	sig, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[2], "="))
	if err != nil {
		return decodedJWT{}, types.Wrap(types.KindValidation, err, "invalid JWT signature encoding")
	}
	return decodedJWT{
		token:     tok,
		claims:    claims,
		signing:   parts[0] + "." + parts[1],
		signature: sig,
	}, nil
}

func (t *JWTTool) parse(p params.Params) (jwtParams, decodedJWT, error) {
	var jp jwtParams
	if err := params.Require(p, "token"); err != nil {
		return jp, decodedJWT{}, err
	}
	if err := params.Decode(p, &jp); err != nil {
		return jp, decodedJWT{}, err
	}
	d, err := decodeJWT(jp.Token)
	if err != nil {
		return jp, d, err
	}
	if jp.File != "" {
		if _, err := loadWords(jp.File); err != nil {
			return jp, d, types.NewError(types.KindValidation, "wordlist %s not readable", jp.File)
		}
	}
	return jp, d, nil
}

func (t *JWTTool) Validate(p params.Params) bool {
	return t.Check(func() error { _, _, err := t.parse(p); return err })
}

func (t *JWTTool) Run(ctx context.Context, p params.Params) types.Record {
	t.Begin()
	jp, d, err := t.parse(p)
	if err != nil {
		return t.Fail(err)
	}

	alg, _ := d.token.Header["alg"].(string)
	var score types.Score

	score.Add("alg_none", 0.7, strings.EqualFold(alg, "none"), "token is unsigned")
	if d.token.Method == nil {
		t.AddWarning(fmt.Sprintf("unknown signing algorithm %q", alg))
	}

	secret, cracked := "", false
	if hmac, ok := d.token.Method.(*jwt.SigningMethodHMAC); ok {
		keys := append([]string(nil), weakSecrets...)
		if jp.File != "" {
			extra, _ := loadWords(jp.File)
			keys = append(keys, extra...)
		}
		secret, cracked = crackHMAC(ctx, hmac, d, keys)
		detail := fmt.Sprintf("%d secrets tried", len(keys))
		if cracked {
			detail = fmt.Sprintf("signed with %q", secret)
			t.Log().Warnw("JWT secret recovered", "alg", alg)
		}
		score.Add("weak_secret", 0.7, cracked, detail)
	}

	for _, h := range []string{"jku", "x5u"} {
		if v, ok := d.token.Header[h].(string); ok {
			score.Add("header_"+h, 0.2, true, "key fetched from "+v)
		}
	}

	now := t.env.Clock()
	exp, _ := d.claims.GetExpirationTime()
	score.Add("missing_exp", 0.2, exp == nil, "token never expires")
	if exp != nil {
		if exp.Before(now) {
			score.Note("expired", "expired at "+exp.UTC().Format(time.RFC3339))
			t.AddWarning("token expired at " + exp.UTC().Format(time.RFC3339))
		}
		if iat, _ := d.claims.GetIssuedAt(); iat != nil {
			life := exp.Sub(iat.Time)
			score.Add("long_lifetime", 0.1, life > 30*24*time.Hour, "valid for "+life.String())
		}
	}
	if nbf, _ := d.claims.GetNotBefore(); nbf != nil && nbf.After(now) {
		score.Note("not_yet_valid", "valid from "+nbf.UTC().Format(time.RFC3339))
	}

	var leaked []string
	for _, k := range sensitiveClaims {
		if _, ok := d.claims[k]; ok {
			leaked = append(leaked, k)
		}
	}
	score.Add("sensitive_claims", 0.3, len(leaked) > 0, strings.Join(leaked, ", "))

	t.AddResult(types.Record{
		"header":  d.token.Header,
		"payload": map[string]interface{}(d.claims),
		"checks":  score.Checks(),
	})

	a := types.Assess(&score, types.VulnerabilityVerdicts, jwtRecommendations)
	for _, r := range a.Recommendations {
		t.AddRecommendation(r)
	}
	t.AddSuccess(fmt.Sprintf("%s token scored %.2f (%s)", alg, a.RiskScore, a.Verdict))

	summary := types.Record{
		"algorithm": alg,
		"type":      d.token.Header["typ"],
		"expired":   exp != nil && exp.Before(now),
		"cracked":   cracked,
	}
	if exp != nil {
		summary["expires_at"] = exp.UTC().Format(time.RFC3339)
	}
	if cracked {
		summary["secret"] = secret
	}
	return a.Apply(summary)
}

// crackHMAC tries each key against the token signature.
func crackHMAC(ctx context.Context, m *jwt.SigningMethodHMAC, d decodedJWT, keys []string) (string, bool) {
	for _, c := range keys {
		if ctx.Err() != nil {
			return "", false
		}
		if m.Verify(d.signing, d.signature, []byte(c)) == nil {
			return c, true
		}
	}
	return "", false
}
