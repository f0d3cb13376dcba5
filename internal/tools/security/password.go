package security

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/core"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/params"
	"github.com/CodeMonkeyCybersecurity/pantest/pkg/types"
)

const specialChars = `!@#$%^&*(),.?":{}|<>`

var strengthLabels = []string{"Very Weak", "Weak", "Moderate", "Strong", "Very Strong"}

// Strength is the outcome of scoring one password.
type Strength struct {
	Score       int      `json:"score"`
	Label       string   `json:"strength"`
	Feedback    []string `json:"feedback"`
	Length      int      `json:"length"`
	EntropyBits float64  `json:"entropy_bits"`
}

// Rate scores pw from 0 to 4: one point each for at least 8 characters,
// mixed case, a digit and a special character.
func Rate(pw string) Strength {
	var lower, upper, digit, special, other bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(specialChars, r):
			special = true
		default:
			other = true
		}
	}

	s := Strength{Feedback: []string{}, Length: len([]rune(pw))}
	if s.Length >= 8 {
		s.Score++
	} else {
		s.Feedback = append(s.Feedback, "Too short (at least 8 characters)")
	}
	if lower && upper {
		s.Score++
	} else {
		s.Feedback = append(s.Feedback, "Mix upper and lower case letters")
	}
	if digit {
		s.Score++
	} else {
		s.Feedback = append(s.Feedback, "Add numbers")
	}
	if special {
		s.Score++
	} else {
		s.Feedback = append(s.Feedback, "Add special characters")
	}
	s.Label = strengthLabels[s.Score]

	pool := 0
	for _, c := range []struct {
		present bool
		size    int
	}{{lower, 26}, {upper, 26}, {digit, 10}, {special, len(specialChars)}, {other, 32}} {
		if c.present {
			pool += c.size
		}
	}
	if pool > 0 {
		s.EntropyBits = math.Round(float64(s.Length)*math.Log2(float64(pool))*100) / 100
	}
	return s
}

type PasswordTool struct {
	core.Base
	env *core.Env
}

type passwordParams struct {
	Text     string `param:"text"`
	Password string `param:"password"`
}

func NewPassword(env *core.Env) core.Tool {
	env = core.Ensure(env)
	return &PasswordTool{
		Base: core.NewBase(types.ToolMetadata{
			Name:        "Password Strength Analyzer",
			Category:    types.CategorySecurity,
			Description: "Scores password strength on length, character classes and estimated entropy",
			Usage:       "pantest run pass-strength --text 'P@ssw0rd123'",
			Tags:        []string{"security", "password", "audit"},
			RiskLevel:   types.RiskLow,
		}, env.Log()),
		env: env,
	}
}

func (t *PasswordTool) parse(p params.Params) (string, error) {
	var pp passwordParams
	if err := params.Decode(p, &pp); err != nil {
		return "", err
	}
	pw := pp.Text
	if pw == "" {
		pw = pp.Password
	}
	if pw == "" {
		return "", types.NewError(types.KindValidation, "password is required (pass it with --text)")
	}
	return pw, nil
}

func (t *PasswordTool) Validate(p params.Params) bool {
	return t.Check(func() error { _, err := t.parse(p); return err })
}

func (t *PasswordTool) Run(ctx context.Context, p params.Params) types.Record {
	t.Begin()
	pw, err := t.parse(p)
	if err != nil {
		return t.Fail(err)
	}

	s := Rate(pw)
	masked := strings.Repeat("*", s.Length)
	t.AddResult(types.Record{
		"password":     masked,
		"score":        s.Score,
		"max_score":    len(strengthLabels) - 1,
		"strength":     s.Label,
		"feedback":     s.Feedback,
		"length":       s.Length,
		"entropy_bits": s.EntropyBits,
	})
	for _, f := range s.Feedback {
		t.AddRecommendation(f)
	}
	t.AddSuccess("password rated " + s.Label)
	return types.Record{
		"password": masked,
		"score":    s.Score,
		"strength": s.Label,
		"feedback": s.Feedback,
	}
}
