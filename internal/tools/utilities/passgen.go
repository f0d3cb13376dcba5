package utilities

import (
	"context"
	"crypto/rand"
	"math"
	"math/big"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/core"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/params"
	"github.com/CodeMonkeyCybersecurity/pantest/pkg/types"
)

const (
	letters     = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digits      = "0123456789"
	punctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"
)

type PassgenTool struct {
	core.Base
}

type passgenParams struct {
	Length  int   `param:"length"`
	Count   int   `param:"count"`
	Symbols *bool `param:"symbols"`
}

func NewPassgen(env *core.Env) core.Tool {
	env = core.Ensure(env)
	return &PassgenTool{
		Base: core.NewBase(types.ToolMetadata{
			Name:        "Password Generator",
			Category:    types.CategoryUtilities,
			Description: "Generates random passwords from a cryptographic source",
			Usage:       "pantest run passgen --length 16 --count 5 [--symbols=false]",
			Tags:        []string{"utilities", "password", "generator"},
		}, env.Log()),
	}
}

func (t *PassgenTool) parse(p params.Params) (passgenParams, error) {
	pp := passgenParams{Length: 16, Count: 1}
	if err := params.Decode(p, &pp); err != nil {
		return pp, err
	}
	if pp.Length < 4 || pp.Length > 256 {
		return pp, types.NewError(types.KindValidation, "length must be between 4 and 256")
	}
	if pp.Count < 1 || pp.Count > 100 {
		return pp, types.NewError(types.KindValidation, "count must be between 1 and 100")
	}
	return pp, nil
}

func (t *PassgenTool) Validate(p params.Params) bool {
	return t.Check(func() error { _, err := t.parse(p); return err })
}

func (t *PassgenTool) Run(ctx context.Context, p params.Params) types.Record {
	t.Begin()
	pp, err := t.parse(p)
	if err != nil {
		return t.Fail(err)
	}

	symbols := pp.Symbols == nil || *pp.Symbols
	charset := letters + digits
	if symbols {
		charset += punctuation
	}

	passwords := make([]string, 0, pp.Count)
	for i := 0; i < pp.Count; i++ {
		pw, err := randomString(charset, pp.Length)
		if err != nil {
			return t.Fail(types.Wrap(types.KindTool, err, "password generation failed"))
		}
		passwords = append(passwords, pw)
	}

	entropy := math.Round(float64(pp.Length)*math.Log2(float64(len(charset)))*100) / 100
	t.AddResult(types.Record{
		"passwords":    passwords,
		"length":       pp.Length,
		"count":        pp.Count,
		"symbols":      symbols,
		"entropy_bits": entropy,
	})
	return types.Record{"count": pp.Count, "length": pp.Length, "entropy_bits": entropy}
}

func randomString(charset string, n int) (string, error) {
	limit := big.NewInt(int64(len(charset)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		out[i] = charset[idx.Int64()]
	}
	return string(out), nil
}
