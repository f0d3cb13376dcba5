package utilities

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/core"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/params"
	"github.com/CodeMonkeyCybersecurity/pantest/pkg/types"
)

// commonPasswords is the built-in wordlist, tried before any file.
var commonPasswords = []string{
	"password", "123456", "12345678", "123456789", "qwerty", "abc123",
	"admin", "hello", "secret", "letmein", "welcome", "monkey", "dragon",
	"iloveyou", "football", "baseball", "master", "sunshine", "princess",
	"password1", "111111", "000000", "1234", "12345", "root", "toor",
	"changeme", "test", "guest", "passw0rd", "admin123", "qwerty123",
}

type CrackTool struct {
	core.Base
	env *core.Env
}

type crackParams struct {
	Hash      string `param:"hash"`
	Algorithm string `param:"algorithm"`
	File      string `param:"file"`
}

func NewCrack(env *core.Env) core.Tool {
	env = core.Ensure(env)
	return &CrackTool{
		Base: core.NewBase(types.ToolMetadata{
			Name:        "Hash Cracker",
			Category:    types.CategoryCrypto,
			Description: "Dictionary attack on an unsalted digest with the built-in or a supplied wordlist",
			Usage:       "pantest run hash-cracker --hash 5d41402abc4b2a76b9719d911017c592 [--algorithm md5] [--file words.txt]",
			Tags:        []string{"crypto", "hash", "cracker", "wordlist"},
		}, env.Log()),
		env: env,
	}
}

// candidates returns the algorithms whose digest has the shape of h: a
// signed decimal for mmh3, otherwise hex of the algorithm's size.
func candidates(h string) []algorithm {
	if _, err := strconv.ParseInt(h, 10, 32); err == nil && len(h) < 16 {
		a, _ := findAlgorithm("mmh3")
		return []algorithm{a}
	}
	if _, err := hex.DecodeString(h); err != nil {
		return nil
	}
	var out []algorithm
	for _, a := range algorithms {
		if a.name != "mmh3" && a.new().Size()*2 == len(h) {
			out = append(out, a)
		}
	}
	return out
}

func (t *CrackTool) parse(p params.Params) (crackParams, []algorithm, error) {
	var cp crackParams
	if err := params.Require(p, "hash"); err != nil {
		return cp, nil, err
	}
	if err := params.Decode(p, &cp); err != nil {
		return cp, nil, err
	}
	cp.Hash = strings.ToLower(strings.TrimSpace(cp.Hash))
	algs := candidates(cp.Hash)
	if len(algs) == 0 {
		return cp, nil, types.NewError(types.KindValidation, "unrecognised digest %q", cp.Hash)
	}
	if cp.Algorithm != "" {
		a, ok := findAlgorithm(cp.Algorithm)
		if !ok {
			return cp, nil, types.NewError(types.KindValidation, "unsupported algorithm %q, must be one of %s",
				cp.Algorithm, strings.Join(algorithmNames(), ", "))
		}
		if !hasAlgorithm(algs, a.name) {
			return cp, nil, types.NewError(types.KindValidation, "digest does not look like %s", a.name)
		}
		algs = []algorithm{a}
	}
	if cp.File != "" {
		if _, err := os.Stat(cp.File); err != nil {
			return cp, nil, types.NewError(types.KindValidation, "wordlist %s not readable", cp.File)
		}
	}
	return cp, algs, nil
}

func hasAlgorithm(algs []algorithm, name string) bool {
	for _, a := range algs {
		if a.name == name {
			return true
		}
	}
	return false
}

func (t *CrackTool) Validate(p params.Params) bool {
	return t.Check(func() error { _, _, err := t.parse(p); return err })
}

func (t *CrackTool) Run(ctx context.Context, p params.Params) types.Record {
	t.Begin()
	cp, algs, err := t.parse(p)
	if err != nil {
		return t.Fail(err)
	}

	words := append([]string(nil), commonPasswords...)
	if cp.File != "" {
		extra, err := loadWords(cp.File)
		if err != nil {
			return t.Fail(types.Wrap(types.KindTool, err, "reading wordlist %s", cp.File))
		}
		words = append(words, extra...)
	}

	names := make([]string, len(algs))
	for i, a := range algs {
		names[i] = a.name
	}
	t.Log().Infow("Cracking digest", "algorithms", names, "words", len(words))

	tried := 0
	for _, w := range words {
		if ctx.Err() != nil {
			t.AddWarning("cracking interrupted")
			break
		}
		tried++
		for _, a := range algs {
			h := a.new()
			h.Write([]byte(w))
			if digest(h) != cp.Hash {
				continue
			}
			t.AddResult(types.Record{"algorithm": a.name, "plaintext": w})
			t.AddSuccess(fmt.Sprintf("cracked %s digest after %d words", a.name, tried))
			t.AddRecommendation("Store passwords with a salted slow hash such as bcrypt, scrypt or Argon2")
			return types.Record{
				"hash":      cp.Hash,
				"status":    "cracked",
				"algorithm": a.name,
				"result":    w,
				"tried":     tried,
			}
		}
	}

	return types.Record{
		"hash":       cp.Hash,
		"status":     "not found",
		"candidates": names,
		"tried":      tried,
	}
}

// loadWords reads one candidate per line, skipping blanks and # comments.
func loadWords(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var words []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		w := strings.TrimRight(sc.Text(), "\r")
		if w != "" && !strings.HasPrefix(w, "#") {
			words = append(words, w)
		}
	}
	return words, sc.Err()
}
