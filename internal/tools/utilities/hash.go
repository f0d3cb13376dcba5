// Package utilities holds the encoding, hashing, token and link-generation
// tools.
package utilities

import (
	"context"
	"crypto/md5"  // #nosec G501
	"crypto/sha1" // #nosec G505
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/twmb/murmur3"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/core"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/params"
	"github.com/CodeMonkeyCybersecurity/pantest/pkg/types"
)

type algorithm struct {
	name string
	new  func() hash.Hash
}

func newBlake2b256() hash.Hash {
	h, _ := blake2b.New256(nil)
	return h
}

// murmurHash wraps the 32-bit murmur3 digest so it reports the signed
// decimal form Shodan and mmh3 use.
type murmurHash struct{ hash.Hash32 }

// algorithms lists the supported digests in display order.
var algorithms = []algorithm{
	{"md5", md5.New},
	{"sha1", sha1.New},
	{"sha224", sha256.New224},
	{"sha256", sha256.New},
	{"sha384", sha512.New384},
	{"sha512", sha512.New},
	{"sha3-256", sha3.New256},
	{"blake2b-256", newBlake2b256},
	{"mmh3", func() hash.Hash { return murmurHash{murmur3.New32()} }},
}

func findAlgorithm(name string) (algorithm, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, a := range algorithms {
		if a.name == name {
			return a, true
		}
	}
	return algorithm{}, false
}

func algorithmNames() []string {
	names := make([]string, len(algorithms))
	for i, a := range algorithms {
		names[i] = a.name
	}
	return names
}

func digest(h hash.Hash) string {
	if m, ok := h.(murmurHash); ok {
		return strconv.FormatInt(int64(int32(m.Sum32())), 10)
	}
	return hex.EncodeToString(h.Sum(nil))
}

type HashTool struct {
	core.Base
	env *core.Env
}

type hashParams struct {
	Text          string `param:"text"`
	File          string `param:"file"`
	Algorithm     string `param:"algorithm"`
	AllAlgorithms bool   `param:"all_algorithms"`
}

func NewHash(env *core.Env) core.Tool {
	env = core.Ensure(env)
	return &HashTool{
		Base: core.NewBase(types.ToolMetadata{
			Name:         "Hash Generator",
			Category:     types.CategoryUtilities,
			Description:  "Computes message digests of text or files",
			Usage:        "pantest run hash --text 'hello' --algorithm sha256 [--all-algorithms] [--file PATH]",
			Requirements: []string{},
			Tags:         []string{"utilities", "hash", "crypto"},
		}, env.Log()),
		env: env,
	}
}

func (t *HashTool) parse(p params.Params) (hashParams, error) {
	hp := hashParams{Algorithm: "sha256"}
	if err := params.Decode(p, &hp); err != nil {
		return hp, err
	}
	if hp.Text == "" && hp.File == "" {
		return hp, types.NewError(types.KindValidation, "text or file is required")
	}
	if _, ok := findAlgorithm(hp.Algorithm); !ok {
		return hp, types.NewError(types.KindValidation, "unsupported algorithm %q, must be one of %s",
			hp.Algorithm, strings.Join(algorithmNames(), ", "))
	}
	hp.Algorithm = strings.ToLower(hp.Algorithm)
	return hp, nil
}

func (t *HashTool) Validate(p params.Params) bool {
	return t.Check(func() error { _, err := t.parse(p); return err })
}

func (t *HashTool) Run(ctx context.Context, p params.Params) types.Record {
	t.Begin()
	hp, err := t.parse(p)
	if err != nil {
		return t.Fail(err)
	}

	selected := []algorithm{}
	if hp.AllAlgorithms {
		selected = algorithms
	} else {
		a, _ := findAlgorithm(hp.Algorithm)
		selected = append(selected, a)
	}

	hashers := make([]hash.Hash, len(selected))
	writers := make([]io.Writer, len(selected))
	for i, a := range selected {
		hashers[i] = a.new()
		writers[i] = hashers[i]
	}
	sink := io.MultiWriter(writers...)

	summary := types.Record{}
	if hp.Text != "" {
		if _, err := io.WriteString(sink, hp.Text); err != nil {
			return t.Fail(err)
		}
		summary["input"] = truncate(hp.Text, 50)
	} else {
		if err := hashFile(sink, hp.File); err != nil {
			return t.Fail(err)
		}
		summary["file"] = hp.File
	}

	for i, a := range selected {
		d := digest(hashers[i])
		t.AddResult(types.Record{"algorithm": a.name, "hash": d})
		summary[a.name] = d
	}
	t.Log().Debugw("Hash generated", "algorithms", len(selected))
	return summary
}

func hashFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return types.NewError(types.KindTool, "file not found: %s", path)
		}
		return types.Wrap(types.KindTool, err, "error hashing file")
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return types.Wrap(types.KindTool, err, "error hashing file")
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return fmt.Sprintf("%s...", string(r[:n]))
}
