package utilities

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/params"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/tools/tooltest"
	"github.com/CodeMonkeyCybersecurity/pantest/pkg/types"
)

func TestHashSHA256(t *testing.T) {
	tool := NewHash(tooltest.Env(t))
	summary, ok := tooltest.Run(t, tool, params.Params{"text": "test", "algorithm": "sha256"})
	require.True(t, ok)

	results := tool.Results()
	require.Len(t, results, 1)
	assert.Equal(t, "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08", results[0]["hash"])
	assert.Equal(t, "test", summary["input"])
	assert.Empty(t, tool.Errors())
}

func TestHashDigestLengths(t *testing.T) {
	tool := NewHash(tooltest.Env(t))
	_, ok := tooltest.Run(t, tool, params.Params{"text": "abc", "all_algorithms": true})
	require.True(t, ok)

	got := map[string]string{}
	for _, r := range tool.Results() {
		got[r["algorithm"].(string)] = r["hash"].(string)
	}
	require.Len(t, got, len(algorithms))
	assert.Len(t, got["md5"], 32)
	assert.Len(t, got["sha1"], 40)
	assert.Len(t, got["sha256"], 64)
	assert.Len(t, got["sha512"], 128)
	assert.Len(t, got["sha3-256"], 64)
	assert.Len(t, got["blake2b-256"], 64)
	assert.Equal(t, "900150983cd24fb0d6963f7d28e17f72", got["md5"])
}

func TestHashFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.txt")
	require.NoError(t, os.WriteFile(path, []byte("test"), 0644))

	tool := NewHash(tooltest.Env(t))
	summary, ok := tooltest.Run(t, tool, params.Params{"file": path})
	require.True(t, ok)
	assert.Equal(t, path, summary["file"])
	assert.Equal(t, "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08", summary["sha256"])
}

func TestHashRejectsUnknownAlgorithm(t *testing.T) {
	tool := NewHash(tooltest.Env(t))
	_, ok := tooltest.Run(t, tool, params.Params{"text": "x", "algorithm": "crc32"})
	assert.False(t, ok)
	require.Len(t, tool.Errors(), 1)
	assert.Contains(t, tool.Errors()[0], "unsupported algorithm")
}

func TestEncodeURL(t *testing.T) {
	tool := NewEncode(tooltest.Env(t))
	_, ok := tooltest.Run(t, tool, params.Params{"text": "hello world", "operation": "encode"})
	require.True(t, ok)
	require.Len(t, tool.Results(), 1)
	assert.Equal(t, "hello%20world", tool.Results()[0]["output"])
}

func TestEncodeRoundTrips(t *testing.T) {
	inputs := []string{"hello world", "a/b?c=d&e", "naïve ☃", "100%"}
	for _, in := range inputs {
		decoded, err := Unquote(Quote(in))
		require.NoError(t, err)
		assert.Equal(t, in, decoded)
	}

	tool := NewEncode(tooltest.Env(t))
	summary, ok := tooltest.Run(t, tool, params.Params{"text": "aGVsbG8=", "operation": "base64decode"})
	require.True(t, ok)
	assert.Equal(t, "hello", summary["output"])
}

func TestEncodeDoubleAndHTML(t *testing.T) {
	assert.Equal(t, "a%2520b", Quote(Quote("a b")))
	assert.Equal(t, "&#x3c;&#x61;", HTMLEntities("<a"))
}

func TestEncodeRejectsUnknownOperation(t *testing.T) {
	tool := NewEncode(tooltest.Env(t))
	_, ok := tooltest.Run(t, tool, params.Params{"text": "x", "operation": "rot13"})
	assert.False(t, ok)
}

func TestPassgen(t *testing.T) {
	tool := NewPassgen(tooltest.Env(t))
	_, ok := tooltest.Run(t, tool, params.Params{"length": "16", "count": 3})
	require.True(t, ok)

	results := tool.Results()
	require.Len(t, results, 1)
	passwords, ok := results[0]["passwords"].([]string)
	require.True(t, ok)
	require.Len(t, passwords, 3)
	for _, pw := range passwords {
		assert.Len(t, pw, 16)
	}
}

func TestPassgenWithoutSymbols(t *testing.T) {
	tool := NewPassgen(tooltest.Env(t))
	_, ok := tooltest.Run(t, tool, params.Params{"length": 32, "symbols": false})
	require.True(t, ok)
	pw := tool.Results()[0]["passwords"].([]string)[0]
	for _, c := range pw {
		assert.True(t, strings.ContainsRune(letters+digits, c), "unexpected character %q", c)
	}
}

func TestPassgenBounds(t *testing.T) {
	tool := NewPassgen(tooltest.Env(t))
	_, ok := tooltest.Run(t, tool, params.Params{"length": 2})
	assert.False(t, ok)
	_, ok = tooltest.Run(t, tool, params.Params{"count": 1000})
	assert.False(t, ok)
}

func TestShortenCreatesLink(t *testing.T) {
	env := tooltest.Env(t)
	tool := NewShorten(env)
	summary, ok := tooltest.Run(t, tool, params.Params{"url": "https://example.com/page", "alias": "promo_1"})
	require.True(t, ok)
	require.Empty(t, tool.Errors())

	assert.Equal(t, "https://short.test/promo_1", summary["short_url"])
	assert.Equal(t, 1, summary["total_links"])

	store, err := OpenLinkStore(DatabasePath(env.OutputDir()))
	require.NoError(t, err)
	link, found := store.Get("promo_1")
	require.True(t, found)
	assert.Equal(t, "https://example.com/page", link.OriginalURL)
	assert.True(t, link.TrackingEnabled)
	assert.NotEmpty(t, link.TrackingID)
	assert.Equal(t, 0, link.ClickCount)

	assert.FileExists(t, tool.Results()[0]["tracking_page"].(string))
}

func TestShortenRandomCode(t *testing.T) {
	env := tooltest.Env(t)
	tool := NewShorten(env)
	summary, ok := tooltest.Run(t, tool, params.Params{
		"url":      "https://example.com",
		"tracking": false,
		"base_url": "https://go.example/",
	})
	require.True(t, ok)

	alias := summary["alias"].(string)
	assert.Len(t, alias, shortCodeLen)
	assert.Equal(t, "https://go.example/"+alias, summary["short_url"])
	_, hasPage := tool.Results()[0]["tracking_page"]
	assert.False(t, hasPage)
}

func TestShortenAliasRules(t *testing.T) {
	env := tooltest.Env(t)

	tool := NewShorten(env)
	_, ok := tooltest.Run(t, tool, params.Params{"url": "https://example.com", "alias": "ab"})
	assert.False(t, ok)
	assert.Contains(t, tool.Errors()[0], "at least 3")

	_, ok = tooltest.Run(t, tool, params.Params{"url": "https://example.com", "alias": "bad alias!"})
	assert.False(t, ok)

	_, ok = tooltest.Run(t, tool, params.Params{"url": "https://example.com", "alias": "taken"})
	require.True(t, ok)

	again := NewShorten(env)
	_, ok = tooltest.Run(t, again, params.Params{"url": "https://example.org", "alias": "taken"})
	assert.False(t, ok)
	assert.Contains(t, again.Errors()[0], "already exists")
}

func TestShortenRequiresURL(t *testing.T) {
	tool := NewShorten(tooltest.Env(t))
	_, ok := tooltest.Run(t, tool, params.Params{"url": "example.com"})
	assert.False(t, ok)
}

func TestLinkStoreTrackClick(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls.json")
	store, err := OpenLinkStore(path)
	require.NoError(t, err)
	store.Put(&ShortLink{Alias: "abc", OriginalURL: "https://example.com", Clicks: []Click{}})
	require.NoError(t, store.Save())

	assert.True(t, store.TrackClick("abc", Click{Timestamp: "2024-01-01T00:00:00Z", IP: "203.0.113.9"}))
	assert.False(t, store.TrackClick("missing", Click{}))

	reloaded, err := OpenLinkStore(path)
	require.NoError(t, err)
	link, ok := reloaded.Get("abc")
	require.True(t, ok)
	assert.Equal(t, 1, link.ClickCount)
	assert.Equal(t, "203.0.113.9", link.Clicks[0].IP)
}

func TestShortenKeepsCorruptDatabase(t *testing.T) {
	env := tooltest.Env(t)
	path := DatabasePath(env.OutputDir())
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	corrupt := []byte(`{"keepme": {"original_url": "https://example.com", "alias": "keep`)
	require.NoError(t, os.WriteFile(path, corrupt, 0644))

	_, err := OpenLinkStore(path)
	require.Error(t, err)
	assert.Equal(t, types.KindTool, types.KindOf(err))

	tool := NewShorten(env)
	summary, ok := tooltest.Run(t, tool, params.Params{"url": "https://example.org"})
	require.True(t, ok)
	assert.Nil(t, summary)
	require.NotEmpty(t, tool.Errors())
	assert.Contains(t, tool.Errors()[0], "unreadable")

	again := NewShorten(env)
	assert.False(t, again.Validate(params.Params{"url": "https://example.org", "alias": "fresh"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, corrupt, data)
}

func TestOpenLinkStoreMissingFileIsEmpty(t *testing.T) {
	store, err := OpenLinkStore(filepath.Join(t.TempDir(), "none", "urls.json"))
	require.NoError(t, err)
	assert.Zero(t, store.Len())
}

func TestMaskEncoding(t *testing.T) {
	env := tooltest.Env(t)
	tool := NewMask(env)
	_, ok := tooltest.Run(t, tool, params.Params{
		"url":         "https://target.example/login",
		"fake_domain": "accounts.example.com",
		"method":      "encoding",
	})
	require.True(t, ok)
	require.Empty(t, tool.Errors())

	result := tool.Results()[0]
	masked := result["masked_url"].(string)
	assert.True(t, strings.HasPrefix(masked, "https://accounts.example.com/?p="))
	assert.Equal(t, EncodedMask("accounts.example.com", "https://target.example/login"), masked)

	data, err := os.ReadFile(result["file"].(string))
	require.NoError(t, err)
	assert.Equal(t, masked+"\n", string(data))
	assert.Equal(t, ".txt", filepath.Ext(result["file"].(string)))
}

func TestMaskPages(t *testing.T) {
	for _, method := range []string{"redirect", "iframe", "obfuscation"} {
		t.Run(method, func(t *testing.T) {
			tool := NewMask(tooltest.Env(t))
			summary, ok := tooltest.Run(t, tool, params.Params{"url": "https://target.example", "method": method})
			require.True(t, ok)

			data, err := os.ReadFile(summary["file"].(string))
			require.NoError(t, err)
			page := string(data)
			assert.Contains(t, page, "<!DOCTYPE html>")
			assert.Contains(t, filepath.Base(summary["file"].(string)), "mask_"+method)
			if method == "obfuscation" {
				assert.Contains(t, page, "atob(")
				assert.NotContains(t, page, "https://target.example")
			}
		})
	}
}

func TestMaskRejectsUnknownMethod(t *testing.T) {
	tool := NewMask(tooltest.Env(t))
	_, ok := tooltest.Run(t, tool, params.Params{"url": "https://target.example", "method": "dns"})
	assert.False(t, ok)
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestHashCrackerBuiltinWordlist(t *testing.T) {
	tool := NewCrack(tooltest.Env(t))
	summary, ok := tooltest.Run(t, tool, params.Params{"hash": "5D41402ABC4B2A76B9719D911017C592"})
	require.True(t, ok, tool.Errors())
	assert.Equal(t, "cracked", summary["status"])
	assert.Equal(t, "hello", summary["result"])
	assert.Equal(t, "md5", summary["algorithm"])
	require.Len(t, tool.Results(), 1)
	assert.NotEmpty(t, tool.Recommendations())
}

func TestHashCrackerPicksAlgorithmByLength(t *testing.T) {
	sum := sha256.Sum256([]byte("letmein"))
	tool := NewCrack(tooltest.Env(t))
	summary, ok := tooltest.Run(t, tool, params.Params{"hash": hex.EncodeToString(sum[:])})
	require.True(t, ok, tool.Errors())
	assert.Equal(t, "sha256", summary["algorithm"])
	assert.Equal(t, "letmein", summary["result"])

	a, _ := findAlgorithm("mmh3")
	h := a.new()
	h.Write([]byte("admin"))
	summary, ok = tooltest.Run(t, tool, params.Params{"hash": digest(h)})
	require.True(t, ok, tool.Errors())
	assert.Equal(t, "mmh3", summary["algorithm"])
	assert.Equal(t, "admin", summary["result"])
}

func TestHashCrackerWordlistFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.txt")
	require.NoError(t, os.WriteFile(path, []byte("# leaked\r\nhunter2\r\ncorrect horse\n"), 0o600))

	tool := NewCrack(tooltest.Env(t))
	summary, ok := tooltest.Run(t, tool, params.Params{"hash": md5Hex("correct horse"), "file": path})
	require.True(t, ok, tool.Errors())
	assert.Equal(t, "correct horse", summary["result"])
	assert.Equal(t, len(commonPasswords)+2, summary["tried"])
}

func TestHashCrackerNotFound(t *testing.T) {
	tool := NewCrack(tooltest.Env(t))
	summary, ok := tooltest.Run(t, tool, params.Params{"hash": md5Hex("not in any list"), "algorithm": "MD5"})
	require.True(t, ok, tool.Errors())
	assert.Equal(t, "not found", summary["status"])
	assert.Equal(t, []string{"md5"}, summary["candidates"])
	assert.Equal(t, len(commonPasswords), summary["tried"])
	assert.Empty(t, tool.Results())
	assert.Empty(t, tool.Errors())
}

func TestHashCrackerValidation(t *testing.T) {
	sum := md5Hex("x")
	for _, bad := range []params.Params{
		{},
		{"hash": "not-hex"},
		{"hash": "abcd"},
		{"hash": sum, "algorithm": "sha1"},
		{"hash": sum, "algorithm": "rot13"},
		{"hash": sum, "file": filepath.Join(t.TempDir(), "missing.txt")},
	} {
		tool := NewCrack(tooltest.Env(t))
		assert.False(t, tool.Validate(bad), bad)
		assert.NotEmpty(t, tool.Errors(), bad)
	}
}

func signJWT(t *testing.T, m jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(m, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestJWTDecoderRecoversWeakSecret(t *testing.T) {
	now := time.Now()
	token := signJWT(t, jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{
		"sub": "1234567890", "iat": now.Unix(), "exp": now.Add(time.Hour).Unix(),
	})

	tool := NewJWT(tooltest.Env(t))
	summary, ok := tooltest.Run(t, tool, params.Params{"token": token})
	require.True(t, ok, tool.Errors())
	assert.Equal(t, "HS256", summary["algorithm"])
	assert.Equal(t, true, summary["cracked"])
	assert.Equal(t, "secret", summary["secret"])
	assert.Equal(t, string(types.VerdictVulnerable), summary["verdict"])
	assert.Equal(t, false, summary["expired"])

	results := tool.Results()
	require.Len(t, results, 1)
	payload := results[0]["payload"].(map[string]interface{})
	assert.Equal(t, "1234567890", payload["sub"])
}

func TestJWTDecoderFlagsAlgNone(t *testing.T) {
	token := signJWT(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, jwt.MapClaims{
		"sub": "admin", "exp": time.Now().Add(time.Hour).Unix(),
	})

	tool := NewJWT(tooltest.Env(t))
	summary, ok := tooltest.Run(t, tool, params.Params{"token": token})
	require.True(t, ok, tool.Errors())
	assert.Equal(t, "none", summary["algorithm"])
	assert.Equal(t, string(types.VerdictVulnerable), summary["verdict"])
	assert.Equal(t, false, summary["cracked"])
}

func TestJWTDecoderStrongToken(t *testing.T) {
	now := time.Now()
	token := signJWT(t, jwt.SigningMethodHS512, []byte("tq7V!r2pZ0x#Lk9sWm4eYb8uNc1dHf6g"), jwt.MapClaims{
		"sub": "42", "iat": now.Unix(), "exp": now.Add(15 * time.Minute).Unix(),
	})

	tool := NewJWT(tooltest.Env(t))
	summary, ok := tooltest.Run(t, tool, params.Params{"token": "Bearer " + token})
	require.True(t, ok, tool.Errors())
	assert.Equal(t, string(types.VerdictProtected), summary["verdict"])
	assert.Equal(t, false, summary["cracked"])
	assert.NotContains(t, summary, "secret")
	assert.Contains(t, summary, "expires_at")
}

func TestJWTDecoderSecretFromWordlist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.txt")
	require.NoError(t, os.WriteFile(path, []byte("alpha\nhunter2-prod\n"), 0o600))
	token := signJWT(t, jwt.SigningMethodHS384, []byte("hunter2-prod"), jwt.MapClaims{"sub": "7"})

	tool := NewJWT(tooltest.Env(t))
	summary, ok := tooltest.Run(t, tool, params.Params{"token": token, "file": path})
	require.True(t, ok, tool.Errors())
	assert.Equal(t, "hunter2-prod", summary["secret"])
}

func TestJWTDecoderClaimChecks(t *testing.T) {
	key := []byte("tq7V!r2pZ0x#Lk9sWm4eYb8uNc1dHf6g")
	expired := signJWT(t, jwt.SigningMethodHS256, key, jwt.MapClaims{
		"sub": "1", "exp": time.Now().Add(-time.Hour).Unix(),
	})
	tool := NewJWT(tooltest.Env(t))
	summary, ok := tooltest.Run(t, tool, params.Params{"token": expired})
	require.True(t, ok, tool.Errors())
	assert.Equal(t, true, summary["expired"])
	assert.NotEmpty(t, tool.Warnings())

	leaky := signJWT(t, jwt.SigningMethodHS256, key, jwt.MapClaims{"sub": "1", "password": "hunter2"})
	summary, ok = tooltest.Run(t, tool, params.Params{"token": leaky})
	require.True(t, ok, tool.Errors())
	assert.Equal(t, string(types.VerdictPotentiallyVulnerable), summary["verdict"])
	assert.InDelta(t, 0.5, summary["risk_score"], 0.001)
}

func TestJWTDecoderUnknownAlgorithm(t *testing.T) {
	enc := base64.RawURLEncoding.EncodeToString
	token := enc([]byte(`{"alg":"XYZ","typ":"JWT"}`)) + "." + enc([]byte(`{"sub":"1"}`)) + "."

	tool := NewJWT(tooltest.Env(t))
	summary, ok := tooltest.Run(t, tool, params.Params{"token": token})
	require.True(t, ok, tool.Errors())
	assert.Equal(t, "XYZ", summary["algorithm"])
	require.NotEmpty(t, tool.Warnings())
	assert.Contains(t, tool.Warnings()[0], "unknown signing algorithm")
}

func TestJWTDecoderValidation(t *testing.T) {
	for _, bad := range []params.Params{{}, {"token": "abc"}, {"token": "a.b"}, {"token": "abc.def.ghi"}} {
		tool := NewJWT(tooltest.Env(t))
		assert.False(t, tool.Validate(bad), bad)
		assert.NotEmpty(t, tool.Errors(), bad)
	}
}
