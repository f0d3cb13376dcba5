package params

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeMonkeyCybersecurity/pantest/pkg/types"
)

func TestNormalizeRenamesEveryAlias(t *testing.T) {
	for canonical, names := range Aliases() {
		for _, alias := range names {
			out := Normalize(Raw{{Name: alias, Value: "v-" + alias}, {Name: "unrelated", Value: 1}})

			assert.Equal(t, "v-"+alias, out[canonical], "%s -> %s", alias, canonical)
			assert.NotContains(t, out, alias, "%s should be renamed", alias)
			assert.Equal(t, 1, out["unrelated"])
		}
	}
}

func TestAliasTableIsNotCircular(t *testing.T) {
	for canonical, names := range Aliases() {
		assert.True(t, IsCanonical(canonical), canonical)
		for _, alias := range names {
			assert.False(t, IsCanonical(alias), "alias %s must not be canonical", alias)
		}
	}
}

func TestNormalizeFirstSeenWins(t *testing.T) {
	out := Normalize(Raw{
		{Name: "ip", Value: "10.0.0.1"},
		{Name: "host", Value: "example.com"},
		{Name: "address", Value: "192.168.0.1"},
	})
	assert.Equal(t, Params{"host": "10.0.0.1"}, out)

	out = Normalize(Raw{
		{Name: "host", Value: "example.com"},
		{Name: "ip", Value: "10.0.0.1"},
	})
	assert.Equal(t, Params{"host": "example.com"}, out)
}

func TestNormalizeDropsEmptyValues(t *testing.T) {
	out := Normalize(Raw{
		{Name: "url", Value: ""},
		{Name: "website", Value: "https://example.com"},
		{Name: "text", Value: nil},
		{Name: "ports", Value: []string{}},
		{Name: "authorized", Value: false},
	})
	assert.Equal(t, Params{"url": "https://example.com", "authorized": false}, out)
}

func TestNormalizeKeepsUnknownKeysUnchanged(t *testing.T) {
	out := Normalize(Raw{{Name: "Custom-Key", Value: "x"}, {Name: "fake-domain", Value: "youtube.com"}})
	assert.Equal(t, "x", out["Custom-Key"])
	assert.Equal(t, "youtube.com", out["fake_domain"])
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	raw := Raw{{Name: "ip", Value: "1.2.3.4"}}
	_ = Normalize(raw)
	assert.Equal(t, "ip", raw[0].Name)
}

func TestRawUnmarshalKeepsOrder(t *testing.T) {
	var raw Raw
	require.NoError(t, json.Unmarshal([]byte(`{"website":"https://a.test","url":"https://b.test","threads":4,"authorized":true}`), &raw))
	require.Len(t, raw, 4)
	assert.Equal(t, "website", raw[0].Name)
	assert.Equal(t, "4", raw[2].Value)
	assert.Equal(t, true, raw[3].Value)

	out := Normalize(raw)
	assert.Equal(t, "https://a.test", out["url"])

	assert.Error(t, json.Unmarshal([]byte(`["not","an","object"]`), &raw))
}

func TestValidators(t *testing.T) {
	assert.True(t, IsIP("192.168.1.1"))
	assert.True(t, IsIP("0.0.0.0"))
	assert.False(t, IsIP("256.1.1.1"))
	assert.False(t, IsIP("1.2.3"))
	assert.False(t, IsIP("a.b.c.d"))
	assert.False(t, IsIP("1..2.3"))
	assert.False(t, IsIP("+1.2.3.4"))
	assert.False(t, IsIP("1.-0.3.4"))
	assert.False(t, IsIP("::ffff:1.2.3.4"))
	assert.False(t, IsIP("1.2.3.4 "))

	assert.True(t, IsURL("http://example.com"))
	assert.True(t, IsURL("https://example.com"))
	assert.False(t, IsURL("ftp://example.com"))
	assert.False(t, IsURL("example.com"))

	assert.True(t, IsDomain("example.com"))
	assert.False(t, IsDomain("localhost"))
	assert.False(t, IsDomain("a."))
	assert.False(t, IsDomain(""))
	assert.True(t, IsDomain("api-v2.example.co.uk"))
	assert.True(t, IsDomain("_dmarc.example.com"))
	assert.True(t, IsDomain("bücher.example"))
	assert.False(t, IsDomain("+1.2.3.4"))
	assert.False(t, IsDomain("999.1.1.1"))
	assert.False(t, IsDomain("-bad.example.com"))
	assert.False(t, IsDomain("a..example.com"))
	assert.False(t, IsDomain("exa mple.com"))

	for _, host := range []string{"+1.2.3.4", "1.-0.3.4"} {
		assert.Error(t, MustBeHost("host", host), host)
	}

	assert.True(t, IsPort(1))
	assert.True(t, IsPort(65535))
	assert.False(t, IsPort(0))
	assert.False(t, IsPort(65536))
	assert.True(t, IsPortString("443"))
	assert.False(t, IsPortString("https"))

	assert.True(t, IsEmail("user@example.com"))
	assert.False(t, IsEmail("user@"))
}

type sampleInput struct {
	Text      string   `param:"text"`
	Length    int      `param:"length"`
	Symbols   bool     `param:"symbols"`
	Ports     []string `param:"ports"`
	Untouched string   `param:"untouched"`
}

func TestDecodeCoercesCLIStrings(t *testing.T) {
	in := sampleInput{Length: 12}
	err := Decode(Params{"text": "abc", "length": "16", "symbols": "true", "ports": "22,80,443"}, &in)
	require.NoError(t, err)

	assert.Equal(t, "abc", in.Text)
	assert.Equal(t, 16, in.Length)
	assert.True(t, in.Symbols)
	assert.Equal(t, []string{"22", "80", "443"}, in.Ports)
	assert.Empty(t, in.Untouched)
}

func TestDecodeFailsClosed(t *testing.T) {
	var in sampleInput
	err := Decode(Params{"length": "sixteen"}, &in)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrValidation))
}

func TestRequireAndOneOf(t *testing.T) {
	err := Require(Params{"url": " "}, "url")
	require.Error(t, err)
	assert.Equal(t, "url is required", err.Error())
	assert.NoError(t, Require(Params{"url": "x"}, "url"))

	assert.NoError(t, OneOf("type", "http", "http", "udp"))
	assert.True(t, errors.Is(OneOf("type", "icmp", "http", "udp"), types.ErrValidation))

	assert.NoError(t, MustBeHost("host", "10.0.0.1"))
	assert.NoError(t, MustBeHost("host", "example.com"))
	assert.Error(t, MustBeHost("host", "not a host"))
}

func TestAccessors(t *testing.T) {
	p := Params{"count": "3", "authorized": "yes", "flag": true, "text": " hi "}
	assert.Equal(t, 3, p.Int("count", 1))
	assert.Equal(t, 7, p.Int("missing", 7))
	assert.False(t, p.Bool("authorized"))
	assert.True(t, p.Bool("flag"))
	assert.Equal(t, "hi", p.String("text"))
	assert.Equal(t, []string{"authorized", "count", "flag", "text"}, p.Keys())
	assert.Equal(t, "fake-domain", FlagName("fake_domain"))
}
