// Package params turns the raw, loosely typed argument bundle collected from
// the CLI or the API into canonical parameters and typed per-tool records.
package params

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cast"
)

// Canonical is the closed set of parameter names tools understand.
var Canonical = []string{
	"host", "url", "domain", "port", "ports", "email", "subject", "target",
	"type", "duration", "threads", "output", "framework", "alias",
	"fake_domain", "method", "base_url", "generate_qr", "tracking", "text",
	"algorithm", "authorized", "operation", "length", "count", "file",
	"test_payloads", "all_algorithms", "query", "symbols", "token", "cidr",
	"hash",
}

// Flags that take no value on the command line.
var booleanParams = map[string]bool{
	"generate_qr":    true,
	"tracking":       true,
	"authorized":     true,
	"test_payloads":  true,
	"all_algorithms": true,
	"symbols":        true,
}

var canonicalSet = func() map[string]bool {
	m := make(map[string]bool, len(Canonical))
	for _, c := range Canonical {
		m[c] = true
	}
	return m
}()

func IsCanonical(name string) bool { return canonicalSet[name] }

func IsBoolean(name string) bool { return booleanParams[name] }

// FlagName renders a canonical name as a command-line flag.
func FlagName(name string) string { return strings.ReplaceAll(name, "_", "-") }

// Param is one raw key/value pair in the order it was supplied.
type Param struct {
	Name  string
	Value interface{}
}

// Raw is the ordered bundle collected before normalization.
type Raw []Param

func (r *Raw) Add(name string, value interface{}) {
	*r = append(*r, Param{Name: name, Value: value})
}

// UnmarshalJSON decodes a JSON object keeping its key order.
func (r *Raw) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("parameters must be a JSON object")
	}

	var out Raw
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tok)
		}
		var value interface{}
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("parameter %s: %w", key, err)
		}
		if n, ok := value.(json.Number); ok {
			value = n.String()
		}
		out = append(out, Param{Name: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*r = out
	return nil
}

// Params is the normalized bundle handed to tools.
type Params map[string]interface{}

func (p Params) Has(name string) bool {
	_, ok := p[name]
	return ok
}

func (p Params) String(name string) string {
	v, ok := p[name]
	if !ok {
		return ""
	}
	return strings.TrimSpace(cast.ToString(v))
}

// Int returns the integer value of name, or def when missing or malformed.
func (p Params) Int(name string, def int) int {
	v, ok := p[name]
	if !ok {
		return def
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return def
	}
	return n
}

func (p Params) Bool(name string) bool {
	v, ok := p[name]
	if !ok {
		return false
	}
	b, err := cast.ToBoolE(v)
	return err == nil && b
}

// Clone returns a shallow copy.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Keys returns the parameter names in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Map exposes the bundle as a plain map for envelopes and logs.
func (p Params) Map() map[string]interface{} {
	return map[string]interface{}(p.Clone())
}
