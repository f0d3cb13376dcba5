package params

import (
	"reflect"
	"strings"
)

// aliases maps each canonical name to the alternative spellings accepted for
// it. An alias belongs to exactly one canonical name and is never itself
// canonical.
var aliases = map[string][]string{
	"host":      {"ip", "address", "target_ip"},
	"domain":    {"target_domain", "site"},
	"url":       {"target_url", "website"},
	"target":    {"target_host", "destination"},
	"port":      {"target_port", "listening_port"},
	"email":     {"email_address", "sender_email"},
	"duration":  {"time_limit", "timeout"},
	"threads":   {"thread_count", "workers", "connections"},
	"type":      {"attack_type", "mode"},
	"text":      {"input", "data", "hash_input"},
	"algorithm": {"hash_type"},
	"method":    {"attack_method"},
	"token":     {"jwt", "bearer_token"},
	"cidr":      {"subnet", "network"},
	"hash":      {"hash_value", "digest"},
}

var aliasIndex = func() map[string]string {
	idx := make(map[string]string)
	for canonical, names := range aliases {
		for _, a := range names {
			idx[a] = canonical
		}
	}
	return idx
}()

// Aliases returns the alias table keyed by canonical name.
func Aliases() map[string][]string {
	out := make(map[string][]string, len(aliases))
	for k, v := range aliases {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// CanonicalName resolves name through the alias table. Unknown names are
// returned unchanged.
func CanonicalName(name string) string {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	if canonicalSet[key] {
		return key
	}
	if c, ok := aliasIndex[key]; ok {
		return c
	}
	return name
}

// Normalize builds the canonical bundle from raw input. Empty values are
// dropped, aliases are renamed to their canonical name, and when several keys
// resolve to the same name the first one supplied wins. The input is not
// modified.
func Normalize(raw Raw) Params {
	out := make(Params, len(raw))
	for _, p := range raw {
		if isEmpty(p.Value) {
			continue
		}
		name := CanonicalName(p.Name)
		if name == "" {
			continue
		}
		if _, seen := out[name]; seen {
			continue
		}
		out[name] = p.Value
	}
	return out
}

func isEmpty(v interface{}) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
