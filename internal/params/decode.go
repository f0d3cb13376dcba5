package params

import (
	"github.com/go-viper/mapstructure/v2"

	"github.com/CodeMonkeyCybersecurity/pantest/pkg/types"
)

// Decode parses p into the typed record pointed to by out. Field names come
// from `param` struct tags. Strings are coerced to numbers and booleans, so
// CLI values decode the same as JSON ones. A malformed value is a
// Validation error naming the offending parameter.
func Decode(p Params, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "param",
		WeaklyTypedInput: true,
		Result:           out,
		DecodeHook:       mapstructure.StringToSliceHookFunc(","),
	})
	if err != nil {
		return types.Wrap(types.KindTool, err, "parameter decoder")
	}
	if err := dec.Decode(map[string]interface{}(p)); err != nil {
		return types.Wrap(types.KindValidation, err, "invalid parameters")
	}
	return nil
}

// Require returns a Validation error for the first name missing from p.
func Require(p Params, names ...string) error {
	for _, n := range names {
		if p.String(n) == "" {
			return types.NewError(types.KindValidation, "%s is required", n)
		}
	}
	return nil
}

// OneOf checks that value is one of allowed.
func OneOf(name, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return types.NewError(types.KindValidation, "invalid %s %q, must be one of %v", name, value, allowed)
}

// MustBeURL validates a URL parameter value.
func MustBeURL(name, value string) error {
	if !IsURL(value) {
		return types.NewError(types.KindValidation, "%s must start with http:// or https://", name)
	}
	return nil
}

// MustBeHost validates a host that may be an IPv4 address or a domain name.
func MustBeHost(name, value string) error {
	if IsIP(value) || IsDomain(value) || value == "localhost" {
		return nil
	}
	return types.NewError(types.KindValidation, "%s %q is not a valid IP address or domain", name, value)
}
