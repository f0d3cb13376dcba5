package params

import (
	"net"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/idna"
)

// IsIP reports whether s is a dotted-quad IPv4 address.
func IsIP(s string) bool {
	if strings.Count(s, ".") != 3 || strings.ContainsAny(s, ":+-") {
		return false
	}
	return net.ParseIP(s).To4() != nil
}

func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

var labelRe = regexp.MustCompile(`^[a-z0-9_]([a-z0-9_-]*[a-z0-9_])?$`)

// IsDomain reports whether s is a dotted host name. Internationalized names
// are checked in their punycode form, and the top-level label may not be
// numeric.
func IsDomain(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) < 3 || len(s) > 253 || !strings.Contains(s, ".") {
		return false
	}
	ascii, err := idna.Punycode.ToASCII(strings.ToLower(s))
	if err != nil {
		return false
	}
	labels := strings.Split(strings.ToLower(ascii), ".")
	for _, label := range labels {
		if len(label) == 0 || len(label) > 63 || !labelRe.MatchString(label) {
			return false
		}
	}
	_, err = strconv.Atoi(labels[len(labels)-1])
	return err != nil
}

func IsPort(n int) bool {
	return n >= 1 && n <= 65535
}

// IsPortString parses s and checks the port range.
func IsPortString(s string) bool {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	return err == nil && IsPort(n)
}

var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func IsEmail(s string) bool {
	return emailRe.MatchString(s)
}
