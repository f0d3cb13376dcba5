package network

import (
	"context"
	"fmt"
	"math/big"
	"net/netip"
	"strings"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/core"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/params"
	"github.com/CodeMonkeyCybersecurity/pantest/pkg/types"
)

type SubnetTool struct {
	core.Base
	env *core.Env
}

type subnetParams struct {
	CIDR string `param:"cidr"`
}

func NewSubnet(env *core.Env) core.Tool {
	env = core.Ensure(env)
	return &SubnetTool{
		Base: core.NewBase(types.ToolMetadata{
			Name:        "Subnet Calculator",
			Category:    types.CategoryNetwork,
			Description: "Network, netmask, broadcast and host range of an IPv4 or IPv6 prefix",
			Usage:       "pantest run subnet-calc --cidr 192.168.1.0/24",
			Tags:        []string{"network", "ip", "subnet"},
		}, env.Log()),
		env: env,
	}
}

// parsePrefix accepts a prefix with host bits set, or a bare address which
// is read as a single-host prefix.
func parsePrefix(s string) (netip.Prefix, error) {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "/") {
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return netip.Prefix{}, types.NewError(types.KindValidation, "invalid CIDR %q", s)
		}
		return netip.PrefixFrom(addr, addr.BitLen()), nil
	}
	pfx, err := netip.ParsePrefix(s)
	if err != nil {
		return netip.Prefix{}, types.NewError(types.KindValidation, "invalid CIDR %q", s)
	}
	if pfx.Addr().Zone() != "" {
		return netip.Prefix{}, types.NewError(types.KindValidation, "zoned addresses are not supported: %q", s)
	}
	return pfx, nil
}

func (t *SubnetTool) parse(p params.Params) (subnetParams, netip.Prefix, error) {
	var sp subnetParams
	if err := params.Require(p, "cidr"); err != nil {
		return sp, netip.Prefix{}, err
	}
	if err := params.Decode(p, &sp); err != nil {
		return sp, netip.Prefix{}, err
	}
	pfx, err := parsePrefix(sp.CIDR)
	return sp, pfx, err
}

func (t *SubnetTool) Validate(p params.Params) bool {
	return t.Check(func() error { _, _, err := t.parse(p); return err })
}

func (t *SubnetTool) Run(ctx context.Context, p params.Params) types.Record {
	t.Begin()
	sp, pfx, err := t.parse(p)
	if err != nil {
		return t.Fail(err)
	}

	info := describePrefix(pfx)
	info["input"] = sp.CIDR
	t.AddResult(info)
	t.AddSuccess(fmt.Sprintf("%s holds %s addresses", info["cidr"], info["num_addresses"]))
	t.Log().Debugw("Subnet calculated", "cidr", info["cidr"])

	return types.Record{
		"cidr":          info["cidr"],
		"network":       info["network"],
		"broadcast":     info["broadcast"],
		"first_host":    info["first_host"],
		"last_host":     info["last_host"],
		"num_addresses": info["num_addresses"],
	}
}

// describePrefix reports the ranges of pfx. IPv4 /31 and /32 follow RFC
// 3021: every address is usable. IPv6 has no broadcast address.
func describePrefix(pfx netip.Prefix) types.Record {
	network := pfx.Masked()
	bits := network.Bits()
	size := network.Addr().BitLen()
	first := network.Addr()
	last := lastAddr(network)

	total := new(big.Int).Lsh(big.NewInt(1), uint(size-bits))
	r := types.Record{
		"cidr":          network.String(),
		"version":       ipVersion(first),
		"prefix_length": bits,
		"network":       first.String(),
		"netmask":       maskAddr(bits, size).String(),
		"num_addresses": total.String(),
		"private":       first.IsPrivate(),
	}

	hostFirst, hostLast := first, last
	usable := new(big.Int).Set(total)
	if first.Is4() {
		r["wildcard"] = wildcardAddr(bits).String()
		r["broadcast"] = last.String()
		r["class"] = ipv4Class(first)
		if size-bits >= 2 {
			hostFirst, hostLast = first.Next(), last.Prev()
			usable.Sub(usable, big.NewInt(2))
		}
	} else {
		r["broadcast"] = ""
	}
	r["first_host"] = hostFirst.String()
	r["last_host"] = hostLast.String()
	r["usable_hosts"] = usable.String()
	return r
}

func lastAddr(network netip.Prefix) netip.Addr {
	b := network.Addr().AsSlice()
	hostBits := len(b)*8 - network.Bits()
	for i := len(b) - 1; i >= 0 && hostBits > 0; i-- {
		n := min(hostBits, 8)
		b[i] |= byte(1<<n - 1)
		hostBits -= n
	}
	addr, _ := netip.AddrFromSlice(b)
	return addr
}

func maskAddr(bits, size int) netip.Addr {
	b := make([]byte, size/8)
	for i := range b {
		n := min(max(bits-i*8, 0), 8)
		b[i] = byte(0xff << (8 - n))
	}
	addr, _ := netip.AddrFromSlice(b)
	return addr
}

func wildcardAddr(bits int) netip.Addr {
	m := maskAddr(bits, 32).As4()
	for i := range m {
		m[i] = ^m[i]
	}
	return netip.AddrFrom4(m)
}

func ipVersion(a netip.Addr) int {
	if a.Is4() {
		return 4
	}
	return 6
}

func ipv4Class(a netip.Addr) string {
	switch first := a.As4()[0]; {
	case first < 128:
		return "A"
	case first < 192:
		return "B"
	case first < 224:
		return "C"
	case first < 240:
		return "D"
	default:
		return "E"
	}
}
