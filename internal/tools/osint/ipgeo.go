// Package osint holds the open-source intelligence helpers.
package osint

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/cache"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/core"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/httpclient"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/params"
	"github.com/CodeMonkeyCybersecurity/pantest/pkg/types"
)

// GeoInfo is the subset of the ip-api.com response the tool reports.
type GeoInfo struct {
	Status      string  `json:"status"`
	Message     string  `json:"message,omitempty"`
	Query       string  `json:"query"`
	Country     string  `json:"country"`
	CountryCode string  `json:"countryCode"`
	Region      string  `json:"region"`
	RegionName  string  `json:"regionName"`
	City        string  `json:"city"`
	Zip         string  `json:"zip"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Timezone    string  `json:"timezone"`
	ISP         string  `json:"isp"`
	Org         string  `json:"org"`
	AS          string  `json:"as"`
}

type GeoTool struct {
	core.Base
	env *core.Env
}

type geoParams struct {
	Host string `param:"host"`
}

func NewGeo(env *core.Env) core.Tool {
	env = core.Ensure(env)
	return &GeoTool{
		Base: core.NewBase(types.ToolMetadata{
			Name:        "IP Geolocation",
			Category:    types.CategoryOSINT,
			Version:     "1.1.0",
			Description: "Looks up the location, ISP and autonomous system of an IPv4 address",
			Usage:       "pantest run ip-geo --ip 8.8.8.8",
			Tags:        []string{"osint", "geolocation", "ip", "reconnaissance"},
			RiskLevel:   types.RiskLow,
		}, env.Log()),
		env: env,
	}
}

func (t *GeoTool) parse(p params.Params) (geoParams, error) {
	var gp geoParams
	if err := params.Require(p, "host"); err != nil {
		return gp, types.NewError(types.KindValidation, "IP address is required (pass --ip or --host)")
	}
	if err := params.Decode(p, &gp); err != nil {
		return gp, err
	}
	gp.Host = strings.TrimSpace(gp.Host)
	if !params.IsIP(gp.Host) {
		return gp, types.NewError(types.KindValidation, "invalid IP format: %s (octets must be 0-255)", gp.Host)
	}
	return gp, nil
}

func (t *GeoTool) Validate(p params.Params) bool {
	return t.Check(func() error { _, err := t.parse(p); return err })
}

func (t *GeoTool) lookup(ctx context.Context, ip string) (GeoInfo, error) {
	var info GeoInfo
	err := t.env.Cache.GetOrFetch(cache.Key("ipgeo", ip), &info, func() (interface{}, error) {
		client, err := t.env.HTTPClient()
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.env.Endpoints.IPGeo+ip, nil)
		if err != nil {
			return nil, err
		}
		resp, err := httpclient.DoWithRetry(ctx, client, req, t.env.Retries())
		if err != nil {
			return nil, err
		}
		defer httpclient.CloseBody(resp)
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("geolocation service returned %d", resp.StatusCode)
		}
		body, err := httpclient.ReadBody(resp, 1<<20)
		if err != nil {
			return nil, err
		}
		var got GeoInfo
		if err := json.Unmarshal(body, &got); err != nil {
			return nil, fmt.Errorf("failed to decode geolocation response: %w", err)
		}
		if got.Status != "" && got.Status != "success" {
			return nil, fmt.Errorf("lookup failed: %s", got.Message)
		}
		return got, nil
	})
	return info, err
}

func (t *GeoTool) Run(ctx context.Context, p params.Params) types.Record {
	t.Begin()
	gp, err := t.parse(p)
	if err != nil {
		return t.Fail(err)
	}

	info, err := t.lookup(ctx, gp.Host)
	if err != nil {
		return t.Fail(types.Wrap(types.KindTool, err, "geolocation of %s", gp.Host))
	}

	t.AddResult(types.Record{
		"ip":           gp.Host,
		"country":      info.Country,
		"country_code": info.CountryCode,
		"region":       info.RegionName,
		"city":         info.City,
		"postal":       info.Zip,
		"latitude":     info.Lat,
		"longitude":    info.Lon,
		"timezone":     info.Timezone,
		"isp":          info.ISP,
		"org":          info.Org,
		"as":           info.AS,
		"maps_url":     fmt.Sprintf("https://www.google.com/maps?q=%g,%g", info.Lat, info.Lon),
	})
	t.AddSuccess(fmt.Sprintf("%s located in %s, %s", gp.Host, info.City, info.Country))
	return types.Record{
		"ip":      gp.Host,
		"country": info.Country,
		"city":    info.City,
		"isp":     info.ISP,
	}
}
