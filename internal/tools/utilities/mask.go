package utilities

import (
	"bytes"
	"context"
	"encoding/base64"
	"html/template"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/core"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/export"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/params"
	"github.com/CodeMonkeyCybersecurity/pantest/pkg/types"
)

const MaskerID = "url-mask"

var maskMethods = []string{"redirect", "iframe", "obfuscation", "encoding"}

type MaskTool struct {
	core.Base
	env *core.Env
}

type maskParams struct {
	URL        string `param:"url"`
	FakeDomain string `param:"fake_domain"`
	Method     string `param:"method"`
	GenerateQR bool   `param:"generate_qr"`
}

// maskPage is the data every masking template renders.
type maskPage struct {
	URL        string
	FakeDomain string
	Encoded    string
}

var maskTemplates = map[string]*template.Template{
	"redirect": template.Must(template.New("redirect").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.FakeDomain}}</title>
<meta http-equiv="refresh" content="0;url={{.URL}}">
</head>
<body>
<p>Loading {{.FakeDomain}}...</p>
<script>window.location.replace({{.URL}});</script>
</body>
</html>
`)),
	"iframe": template.Must(template.New("iframe").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.FakeDomain}}</title>
<style>html,body{margin:0;padding:0;height:100%;overflow:hidden}iframe{border:0;width:100%;height:100%}</style>
</head>
<body>
<iframe src="{{.URL}}"></iframe>
</body>
</html>
`)),
	"obfuscation": template.Must(template.New("obfuscation").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.FakeDomain}}</title>
</head>
<body>
<p>Please wait...</p>
<script>
setTimeout(function() { window.location.href = atob({{.Encoded}}); }, 2000);
</script>
</body>
</html>
`)),
}

const maskDisclaimer = "Masked links are for authorized awareness training only. " +
	"Using them to deceive people is illegal in most jurisdictions."

func NewMask(env *core.Env) core.Tool {
	env = core.Ensure(env)
	return &MaskTool{
		Base: core.NewBase(types.ToolMetadata{
			Name:            "URL Masker",
			Category:        types.CategoryUtilities,
			Version:         "2.0.0",
			Description:     "Builds masked link pages for phishing awareness training",
			Usage:           "pantest run url-mask --url https://target.example --fake-domain login.example.com --method redirect [--generate-qr]",
			Tags:            []string{"url-masking", "phishing", "social-engineering", "education"},
			RiskLevel:       types.RiskHigh,
			LegalDisclaimer: maskDisclaimer,
		}, env.Log()),
		env: env,
	}
}

func (t *MaskTool) parse(p params.Params) (maskParams, error) {
	mp := maskParams{FakeDomain: "secure-login.com", Method: "redirect"}
	if err := params.Require(p, "url"); err != nil {
		return mp, err
	}
	if err := params.Decode(p, &mp); err != nil {
		return mp, err
	}
	if err := params.MustBeURL("url", mp.URL); err != nil {
		return mp, err
	}
	if err := params.OneOf("method", mp.Method, maskMethods...); err != nil {
		return mp, err
	}
	if !params.IsDomain(mp.FakeDomain) {
		return mp, types.NewError(types.KindValidation, "fake_domain %q is not a valid domain", mp.FakeDomain)
	}
	return mp, nil
}

func (t *MaskTool) Validate(p params.Params) bool {
	return t.Check(func() error { _, err := t.parse(p); return err })
}

// EncodedMask returns the query-string form of a masked link.
func EncodedMask(fakeDomain, target string) string {
	return "https://" + fakeDomain + "/?p=" + Quote(base64.StdEncoding.EncodeToString([]byte(target)))
}

func (t *MaskTool) Run(ctx context.Context, p params.Params) types.Record {
	t.Begin()
	mp, err := t.parse(p)
	if err != nil {
		return t.Fail(err)
	}

	result := types.Record{
		"original_url": mp.URL,
		"fake_domain":  mp.FakeDomain,
		"method":       mp.Method,
		"created":      types.Timestamp(t.env.Clock()),
	}

	var (
		path  string
		body  []byte
		share string
	)
	if mp.Method == "encoding" {
		share = EncodedMask(mp.FakeDomain, mp.URL)
		result["masked_url"] = share
		path = export.ArtifactPath(t.env.OutputDir(), MaskerID, "mask_encoding", mp.URL, "txt")
		body = []byte(share + "\n")
	} else {
		var buf bytes.Buffer
		page := maskPage{
			URL:        mp.URL,
			FakeDomain: mp.FakeDomain,
			Encoded:    base64.StdEncoding.EncodeToString([]byte(mp.URL)),
		}
		if err := maskTemplates[mp.Method].Execute(&buf, page); err != nil {
			return t.Fail(types.Wrap(types.KindTool, err, "failed to render %s page", mp.Method))
		}
		path = export.ArtifactPath(t.env.OutputDir(), MaskerID, "mask_"+mp.Method, mp.URL, "html")
		body = buf.Bytes()
		share = mp.URL
	}

	if err := export.WriteArtifact(path, body); err != nil {
		return t.Fail(types.Wrap(types.KindTool, err, "failed to save masked link"))
	}
	result["file"] = path

	if mp.GenerateQR {
		qr, err := writeQR(t.env.OutputDir(), MaskerID, share)
		if err != nil {
			t.AddWarning("QR code not generated: " + err.Error())
		} else {
			result["qr_code"] = qr
		}
	}

	t.AddResult(result)
	t.AddSuccess("masked link saved to " + path)
	t.AddRecommendation("Use masked links only in authorized awareness campaigns")
	return types.Record{"method": mp.Method, "file": path}
}
