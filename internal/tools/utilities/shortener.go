package utilities

import (
	"context"
	"errors"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/core"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/export"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/params"
	"github.com/CodeMonkeyCybersecurity/pantest/pkg/types"
)

const (
	ShortenerID  = "url-shorten"
	codeCharset  = letters + digits
	shortCodeLen = 6
)

var aliasPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,}$`)

// ShortLink is one entry of the shortener database.
type ShortLink struct {
	OriginalURL     string  `json:"original_url"`
	ShortURL        string  `json:"short_url"`
	Alias           string  `json:"alias"`
	Created         string  `json:"created"`
	TrackingEnabled bool    `json:"tracking_enabled"`
	TrackingID      string  `json:"tracking_id,omitempty"`
	ClickCount      int     `json:"click_count"`
	Clicks          []Click `json:"clicks"`
}

type Click struct {
	Timestamp string `json:"timestamp"`
	Referrer  string `json:"referrer,omitempty"`
	IP        string `json:"ip,omitempty"`
}

// LinkStore persists short links as a single JSON object keyed by alias.
// Concurrent writers to the same file are not coordinated.
type LinkStore struct {
	path  string
	links map[string]*ShortLink
}

func DatabasePath(outputDir string) string {
	return filepath.Join(outputDir, "url_shortener", "urls.json")
}

// OpenLinkStore loads the database at path. A missing file starts an empty
// store; any other read or decode failure is returned so the existing links
// are never overwritten.
func OpenLinkStore(path string) (*LinkStore, error) {
	s := &LinkStore{path: path, links: map[string]*ShortLink{}}
	if err := export.ReadJSON(path, &s.links); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &LinkStore{path: path, links: map[string]*ShortLink{}}, nil
		}
		return nil, types.Wrap(types.KindTool, err, "shortener database %s is unreadable", path)
	}
	if s.links == nil {
		s.links = map[string]*ShortLink{}
	}
	return s, nil
}

func (s *LinkStore) Get(alias string) (*ShortLink, bool) {
	l, ok := s.links[alias]
	return l, ok
}

func (s *LinkStore) Exists(alias string) bool {
	_, ok := s.links[alias]
	return ok
}

func (s *LinkStore) Put(l *ShortLink) { s.links[l.Alias] = l }

func (s *LinkStore) Len() int { return len(s.links) }

func (s *LinkStore) Save() error {
	return export.WriteJSON(s.path, s.links)
}

// TrackClick records a visit on alias and saves the store.
func (s *LinkStore) TrackClick(alias string, c Click) bool {
	l, ok := s.links[alias]
	if !ok {
		return false
	}
	l.Clicks = append(l.Clicks, c)
	l.ClickCount = len(l.Clicks)
	return s.Save() == nil
}

type ShortenTool struct {
	core.Base
	env *core.Env
}

type shortenParams struct {
	URL        string `param:"url"`
	Alias      string `param:"alias"`
	Tracking   *bool  `param:"tracking"`
	BaseURL    string `param:"base_url"`
	GenerateQR bool   `param:"generate_qr"`
}

func NewShorten(env *core.Env) core.Tool {
	env = core.Ensure(env)
	return &ShortenTool{
		Base: core.NewBase(types.ToolMetadata{
			Name:        "URL Shortener",
			Category:    types.CategoryUtilities,
			Version:     "2.0.0",
			Description: "Creates short links with custom aliases and click tracking",
			Usage:       "pantest run url-shorten --url https://example.com [--alias name] [--tracking] [--base-url https://go.example] [--generate-qr]",
			Tags:        []string{"url-shortening", "tracking", "phishing", "education"},
			RiskLevel:   types.RiskMedium,
		}, env.Log()),
		env: env,
	}
}

func (t *ShortenTool) parse(p params.Params) (shortenParams, error) {
	sp := shortenParams{BaseURL: t.env.Endpoints.ShortBase}
	if err := params.Require(p, "url"); err != nil {
		return sp, err
	}
	if err := params.Decode(p, &sp); err != nil {
		return sp, err
	}
	if err := params.MustBeURL("url", sp.URL); err != nil {
		return sp, err
	}
	if sp.BaseURL != "" {
		if err := params.MustBeURL("base_url", sp.BaseURL); err != nil {
			return sp, err
		}
	}
	if sp.Alias != "" {
		if len(sp.Alias) < 3 {
			return sp, types.NewError(types.KindValidation, "alias must be at least 3 characters")
		}
		if !aliasPattern.MatchString(sp.Alias) {
			return sp, types.NewError(types.KindValidation, "alias must contain only letters, digits, dash and underscore")
		}
		store, err := OpenLinkStore(DatabasePath(t.env.OutputDir()))
		if err != nil {
			return sp, err
		}
		if store.Exists(sp.Alias) {
			return sp, types.NewError(types.KindValidation, "alias %q already exists, use a unique alias", sp.Alias)
		}
	}
	return sp, nil
}

func (t *ShortenTool) Validate(p params.Params) bool {
	return t.Check(func() error { _, err := t.parse(p); return err })
}

func (t *ShortenTool) Run(ctx context.Context, p params.Params) types.Record {
	t.Begin()
	sp, err := t.parse(p)
	if err != nil {
		return t.Fail(err)
	}

	store, err := OpenLinkStore(DatabasePath(t.env.OutputDir()))
	if err != nil {
		return t.Fail(err)
	}
	code := sp.Alias
	if code == "" {
		for {
			code, err = randomString(codeCharset, shortCodeLen)
			if err != nil {
				return t.Fail(types.Wrap(types.KindTool, err, "short code generation failed"))
			}
			if !store.Exists(code) {
				break
			}
		}
	}

	tracking := sp.Tracking == nil || *sp.Tracking
	link := &ShortLink{
		OriginalURL:     sp.URL,
		ShortURL:        strings.TrimRight(sp.BaseURL, "/") + "/" + code,
		Alias:           code,
		Created:         types.Timestamp(t.env.Clock()),
		TrackingEnabled: tracking,
		Clicks:          []Click{},
	}
	if tracking {
		link.TrackingID = uuid.NewString()
	}
	store.Put(link)
	if err := store.Save(); err != nil {
		return t.Fail(types.Wrap(types.KindTool, err, "failed to save shortener database"))
	}

	result := types.Record{
		"original_url":     link.OriginalURL,
		"short_url":        link.ShortURL,
		"alias":            link.Alias,
		"created":          link.Created,
		"tracking_enabled": tracking,
		"database":         DatabasePath(t.env.OutputDir()),
	}
	if tracking {
		result["tracking_id"] = link.TrackingID
		page, err := t.writeTrackingPage(link)
		if err != nil {
			t.AddWarning("tracking page not written: " + err.Error())
		} else {
			result["tracking_page"] = page
		}
	}
	if sp.GenerateQR {
		qr, err := writeQR(t.env.OutputDir(), ShortenerID, link.ShortURL)
		if err != nil {
			t.AddWarning("QR code not generated: " + err.Error())
		} else {
			result["qr_code"] = qr
		}
	}

	t.AddResult(result)
	t.AddSuccess("short link created: " + link.ShortURL)
	return types.Record{"short_url": link.ShortURL, "alias": link.Alias, "total_links": store.Len()}
}

var trackingPage = template.Must(template.New("track").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Redirecting</title>
<meta http-equiv="refresh" content="1;url={{.OriginalURL}}">
</head>
<body>
<p>Redirecting to <a href="{{.OriginalURL}}">{{.OriginalURL}}</a></p>
<script>
var click = {alias: {{.Alias}}, tracking_id: {{.TrackingID}}, referrer: document.referrer, timestamp: new Date().toISOString()};
console.log(click);
</script>
</body>
</html>
`))

func (t *ShortenTool) writeTrackingPage(l *ShortLink) (string, error) {
	path := export.ArtifactPath(t.env.OutputDir(), ShortenerID, "track_"+l.Alias, l.OriginalURL, "html")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", err
	}
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := trackingPage.Execute(f, l); err != nil {
		return "", err
	}
	return path, nil
}
