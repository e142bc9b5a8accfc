// Package proposal drafts rebrand copy for a lead with an LLM and renders it
// as a static landing page.
package proposal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/doernaz/brandlift/internal/discovery"
)

// Generator drafts a proposal for one lead.
type Generator interface {
	Generate(ctx context.Context, lead *discovery.VerifiedLead) (*Proposal, error)
}

// Proposal is the generated copy and rendered page for a lead.
type Proposal struct {
	LeadID       string `json:"lead_id"`
	BusinessName string `json:"business_name"`
	Headline     string `json:"headline"`
	Tagline      string `json:"tagline"`
	Summary      string `json:"summary"`
	HTML         string `json:"-"`
}

// Copy is the JSON object both backends are asked to return.
type Copy struct {
	Headline string `json:"headline"`
	Tagline  string `json:"tagline"`
	Summary  string `json:"summary"`
}

const systemPrompt = `You are a brand strategist writing a short website refresh pitch for a local business.
Respond with ONLY a JSON object with the keys "headline", "tagline" and "summary".
headline: at most 10 words. tagline: at most 16 words. summary: 2 to 3 sentences.
Do not invent awards, prices or staff names.`

// buildPrompt describes the lead to the model.
func buildPrompt(l *discovery.VerifiedLead) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Business: %s\n", l.DisplayName)
	fmt.Fprintf(&b, "Category: %s\n", l.Keyword)
	fmt.Fprintf(&b, "Location: %s\n", l.Location)
	if l.Rating != nil {
		reviews := 0
		if l.UserRatingCount != nil {
			reviews = *l.UserRatingCount
		}
		fmt.Fprintf(&b, "Rating: %.1f from %d reviews\n", *l.Rating, reviews)
	}
	if l.WebsiteURI != "" {
		fmt.Fprintf(&b, "Current website: %s\n", l.WebsiteURI)
	} else {
		b.WriteString("Current website: none\n")
	}
	return b.String()
}

// parseCopy extracts the JSON object from a model reply, tolerating code
// fences and surrounding prose.
func parseCopy(text string) (Copy, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Copy{}, eris.New("proposal: no JSON object in model reply")
	}
	var c Copy
	if err := json.Unmarshal([]byte(text[start:end+1]), &c); err != nil {
		return Copy{}, eris.Wrap(err, "proposal: parse model reply")
	}
	c.Headline = strings.TrimSpace(c.Headline)
	c.Tagline = strings.TrimSpace(c.Tagline)
	c.Summary = strings.TrimSpace(c.Summary)
	if c.Headline == "" {
		return Copy{}, eris.New("proposal: model reply has no headline")
	}
	return c, nil
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.BusinessName}} | {{.Headline}}</title>
<style>
body{margin:0;font-family:system-ui,sans-serif;color:#1d1d1f;background:#fafafa}
header{padding:4rem 1.5rem;text-align:center;background:#111;color:#fff}
h1{margin:0 0 .5rem;font-size:2.4rem}
p.tagline{margin:0;font-size:1.2rem;opacity:.85}
main{max-width:42rem;margin:2.5rem auto;padding:0 1.5rem;line-height:1.6}
footer{text-align:center;padding:2rem;font-size:.85rem;color:#777}
</style>
</head>
<body>
<header>
<h1>{{.Headline}}</h1>
<p class="tagline">{{.Tagline}}</p>
</header>
<main>
<h2>{{.BusinessName}}</h2>
<p>{{.Summary}}</p>
</main>
<footer>Preview prepared by BrandLift</footer>
</body>
</html>
`))

// build assembles and renders a proposal from model copy.
func build(l *discovery.VerifiedLead, c Copy) (*Proposal, error) {
	p := &Proposal{
		LeadID:       l.LeadID,
		BusinessName: l.DisplayName,
		Headline:     c.Headline,
		Tagline:      c.Tagline,
		Summary:      c.Summary,
	}
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, p); err != nil {
		return nil, eris.Wrap(err, "proposal: render page")
	}
	p.HTML = buf.String()
	return p, nil
}

// WriteSite writes the proposal page to <dir>/<lead id>/index.html and
// returns the file path.
func WriteSite(dir string, p *Proposal) (string, error) {
	if p == nil || p.LeadID == "" {
		return "", eris.New("proposal: lead id is required")
	}
	if strings.ContainsAny(p.LeadID, `/\`) || p.LeadID == "." || p.LeadID == ".." {
		return "", eris.Errorf("proposal: invalid lead id %q", p.LeadID)
	}
	siteDir := filepath.Join(dir, p.LeadID)
	if err := os.MkdirAll(siteDir, 0o755); err != nil {
		return "", eris.Wrapf(err, "proposal: create %s", siteDir)
	}
	path := filepath.Join(siteDir, "index.html")
	if err := os.WriteFile(path, []byte(p.HTML), 0o644); err != nil {
		return "", eris.Wrapf(err, "proposal: write %s", path)
	}
	return path, nil
}
