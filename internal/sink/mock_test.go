package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/jomei/notionapi"

	"github.com/doernaz/brandlift/internal/discovery"
	"github.com/doernaz/brandlift/internal/waterfall"
)

// fakeNotion is an in-memory notion.Client. Pages are matched on the
// equality filter of a single rich-text property or the contains filter of
// a multi-select.
type fakeNotion struct {
	dbErr   error
	pages   []notionapi.Page
	creates int
	updates int
	nextID  int
}

func (f *fakeNotion) GetDatabase(_ context.Context, dbID string) (*notionapi.Database, error) {
	if f.dbErr != nil {
		return nil, f.dbErr
	}
	return &notionapi.Database{ID: notionapi.ObjectID(dbID)}, nil
}

func (f *fakeNotion) QueryDatabase(_ context.Context, _ string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	pf, _ := req.Filter.(notionapi.PropertyFilter)
	var out []notionapi.Page
	for _, p := range f.pages {
		switch {
		case pf.RichText != nil:
			if rt, ok := p.Properties[pf.Property].(*notionapi.RichTextProperty); ok && textOf(rt.RichText) == pf.RichText.Equals {
				out = append(out, p)
			}
		case pf.MultiSelect != nil:
			if ms, ok := p.Properties[pf.Property].(*notionapi.MultiSelectProperty); ok {
				for _, o := range ms.MultiSelect {
					if o.Name == pf.MultiSelect.Contains {
						out = append(out, p)
						break
					}
				}
			}
		default:
			out = append(out, p)
		}
	}
	return &notionapi.DatabaseQueryResponse{Results: out}, nil
}

func (f *fakeNotion) CreatePage(_ context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	f.creates++
	f.nextID++
	p := notionapi.Page{ID: notionapi.ObjectID(fmt.Sprintf("page-%d", f.nextID)), Properties: asStored(req.Properties)}
	f.pages = append(f.pages, p)
	return &p, nil
}

func (f *fakeNotion) UpdatePage(_ context.Context, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
	f.updates++
	for i := range f.pages {
		if string(f.pages[i].ID) == pageID {
			f.pages[i].Properties = asStored(req.Properties)
			return &f.pages[i], nil
		}
	}
	return nil, fmt.Errorf("page %s not found", pageID)
}

func textOf(rt []notionapi.RichText) string {
	var s string
	for _, t := range rt {
		if t.Text != nil {
			s += t.Text.Content
		}
		s += t.PlainText
	}
	return s
}

// asStored converts request properties to the pointer forms the API
// returns, filling PlainText like Notion does.
func asStored(in notionapi.Properties) notionapi.Properties {
	plain := func(rt []notionapi.RichText) []notionapi.RichText {
		out := make([]notionapi.RichText, len(rt))
		for i, t := range rt {
			out[i] = notionapi.RichText{PlainText: t.Text.Content}
		}
		return out
	}
	out := make(notionapi.Properties, len(in))
	for k, v := range in {
		switch p := v.(type) {
		case notionapi.TitleProperty:
			out[k] = &notionapi.TitleProperty{Title: plain(p.Title)}
		case notionapi.RichTextProperty:
			out[k] = &notionapi.RichTextProperty{RichText: plain(p.RichText)}
		case notionapi.EmailProperty:
			out[k] = &p
		case notionapi.SelectProperty:
			out[k] = &p
		case notionapi.MultiSelectProperty:
			out[k] = &p
		case notionapi.NumberProperty:
			out[k] = &p
		case notionapi.URLProperty:
			out[k] = &p
		case notionapi.DateProperty:
			out[k] = &p
		}
	}
	return out
}

func ptr[T any](v T) *T { return &v }

var discoveredAt = time.Date(2026, 3, 1, 17, 30, 0, 0, time.UTC)

func testLead(runID, name, email, source string) *discovery.VerifiedLead {
	l := &discovery.VerifiedLead{
		Candidate: discovery.Candidate{
			PlaceID:          "place-" + name,
			DisplayName:      name,
			FormattedAddress: "100 N Central Ave, Phoenix, AZ",
			WebsiteURI:       "",
			Rating:           ptr(4.7),
			UserRatingCount:  ptr(88),
			BusinessStatus:   discovery.StatusOperational,
			Phone:            "(602) 555-0100",
		},
		RunID:            runID,
		Keyword:          "Cosmetic Dentistry",
		Location:         "Phoenix, AZ",
		ContactEmail:     email,
		EnrichmentSource: source,
		Confidence:       0.1,
		DiscoveredAt:     discoveredAt,
	}
	if source == waterfall.SourceHunter {
		l.Confidence = 0.92
		l.Domain = "desertsmiles.com"
		l.WebsiteURI = "https://desertsmiles.com"
		l.Socials = map[string]string{"instagram": "https://instagram.com/desertsmiles"}
	}
	l.LeadID = discovery.LeadID(discovery.DedupKey(l))
	return l
}
