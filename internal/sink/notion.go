package sink

import (
	"context"
	"time"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"

	"github.com/doernaz/brandlift/internal/discovery"
	"github.com/doernaz/brandlift/pkg/notion"
)

// Notion database property names.
const (
	propName         = "Name"
	propLeadID       = "Lead ID"
	propRunID        = "Run ID"
	propRuns         = "Runs"
	propEmail        = "Email"
	propSource       = "Source"
	propStatus       = "Status"
	propConfidence   = "Confidence"
	propLocation     = "Location"
	propKeyword      = "Keyword"
	propWebsite      = "Website"
	propPhone        = "Phone"
	propDiscoveredAt = "Discovered At"
)

// NotionSink keeps leads as pages of a Notion database, keyed by the
// "Lead ID" rich-text property.
type NotionSink struct {
	client notion.Client
	dbID   string
}

// NewNotion creates a NotionSink for the database dbID.
func NewNotion(client notion.Client, dbID string) *NotionSink {
	return &NotionSink{client: client, dbID: dbID}
}

// Ping fetches the database.
func (s *NotionSink) Ping(ctx context.Context) error {
	if _, err := s.client.GetDatabase(ctx, s.dbID); err != nil {
		return eris.Wrap(err, "sink: notion ping")
	}
	return nil
}

// Persist updates the page of every known lead and creates the rest. A
// known page keeps the runs it already belongs to.
func (s *NotionSink) Persist(ctx context.Context, leads []*discovery.VerifiedLead) error {
	for _, r := range uniqueRows(leads) {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "sink: notion persist canceled")
		}

		page, err := notion.FindByText(ctx, s.client, s.dbID, propLeadID, r.LeadID)
		if err != nil {
			return eris.Wrapf(err, "sink: notion lookup %s", r.LeadID)
		}

		props := leadProperties(r)
		if page != nil {
			props[propRuns] = runsProperty(append(pageRuns(page.Properties), r.RunID)...)
			if _, err := s.client.UpdatePage(ctx, string(page.ID), &notionapi.PageUpdateRequest{Properties: props}); err != nil {
				return eris.Wrapf(err, "sink: notion update %s", r.LeadID)
			}
			continue
		}

		if _, err := s.client.CreatePage(ctx, &notionapi.PageCreateRequest{
			Parent: notionapi.Parent{
				Type:       notionapi.ParentTypeDatabaseID,
				DatabaseID: notionapi.DatabaseID(s.dbID),
			},
			Properties: props,
		}); err != nil {
			return eris.Wrapf(err, "sink: notion create %s", r.LeadID)
		}
	}
	return nil
}

// ListByRunID queries the pages whose "Runs" contain runID.
func (s *NotionSink) ListByRunID(ctx context.Context, runID string) ([]*discovery.VerifiedLead, error) {
	pages, err := notion.QueryAll(ctx, s.client, s.dbID, notionapi.PropertyFilter{
		Property:    propRuns,
		MultiSelect: &notionapi.MultiSelectFilterCondition{Contains: runID},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "sink: notion list run %s", runID)
	}
	out := make([]*discovery.VerifiedLead, 0, len(pages))
	for _, p := range pages {
		lead := rowFromProperties(p.Properties).Lead()
		lead.RunID = runID
		out = append(out, lead)
	}
	return out, nil
}

func (s *NotionSink) Close() error {
	return nil
}

func richText(v string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{
		Type: notionapi.PropertyTypeRichText,
		RichText: []notionapi.RichText{
			{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: v}},
		},
	}
}

func runsProperty(runs ...string) notionapi.MultiSelectProperty {
	seen := make(map[string]struct{}, len(runs))
	opts := make([]notionapi.Option, 0, len(runs))
	for _, run := range runs {
		if _, ok := seen[run]; ok || run == "" {
			continue
		}
		seen[run] = struct{}{}
		opts = append(opts, notionapi.Option{Name: run})
	}
	return notionapi.MultiSelectProperty{Type: notionapi.PropertyTypeMultiSelect, MultiSelect: opts}
}

func pageRuns(props notionapi.Properties) []string {
	var opts []notionapi.Option
	switch p := props[propRuns].(type) {
	case *notionapi.MultiSelectProperty:
		opts = p.MultiSelect
	case notionapi.MultiSelectProperty:
		opts = p.MultiSelect
	}
	runs := make([]string, 0, len(opts))
	for _, o := range opts {
		runs = append(runs, o.Name)
	}
	return runs
}

func leadProperties(r Row) notionapi.Properties {
	discovered := notionapi.Date(r.DiscoveredAt)
	props := notionapi.Properties{
		propName: notionapi.TitleProperty{
			Type: notionapi.PropertyTypeTitle,
			Title: []notionapi.RichText{
				{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: r.BusinessName}},
			},
		},
		propLeadID:     richText(r.LeadID),
		propRunID:      richText(r.RunID),
		propRuns:       runsProperty(r.RunID),
		propLocation:   richText(r.Location),
		propKeyword:    richText(r.Keyword),
		propPhone:      richText(r.Phone),
		propEmail:      notionapi.EmailProperty{Type: notionapi.PropertyTypeEmail, Email: r.Email},
		propSource:     notionapi.SelectProperty{Type: notionapi.PropertyTypeSelect, Select: notionapi.Option{Name: r.Source}},
		propStatus:     notionapi.SelectProperty{Type: notionapi.PropertyTypeSelect, Select: notionapi.Option{Name: r.Status}},
		propConfidence: notionapi.NumberProperty{Type: notionapi.PropertyTypeNumber, Number: r.Confidence},
		propDiscoveredAt: notionapi.DateProperty{
			Type: notionapi.PropertyTypeDate,
			Date: &notionapi.DateObject{Start: &discovered},
		},
	}
	if r.Website != "" {
		props[propWebsite] = notionapi.URLProperty{Type: notionapi.PropertyTypeURL, URL: r.Website}
	}
	return props
}

// rowFromProperties reads a page back. Query responses decode properties
// into pointer types; values are accepted too.
func rowFromProperties(props notionapi.Properties) Row {
	var r Row
	for name, prop := range props {
		switch p := prop.(type) {
		case *notionapi.TitleProperty:
			if name == propName {
				r.BusinessName = notion.PlainText(p.Title)
			}
		case *notionapi.RichTextProperty:
			setText(&r, name, notion.PlainText(p.RichText))
		case notionapi.RichTextProperty:
			setText(&r, name, notion.PlainText(p.RichText))
		case *notionapi.EmailProperty:
			r.Email = p.Email
		case *notionapi.URLProperty:
			r.Website = p.URL
		case *notionapi.NumberProperty:
			r.Confidence = p.Number
		case *notionapi.SelectProperty:
			switch name {
			case propSource:
				r.Source = p.Select.Name
			case propStatus:
				r.Status = p.Select.Name
			}
		case *notionapi.DateProperty:
			if p.Date != nil && p.Date.Start != nil {
				r.DiscoveredAt = time.Time(*p.Date.Start)
			}
		}
	}
	return r
}

func setText(r *Row, name, v string) {
	switch name {
	case propLeadID:
		r.LeadID = v
	case propRunID:
		r.RunID = v
	case propLocation:
		r.Location = v
	case propKeyword:
		r.Keyword = v
	case propPhone:
		r.Phone = v
	}
}
