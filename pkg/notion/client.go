// Package notion wraps the Notion API calls used by the manual review queue.
package notion

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client files and finds pages in a Notion database.
type Client interface {
	// FindByText returns the first page in dbID whose rich text property
	// equals value, or nil.
	FindByText(ctx context.Context, dbID, property, value string) (*notionapi.Page, error)
	// CreatePage adds a page to dbID and returns its id.
	CreatePage(ctx context.Context, dbID string, props notionapi.Properties, children []notionapi.Block) (string, error)
	// SetProperties overwrites the given properties of an existing page.
	SetProperties(ctx context.Context, pageID string, props notionapi.Properties) error
}

// ClientOption configures the Notion client.
type ClientOption func(*notionClient)

// WithRateLimit overrides the default 3 req/s throttle. Zero disables it.
func WithRateLimit(rps float64) ClientOption {
	return func(c *notionClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

type notionClient struct {
	databases notionapi.DatabaseService
	pages     notionapi.PageService
	limiter   *rate.Limiter
}

// NewClient creates a Client for an integration token, throttled to
// Notion's published 3 req/s.
func NewClient(token string, opts ...ClientOption) Client {
	api := notionapi.NewClient(notionapi.Token(token))
	return newClient(api.Database, api.Page, opts...)
}

func newClient(databases notionapi.DatabaseService, pages notionapi.PageService, opts ...ClientOption) *notionClient {
	c := &notionClient{
		databases: databases,
		pages:     pages,
		limiter:   rate.NewLimiter(3, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *notionClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "notion: rate limit")
	}
	return nil
}

func (c *notionClient) FindByText(ctx context.Context, dbID, property, value string) (*notionapi.Page, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.databases.Query(ctx, notionapi.DatabaseID(dbID), &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: property,
			RichText: &notionapi.TextFilterCondition{Equals: value},
		},
		PageSize: 1,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "notion: find page by %s", property)
	}
	if resp == nil || len(resp.Results) == 0 {
		return nil, nil
	}
	return &resp.Results[0], nil
}

func (c *notionClient) CreatePage(ctx context.Context, dbID string, props notionapi.Properties, children []notionapi.Block) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	page, err := c.pages.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(dbID),
		},
		Properties: props,
		Children:   children,
	})
	if err != nil {
		return "", eris.Wrapf(err, "notion: create page in %s", dbID)
	}
	return string(page.ID), nil
}

func (c *notionClient) SetProperties(ctx context.Context, pageID string, props notionapi.Properties) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	if _, err := c.pages.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{Properties: props}); err != nil {
		return eris.Wrapf(err, "notion: update page %s", pageID)
	}
	return nil
}
