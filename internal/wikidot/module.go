package wikidot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/wikidot-tools/reservebot/internal/domain"
)

// Higher-level operations composed on the raw client. These mirror the
// modules the reconciliation workflow needs; anything else goes through
// CallModule directly.

const (
	listPagesModule = "list/ListPagesModule"
	pageTagsModule  = "pagetags/PageTagsModule"
	emptyModule     = "Empty"
	lookupModule    = "PageLookupQModule"

	statusOK = "ok"
)

func decodeJSON(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	return dec.Decode(v)
}

// ListPages runs a ListPages query. The caller supplies category, ordering
// and the module_body row template; the returned Body is the rendered
// listing table.
func (c *Client) ListPages(ctx context.Context, params map[string]string) (*ModuleResponse, error) {
	resp, err := c.CallModule(ctx, params, listPagesModule)
	if err != nil {
		return nil, err
	}
	if resp.Status != statusOK {
		return nil, fmt.Errorf("listpages returned status %q: %s", resp.Status, resp.Message)
	}
	return resp, nil
}

// PageTags fetches the current tag set of a page.
func (c *Client) PageTags(ctx context.Context, page string) (domain.TagSet, error) {
	id, err := c.PageID(ctx, page)
	if err != nil {
		return nil, err
	}

	resp, err := c.CallModule(ctx, map[string]string{
		"pageId": strconv.FormatInt(id, 10),
	}, pageTagsModule)
	if err != nil {
		return nil, err
	}
	if resp.Status != statusOK {
		return nil, fmt.Errorf("pagetags on %s returned status %q: %s", page, resp.Status, resp.Message)
	}

	return domain.ParseTags(scrapeTagInput(resp.Body)), nil
}

// SaveTags replaces the full tag list of a page. The endpoint has no
// add/remove calls; callers always send the complete desired set.
func (c *Client) SaveTags(ctx context.Context, page string, tags domain.TagSet) error {
	id, err := c.PageID(ctx, page)
	if err != nil {
		return err
	}
	return c.pageAction(ctx, map[string]string{
		"tags":   tags.Wire(),
		"pageId": strconv.FormatInt(id, 10),
	}, "saveTags")
}

// RenamePage moves a page to a new unix name.
func (c *Client) RenamePage(ctx context.Context, page, newName string) error {
	id, err := c.PageID(ctx, page)
	if err != nil {
		return err
	}
	return c.pageAction(ctx, map[string]string{
		"new_name": newName,
		"page_id":  strconv.FormatInt(id, 10),
	}, "renamePage")
}

// DeletePage removes a page.
func (c *Client) DeletePage(ctx context.Context, page string) error {
	id, err := c.PageID(ctx, page)
	if err != nil {
		return err
	}
	return c.pageAction(ctx, map[string]string{
		"page_id": strconv.FormatInt(id, 10),
	}, "deletePage")
}

// SearchPages looks a query up on an arbitrary site via the quick lookup
// module. Zero hits is a valid answer, not an error.
func (c *Client) SearchPages(ctx context.Context, siteID int64, query string) ([]PageHit, error) {
	return c.QuickLookup(ctx, map[string]string{
		"s": strconv.FormatInt(siteID, 10),
		"q": query,
	}, lookupModule)
}

// pageAction posts a WikiPageAction event through the Empty module.
func (c *Client) pageAction(ctx context.Context, params map[string]string, event string) error {
	merged := make(map[string]string, len(params)+2)
	for k, v := range params {
		merged[k] = v
	}
	merged["action"] = "WikiPageAction"
	merged["event"] = event

	resp, err := c.CallModule(ctx, merged, emptyModule)
	if err != nil {
		return err
	}
	if resp.Status != statusOK {
		return fmt.Errorf("page action %s returned status %q: %s", event, resp.Status, resp.Message)
	}
	return nil
}
