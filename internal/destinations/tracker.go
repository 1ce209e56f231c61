package destinations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bryanchriswhite/snapflow/internal/capture"
	"github.com/bryanchriswhite/snapflow/internal/logger"
	"github.com/bryanchriswhite/snapflow/internal/render"
)

// WorkItem is an open item in the tracker.
type WorkItem struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	State string `json:"state"`
}

type attachmentResponse struct {
	URL string `json:"url"`
}

// TrackerClient talks to the work item tracker's REST API.
type TrackerClient struct {
	baseURL string
	token   string
	project string
	client  *http.Client
}

// NewTrackerClient creates a client for the tracker at baseURL.
func NewTrackerClient(baseURL, token, project string) *TrackerClient {
	return &TrackerClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		project: project,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TrackerClient) authorize(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}
}

// WorkItems fetches the open work items of the configured project.
func (t *TrackerClient) WorkItems(ctx context.Context) ([]WorkItem, error) {
	u := t.baseURL + "/api/workitems"
	if t.project != "" {
		u += "?project=" + url.QueryEscape(t.project)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	t.authorize(req)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch work items: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tracker returned status %d", resp.StatusCode)
	}

	var items []WorkItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("failed to parse work items: %w", err)
	}
	return items, nil
}

// Attach uploads data as a file attached to work item id and returns the
// attachment URL.
func (t *TrackerClient) Attach(ctx context.Context, id, filename, contentType string, data []byte) (string, error) {
	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	part, err := mw.CreatePart(map[string][]string{
		"Content-Disposition": {fmt.Sprintf(`form-data; name="file"; filename=%q`, filename)},
		"Content-Type":        {contentType},
	})
	if err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}

	u := fmt.Sprintf("%s/api/workitems/%s/attachments", t.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	t.authorize(req)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to upload attachment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("tracker returned status %d", resp.StatusCode)
	}

	var ar attachmentResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return "", fmt.Errorf("failed to parse upload response: %w", err)
	}
	return ar.URL, nil
}

// WorkItemDestination attaches the capture to one work item.
type WorkItemDestination struct {
	client *TrackerClient
	item   WorkItem
}

// Item returns the work item the destination uploads to.
func (d *WorkItemDestination) Item() WorkItem { return d.item }

// Export implements capture.Destination.
func (d *WorkItemDestination) Export(ctx context.Context, c *capture.Context) (bool, error) {
	img, err := renderContext(c)
	if err != nil {
		return false, err
	}
	enc, err := render.NewEncoder("png", 0)
	if err != nil {
		return false, err
	}
	buf := new(bytes.Buffer)
	if err := enc.Encode(buf, img); err != nil {
		return false, fmt.Errorf("failed to encode png: %w", err)
	}

	name := c.Filename()
	if name == "" {
		name = "capture"
	}
	link, err := d.client.Attach(ctx, d.item.ID, name+"."+enc.Extension(), enc.ContentType(), buf.Bytes())
	if err != nil {
		return false, err
	}

	c.AddMetadata("work_item", d.item.ID)
	c.AddMetadata("upload_url", link)
	logger.WithComponent("tracker").Info().
		Str("work_item", d.item.ID).
		Str("url", link).
		Msg("Attached capture")
	return true, nil
}

// Description implements capture.Describer.
func (d *WorkItemDestination) Description() string {
	return fmt.Sprintf("Attach to #%s %s", d.item.ID, d.item.Title)
}

// TrackerDestination is the family of open work items. Exporting to the
// family itself uploads to the item named by the work_item metadata.
type TrackerDestination struct {
	client *TrackerClient
	family *capture.Family
}

var _ capture.DynamicDestination = (*TrackerDestination)(nil)

// NewTrackerDestination creates the family backed by client.
func NewTrackerDestination(client *TrackerClient) *TrackerDestination {
	d := &TrackerDestination{client: client}
	d.family = capture.NewFamily(d.fetch)
	return d
}

func (d *TrackerDestination) fetch(ctx context.Context) ([]capture.Destination, error) {
	items, err := d.client.WorkItems(ctx)
	if err != nil {
		return nil, err
	}
	members := make([]capture.Destination, 0, len(items))
	for _, item := range items {
		members = append(members, &WorkItemDestination{client: d.client, item: item})
	}
	logger.WithComponent("tracker").Debug().Int("items", len(members)).Msg("Fetched work items")
	return members, nil
}

// Export implements capture.Destination. Without a work_item metadata entry
// no export is made.
func (d *TrackerDestination) Export(ctx context.Context, c *capture.Context) (bool, error) {
	id, ok := c.MetadataValue("work_item")
	if !ok || id == "" {
		logger.WithComponent("tracker").Warn().Msg("No work item selected, capture not attached")
		return false, nil
	}
	members, err := d.family.Destinations(ctx)
	if err != nil {
		return false, err
	}
	for _, m := range members {
		if w, ok := m.(*WorkItemDestination); ok && w.item.ID == id {
			return w.Export(ctx, c)
		}
	}
	return false, fmt.Errorf("work item %q is not open", id)
}

// Destinations implements capture.DynamicDestination.
func (d *TrackerDestination) Destinations(ctx context.Context) ([]capture.Destination, error) {
	return d.family.Destinations(ctx)
}

// Invalidate implements capture.DynamicDestination.
func (d *TrackerDestination) Invalidate() { d.family.Invalidate() }

// Refresh drops the cached work items and fetches them again.
func (d *TrackerDestination) Refresh(ctx context.Context) error { return d.family.Refresh(ctx) }

// Description implements capture.Describer.
func (d *TrackerDestination) Description() string {
	return "Attach to a work item in " + d.client.baseURL
}
