package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const apiBase = "https://www.googleapis.com/drive/v3"

// File is the subset of Drive file metadata the sync cares about.
type File struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size,string,omitempty"`
}

// Client is a thin wrapper over the Drive REST API. The http.Client is
// expected to carry OAuth credentials (an oauth2 transport).
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Client{baseURL: apiBase, httpClient: httpClient}
}

// ListFiles returns the user's non-trashed files, paging through the full
// listing.
func (c *Client) ListFiles(ctx context.Context) ([]File, error) {
	var files []File
	pageToken := ""

	for {
		q := url.Values{}
		q.Set("q", "trashed = false")
		q.Set("fields", "nextPageToken, files(id, name, mimeType, size)")
		q.Set("pageSize", "100")
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}

		req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/files?"+q.Encode(), nil)
		if err != nil {
			return nil, fmt.Errorf("create list request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("list files: %w", err)
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("list failed (%d): %s", resp.StatusCode, string(body))
		}

		var page struct {
			NextPageToken string `json:"nextPageToken"`
			Files         []File `json:"files"`
		}
		err = json.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decode list response: %w", err)
		}

		files = append(files, page.Files...)
		if page.NextPageToken == "" {
			return files, nil
		}
		pageToken = page.NextPageToken
	}
}

// Download fetches the raw bytes of a regular (non-Google-Docs) file.
func (c *Client) Download(ctx context.Context, fileID string) ([]byte, error) {
	return c.get(ctx, fmt.Sprintf("%s/files/%s?alt=media", c.baseURL, url.PathEscape(fileID)))
}

// Export converts a Google-native document to the given MIME type and
// returns the result.
func (c *Client) Export(ctx context.Context, fileID, mimeType string) ([]byte, error) {
	return c.get(ctx, fmt.Sprintf("%s/files/%s/export?mimeType=%s",
		c.baseURL, url.PathEscape(fileID), url.QueryEscape(mimeType)))
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("fetch failed (%d): %s", resp.StatusCode, string(body))
	}
	return io.ReadAll(resp.Body)
}
