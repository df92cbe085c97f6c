package library

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

// defaultGraphRoot is the Microsoft Graph v1.0 API base URL.
const defaultGraphRoot = "https://graph.microsoft.com/v1.0"

// defaultRequestsPerSecond bounds the sustained Graph request rate. Graph
// throttles aggressively on burst traffic from app-only clients; staying
// under 10 rps keeps a full-library walk well clear of 429 responses.
const defaultRequestsPerSecond = 10

// Config holds the settings for constructing a Client.
type Config struct {
	// TenantID is the Azure AD tenant for the client-credentials flow.
	TenantID string

	// ClientID and ClientSecret are the app registration credentials.
	ClientID     string
	ClientSecret string

	// SiteID is the Graph site identifier whose drives are browsed.
	SiteID string

	// BaseURL overrides the Graph API root. Used by tests; defaults to the
	// public Graph v1.0 endpoint.
	BaseURL string

	// TokenURL overrides the OAuth2 token endpoint. Used by tests.
	TokenURL string

	// HTTPTimeout is the per-request timeout. Defaults to 60s, long enough
	// for large PDF downloads over slow links.
	HTTPTimeout time.Duration

	// RequestsPerSecond bounds the sustained Graph request rate.
	// Defaults to 10 if zero.
	RequestsPerSecond float64
}

// Client talks to the Microsoft Graph drives API using app-only
// (client-credentials) authentication. It is safe for concurrent use; a
// shared token source refreshes the bearer token transparently and a
// token-bucket limiter paces all outbound requests.
type Client struct {
	// baseURL is the Graph API root without a trailing slash.
	baseURL string

	// siteID is the Graph site whose drives are browsed.
	siteID string

	// httpClient carries the OAuth2 transport that injects bearer tokens.
	httpClient *http.Client

	// limiter paces outbound requests to respect Graph throttling.
	limiter *rate.Limiter
}

// NewClient constructs a Client from the given config. Token acquisition is
// lazy: the first request triggers the client-credentials exchange.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.TenantID == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("library: tenant ID, client ID, and client secret are all required")
	}
	if cfg.SiteID == "" {
		return nil, fmt.Errorf("library: site ID is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultGraphRoot
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", cfg.TenantID)
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRequestsPerSecond
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{"https://graph.microsoft.com/.default"},
	}

	httpClient := cc.Client(context.Background())
	httpClient.Timeout = timeout

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		siteID:     cfg.SiteID,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(rps), int(rps)*2),
	}, nil
}

// driveItem is the subset of the Graph driveItem resource the client reads.
type driveItem struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	Folder *struct {
		ChildCount int `json:"childCount"`
	} `json:"folder,omitempty"`
	File *struct {
		MimeType string `json:"mimeType"`
	} `json:"file,omitempty"`
	DownloadURL string `json:"@microsoft.graph.downloadUrl"`
}

// listResponse is the Graph collection envelope for children listings.
type listResponse struct {
	Value    []driveItem `json:"value"`
	NextLink string      `json:"@odata.nextLink"`
}

// driveResponse is the Graph collection envelope for drive listings.
type driveResponse struct {
	Value []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"value"`
}

// ListDrives returns the document libraries available on the configured site.
func (c *Client) ListDrives(ctx context.Context) ([]Drive, error) {
	u := fmt.Sprintf("%s/sites/%s/drives", c.baseURL, url.PathEscape(c.siteID))

	var resp driveResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("library: list drives: %w", err)
	}

	drives := make([]Drive, 0, len(resp.Value))
	for _, d := range resp.Value {
		drives = append(drives, Drive{ID: d.ID, Name: d.Name})
	}
	return drives, nil
}

// ListDocuments walks the drive recursively and returns references to every
// supported document. Folder order follows the drive listing, so repeated
// walks of an unchanged drive return the same sequence.
func (c *Client) ListDocuments(ctx context.Context, driveID string) ([]DocumentRef, error) {
	refs, err := c.walkFolder(ctx, driveID, "/")
	if err != nil {
		return nil, fmt.Errorf("library: list documents in drive %s: %w", driveID, err)
	}
	return refs, nil
}

// walkFolder lists one folder and recurses into subfolders depth-first.
func (c *Client) walkFolder(ctx context.Context, driveID, folderPath string) ([]DocumentRef, error) {
	var u string
	if folderPath == "/" {
		u = fmt.Sprintf("%s/drives/%s/root/children", c.baseURL, url.PathEscape(driveID))
	} else {
		u = fmt.Sprintf("%s/drives/%s/root:%s:/children", c.baseURL, url.PathEscape(driveID), escapePath(folderPath))
	}

	var refs []DocumentRef
	for u != "" {
		var page listResponse
		if err := c.getJSON(ctx, u, &page); err != nil {
			return nil, fmt.Errorf("folder %s: %w", folderPath, err)
		}

		for _, item := range page.Value {
			childPath := joinDrivePath(folderPath, item.Name)

			if item.Folder != nil {
				sub, err := c.walkFolder(ctx, driveID, childPath)
				if err != nil {
					return nil, err
				}
				refs = append(refs, sub...)
				continue
			}

			ref := DocumentRef{
				DriveID:     driveID,
				ItemID:      item.ID,
				Path:        childPath,
				Name:        item.Name,
				DownloadURL: item.DownloadURL,
				Size:        item.Size,
			}
			if ref.Supported() {
				refs = append(refs, ref)
			}
		}

		u = page.NextLink
	}

	return refs, nil
}

// Fetch downloads the document content and computes its fingerprint.
// The returned Document is immutable; a later fetch of the same identity
// with different content yields a new Document with a new fingerprint.
func (c *Client) Fetch(ctx context.Context, ref DocumentRef) (*Document, error) {
	u := ref.DownloadURL
	if u == "" {
		u = fmt.Sprintf("%s/drives/%s/items/%s/content", c.baseURL, url.PathEscape(ref.DriveID), url.PathEscape(ref.ItemID))
	}

	body, err := c.get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("library: fetch %s: %w", ref.Path, err)
	}

	return &Document{
		Ref:         ref,
		Bytes:       body,
		Fingerprint: Fingerprint(body),
	}, nil
}

// Ping verifies the site is reachable with the configured credentials.
// Used by the server's readiness probe.
func (c *Client) Ping(ctx context.Context) error {
	u := fmt.Sprintf("%s/sites/%s/drives", c.baseURL, url.PathEscape(c.siteID))
	var resp driveResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return fmt.Errorf("library: %w", err)
	}
	return nil
}

// Name returns the probe label for readiness responses.
func (c *Client) Name() string { return "library" }

// getJSON performs a rate-limited GET and decodes the JSON response into out.
func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	body, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// get performs a rate-limited GET and returns the response body, mapping
// Graph auth and existence failures to the package sentinel errors.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// joinDrivePath joins a folder path and a child name without doubling slashes.
func joinDrivePath(folder, name string) string {
	if folder == "/" {
		return "/" + name
	}
	return folder + "/" + name
}

// escapePath escapes each segment of a drive path for use in a Graph URL.
func escapePath(p string) string {
	segments := strings.Split(strings.Trim(p, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return "/" + strings.Join(segments, "/")
}
