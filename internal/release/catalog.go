package release

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultCatalogURL is the GitHub API endpoint listing QuestDB
// releases, newest first.
const DefaultCatalogURL = "https://api.github.com/repos/questdb/questdb/releases"

// assetSuffix identifies the installable no-JRE binary tarball among a
// release's assets.
const assetSuffix = "-no-jre-bin.tar.gz"

// Release is one installable catalog entry.
type Release struct {
	Version     Version
	DownloadURL string
}

// Catalog lists installable releases from the public release feed.
type Catalog struct {
	baseURL string
	httpc   *http.Client
	logger  *slog.Logger
}

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

// WithCatalogURL overrides the release feed endpoint. Used by tests
// and by air-gapped mirrors.
func WithCatalogURL(u string) CatalogOption {
	return func(c *Catalog) {
		c.baseURL = u
	}
}

// WithCatalogLogger sets the catalog's logger.
func WithCatalogLogger(logger *slog.Logger) CatalogOption {
	return func(c *Catalog) {
		c.logger = logger
	}
}

// NewCatalog creates a catalog client against the public release feed.
func NewCatalog(opts ...CatalogOption) *Catalog {
	c := &Catalog{
		baseURL: DefaultCatalogURL,
		httpc:   &http.Client{Timeout: 30 * time.Second},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ghRelease is the subset of the GitHub release payload the catalog
// reads.
type ghRelease struct {
	TagName string `json:"tag_name"`
	Assets  []struct {
		Name               string `json:"name"`
		BrowserDownloadURL string `json:"browser_download_url"`
	} `json:"assets"`
}

// Releases returns up to n releases, newest first. Entries without an
// installable binary asset or with an unparseable tag are skipped.
func (c *Catalog) Releases(ctx context.Context, n int) ([]Release, error) {
	u := c.baseURL + "?" + url.Values{"per_page": {strconv.Itoa(n)}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch release catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("release catalog returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read release catalog: %w", err)
	}

	var entries []ghRelease
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("parse release catalog: %w", err)
	}

	releases := make([]Release, 0, len(entries))
	for _, entry := range entries {
		version, err := ParseVersion(entry.TagName)
		if err != nil {
			c.logger.Debug("skipping release with unparseable tag", "tag", entry.TagName)
			continue
		}
		downloadURL := ""
		for _, asset := range entry.Assets {
			if strings.HasSuffix(asset.Name, assetSuffix) {
				downloadURL = asset.BrowserDownloadURL
				break
			}
		}
		if downloadURL == "" {
			c.logger.Debug("skipping release without binary asset", "tag", entry.TagName)
			continue
		}
		releases = append(releases, Release{Version: version, DownloadURL: downloadURL})
	}
	return releases, nil
}
