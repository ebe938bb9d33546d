package fetch

import (
	"context"

	"github.com/cozy-creator/hf-hub/hub"
)

// Downloader materializes a repository into the local cache. Implementations
// must be idempotent: a repeated download resumes or no-ops.
type Downloader interface {
	Download(ctx context.Context, repo string) error
}

// HubDownloader downloads Hugging Face repositories into the hub cache.
type HubDownloader struct {
	client *hub.Client
}

// NewHubDownloader returns a downloader using the default hub client. A
// non-empty cacheDir overrides the cache location.
func NewHubDownloader(cacheDir string) *HubDownloader {
	c := hub.DefaultClient()
	if cacheDir != "" {
		c.CacheDir = cacheDir
	}
	return &HubDownloader{client: c}
}

// Download fetches every file of repo.
func (d *HubDownloader) Download(ctx context.Context, repo string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params := hub.DownloadParams{Repo: &hub.Repo{Id: repo}}
	_, err := d.client.Download(&params)
	return err
}
