package musicbrainz

import (
	"context"
	"fmt"
	"net/http"
)

// GetCoverArt fetches the front cover of a release from the Cover Art Archive.
// Returns (data, mimeType, nil) on success.
// Returns (nil, "", nil) if the release has no cover.
// Returns (nil, "", error) on network/timeout errors.
func (c *Client) GetCoverArt(ctx context.Context, mbid string) ([]byte, string, error) {
	if err := c.gate.Wait(ctx); err != nil {
		return nil, "", err
	}

	url := fmt.Sprintf("%s/release/%s/front-250", c.coverArtURL, mbid)

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "image/*").
		Get(url)
	if err != nil {
		return nil, "", fmt.Errorf("cover art fetch: %w", err)
	}

	if resp.StatusCode() == http.StatusNotFound {
		return nil, "", nil
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, "", &StatusError{Op: "cover art", Code: resp.StatusCode()}
	}

	mimeType := resp.Header().Get("Content-Type")
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	return resp.Body(), mimeType, nil
}
