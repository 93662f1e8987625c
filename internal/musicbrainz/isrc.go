package musicbrainz

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/binaryphile/ddp-inspect/internal/logging"
)

// maxISRCsPerQuery keeps the Lucene query well under URL length limits.
const maxISRCsPerQuery = 25

// StatusError is a non-success HTTP response from a resty-backed call.
type StatusError struct {
	Op   string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d", e.Op, e.Code)
}

// Temporary reports whether retrying the request may succeed.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

type recordingSearch struct {
	Recordings []struct {
		ID           string         `json:"id"`
		Title        string         `json:"title"`
		ISRCs        []string       `json:"isrcs"`
		ArtistCredit []artistCredit `json:"artist-credit"`
		Releases     []struct {
			ID           string         `json:"id"`
			Title        string         `json:"title"`
			Date         string         `json:"date"`
			Country      string         `json:"country"`
			TrackCount   int            `json:"track-count"`
			ArtistCredit []artistCredit `json:"artist-credit"`
			Media        []struct {
				TrackCount int `json:"track-count"`
			} `json:"media"`
		} `json:"releases"`
	} `json:"recordings"`
}

type artistCredit struct {
	Name       string `json:"name"`
	JoinPhrase string `json:"joinphrase"`
}

func creditString(credits []artistCredit) string {
	var b strings.Builder
	for _, c := range credits {
		b.WriteString(c.Name)
		b.WriteString(c.JoinPhrase)
	}
	return b.String()
}

// SearchByISRCs runs a batched recording search, isrc:(A OR B ...), and
// returns the distinct releases those recordings appear on, in response
// order. Large ISRC sets are split into several requests.
func (c *Client) SearchByISRCs(ctx context.Context, isrcs []string) ([]Release, error) {
	var releases []Release
	seen := make(map[string]bool)

	for start := 0; start < len(isrcs); start += maxISRCsPerQuery {
		batch := isrcs[start:min(start+maxISRCsPerQuery, len(isrcs))]
		found, err := c.searchISRCBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		for _, r := range found {
			if seen[r.MBID] {
				continue
			}
			seen[r.MBID] = true
			releases = append(releases, r)
		}
	}
	return releases, nil
}

func (c *Client) searchISRCBatch(ctx context.Context, isrcs []string) ([]Release, error) {
	if err := c.gate.Wait(ctx); err != nil {
		return nil, err
	}

	query := "isrc:(" + strings.Join(isrcs, " OR ") + ")"
	c.logger.Debug("isrc search", logging.String("query", query))

	var result recordingSearch
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"query": query,
			"fmt":   "json",
			"limit": "100",
		}).
		SetResult(&result).
		Get("/recording")
	if err != nil {
		return nil, fmt.Errorf("isrc search: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if resp.IsError() {
		return nil, &StatusError{Op: "isrc search", Code: resp.StatusCode()}
	}

	var releases []Release
	for _, rec := range result.Recordings {
		for _, r := range rec.Releases {
			trackCount := r.TrackCount
			if len(r.Media) > 0 {
				trackCount = 0
				for _, m := range r.Media {
					trackCount += m.TrackCount
				}
			}
			credits := r.ArtistCredit
			if len(credits) == 0 {
				credits = rec.ArtistCredit
			}
			artist := creditString(credits)
			if artist == "" {
				artist = "Unknown Artist"
			}
			releases = append(releases, Release{
				MBID:        r.ID,
				Title:       r.Title,
				Artist:      artist,
				Year:        yearOf(r.Date),
				Country:     r.Country,
				TrackCount:  trackCount,
				DiscCount:   len(r.Media),
				Compilation: artist == "Various Artists",
			})
		}
	}
	return releases, nil
}

// yearOf extracts the year from a partial date such as 2004, 2004-05 or
// 2004-05-17.
func yearOf(date string) int {
	if len(date) < 4 {
		return 0
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return y
}
