package musicbrainz

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uploadedlobster.com/mbtypes"
	"go.uploadedlobster.com/musicbrainzws2"

	"github.com/binaryphile/ddp-inspect/internal/logging"
)

// DefaultBaseURL is the MusicBrainz web service root.
const DefaultBaseURL = "https://musicbrainz.org/ws/2"

// Release contains metadata for an album/release
type Release struct {
	MBID        string  `json:"mbid"`
	Title       string  `json:"title"`
	Artist      string  `json:"artist"` // may be "Various Artists" for compilations
	Year        int     `json:"year,omitempty"`
	Country     string  `json:"country,omitempty"`
	Barcode     string  `json:"barcode,omitempty"`
	TrackCount  int     `json:"track_count"`
	DiscCount   int     `json:"disc_count"`
	Tracks      []Track `json:"tracks,omitempty"`
	Compilation bool    `json:"compilation,omitempty"`
}

// Track contains metadata for a single track
type Track struct {
	Num    int    `json:"num"`
	Title  string `json:"title"`
	Artist string `json:"artist"` // may differ from album artist on compilations
}

// Client wraps the MusicBrainz API. Every request passes through the
// client's gate, so one Client never exceeds its request rate.
type Client struct {
	client      *musicbrainzws2.Client
	http        *resty.Client
	gate        *Gate
	userAgent   string
	coverArtURL string
	logger      *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL points the ISRC search at another WS/2 root, for mirrors and tests.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.http.SetBaseURL(strings.TrimRight(url, "/"))
	}
}

// WithCoverArtURL overrides the Cover Art Archive root.
func WithCoverArtURL(url string) ClientOption {
	return func(c *Client) {
		c.coverArtURL = strings.TrimRight(url, "/")
	}
}

// WithInterval sets the minimum spacing between requests.
func WithInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		c.gate = NewGate(d)
	}
}

// WithTimeout bounds each HTTP request made through resty.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.http.SetTimeout(d)
	}
}

// WithClientLogger sets the logger for request-level debug output.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "musicbrainz")
	}
}

// NewClient creates a new MusicBrainz API client
func NewClient(appName, version, contact string, opts ...ClientOption) *Client {
	client := musicbrainzws2.NewClient(musicbrainzws2.AppInfo{
		Name:    appName,
		Version: version,
		URL:     contact,
	})

	userAgent := fmt.Sprintf("%s/%s ( %s )", appName, version, contact)
	c := &Client{
		client:      client,
		gate:        NewGate(time.Second),
		userAgent:   userAgent,
		coverArtURL: "https://coverartarchive.org",
		logger:      logging.NewNop(),
		http: resty.New().
			SetBaseURL(DefaultBaseURL).
			SetTimeout(10*time.Second).
			SetHeader("User-Agent", userAgent).
			SetHeader("Accept", "application/json"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close releases client resources
func (c *Client) Close() error {
	return c.client.Close()
}

// LookupByDiscID looks up releases by MusicBrainz disc ID.
// Returns a list of matching releases (may be multiple pressings/editions).
// An unknown disc ID is an empty result, not an error.
func (c *Client) LookupByDiscID(ctx context.Context, discID string) ([]Release, error) {
	if err := c.gate.Wait(ctx); err != nil {
		return nil, err
	}

	filter := musicbrainzws2.DiscIDFilter{
		Includes: []string{"recordings", "artists", "release-groups"},
	}

	c.logger.Debug("disc id lookup", logging.String(logging.FieldDiscID, discID))
	disc, err := c.client.LookupDiscID(ctx, discID, filter)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("disc lookup: %w", err)
	}

	var releases []Release
	for _, r := range disc.Releases {
		releases = append(releases, toRelease(r))
	}
	return releases, nil
}

// SearchByBarcode finds releases carrying the given UPC/EAN barcode.
func (c *Client) SearchByBarcode(ctx context.Context, barcode string) ([]Release, error) {
	releases, err := c.Search(ctx, "barcode:"+barcode)
	if err != nil {
		return nil, fmt.Errorf("barcode search: %w", err)
	}
	return releases, nil
}

// GetReleaseTracks fetches full track information for a release.
// Call this after selecting a release from LookupByDiscID.
func (c *Client) GetReleaseTracks(ctx context.Context, mbid string) (*Release, error) {
	if err := c.gate.Wait(ctx); err != nil {
		return nil, err
	}

	filter := musicbrainzws2.IncludesFilter{
		Includes: []string{"recordings", "artists", "artist-credits"},
	}

	r, err := c.client.LookupRelease(ctx, mbtypes.MBID(mbid), filter)
	if err != nil {
		return nil, fmt.Errorf("release lookup: %w", err)
	}

	release := toRelease(r)

	// Extract tracks from all media
	for _, medium := range r.Media {
		for _, track := range medium.Tracks {
			t := Track{
				Num:    track.Position,
				Title:  track.Title,
				Artist: getTrackArtist(track, r.ArtistCredit),
			}
			release.Tracks = append(release.Tracks, t)
		}
	}

	return &release, nil
}

// Search searches for releases by Lucene query (artist, album, barcode, ...).
func (c *Client) Search(ctx context.Context, query string) ([]Release, error) {
	if err := c.gate.Wait(ctx); err != nil {
		return nil, err
	}

	filter := musicbrainzws2.SearchFilter{
		Query: query,
	}

	paginator := musicbrainzws2.DefaultPaginator()

	c.logger.Debug("release search", logging.String("query", query))
	result, err := c.client.SearchReleases(ctx, filter, paginator)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("search: %w", err)
	}

	var releases []Release
	for _, r := range result.Releases {
		releases = append(releases, toRelease(r))
	}
	return releases, nil
}

func toRelease(r musicbrainzws2.Release) Release {
	return Release{
		MBID:        string(r.ID),
		Title:       r.Title,
		Artist:      getArtistName(r.ArtistCredit),
		Year:        r.Date.Year,
		Country:     string(r.CountryCode),
		Barcode:     r.Barcode,
		TrackCount:  getTotalTracks(r.Media),
		DiscCount:   len(r.Media),
		Compilation: isCompilation(r.ArtistCredit),
	}
}

// SortReleasesByTrackMatch orders releases so those with exactly trackCount
// tracks come first; within each group newer releases come first. The input
// is not modified.
func SortReleasesByTrackMatch(releases []Release, trackCount int) []Release {
	sorted := make([]Release, len(releases))
	copy(sorted, releases)
	sort.SliceStable(sorted, func(i, j int) bool {
		mi := sorted[i].TrackCount == trackCount
		mj := sorted[j].TrackCount == trackCount
		if mi != mj {
			return mi
		}
		return sorted[i].Year > sorted[j].Year
	})
	return sorted
}

func getArtistName(credit musicbrainzws2.ArtistCredit) string {
	if len(credit) == 0 {
		return "Unknown Artist"
	}
	return credit.String()
}

func getTrackArtist(track musicbrainzws2.Track, albumCredit musicbrainzws2.ArtistCredit) string {
	if len(track.ArtistCredit) > 0 {
		return track.ArtistCredit.String()
	}
	if len(track.Recording.ArtistCredit) > 0 {
		return track.Recording.ArtistCredit.String()
	}
	return getArtistName(albumCredit)
}

func isCompilation(credit musicbrainzws2.ArtistCredit) bool {
	if len(credit) == 0 {
		return false
	}
	name := getArtistName(credit)
	return name == "Various Artists"
}

func getTotalTracks(media []musicbrainzws2.Medium) int {
	total := 0
	for _, m := range media {
		total += m.TrackCount
	}
	return total
}

// isNotFound recognizes the web service's 404 response. musicbrainzws2 only
// surfaces it through the error text.
func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "404") || strings.Contains(msg, "not found")
}
