package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/binaryphile/ddp-inspect/internal/cdda"
	"github.com/binaryphile/ddp-inspect/internal/config"
	"github.com/binaryphile/ddp-inspect/internal/musicbrainz"
)

const (
	testFolder = "/masters/album"
	testConfig = "/cfg/config.toml"
	testCache  = "/cache/lookups.json"
	testUPC    = "0886446672632"
)

// testTOC is the table of contents the fixture folder describes: track 1 at
// 00:02:00, track 2 at 03:00:00, lead-out at 05:00:00.
var testTOC = cdda.TOC{
	FirstTrack:    1,
	LastTrack:     2,
	LeadoutOffset: 22500,
	Tracks: []cdda.Track{
		{Num: 1, Offset: 150},
		{Num: 2, Offset: 13500},
	},
}

func put(b []byte, off, n int, s string) {
	copy(b[off:off+n], s+strings.Repeat(" ", n))
}

func fixtureID() []byte {
	b := []byte(strings.Repeat(" ", 128))
	put(b, 0, 8, "DDP 2.00")
	put(b, 8, 13, testUPC)
	put(b, 21, 8, "00000000")
	put(b, 29, 8, "00000000")
	put(b, 37, 1, "C")
	put(b, 38, 48, "CLI Test Master")
	put(b, 86, 1, "1")
	put(b, 87, 2, "CD")
	put(b, 89, 4, "1111")
	return b
}

func fixtureMapPacket(dsl, dss int, sub, cdm string, track int, isrc, name string) []byte {
	b := []byte(strings.Repeat(" ", 128))
	put(b, 0, 4, "VVVM")
	put(b, 4, 2, "D2")
	put(b, 6, 8, "00000000")
	put(b, 14, 8, fmt.Sprintf("%08d", dsl))
	put(b, 22, 8, fmt.Sprintf("%08d", dss))
	put(b, 30, 8, sub)
	put(b, 38, 2, cdm)
	put(b, 42, 12, "000000000000")
	put(b, 54, 1, "A")
	if track > 0 {
		put(b, 55, 4, fmt.Sprintf("%02d01", track))
	}
	put(b, 59, 12, isrc)
	put(b, 74, 17, name)
	return b
}

func fixturePQPacket(trk, idx string, min, sec int, isrc string) []byte {
	b := []byte(strings.Repeat(" ", 64))
	put(b, 0, 4, "VVVS")
	put(b, 4, 2, trk)
	put(b, 6, 2, idx)
	put(b, 8, 2, "00")
	put(b, 10, 6, fmt.Sprintf("%02d%02d00", min, sec))
	put(b, 16, 4, "0100")
	put(b, 20, 12, isrc)
	put(b, 32, 13, testUPC)
	return b
}

// writeFixture writes a consistent two-track DDP set to dir.
func writeFixture(t *testing.T, fs afero.Fs, dir string) {
	t.Helper()

	var pq []byte
	pq = append(pq, fixturePQPacket("01", "00", 0, 0, "USTST2400001")...)
	pq = append(pq, fixturePQPacket("01", "01", 0, 2, "USTST2400001")...)
	pq = append(pq, fixturePQPacket("02", "01", 3, 0, "USTST2400002")...)
	pq = append(pq, fixturePQPacket("AA", "01", 5, 0, "")...)

	var ms []byte
	ms = append(ms, fixtureMapPacket(4, 0, "", "DA", 1, "USTST2400001", "AUDIO001.DAT")...)
	ms = append(ms, fixtureMapPacket(6, 4, "", "DA", 2, "USTST2400002", "AUDIO002.DAT")...)
	ms = append(ms, fixtureMapPacket(len(pq), 0, "PQ DESCR", "", 0, "", "DDPPQ")...)

	files := map[string][]byte{
		"DDPID":        fixtureID(),
		"DDPMS":        ms,
		"DDPPQ":        pq,
		"AUDIO001.DAT": make([]byte, 4*2352),
		"AUDIO002.DAT": make([]byte, 6*2352),
	}
	require.NoError(t, fs.MkdirAll(dir, 0o755))
	for name, data := range files {
		require.NoError(t, afero.WriteFile(fs, dir+"/"+name, data, 0o644))
	}
}

type fakeService struct {
	mu       sync.Mutex
	calls    map[string]int
	discID   func(string) ([]musicbrainz.Release, error)
	barcode  func(string) ([]musicbrainz.Release, error)
	isrc     func([]string) ([]musicbrainz.Release, error)
	tracks   *musicbrainz.Release
	cover    []byte
	coverErr error
}

func newFakeService() *fakeService {
	return &fakeService{calls: make(map[string]int)}
}

func (f *fakeService) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeService) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

func (f *fakeService) LookupByDiscID(_ context.Context, id string) ([]musicbrainz.Release, error) {
	f.record("discid")
	if f.discID == nil {
		return nil, nil
	}
	return f.discID(id)
}

func (f *fakeService) SearchByBarcode(_ context.Context, bc string) ([]musicbrainz.Release, error) {
	f.record("barcode")
	if f.barcode == nil {
		return nil, nil
	}
	return f.barcode(bc)
}

func (f *fakeService) SearchByISRCs(_ context.Context, isrcs []string) ([]musicbrainz.Release, error) {
	f.record("isrc")
	if f.isrc == nil {
		return nil, nil
	}
	return f.isrc(isrcs)
}

func (f *fakeService) GetReleaseTracks(_ context.Context, mbid string) (*musicbrainz.Release, error) {
	f.record("tracks")
	if f.tracks == nil {
		return nil, fmt.Errorf("release %s not found", mbid)
	}
	return f.tracks, nil
}

func (f *fakeService) GetCoverArt(context.Context, string) ([]byte, string, error) {
	f.record("cover")
	if f.coverErr != nil {
		return nil, "", f.coverErr
	}
	if f.cover == nil {
		return nil, "", nil
	}
	return f.cover, "image/png", nil
}

func (f *fakeService) Close() error { return nil }

type cliEnv struct {
	fs  afero.Fs
	svc *fakeService
}

// newCLIEnv returns an in-memory filesystem holding the fixture folder and a
// config that points the cache into it.
func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	fs := afero.NewMemMapFs()
	writeFixture(t, fs, testFolder)
	cfg := fmt.Sprintf("[musicbrainz]\nretry_delay_ms = 0\n\n[cache]\npath = %q\n", testCache)
	require.NoError(t, afero.WriteFile(fs, testConfig, []byte(cfg), 0o644))
	return &cliEnv{fs: fs, svc: newFakeService()}
}

func (e *cliEnv) run(args ...string) (string, error) {
	return e.runContext(context.Background(), args...)
}

func (e *cliEnv) runContext(ctx context.Context, args ...string) (string, error) {
	cmd := newRootCommandWith(func(c *commandContext) {
		c.fs = e.fs
		c.newService = func(*config.Config, *slog.Logger) lookupService { return e.svc }
	})
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", testConfig, "--log-level", "error"}, args...))
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func sampleRelease() musicbrainz.Release {
	return musicbrainz.Release{
		MBID:       "0f8d1c4e-3a5b-4d2c-9e7f-1a2b3c4d5e6f",
		Title:      "CLI Test Album",
		Artist:     "The Testers",
		Year:       2024,
		Country:    "US",
		Barcode:    testUPC,
		TrackCount: 2,
		DiscCount:  1,
	}
}
