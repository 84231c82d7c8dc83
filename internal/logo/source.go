package logo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"time"

	"invoicer/assets"
	"invoicer/internal/profile"
)

// maxImageBytes bounds how much of a candidate is read.
const maxImageBytes = 5 << 20

var (
	ErrEmptyImage   = errors.New("empty image data")
	ErrImageTooBig  = errors.New("image exceeds size limit")
	ErrUnknownKind  = errors.New("unknown logo source")
	ErrBadHTTPReply = errors.New("unexpected HTTP status")
)

// Source is one candidate location of the logo image.
type Source interface {
	Name() string
	Load(ctx context.Context) ([]byte, error)
}

// FileSource reads the logo from the local filesystem.
type FileSource struct {
	Path string
}

func (s FileSource) Name() string { return "file:" + s.Path }

func (s FileSource) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readLimited(f)
}

// FSSource reads the logo from an fs.FS, the embedded brand assets by default.
type FSSource struct {
	FS   fs.FS
	Path string
}

func (s FSSource) Name() string { return "embedded:" + s.Path }

func (s FSSource) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fsys := s.FS
	if fsys == nil {
		fsys = assets.BrandFS
	}
	f, err := fsys.Open(s.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readLimited(f)
}

// HTTPSource downloads the logo.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

func (s HTTPSource) Name() string { return "url:" + s.URL }

func (s HTTPSource) Load(ctx context.Context) ([]byte, error) {
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrBadHTTPReply, resp.StatusCode)
	}
	return readLimited(resp.Body)
}

// BytesSource serves an in-memory image.
type BytesSource struct {
	Label string
	Data  []byte
}

func (s BytesSource) Name() string { return "bytes:" + s.Label }

func (s BytesSource) Load(context.Context) ([]byte, error) {
	if len(s.Data) == 0 {
		return nil, ErrEmptyImage
	}
	return s.Data, nil
}

// SourcesFromProfile converts the profile's logo candidates, in order.
func SourcesFromProfile(locs []profile.LogoLocation, client *http.Client) ([]Source, error) {
	sources := make([]Source, 0, len(locs))
	for _, l := range locs {
		switch l.Source {
		case profile.SourceFile:
			sources = append(sources, FileSource{Path: l.Location})
		case profile.SourceURL:
			sources = append(sources, HTTPSource{URL: l.Location, Client: client})
		case profile.SourceEmbedded:
			sources = append(sources, FSSource{Path: l.Location})
		default:
			return nil, fmt.Errorf("%w %q", ErrUnknownKind, l.Source)
		}
	}
	return sources, nil
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxImageBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	if len(data) > maxImageBytes {
		return nil, ErrImageTooBig
	}
	return data, nil
}
