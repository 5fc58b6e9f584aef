package mapview

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/paulmach/orb/geojson"
)

// AssetLoader fetches the static feature collection of the data layer.
type AssetLoader interface {
	Load(ctx context.Context) ([]byte, error)
	Location() string
}

// BytesAsset serves an in-memory document, such as an embedded file.
type BytesAsset struct {
	Name string
	Data []byte
}

func (a BytesAsset) Load(context.Context) ([]byte, error) { return a.Data, nil }
func (a BytesAsset) Location() string                     { return a.Name }

// FileAsset reads a document from disk.
type FileAsset string

func (a FileAsset) Load(context.Context) ([]byte, error) { return os.ReadFile(string(a)) }
func (a FileAsset) Location() string                     { return string(a) }

// HTTPAsset fetches a document over HTTP.
type HTTPAsset struct {
	URL    string
	Client *http.Client
}

func (a HTTPAsset) Location() string { return a.URL }

func (a HTTPAsset) Load(ctx context.Context) ([]byte, error) {
	client := a.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", a.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", a.URL, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func loadCollection(ctx context.Context, a AssetLoader) (*geojson.FeatureCollection, error) {
	data, err := a.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", a.Location(), err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", a.Location(), err)
	}
	return fc, nil
}
