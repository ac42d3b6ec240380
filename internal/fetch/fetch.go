// Package fetch downloads the full Gapminder dataset that ships inside the
// plotly wheel on PyPI.
package fetch

import (
	"archive/zip"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/verte-zerg/gapdash/internal/dataset"
)

const (
	// PyPIEndpoint describes the latest plotly release.
	PyPIEndpoint = "https://pypi.org/pypi/plotly/json"
	// DatasetPath is the gzipped Gapminder CSV inside the wheel.
	DatasetPath = "plotly/package_data/datasets/gapminder.csv.gz"

	requestTimeout = 120 * time.Second
)

// Wheel describes a cached plotly wheel.
type Wheel struct {
	Version  string
	Path     string
	Filename string
	Cached   bool
}

type releaseFile struct {
	URL         string `json:"url"`
	Filename    string `json:"filename"`
	Packagetype string `json:"packagetype"`
}

type pypiResponse struct {
	Info struct {
		Version string `json:"version"`
	} `json:"info"`
	URLs []releaseFile `json:"urls"`
}

// Client downloads wheels from a PyPI JSON endpoint.
type Client struct {
	Endpoint   string
	HTTPClient *http.Client
}

// NewClient returns a client for the public PyPI index.
func NewClient() *Client {
	return &Client{
		Endpoint:   PyPIEndpoint,
		HTTPClient: &http.Client{Timeout: requestTimeout},
	}
}

// DownloadLatestWheel fetches the latest plotly wheel into cacheDir. A wheel
// already in the cache is reused.
func (c *Client) DownloadLatestWheel(ctx context.Context, cacheDir string) (Wheel, error) {
	if cacheDir == "" {
		return Wheel{}, fmt.Errorf("cache directory is required")
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return Wheel{}, fmt.Errorf("failed to create cache dir: %w", err)
	}

	resp, err := c.get(ctx, c.Endpoint)
	if err != nil {
		return Wheel{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return Wheel{}, fmt.Errorf("unexpected pypi status: %s", resp.Status)
	}

	var payload pypiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Wheel{}, fmt.Errorf("failed to decode pypi response: %w", err)
	}
	if payload.Info.Version == "" {
		return Wheel{}, fmt.Errorf("missing version in pypi response")
	}
	file, ok := pickWheel(payload.URLs)
	if !ok {
		return Wheel{}, fmt.Errorf("no suitable plotly wheel found")
	}
	// The filename comes from the index; keep it inside cacheDir.
	filename := filepath.Base(file.Filename)

	destPath := filepath.Join(cacheDir, filename)
	wheel := Wheel{Version: payload.Info.Version, Path: destPath, Filename: filename}
	if _, err := os.Stat(destPath); err == nil {
		wheel.Cached = true
		return wheel, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return Wheel{}, fmt.Errorf("failed to stat cached wheel: %w", err)
	}

	if err := c.download(ctx, file.URL, destPath); err != nil {
		return Wheel{}, err
	}
	return wheel, nil
}

func (c *Client) download(ctx context.Context, url, destPath string) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), "plotly-*.whl")
	if err != nil {
		return fmt.Errorf("failed to create temp wheel: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	resp, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected wheel status: %s", resp.Status)
	}
	if _, err := io.Copy(tmpFile, resp.Body); err != nil {
		return fmt.Errorf("failed to download wheel: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp wheel: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to move wheel into cache: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// pickWheel prefers the pure-python wheel.
func pickWheel(files []releaseFile) (releaseFile, bool) {
	for _, f := range files {
		if f.Packagetype == "bdist_wheel" && strings.HasSuffix(f.Filename, "py3-none-any.whl") {
			return f, true
		}
	}
	for _, f := range files {
		if f.Packagetype == "bdist_wheel" {
			return f, true
		}
	}
	return releaseFile{}, false
}

// ExtractDataset reads the Gapminder CSV out of a plotly wheel.
func ExtractDataset(wheelPath string) (*dataset.Dataset, error) {
	if wheelPath == "" {
		return nil, fmt.Errorf("wheel path is required")
	}
	reader, err := zip.OpenReader(wheelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open wheel: %w", err)
	}
	defer func() {
		_ = reader.Close()
	}()

	var dataFile *zip.File
	for _, f := range reader.File {
		if f.Name == DatasetPath {
			dataFile = f
			break
		}
	}
	if dataFile == nil {
		return nil, fmt.Errorf("wheel has no %s", DatasetPath)
	}

	rc, err := dataFile.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open data file: %w", err)
	}
	defer func() {
		_ = rc.Close()
	}()
	gz, err := gzip.NewReader(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress data file: %w", err)
	}
	defer func() {
		_ = gz.Close()
	}()

	ds, err := dataset.Parse(gz)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", DatasetPath, err)
	}
	return ds, nil
}

// SourceName labels an import made from wheel.
func SourceName(w Wheel) string {
	return fmt.Sprintf("plotly %s (%s)", w.Version, DatasetPath)
}
