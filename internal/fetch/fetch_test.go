package fetch

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

const rawGapminder = `country,continent,year,lifeExp,pop,gdpPercap,iso_alpha,iso_num
Afghanistan,Asia,1952,28.801,8425333,779.4453145,AFG,4
"Korea, Dem. Rep.",Asia,1952,50.056,8865488,1088.277758,PRK,408
Norway,Europe,2007,80.196,4627926,49357.19017,NOR,578
`

func gzipBytes(t *testing.T, data string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(data)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func wheelBytes(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func writeTestWheel(t *testing.T, files map[string][]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plotly-0.0.0-py3-none-any.whl")
	if err := os.WriteFile(path, wheelBytes(t, files), 0o644); err != nil {
		t.Fatalf("write wheel: %v", err)
	}
	return path
}

func TestExtractDatasetReadsRawHeaders(t *testing.T) {
	path := writeTestWheel(t, map[string][]byte{
		DatasetPath:          gzipBytes(t, rawGapminder),
		"plotly/__init__.py": []byte(""),
	})
	ds, err := ExtractDataset(path)
	if err != nil {
		t.Fatalf("ExtractDataset failed: %v", err)
	}
	if ds.Len() != 3 {
		t.Fatalf("expected 3 records, got %d", ds.Len())
	}
	rec := ds.Records()[1]
	if rec.Country != "Korea, Dem. Rep." || rec.ISO3 != "PRK" || rec.Population != 8865488 {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestExtractDatasetMissingFile(t *testing.T) {
	path := writeTestWheel(t, map[string][]byte{"plotly/__init__.py": []byte("")})
	if _, err := ExtractDataset(path); err == nil {
		t.Fatalf("expected error for wheel without dataset")
	}
}

func TestPickWheelPrefersPurePython(t *testing.T) {
	files := []releaseFile{
		{Filename: "plotly-6.0.0.tar.gz", Packagetype: "sdist"},
		{Filename: "plotly-6.0.0-cp312-win_amd64.whl", Packagetype: "bdist_wheel"},
		{Filename: "plotly-6.0.0-py3-none-any.whl", Packagetype: "bdist_wheel"},
	}
	got, ok := pickWheel(files)
	if !ok || got.Filename != "plotly-6.0.0-py3-none-any.whl" {
		t.Fatalf("unexpected wheel: %+v", got)
	}
	if _, ok := pickWheel(files[:1]); ok {
		t.Fatalf("sdist alone should not match")
	}
}

func TestDownloadLatestWheelCaches(t *testing.T) {
	wheel := wheelBytes(t, map[string][]byte{DatasetPath: gzipBytes(t, rawGapminder)})
	var downloads atomic.Int32

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()
	mux.HandleFunc("/pypi/plotly/json", func(w http.ResponseWriter, _ *http.Request) {
		var payload pypiResponse
		payload.Info.Version = "6.0.0"
		payload.URLs = []releaseFile{{
			URL:         srv.URL + "/files/plotly-6.0.0-py3-none-any.whl",
			Filename:    "plotly-6.0.0-py3-none-any.whl",
			Packagetype: "bdist_wheel",
		}}
		_ = json.NewEncoder(w).Encode(payload)
	})
	mux.HandleFunc("/files/plotly-6.0.0-py3-none-any.whl", func(w http.ResponseWriter, _ *http.Request) {
		downloads.Add(1)
		_, _ = w.Write(wheel)
	})

	client := &Client{Endpoint: srv.URL + "/pypi/plotly/json", HTTPClient: srv.Client()}
	cacheDir := t.TempDir()

	first, err := client.DownloadLatestWheel(context.Background(), cacheDir)
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}
	if first.Cached || first.Version != "6.0.0" {
		t.Fatalf("unexpected first wheel: %+v", first)
	}
	ds, err := ExtractDataset(first.Path)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if ds.Len() != 3 {
		t.Fatalf("expected 3 records, got %d", ds.Len())
	}

	second, err := client.DownloadLatestWheel(context.Background(), cacheDir)
	if err != nil {
		t.Fatalf("second download failed: %v", err)
	}
	if !second.Cached || second.Path != first.Path {
		t.Fatalf("expected cached wheel, got %+v", second)
	}
	if n := downloads.Load(); n != 1 {
		t.Fatalf("expected one wheel download, got %d", n)
	}
	if got := SourceName(second); got != "plotly 6.0.0 ("+DatasetPath+")" {
		t.Fatalf("unexpected source name %q", got)
	}
}

func TestDownloadLatestWheelBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := &Client{Endpoint: srv.URL, HTTPClient: srv.Client()}
	if _, err := client.DownloadLatestWheel(context.Background(), t.TempDir()); err == nil {
		t.Fatalf("expected error for unavailable index")
	}
}
