package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/verte-zerg/gapdash/internal/binding"
	"github.com/verte-zerg/gapdash/internal/dashboard"
	"github.com/verte-zerg/gapdash/internal/dataset"
	"github.com/verte-zerg/gapdash/internal/metrics"
	"github.com/verte-zerg/gapdash/internal/model"
)

// HandlerSuite exercises the dashboard HTTP surface end to end.
type HandlerSuite struct {
	suite.Suite
	router   http.Handler
	registry *prometheus.Registry
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	ds, err := dataset.Sample()
	s.Require().NoError(err)

	s.registry = prometheus.NewRegistry()
	m := metrics.New(s.registry)
	dash, err := dashboard.New(ds, model.Defaults{}, binding.WithObserver(m))
	s.Require().NoError(err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h, err := New(dash, logger, m, WithGatherer(s.registry))
	s.Require().NoError(err)
	s.router = NewRouter(h)
}

func (s *HandlerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

type updateResult struct {
	Seq     int64 `json:"seq"`
	Batches []struct {
		Rule    string `json:"rule"`
		Outputs map[string]struct {
			Data   []json.RawMessage `json:"data"`
			Layout struct {
				Title struct {
					Text string `json:"text"`
				} `json:"title"`
			} `json:"layout"`
		} `json:"outputs"`
	} `json:"batches"`
}

func (s *HandlerSuite) TestIndexRendersPage() {
	rec := s.do(http.MethodGet, "/", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	body := rec.Body.String()
	s.Contains(body, "Gapminder Global Insights Dashboard")
	s.Contains(body, `id="choropleth_map"`)
	s.Contains(body, `id="continent"`)
	s.Contains(body, "bootstrap@5.3.1")
	s.Contains(body, "Top 15 Population")
}

func (s *HandlerSuite) TestLayoutIncludesInitialFigures() {
	rec := s.do(http.MethodGet, "/_dash-layout", nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	var layout dashboard.Layout
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &layout))
	s.Equal(dashboard.Title, layout.Title)
	s.Require().Len(layout.Charts, 3)
	for _, slot := range layout.Charts {
		s.Require().NotNil(slot.Figure, "slot %s", slot.ID)
	}
	s.Require().NotNil(layout.Map.Figure)
	s.Equal("Life Expectancy in 1952", layout.Map.Figure.TitleText())
}

func (s *HandlerSuite) TestDependencies() {
	rec := s.do(http.MethodGet, "/_dash-dependencies", nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	var deps DependenciesResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &deps))
	s.Require().Len(deps.Rules, 2)
	s.Equal(dashboard.RuleMainCharts, deps.Rules[0].Rule)
	s.Len(deps.Rules[0].Outputs, 3)
	s.Equal(dashboard.RuleWorldMap, deps.Rules[1].Rule)
}

func (s *HandlerSuite) TestUpdateReturnsAtomicBatch() {
	rec := s.do(http.MethodPost, "/_dash-update-component", map[string]any{
		"changed": []string{"year"},
		"inputs":  map[string]any{"continent": "Europe", "year": 2007},
		"seq":     7,
		"session": uuid.NewString(),
	})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var resp updateResult
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.EqualValues(7, resp.Seq)
	s.Require().Len(resp.Batches, 1)
	s.Equal(dashboard.RuleMainCharts, resp.Batches[0].Rule)
	s.Require().Len(resp.Batches[0].Outputs, 3)
	s.Equal("Top 15 GDP per Capita — Europe (2007)", resp.Batches[0].Outputs["gdp"].Layout.Title.Text)
	s.NotEmpty(resp.Batches[0].Outputs["population"].Data)
}

func (s *HandlerSuite) TestUpdateUnknownValueYieldsEmptyChart() {
	rec := s.do(http.MethodPost, "/_dash-update-component", map[string]any{
		"changed": []string{"var_map"},
		"inputs":  map[string]any{"var_map": "Population", "year_map": 1800},
		"seq":     1,
	})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var resp updateResult
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Require().Len(resp.Batches, 1)
	out := resp.Batches[0].Outputs["choropleth_map"]
	s.Empty(out.Data)
	s.Equal("Population in 1800", out.Layout.Title.Text)
}

func (s *HandlerSuite) TestUpdateErrors() {
	s.Run("malformed json", func() {
		rec := s.do(http.MethodPost, "/_dash-update-component", "{not json")
		s.assertError(rec, http.StatusBadRequest, CodeBadRequest)
	})

	s.Run("unknown changed control", func() {
		rec := s.do(http.MethodPost, "/_dash-update-component", map[string]any{
			"changed": []string{"colour"},
			"inputs":  map[string]any{},
		})
		s.assertError(rec, http.StatusBadRequest, CodeUnknownInput)
	})

	s.Run("unknown input value", func() {
		rec := s.do(http.MethodPost, "/_dash-update-component", map[string]any{
			"changed": []string{"year"},
			"inputs":  map[string]any{"continent": "Asia", "year": 1952, "colour": "red"},
		})
		s.assertError(rec, http.StatusBadRequest, CodeUnknownInput)
	})

	s.Run("missing dependent input", func() {
		rec := s.do(http.MethodPost, "/_dash-update-component", map[string]any{
			"changed": []string{"year"},
			"inputs":  map[string]any{"year": 1952},
		})
		s.assertError(rec, http.StatusBadRequest, CodeMissingInput)
	})

	s.Run("bad session", func() {
		rec := s.do(http.MethodPost, "/_dash-update-component", map[string]any{
			"changed": []string{"year"},
			"inputs":  map[string]any{"continent": "Asia", "year": 1952},
			"session": "nope",
		})
		s.assertError(rec, http.StatusBadRequest, CodeBadSession)
	})
}

func (s *HandlerSuite) assertError(rec *httptest.ResponseRecorder, status int, code string) {
	s.Require().Equal(status, rec.Code, rec.Body.String())
	var env ErrorResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &env))
	s.Equal(code, env.Error)
	s.NotEmpty(env.Message)
}

func (s *HandlerSuite) TestHealthAndMetrics() {
	rec := s.do(http.MethodGet, "/healthz", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"status":"ok"}`, rec.Body.String())

	s.do(http.MethodGet, "/_dash-layout", nil)
	rec = s.do(http.MethodGet, "/metrics", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	body := rec.Body.String()
	s.Contains(body, "gapdash_updates_total")
	s.Contains(body, `gapdash_http_requests_total{route="/_dash-layout",status="200"}`)
}

func TestErrorForMapping(t *testing.T) {
	status, code := errorFor(io.EOF)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, CodeInternal, code)
}

func TestPageTemplateParses(t *testing.T) {
	templates, err := templateSource("")
	require.NoError(t, err)
	tmpl, err := parsePage(templates)
	require.NoError(t, err)
	require.NotNil(t, tmpl.Lookup("panel"))
	assert.True(t, isNumber(1952))
	assert.False(t, isNumber("Asia"))
}

func serveIndex(t *testing.T, debug bool, dir string) func() string {
	t.Helper()
	ds, err := dataset.Sample()
	require.NoError(t, err)
	dash, err := dashboard.New(ds, model.Defaults{})
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h, err := New(dash, logger, metrics.New(prometheus.NewRegistry()),
		WithGatherer(prometheus.NewRegistry()), WithDebug(debug), WithTemplateDir(dir))
	require.NoError(t, err)
	router := NewRouter(h)
	return func() string {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		return rec.Body.String()
	}
}

func writePage(t *testing.T, dir, marker string) {
	t.Helper()
	body := marker + " {{.Session}}"
	require.NoError(t, os.WriteFile(filepath.Join(dir, pageTemplate), []byte(body), 0o644))
}

func TestDebugReloadsTemplateFromDir(t *testing.T) {
	dir := t.TempDir()
	writePage(t, dir, "first-draft")
	get := serveIndex(t, true, dir)
	assert.Contains(t, get(), "first-draft")

	writePage(t, dir, "second-draft")
	assert.Contains(t, get(), "second-draft")
}

func TestTemplateDirParsedOnceWithoutDebug(t *testing.T) {
	dir := t.TempDir()
	writePage(t, dir, "first-draft")
	get := serveIndex(t, false, dir)
	assert.Contains(t, get(), "first-draft")

	writePage(t, dir, "second-draft")
	assert.Contains(t, get(), "first-draft")
}

func TestMissingTemplateDirFails(t *testing.T) {
	ds, err := dataset.Sample()
	require.NoError(t, err)
	dash, err := dashboard.New(ds, model.Defaults{})
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err = New(dash, logger, nil, WithTemplateDir(filepath.Join(t.TempDir(), "absent")))
	require.Error(t, err)
}
