package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-geoview/internal/logging"
	"github.com/joeblew999/plat-geoview/internal/mapview"
)

const siteKML = `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2">
  <Document>
    <Placemark>
      <name>Site A</name>
      <Point><coordinates>104.1,30.7</coordinates></Point>
    </Placemark>
  </Document>
</kml>`

func newTestServer(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()
	if cfg.Host == "" {
		cfg.Host, cfg.Port = "localhost", "0"
	}
	srv, err := New(context.Background(), cfg, logging.New(io.Discard, log.ErrorLevel))
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return srv, ts
}

func do(t *testing.T, method, url string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatal(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatal(err)
	}
	return v
}

func upload(t *testing.T, url, name, content string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("files", name)
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(fw, content)
	mw.Close()
	return do(t, http.MethodPost, url+"/api/v1/layers/upload", &buf, mw.FormDataContentType())
}

type layersBody struct {
	Layers []mapview.LayerInfo `json:"layers"`
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t, Config{NoCatalog: true})

	resp := do(t, http.MethodGet, ts.URL+"/health", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decode[map[string]string](t, resp)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
	if links := strings.Join(resp.Header.Values("Link"), ","); !strings.Contains(links, `rel="service-desc"`) {
		t.Errorf("Link = %s", links)
	}
}

func TestViewerPage(t *testing.T) {
	_, ts := newTestServer(t, Config{NoCatalog: true})

	for _, path := range []string{"/", "/viewer"} {
		resp := do(t, http.MethodGet, ts.URL+path, nil, "")
		page, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK || !bytes.Contains(page, []byte(`id="layer-list"`)) {
			t.Errorf("%s: status %d", path, resp.StatusCode)
		}
	}
	if resp := do(t, http.MethodGet, ts.URL+"/nope", nil, ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("/nope status = %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodGet, ts.URL+"/static/viewer.js", nil, ""); resp.StatusCode != http.StatusOK {
		t.Errorf("viewer.js status = %d", resp.StatusCode)
	}
}

func TestDataLayer(t *testing.T) {
	_, ts := newTestServer(t, Config{NoCatalog: true})

	layers := decode[layersBody](t, do(t, http.MethodGet, ts.URL+"/api/v1/layers", nil, ""))
	if len(layers.Layers) != 1 || layers.Layers[0].ID != mapview.DataLayerID || layers.Layers[0].FeatureCount != 7 {
		t.Fatalf("layers = %+v", layers)
	}
	all := decode[layersBody](t, do(t, http.MethodGet, ts.URL+"/api/v1/layers?all=true", nil, ""))
	if len(all.Layers) != 2 || all.Layers[0].Kind != "tile" || all.Layers[1].ID != mapview.DataLayerID {
		t.Errorf("all layers = %+v", all)
	}

	resp := do(t, http.MethodGet, ts.URL+"/api/v1/layers/data", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	links := strings.Join(resp.Header.Values("Link"), ",")
	for _, rel := range []string{`rel="style"; method="GET"`, `rel="delete"; method="DELETE"`, `rel="self"`} {
		if !strings.Contains(links, rel) {
			t.Errorf("Link header missing %s: %s", rel, links)
		}
	}

	fc := decode[struct {
		Features []struct {
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}](t, do(t, http.MethodGet, ts.URL+"/api/v1/layers/data/features", nil, ""))
	if len(fc.Features) != 7 {
		t.Fatalf("features = %d", len(fc.Features))
	}
	if _, ok := fc.Features[0].Properties["style_"]; !ok {
		t.Errorf("feature has no style_: %v", fc.Features[0].Properties)
	}

	style := decode[struct {
		Layer  string         `json:"layer"`
		Styles map[string]any `json:"styles"`
	}](t, do(t, http.MethodGet, ts.URL+"/api/v1/layers/data/style", nil, ""))
	if style.Layer != "data" || style.Styles["Tianfu Square"] == nil {
		t.Errorf("style = %+v", style)
	}

	resp = do(t, http.MethodGet, ts.URL+"/api/v1/layers/data/export", nil, "")
	data, _ := io.ReadAll(resp.Body)
	if got := resp.Header.Get("Content-Disposition"); got != `attachment; filename="download-data"` {
		t.Errorf("Content-Disposition = %q", got)
	}
	if !bytes.Contains(data, []byte("<kml")) || bytes.Contains(data, []byte("style_")) {
		t.Errorf("export body:\n%s", data)
	}

	if resp := do(t, http.MethodGet, ts.URL+"/api/v1/layers/nope", nil, ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing layer status = %d", resp.StatusCode)
	}
}

func TestUploadAndRemove(t *testing.T) {
	srv, ts := newTestServer(t, Config{NoCatalog: true})

	resp := upload(t, ts.URL, "site.kml", siteKML)
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d: %s", resp.StatusCode, b)
	}
	added := decode[layersBody](t, resp)
	if len(added.Layers) != 1 || added.Layers[0].Name != "site.kml" {
		t.Fatalf("added = %+v", added)
	}
	id := added.Layers[0].ID

	style := decode[struct {
		Styles map[string]any `json:"styles"`
	}](t, do(t, http.MethodGet, ts.URL+"/api/v1/layers/"+id+"/style", nil, ""))
	if _, ok := style.Styles["Site A"]; !ok || len(style.Styles) != 1 {
		t.Errorf("styles = %v", style.Styles)
	}
	if got := srv.Session().View().CenterLonLat(); got[0] < 104 || got[0] > 104.2 {
		t.Errorf("view did not move to the drop: %v", got)
	}

	if resp := upload(t, ts.URL, "bad.kml", "<kml><Placemark><Point><coordinates>x</coordinates></Point></Placemark></kml>"); resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("bad upload status = %d", resp.StatusCode)
	}

	if resp := do(t, http.MethodDelete, ts.URL+"/api/v1/layers/"+id, nil, ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodGet, ts.URL+"/api/v1/layers/"+id, nil, ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("deleted layer status = %d", resp.StatusCode)
	}
}

func TestFlyToData(t *testing.T) {
	_, ts := newTestServer(t, Config{NoCatalog: true})

	resp := do(t, http.MethodPost, ts.URL+"/api/v1/view/fly-to-data", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	frame := decode[mapview.Frame](t, resp)
	if frame.Duration != 1000 || frame.Padding != [4]float64{100, 100, 100, 100} {
		t.Errorf("frame = %+v", frame)
	}

	do(t, http.MethodDelete, ts.URL+"/api/v1/layers/data", nil, "")
	if resp := do(t, http.MethodPost, ts.URL+"/api/v1/view/fly-to-data", nil, ""); resp.StatusCode != http.StatusConflict {
		t.Errorf("fly after remove status = %d", resp.StatusCode)
	}
}

var downloadURL = regexp.MustCompile(`/downloads/[0-9a-f-]{36}`)

func TestEditorExportDownload(t *testing.T) {
	_, ts := newTestServer(t, Config{NoCatalog: true})

	resp := do(t, http.MethodPost, ts.URL+"/api/v1/editor/layers/data/export", nil, "")
	stream, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(stream, []byte("geoview-download")) {
		t.Fatalf("stream has no download event:\n%s", stream)
	}
	url := downloadURL.Find(stream)
	if url == nil {
		t.Fatalf("no download url in:\n%s", stream)
	}

	resp = do(t, http.MethodGet, ts.URL+string(url), nil, "")
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !bytes.Contains(data, []byte("<kml")) {
		t.Errorf("download status %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodGet, ts.URL+"/downloads/00000000-0000-0000-0000-000000000000", nil, ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown download status = %d", resp.StatusCode)
	}
}

func TestEditorDrop(t *testing.T) {
	srv, ts := newTestServer(t, Config{NoCatalog: true})

	signals, _ := json.Marshal(map[string]any{
		"files":      []string{base64.StdEncoding.EncodeToString([]byte(siteKML))},
		"filesNames": []string{"site.kml"},
	})
	resp := do(t, http.MethodPost, ts.URL+"/api/v1/editor/drop", bytes.NewReader(signals), "application/json")
	stream, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(stream, []byte("Loaded 1 layer")) {
		t.Errorf("stream:\n%s", stream)
	}
	if n := len(srv.Session().Layers()); n != 2 {
		t.Errorf("layers = %d", n)
	}
}

func TestEditorDropFileObjects(t *testing.T) {
	srv, ts := newTestServer(t, Config{NoCatalog: true})

	signals, _ := json.Marshal(map[string]any{
		"files": []map[string]string{{
			"name":     "site.kml",
			"contents": base64.StdEncoding.EncodeToString([]byte(siteKML)),
			"mime":     "application/vnd.google-earth.kml+xml",
		}},
	})
	resp := do(t, http.MethodPost, ts.URL+"/api/v1/editor/drop", bytes.NewReader(signals), "application/json")
	stream, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(stream, []byte("Loaded 1 layer")) {
		t.Errorf("stream:\n%s", stream)
	}
	layers := srv.Session().Layers()
	if len(layers) != 2 || layers[1].Name != "site.kml" {
		t.Errorf("layers = %+v", layers)
	}
}

func TestEditorStyleAndFly(t *testing.T) {
	_, ts := newTestServer(t, Config{NoCatalog: true})

	resp := do(t, http.MethodPost, ts.URL+"/api/v1/editor/layers/data/style", nil, "")
	stream, _ := io.ReadAll(resp.Body)
	for _, want := range []string{"#style-view", "Tianfu Square", "_styleOpen"} {
		if !bytes.Contains(stream, []byte(want)) {
			t.Errorf("style stream missing %q:\n%s", want, stream)
		}
	}

	do(t, http.MethodDelete, ts.URL+"/api/v1/editor/layers/data", nil, "")
	resp = do(t, http.MethodPost, ts.URL+"/api/v1/editor/fly", nil, "")
	stream, _ = io.ReadAll(resp.Body)
	if !bytes.Contains(stream, []byte("The data layer has been removed")) {
		t.Errorf("fly stream:\n%s", stream)
	}
}

func TestEditorViewport(t *testing.T) {
	srv, ts := newTestServer(t, Config{NoCatalog: true})

	body := strings.NewReader(`{"viewportWidth": 400, "viewportHeight": 300}`)
	if resp := do(t, http.MethodPost, ts.URL+"/api/v1/editor/viewport", body, "application/json"); resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := srv.Session().View().Size; got != (mapview.Size{Width: 400, Height: 300}) {
		t.Errorf("size = %+v", got)
	}

	body = strings.NewReader(`{"viewportWidth": 400, "viewportHeight": 300, "center": [1000, 2000], "resolution": 76.4}`)
	do(t, http.MethodPost, ts.URL+"/api/v1/editor/viewport", body, "application/json")
	if v := srv.Session().View(); v.Center != (orb.Point{1000, 2000}) || v.Resolution != 76.4 {
		t.Errorf("view = %+v", v)
	}
	if resp := do(t, http.MethodPost, ts.URL+"/api/v1/editor/viewport", strings.NewReader(`{}`), "application/json"); resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("empty viewport status = %d", resp.StatusCode)
	}
}

func TestEventStream(t *testing.T) {
	_, ts := newTestServer(t, Config{NoCatalog: true})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/editor/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	lines := bufio.NewScanner(resp.Body)
	waitFor := func(s string) bool {
		for lines.Scan() {
			if strings.Contains(lines.Text(), s) {
				return true
			}
		}
		return false
	}

	if !waitFor("#layer-list") {
		t.Fatal("no initial layer list")
	}
	go do(t, http.MethodDelete, ts.URL+"/api/v1/layers/data", nil, "")
	if !waitFor("No layers") {
		t.Error("layer removal was not streamed")
	}
}

func TestCatalog(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	tables := decode[struct {
		Tables []string `json:"tables"`
	}](t, do(t, http.MethodGet, ts.URL+"/api/v1/tables", nil, ""))
	if len(tables.Tables) != 1 || tables.Tables[0] != "features" {
		t.Fatalf("tables = %v", tables.Tables)
	}

	query := `{"query": "SELECT count(*) AS n FROM features WHERE layer_name = 'data'"}`
	result := decode[struct {
		Rows  []map[string]any `json:"rows"`
		Count int              `json:"count"`
	}](t, do(t, http.MethodPost, ts.URL+"/api/v1/query", strings.NewReader(query), "application/json"))
	if result.Count != 1 || result.Rows[0]["n"] != float64(7) {
		t.Errorf("result = %+v", result)
	}

	upload(t, ts.URL, "site.kml", siteKML)
	query = `{"query": "SELECT name, kind FROM features WHERE layer_name = 'site.kml'"}`
	result = decode[struct {
		Rows  []map[string]any `json:"rows"`
		Count int              `json:"count"`
	}](t, do(t, http.MethodPost, ts.URL+"/api/v1/query", strings.NewReader(query), "application/json"))
	if result.Count != 1 || result.Rows[0]["name"] != "Site A" || result.Rows[0]["kind"] != "Point" {
		t.Errorf("result = %+v", result)
	}
	info := decode[struct {
		Indexed int `json:"indexed"`
	}](t, do(t, http.MethodGet, ts.URL+"/api/v1/info", nil, ""))
	if info.Indexed != 8 {
		t.Errorf("indexed = %d, want 8", info.Indexed)
	}

	do(t, http.MethodDelete, ts.URL+"/api/v1/layers/data", nil, "")
	info = decode[struct {
		Indexed int `json:"indexed"`
	}](t, do(t, http.MethodGet, ts.URL+"/api/v1/info", nil, ""))
	if info.Indexed != 1 {
		t.Errorf("indexed after removing the data layer = %d, want 1", info.Indexed)
	}
}

func TestCatalogRefusesWrites(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	for _, query := range []string{
		"DELETE FROM features",
		"SELECT 1; DELETE FROM features",
		"SELECT read_text('/etc/hostname')",
		"COPY features TO '/tmp/features.csv'",
	} {
		body, _ := json.Marshal(map[string]string{"query": query})
		resp := do(t, http.MethodPost, ts.URL+"/api/v1/query", bytes.NewReader(body), "application/json")
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%q: status = %d, want 400", query, resp.StatusCode)
		}
	}

	query := `{"query": "SELECT count(*) AS n FROM features"}`
	result := decode[struct {
		Rows []map[string]any `json:"rows"`
	}](t, do(t, http.MethodPost, ts.URL+"/api/v1/query", strings.NewReader(query), "application/json"))
	if len(result.Rows) != 1 || result.Rows[0]["n"] != float64(7) {
		t.Errorf("rows after refused writes = %+v", result.Rows)
	}
}
