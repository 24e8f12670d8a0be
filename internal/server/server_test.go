package server

import (
	"bytes"
	"encoding/base64"
	"encoding/csv"
	"encoding/json"
	"errors"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/gorilla/websocket"

	"github.com/junkd0g/bubbleflow/internal/generate"
	"github.com/junkd0g/bubbleflow/internal/logging"
	"github.com/junkd0g/bubbleflow/internal/session"
)

const startCSV = `Topic,Category,X-axis,Y-axis,Size
Alpha,Tech,1,10,2000000
Beta,Health,2,20,4000000
Gamma,Tech,3,30,6000000
`

const endCSV = `Topic,Category,X-axis,Y-axis,Size
Alpha,Tech,4,15,3000000
Beta,Health,1,25,5000000
Gamma,Tech,6,5,1000000
`

const testParams = `{"title":"Market Map","num_frames":30,"dpi":50}`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := New(generate.New(2, logging.Nop()), logging.Nop(), DefaultOptions())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func uploadBody(t *testing.T, files map[string]string, params string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for field, data := range files {
		fw, err := mw.CreateFormFile(field, field+".csv")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := io.WriteString(fw, data); err != nil {
			t.Fatal(err)
		}
	}
	if params != "" {
		if err := mw.WriteField("params", params); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &body, mw.FormDataContentType()
}

func createSession(t *testing.T, ts *httptest.Server) session.Summary {
	t.Helper()
	body, contentType := uploadBody(t, map[string]string{"start": startCSV, "end": endCSV}, testParams)
	resp, err := http.Post(ts.URL+"/api/sessions", contentType, body)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected 201, got %d: %s", resp.StatusCode, data)
	}
	var sum session.Summary
	if err := json.NewDecoder(resp.Body).Decode(&sum); err != nil {
		t.Fatal(err)
	}
	return sum
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func errorMessage(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Expected JSON error body: %v", err)
	}
	return body["error"]
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp := do(t, http.MethodGet, ts.URL+"/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
}

func TestCreateSession(t *testing.T) {
	ts := newTestServer(t)
	sum := createSession(t, ts)

	if sum.ID == "" {
		t.Fatal("Expected session id")
	}
	if sum.Start.Rows != 3 || sum.Points != 3 {
		t.Errorf("Unexpected summary %+v", sum)
	}
	if len(sum.Categories) != 2 || sum.Categories[0].Name != "Health" {
		t.Errorf("Unexpected categories %+v", sum.Categories)
	}
	if sum.Params.Title != "Market Map" || sum.Params.NumFrames != 30 {
		t.Errorf("Params not applied: %+v", sum.Params)
	}

	resp := do(t, http.MethodGet, ts.URL+"/api/sessions/"+sum.ID, "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 for existing session, got %d", resp.StatusCode)
	}
}

func TestCreateSessionErrors(t *testing.T) {
	ts := newTestServer(t)

	body, contentType := uploadBody(t, map[string]string{"start": startCSV}, "")
	resp, err := http.Post(ts.URL+"/api/sessions", contentType, body)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing end file, got %d", resp.StatusCode)
	}

	body, contentType = uploadBody(t, map[string]string{"start": startCSV, "end": endCSV}, `{"size_column":"Revenue"}`)
	resp2, err := http.Post(ts.URL+"/api/sessions", contentType, body)
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing column, got %d", resp2.StatusCode)
	}
	if msg := errorMessage(t, resp2); !strings.Contains(msg, "Revenue") {
		t.Errorf("Error should name the missing column: %q", msg)
	}
}

func TestUnknownSession(t *testing.T) {
	ts := newTestServer(t)
	resp := do(t, http.MethodGet, ts.URL+"/api/sessions/nope", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
	if msg := errorMessage(t, resp); msg != session.ErrNotFound.Error() {
		t.Errorf("Unexpected error %q", msg)
	}
}

func TestColorsEndpoints(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts).ID
	base := ts.URL + "/api/sessions/" + id

	resp := do(t, http.MethodPut, base+"/colors", `{"Tech":"#FF0000"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var colors map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&colors); err != nil {
		t.Fatal(err)
	}
	if colors["Tech"] != "#ff0000" {
		t.Errorf("Expected #ff0000, got %s", colors["Tech"])
	}

	if resp := do(t, http.MethodPut, base+"/colors", `{"Retail":"#FF0000"}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown category, got %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodPost, base+"/colors/auto", ""); resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 for auto colors, got %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodPost, base+"/colors/random", ""); resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 for random colors, got %d", resp.StatusCode)
	}
}

func TestSelectionEndpoints(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts).ID
	base := ts.URL + "/api/sessions/" + id

	resp := do(t, http.MethodGet, base+"/points/Tech", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var points pointsResponse
	if err := json.NewDecoder(resp.Body).Decode(&points); err != nil {
		t.Fatal(err)
	}
	if len(points.Options) != 2 || len(points.Selected) != 2 {
		t.Errorf("Unexpected points %+v", points)
	}

	resp = do(t, http.MethodPut, base+"/points/Tech", `["Gamma"]`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodPut, base+"/points/Tech", `["Omega"]`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown point, got %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodGet, base+"/points/Retail", ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown category, got %d", resp.StatusCode)
	}

	resp = do(t, http.MethodPut, base+"/categories", `["Tech"]`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var sum session.Summary
	if err := json.NewDecoder(resp.Body).Decode(&sum); err != nil {
		t.Fatal(err)
	}
	if sum.Points != 1 {
		t.Errorf("Expected 1 selected point, got %d", sum.Points)
	}

	do(t, http.MethodPut, base+"/categories", `[]`)
	resp = do(t, http.MethodGet, base+"/static", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 with no categories, got %d", resp.StatusCode)
	}
	if msg := errorMessage(t, resp); msg != session.ErrNoCategories.Error() {
		t.Errorf("Unexpected error %q", msg)
	}
}

func TestParamsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts).ID
	base := ts.URL + "/api/sessions/" + id

	resp := do(t, http.MethodPut, base+"/params", `{"title":"Renamed"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var sum session.Summary
	if err := json.NewDecoder(resp.Body).Decode(&sum); err != nil {
		t.Fatal(err)
	}
	if sum.Params.Title != "Renamed" || sum.Params.NumFrames != 30 {
		t.Errorf("Expected partial update, got %+v", sum.Params)
	}

	if resp := do(t, http.MethodPut, base+"/params", `{"num_frames":5}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid params, got %d", resp.StatusCode)
	}
}

func TestDownloads(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts).ID
	base := ts.URL + "/api/sessions/" + id

	resp := do(t, http.MethodGet, base+"/static", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Disposition"); got != `attachment; filename="market_map_static.png"` {
		t.Errorf("Unexpected Content-Disposition %q", got)
	}
	if _, err := png.Decode(resp.Body); err != nil {
		t.Errorf("Static download is not PNG: %v", err)
	}

	resp = do(t, http.MethodGet, base+"/animation?format=csv", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); !strings.HasPrefix(got, "text/csv") {
		t.Errorf("Unexpected Content-Type %q", got)
	}
	records, err := csv.NewReader(resp.Body).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1+30*3 {
		t.Errorf("Expected %d records, got %d", 1+30*3, len(records))
	}

	if resp := do(t, http.MethodGet, base+"/static?format=gif", ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for gif static, got %d", resp.StatusCode)
	}
}

func TestDeleteSession(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts).ID

	if resp := do(t, http.MethodDelete, ts.URL+"/api/sessions/"+id, ""); resp.StatusCode != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodGet, ts.URL+"/api/sessions/"+id, ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestStream(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts).ID

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/sessions/" + id + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	frames := 0
	for {
		var msg frameMessage
		err := conn.ReadJSON(&msg)
		if err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) || closeErr.Code != websocket.CloseNormalClosure {
				t.Fatalf("Unexpected stream end: %v", err)
			}
			break
		}
		if msg.Frame != frames || msg.Total != 30 {
			t.Fatalf("Unexpected frame message %d/%d at position %d", msg.Frame, msg.Total, frames)
		}
		data, err := base64.StdEncoding.DecodeString(msg.PNG)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := png.Decode(bytes.NewReader(data)); err != nil {
			t.Fatalf("Frame %d is not PNG: %v", frames, err)
		}
		frames++
	}
	if frames != 30 {
		t.Errorf("Expected 30 frames, got %d", frames)
	}
}

func TestSetColorsRejectsWholeRequest(t *testing.T) {
	ts := newTestServer(t)
	sum := createSession(t, ts)
	base := ts.URL + "/api/sessions/" + sum.ID

	before := make(map[string]string)
	for _, c := range sum.Categories {
		before[c.Name] = c.Color
	}

	for _, body := range []string{
		`{"Tech":"#111111","Health":"zzz"}`,
		`{"Tech":"#111111","Retail":"#222222"}`,
	} {
		if resp := do(t, http.MethodPut, base+"/colors", body); resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("Expected 400 for %s, got %d", body, resp.StatusCode)
		}
	}

	var after session.Summary
	if err := json.NewDecoder(do(t, http.MethodGet, base, "").Body).Decode(&after); err != nil {
		t.Fatal(err)
	}
	for _, c := range after.Categories {
		if c.Color != before[c.Name] {
			t.Errorf("Color of %s changed from %s to %s", c.Name, before[c.Name], c.Color)
		}
	}
}

func TestShortEndSnapshot(t *testing.T) {
	ts := newTestServer(t)
	short := "Topic,Category,X-axis,Y-axis,Size\nAlpha,Tech,4,15,3000000\n"
	body, contentType := uploadBody(t, map[string]string{"start": startCSV, "end": short}, testParams)
	resp, err := http.Post(ts.URL+"/api/sessions", contentType, body)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}
	var sum session.Summary
	if err := json.NewDecoder(resp.Body).Decode(&sum); err != nil {
		t.Fatal(err)
	}
	base := ts.URL + "/api/sessions/" + sum.ID

	for _, path := range []string{"/static?format=png", "/animation?format=csv"} {
		resp := do(t, http.MethodGet, base+path, "")
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, resp.StatusCode)
			continue
		}
		if msg := errorMessage(t, resp); !strings.Contains(msg, "out of range") {
			t.Errorf("%s: unexpected error %q", path, msg)
		}
	}
}

func TestTruncateKeepsRunes(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"abcdef", 3, "abc"},
		{"ab€", 3, "ab"},
		{"ab€", 4, "ab"},
		{"ab€", 5, "ab€"},
	}
	for _, tc := range cases {
		if got := truncate(tc.in, tc.n); got != tc.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tc.in, tc.n, got, tc.want)
		}
		if !utf8.ValidString(truncate(tc.in, tc.n)) {
			t.Errorf("truncate(%q, %d) is not valid UTF-8", tc.in, tc.n)
		}
	}
}
