package www

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/config"
	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/engine"
	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/importer"
	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/production"
	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/store"
)

const planText = "Machine\torder\tManufactured Item\tItem Desc\tdatum\tWeek\tcode\tPlan\n" +
	"4010\tN100000001\tElbow\tElbow 90\t2024-06-15\t\t\t5\n" +
	"4011\tN100000002\tTee\tTee 45\t2024-06-20\t25\t\t2\n"

type testServer struct {
	*httptest.Server
	client *http.Client
	eng    *engine.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := store.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := config.Defaults()
	cfg.Web.AdminPassword = "secret"
	cfg.Web.SessionSecret = "test-secret"
	cfg.Stations.Machines = []string{"4010", "4011"}

	eng := engine.New(engine.Config{AppConfig: cfg, DB: db})
	if err := eng.Start(); err != nil {
		t.Fatalf("engine start: %v", err)
	}
	t.Cleanup(eng.Stop)

	handler, stop := NewRouter(eng)
	t.Cleanup(stop)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	jar, _ := cookiejar.New(nil)
	return &testServer{Server: srv, client: &http.Client{Jar: jar}, eng: eng}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, s.URL+path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	return resp, buf.Bytes()
}

func (s *testServer) login(t *testing.T) {
	t.Helper()
	resp, err := s.client.PostForm(s.URL+"/login", url.Values{"username": {"admin"}, "password": {"secret"}})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
}

func (s *testServer) importPlan(t *testing.T) {
	t.Helper()
	resp, body := s.do(t, http.MethodPost, "/api/import/preview", map[string]string{"source": "week24.tsv", "text": planText})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("preview status = %d: %s", resp.StatusCode, body)
	}
	var preview importer.Preview
	if err := json.Unmarshal(body, &preview); err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	if preview.Summary.New != 2 {
		t.Fatalf("preview summary = %+v", preview.Summary)
	}
	resp, body = s.do(t, http.MethodPost, "/api/import/commit", map[string]string{"session_id": preview.SessionID, "mode": "new_only"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("commit status = %d: %s", resp.StatusCode, body)
	}
}

func TestImportRequiresLogin(t *testing.T) {
	s := newTestServer(t)
	resp, _ := s.do(t, http.MethodPost, "/api/import/preview", map[string]string{"text": planText})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}

	bad, err := s.client.PostForm(s.URL+"/login", url.Values{"username": {"admin"}, "password": {"wrong"}})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad login status = %d, want 401", bad.StatusCode)
	}
}

func TestChangePassword(t *testing.T) {
	s := newTestServer(t)
	s.login(t)

	resp, _ := s.do(t, http.MethodPost, "/api/admin/password", map[string]string{"old_password": "wrong", "new_password": "next"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("wrong old password status = %d, want 400", resp.StatusCode)
	}
	resp, body := s.do(t, http.MethodPost, "/api/admin/password", map[string]string{"old_password": "secret", "new_password": "next"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("change password status = %d: %s", resp.StatusCode, body)
	}

	for pw, want := range map[string]int{"secret": http.StatusUnauthorized, "next": http.StatusOK} {
		r, err := s.client.PostForm(s.URL+"/login", url.Values{"username": {"admin"}, "password": {pw}})
		if err != nil {
			t.Fatalf("login: %v", err)
		}
		r.Body.Close()
		if r.StatusCode != want {
			t.Errorf("login with %q status = %d, want %d", pw, r.StatusCode, want)
		}
	}
}

func TestImportFlow(t *testing.T) {
	s := newTestServer(t)
	s.login(t)
	s.importPlan(t)

	resp, body := s.do(t, http.MethodGet, "/api/orders", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("orders status = %d", resp.StatusCode)
	}
	var orders []map[string]any
	if err := json.Unmarshal(body, &orders); err != nil {
		t.Fatalf("decode orders: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("orders = %d, want 2", len(orders))
	}
	if orders[0]["machine"] != "10" || orders[0]["status"] != "pending" || orders[0]["urgency"] == nil {
		t.Errorf("first order = %v", orders[0])
	}

	resp, body = s.do(t, http.MethodGet, "/api/orders?week=25", nil)
	json.Unmarshal(body, &orders)
	if len(orders) != 1 || orders[0]["orderId"] != "N100000002" {
		t.Errorf("week 25 = %v", orders)
	}

	resp, body = s.do(t, http.MethodGet, "/api/import/log", nil)
	var entries []store.ImportLogEntry
	json.Unmarshal(body, &entries)
	if resp.StatusCode != http.StatusOK || len(entries) != 1 {
		t.Errorf("import log = %d %s", resp.StatusCode, body)
	}

	resp, body = s.do(t, http.MethodGet, "/api/metrics", nil)
	var stations []map[string]any
	json.Unmarshal(body, &stations)
	if len(stations) != 2 || stations[0]["planned"].(float64) != 5 {
		t.Errorf("metrics = %s", body)
	}

	resp, body = s.do(t, http.MethodGet, "/api/metrics?machines=4011", nil)
	json.Unmarshal(body, &stations)
	if len(stations) != 1 || stations[0]["planned"].(float64) != 2 {
		t.Errorf("metrics for 4011 = %s", body)
	}
}

func TestImportSecondCommitIsNotFound(t *testing.T) {
	s := newTestServer(t)
	s.login(t)

	_, body := s.do(t, http.MethodPost, "/api/import/preview", map[string]string{"text": planText})
	var preview importer.Preview
	json.Unmarshal(body, &preview)

	resp, body := s.do(t, http.MethodGet, "/api/import/sessions/"+preview.SessionID, nil)
	var reopened importer.Preview
	json.Unmarshal(body, &reopened)
	if resp.StatusCode != http.StatusOK || reopened.SessionID != preview.SessionID || reopened.Summary.New != 2 {
		t.Errorf("reopen session = %d %s", resp.StatusCode, body)
	}

	s.do(t, http.MethodPost, "/api/import/commit", map[string]string{"session_id": preview.SessionID})
	resp, _ = s.do(t, http.MethodPost, "/api/import/commit", map[string]string{"session_id": preview.SessionID})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second commit status = %d, want 404", resp.StatusCode)
	}

	resp, _ = s.do(t, http.MethodGet, "/api/import/sessions/"+preview.SessionID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("reopen after commit status = %d, want 404", resp.StatusCode)
	}

	resp, _ = s.do(t, http.MethodPost, "/api/import/commit", map[string]string{"session_id": preview.SessionID, "mode": "replace"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad mode status = %d, want 400", resp.StatusCode)
	}
}

func TestImportPreviewErrors(t *testing.T) {
	s := newTestServer(t)
	s.login(t)

	resp, _ := s.do(t, http.MethodPost, "/api/import/preview", map[string]string{"text": "a\tb\n1\t2\n"})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("missing header status = %d, want 422", resp.StatusCode)
	}

	text := "Machine\torder\tManufactured Item\tdatum\n4010\tN100000001\tElbow\tsoon\n"
	resp, body := s.do(t, http.MethodPost, "/api/import/preview", map[string]string{"text": text})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("validation status = %d, want 422", resp.StatusCode)
	}
	var out importErrorResponse
	json.Unmarshal(body, &out)
	if len(out.Issues) == 0 {
		t.Errorf("issues missing: %s", body)
	}
}

func TestSearch(t *testing.T) {
	s := newTestServer(t)
	s.login(t)
	s.importPlan(t)

	_, body := s.do(t, http.MethodGet, "/api/search?q=order+N100000002", nil)
	var out struct {
		Results []searchResult `json:"results"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Results) != 1 || out.Results[0].OrderID != "N100000002" || out.Results[0].Tier != "exact_order" {
		t.Errorf("results = %+v", out.Results)
	}

	_, body = s.do(t, http.MethodGet, "/api/search?q=nothing-matches", nil)
	json.Unmarshal(body, &out)
	if out.Results == nil || len(out.Results) != 0 {
		t.Errorf("no-match results = %s", body)
	}
}

func TestLotLifecycleEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.login(t)
	s.importPlan(t)

	resp, body := s.do(t, http.MethodPost, "/api/lots", startLotRequest{OrderID: "N100000002", Machine: "4011", LotNumber: "40150022101", Operator: "Jan"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start status = %d: %s", resp.StatusCode, body)
	}
	var lot store.TrackedProduct
	json.Unmarshal(body, &lot)

	resp, _ = s.do(t, http.MethodPost, "/api/lots", startLotRequest{OrderID: "N100000002", Machine: "4011", LotNumber: "40150022101"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate lot status = %d, want 409", resp.StatusCode)
	}

	resp, body = s.do(t, http.MethodPost, "/api/lots/"+lot.ID+"/advance", advanceLotRequest{Step: production.StepMazak})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("advance status = %d: %s", resp.StatusCode, body)
	}
	resp, _ = s.do(t, http.MethodPost, "/api/lots/"+lot.ID+"/advance", advanceLotRequest{Step: production.StepLossen})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("backward advance status = %d, want 409", resp.StatusCode)
	}
	resp, _ = s.do(t, http.MethodPost, "/api/lots/"+lot.ID+"/finish", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("finish status = %d", resp.StatusCode)
	}
	resp, _ = s.do(t, http.MethodPost, "/api/lots/missing/finish", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown lot status = %d, want 404", resp.StatusCode)
	}

	_, body = s.do(t, http.MethodGet, "/api/orders/N100000002_Tee", nil)
	var detail struct {
		Order map[string]any         `json:"order"`
		Lots  []store.TrackedProduct `json:"lots"`
	}
	json.Unmarshal(body, &detail)
	if len(detail.Lots) != 1 || detail.Lots[0].Status != store.ProductFinished {
		t.Errorf("order detail = %s", body)
	}
	if detail.Order["status"] != store.OrderInProgress {
		t.Errorf("order status = %v, want in_progress with 1 of 2 finished", detail.Order["status"])
	}
}

func TestOccupancyEndpoints(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodPost, "/api/occupancy", assignRequest{Machine: "4012", Operator: "Piet"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("assign status = %d: %s", resp.StatusCode, body)
	}
	var occ store.Occupancy
	json.Unmarshal(body, &occ)

	_, body = s.do(t, http.MethodGet, "/api/occupancy", nil)
	var states []map[string]any
	json.Unmarshal(body, &states)
	if len(states) != 1 || states[0]["machine"] != "12" || states[0]["count"].(float64) != 1 {
		t.Errorf("occupancy = %s", body)
	}

	resp, _ = s.do(t, http.MethodDelete, "/api/occupancy/"+occ.ID, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("release status = %d, want 204", resp.StatusCode)
	}
	resp, _ = s.do(t, http.MethodDelete, "/api/occupancy/"+occ.ID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second release status = %d, want 404", resp.StatusCode)
	}
}

func TestDeleteOrder(t *testing.T) {
	s := newTestServer(t)
	s.login(t)
	s.importPlan(t)

	resp, _ := s.do(t, http.MethodDelete, "/api/orders/N100000001_Elbow", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", resp.StatusCode)
	}
	resp, _ = s.do(t, http.MethodGet, "/api/orders/N100000001_Elbow", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", resp.StatusCode)
	}
	resp, _ = s.do(t, http.MethodDelete, "/api/orders/N100000001_Elbow", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", resp.StatusCode)
	}
}

func TestUrgency(t *testing.T) {
	s := newTestServer(t)

	resp, _ := s.do(t, http.MethodGet, "/api/urgency?date=not-a-date", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad date status = %d, want 400", resp.StatusCode)
	}

	date := time.Now().AddDate(0, 0, 30).Format("2006-01-02")
	_, body := s.do(t, http.MethodGet, "/api/urgency?date="+date, nil)
	var out map[string]any
	json.Unmarshal(body, &out)
	if out["urgency"] != "black" || out["plannedDate"] == nil {
		t.Errorf("urgency = %s", body)
	}
}

func TestEventsStream(t *testing.T) {
	s := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, s.URL+"/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	if _, err := s.eng.Occupancy().Assign(ctx, "4010", "Jan"); err != nil {
		t.Fatalf("assign: %v", err)
	}

	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) == "event: occupancy-update" {
			return
		}
	}
	t.Fatalf("occupancy-update not received: %v", sc.Err())
}

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&importer.HeaderNotFoundError{}, http.StatusUnprocessableEntity},
		{importer.ValidationErrors{{Row: 2, Message: "x"}}, http.StatusUnprocessableEntity},
		{importer.ErrSessionNotFound, http.StatusNotFound},
		{fmt.Errorf("wrap: %w", production.ErrInvalidTransition), http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := errorStatus(c.err); got != c.want {
			t.Errorf("errorStatus(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	resp, body := s.do(t, http.MethodGet, "/api/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out map[string]any
	json.Unmarshal(body, &out)
	if out["database"] != "sqlite" || out["messaging"] != false || out["terminal_dropped"].(float64) != 0 {
		t.Errorf("health = %s", body)
	}
}
