package jira

import (
    "context"
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "github.com/rs/zerolog"

    "github.com/example/trackmart/internal/config"
)

func testClient(url string) *Client {
    cfg := config.Config{JiraBaseURL: url, JiraEmail: "bot@example.com", JiraAPIToken: "token", HTTPTimeout: 5 * time.Second}
    return NewClient(cfg, zerolog.Nop())
}

func TestSearchIssuesPassesPagingAndAuth(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if r.URL.Path != "/rest/api/3/search/jql" {
            t.Errorf("path %s", r.URL.Path)
        }
        user, pass, ok := r.BasicAuth()
        if !ok || user != "bot@example.com" || pass != "token" {
            t.Errorf("basic auth %q/%q", user, pass)
        }
        q := r.URL.Query()
        if q.Get("startAt") != "50" || q.Get("maxResults") != "50" {
            t.Errorf("paging %s/%s", q.Get("startAt"), q.Get("maxResults"))
        }
        if !strings.Contains(q.Get("jql"), "project = ALPHA") {
            t.Errorf("jql %q", q.Get("jql"))
        }
        _ = json.NewEncoder(w).Encode(map[string]any{
            "issues": []map[string]any{{"id": "1"}, {"id": "2"}},
            "total":  102,
        })
    }))
    defer srv.Close()

    issues, total, err := testClient(srv.URL).SearchIssues(context.Background(), "ALPHA", 50, 50)
    if err != nil { t.Fatal(err) }
    if len(issues) != 2 || total != 102 {
        t.Fatalf("issues=%d total=%d", len(issues), total)
    }
}

func TestDoGETErrorCarriesStatusAndBody(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
        w.WriteHeader(http.StatusUnauthorized)
        _, _ = w.Write([]byte(`{"errorMessages":["bad token"]}`))
    }))
    defer srv.Close()

    _, err := testClient(srv.URL).ListProjects(context.Background())
    if err == nil { t.Fatal("expected error") }
    if !strings.Contains(err.Error(), "status=401") || !strings.Contains(err.Error(), "bad token") {
        t.Fatalf("error %q", err)
    }
}

func TestDoGETRetriesServerErrors(t *testing.T) {
    calls := 0
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
        calls++
        if calls == 1 {
            w.WriteHeader(http.StatusBadGateway)
            return
        }
        _ = json.NewEncoder(w).Encode([]map[string]any{{"id": "100"}})
    }))
    defer srv.Close()

    n, err := testClient(srv.URL).CountProjects(context.Background())
    if err != nil { t.Fatal(err) }
    if n != 1 || calls != 2 { t.Fatalf("n=%d calls=%d", n, calls) }
}

func TestDoGETDoesNotRetryClientErrors(t *testing.T) {
    calls := 0
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
        calls++
        w.WriteHeader(http.StatusNotFound)
    }))
    defer srv.Close()

    _, err := testClient(srv.URL).FetchUser(context.Background(), "acc-1")
    if err == nil { t.Fatal("expected error") }
    if calls != 1 { t.Fatalf("calls=%d", calls) }
}
