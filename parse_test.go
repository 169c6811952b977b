package ocrparse

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeService mimics the two service endpoints and records what it saw.
type fakeService struct {
	t *testing.T

	layoutCalls      atomic.Int32
	restructureCalls atomic.Int32

	layoutBody      map[string]any
	restructureBody map[string]any

	layoutEntries      []map[string]any
	restructureEntries []map[string]any

	layoutStatus int
}

func (f *fakeService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/layout-parsing", func(w http.ResponseWriter, r *http.Request) {
		f.layoutCalls.Add(1)
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&f.layoutBody))
		if f.layoutStatus != 0 {
			w.WriteHeader(f.layoutStatus)
			fmt.Fprint(w, "layout failure")
			return
		}
		writeEnvelope(w, f.layoutEntries)
	})
	mux.HandleFunc("/restructure-pages", func(w http.ResponseWriter, r *http.Request) {
		f.restructureCalls.Add(1)
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&f.restructureBody))
		writeEnvelope(w, f.restructureEntries)
	})
	return mux
}

func writeEnvelope(w http.ResponseWriter, entries []map[string]any) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"result": map[string]any{"layoutParsingResults": entries},
	})
}

func layoutEntryFor(page int) map[string]any {
	return map[string]any{
		"prunedResult": map[string]any{"page": page},
		"markdown":     map[string]any{"images": map[string]any{"img.png": "AAAA"}},
	}
}

func textEntry(text string) map[string]any {
	return map[string]any{"markdown": map[string]any{"text": text}}
}

func newTestClient(t *testing.T, f *fakeService, mutate func(*Config)) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	cfg := Config{
		APIKey:              "test-key",
		BaseURL:             srv.URL,
		Timeout:             5 * time.Second,
		RateLimitRetryDelay: time.Millisecond,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestParseTwoPhasePipeline(t *testing.T) {
	f := &fakeService{
		t:                  t,
		layoutEntries:      []map[string]any{layoutEntryFor(0), layoutEntryFor(1), layoutEntryFor(2)},
		restructureEntries: []map[string]any{textEntry("page one"), textEntry("page two"), textEntry("page three")},
	}
	c := newTestClient(t, f, nil)
	input := writeInput(t, "scan.png", "fake image bytes")

	res, err := c.Parse(context.Background(), input, false)
	require.NoError(t, err)

	// Phase-1 payload carries the base64 content and image fileType.
	require.EqualValues(t, 1, f.layoutCalls.Load())
	require.Equal(t, base64.StdEncoding.EncodeToString([]byte("fake image bytes")), f.layoutBody["file"])
	require.EqualValues(t, 1, f.layoutBody["fileType"])
	_, hasVisualize := f.layoutBody["visualize"]
	require.False(t, hasVisualize, "visualize is only sent when configured")

	// Phase-2 payload threads all three pages through, in order.
	require.EqualValues(t, 1, f.restructureCalls.Load())
	pages := f.restructureBody["pages"].([]any)
	require.Len(t, pages, 3)
	for i, p := range pages {
		page := p.(map[string]any)
		require.EqualValues(t, i, page["prunedResult"].(map[string]any)["page"])
		require.NotNil(t, page["markdownImages"])
	}
	require.Equal(t, false, f.restructureBody["concatenatePages"])

	// Three segments joined by exactly two separators.
	require.Equal(t, "page one\n\n---\n\npage two\n\n---\n\npage three", res.Markdown)
	require.Equal(t, 2, strings.Count(res.Markdown, pageSeparator))
	require.Nil(t, res.PagesLayout)
}

func TestParseConcatenatedSingleEntry(t *testing.T) {
	f := &fakeService{
		t:                  t,
		layoutEntries:      []map[string]any{layoutEntryFor(0), layoutEntryFor(1)},
		restructureEntries: []map[string]any{textEntry("whole document")},
	}
	c := newTestClient(t, f, nil)

	res, err := c.Parse(context.Background(), writeInput(t, "in.png", "x"), true)
	require.NoError(t, err)
	require.Equal(t, true, f.restructureBody["concatenatePages"])
	require.Equal(t, "whole document", res.Markdown)
}

func TestParseRichModePreservesPageOrder(t *testing.T) {
	f := &fakeService{
		t:                  t,
		layoutEntries:      []map[string]any{layoutEntryFor(0), layoutEntryFor(1)},
		restructureEntries: []map[string]any{textEntry("md")},
	}
	c := newTestClient(t, f, func(cfg *Config) { cfg.ReturnLayoutInfo = true })

	res, err := c.Parse(context.Background(), writeInput(t, "in.png", "x"), true)
	require.NoError(t, err)
	require.Len(t, res.PagesLayout, 2)
	for i, info := range res.PagesLayout {
		var pruned map[string]int
		require.NoError(t, json.Unmarshal(info.PrunedResult, &pruned))
		require.Equal(t, i, pruned["page"])
	}

	// The rich result serializes without any base64 payloads.
	out, err := json.Marshal(res)
	require.NoError(t, err)
	require.Contains(t, string(out), `"pages_layout"`)
	require.NotContains(t, string(out), "AAAA")
}

func TestParseEmptyRestructureResultIsEmptyMarkdown(t *testing.T) {
	f := &fakeService{
		t:                  t,
		layoutEntries:      []map[string]any{layoutEntryFor(0)},
		restructureEntries: []map[string]any{},
	}
	c := newTestClient(t, f, nil)

	res, err := c.Parse(context.Background(), writeInput(t, "in.png", "x"), true)
	require.NoError(t, err)
	require.Equal(t, "", res.Markdown)
}

func TestParsePhase1FailureAbortsBeforePhase2(t *testing.T) {
	f := &fakeService{t: t, layoutStatus: http.StatusBadGateway}
	c := newTestClient(t, f, nil)

	_, err := c.Parse(context.Background(), writeInput(t, "in.png", "x"), true)

	var re *RequestError
	require.ErrorAs(t, err, &re)
	require.Equal(t, http.StatusBadGateway, re.StatusCode)
	require.EqualValues(t, 0, f.restructureCalls.Load(), "phase 2 must not run")
}

func TestParseStripsEmbeddedImages(t *testing.T) {
	f := &fakeService{
		t:                  t,
		layoutEntries:      []map[string]any{layoutEntryFor(0)},
		restructureEntries: []map[string]any{textEntry("![a](data:image/png;base64,AAAA) rest")},
	}
	c := newTestClient(t, f, nil)

	res, err := c.Parse(context.Background(), writeInput(t, "in.png", "x"), true)
	require.NoError(t, err)
	require.Equal(t, "![a]() rest", res.Markdown)
}

func TestParseSkipsEmptyTextEntries(t *testing.T) {
	f := &fakeService{
		t:                  t,
		layoutEntries:      []map[string]any{layoutEntryFor(0), layoutEntryFor(1), layoutEntryFor(2)},
		restructureEntries: []map[string]any{textEntry("first"), textEntry(""), textEntry("last")},
	}
	c := newTestClient(t, f, nil)

	res, err := c.Parse(context.Background(), writeInput(t, "in.png", "x"), false)
	require.NoError(t, err)
	require.Equal(t, "first\n\n---\n\nlast", res.Markdown)
}

func TestParseMissingPrunedResultDefaultsToEmptyObject(t *testing.T) {
	f := &fakeService{
		t:                  t,
		layoutEntries:      []map[string]any{{"markdown": map[string]any{}}},
		restructureEntries: []map[string]any{textEntry("md")},
	}
	c := newTestClient(t, f, func(cfg *Config) { cfg.ReturnLayoutInfo = true })

	res, err := c.Parse(context.Background(), writeInput(t, "in.png", "x"), true)
	require.NoError(t, err)

	pages := f.restructureBody["pages"].([]any)
	require.Len(t, pages, 1)
	require.Equal(t, map[string]any{}, pages[0].(map[string]any)["prunedResult"])
	require.JSONEq(t, "{}", string(res.PagesLayout[0].PrunedResult))
}

func TestParseAuthAndContentTypeHeaders(t *testing.T) {
	var auth, contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		contentType = r.Header.Get("Content-Type")
		writeEnvelope(w, nil)
	}))
	defer srv.Close()

	c, err := New(Config{APIKey: "secret", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.Parse(context.Background(), writeInput(t, "in.png", "x"), true)
	require.NoError(t, err)
	require.Equal(t, "Bearer secret", auth)
	require.Equal(t, "application/json", contentType)
}

func TestParseVisualizeForwarded(t *testing.T) {
	visualize := true
	f := &fakeService{
		t:                  t,
		layoutEntries:      []map[string]any{layoutEntryFor(0)},
		restructureEntries: []map[string]any{textEntry("md")},
	}
	c := newTestClient(t, f, func(cfg *Config) { cfg.Visualize = &visualize })

	_, err := c.Parse(context.Background(), writeInput(t, "in.png", "x"), true)
	require.NoError(t, err)
	require.Equal(t, true, f.layoutBody["visualize"])
}

func TestParseMissingFile(t *testing.T) {
	f := &fakeService{t: t}
	c := newTestClient(t, f, nil)

	_, err := c.Parse(context.Background(), filepath.Join(t.TempDir(), "absent.png"), true)
	require.Error(t, err)
	require.EqualValues(t, 0, f.layoutCalls.Load())
}

func TestParseSyncMatchesParse(t *testing.T) {
	f := &fakeService{
		t:                  t,
		layoutEntries:      []map[string]any{layoutEntryFor(0)},
		restructureEntries: []map[string]any{textEntry("sync result")},
	}
	c := newTestClient(t, f, nil)

	res, err := c.ParseSync(writeInput(t, "in.png", "x"), true)
	require.NoError(t, err)
	require.Equal(t, "sync result", res.Markdown)
}

func TestStripEmbeddedImages(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"![a](data:image/png;base64,AAAA) rest", "![a]() rest"},
		{"no images here", "no images here"},
		{"![alt text](data:image/jpeg;base64,xyz)", "![alt text]()"},
		{"![x](https://example.com/a.png)", "![x](https://example.com/a.png)"},
		{"![1](data:a;base64,b) mid ![2](data:c;base64,d)", "![1]() mid ![2]()"},
		{"![](data:image/png;base64,AAAA)", "![]()"},
	}
	for _, c := range cases {
		require.Equal(t, c.want, stripEmbeddedImages(c.in), c.in)
	}
}
