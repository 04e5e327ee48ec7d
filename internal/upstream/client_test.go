package upstream

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestVerifyAPIKey(t *testing.T) {
	var seenPath, seenQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenPath = r.URL.Path
		seenQuery = r.URL.RawQuery
		if r.URL.Query().Get("key") != "good-key" {
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"error":{"message":"API key not valid"}}`)
			return
		}
		fmt.Fprint(w, `{"fileSearchStores":[]}`)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if errVerify := client.VerifyAPIKey(context.Background(), "good-key"); errVerify != nil {
		t.Fatalf("verify with good key: %v", errVerify)
	}
	if seenPath != "/v1beta/fileSearchStores" {
		t.Fatalf("unexpected probe path: %q", seenPath)
	}
	if !strings.Contains(seenQuery, "pageSize=1") {
		t.Fatalf("probe should request a single page: %q", seenQuery)
	}

	errVerify := client.VerifyAPIKey(context.Background(), "bad-key")
	if errVerify == nil {
		t.Fatalf("expected rejection for bad key")
	}
	if !strings.Contains(errVerify.Error(), "403") {
		t.Fatalf("rejection should carry the upstream status: %v", errVerify)
	}
}

func TestSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":generateContent") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `{
			"candidates": [{
				"content": {"parts": [{"text": "part one "}, {"text": "part two"}]},
				"groundingMetadata": {"groundingChunks": [
					{"retrievedContext": {"title": "a.pdf"}},
					{"retrievedContext": {"title": ""}},
					{"retrievedContext": {"title": "b.md"}}
				]}
			}]
		}`)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	result, errSearch := client.Search(context.Background(), "good-key", "store-1", "what is this?")
	if errSearch != nil {
		t.Fatalf("search: %v", errSearch)
	}
	if result.Answer != "part one part two" {
		t.Fatalf("answer mismatch: %q", result.Answer)
	}
	if len(result.Sources) != 2 || result.Sources[0] != "a.pdf" || result.Sources[1] != "b.md" {
		t.Fatalf("sources mismatch: %+v", result.Sources)
	}
}

func TestSearchEmptyCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates":[]}`)
	}))
	defer server.Close()

	result, errSearch := NewClient(server.URL).Search(context.Background(), "good-key", "store-1", "anything")
	if errSearch != nil {
		t.Fatalf("search: %v", errSearch)
	}
	if result.Answer != "" || len(result.Sources) != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
}
