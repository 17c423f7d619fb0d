package bilibili

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func apiServer(t *testing.T, flaky *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/x/player/pagelist":
			if r.URL.Query().Get("bvid") == "BVmissing" {
				fmt.Fprint(w, `{"code":-404,"message":"not found","data":null}`)
				return
			}
			fmt.Fprint(w, `{"code":0,"message":"0","data":[
				{"cid":101,"page":1,"part":"Intro"},
				{"cid":102,"page":2,"part":"Chapter: 2"},
				{"cid":103,"page":3,"part":"Broken"}]}`)
		case "/x/player/playurl":
			cid := r.URL.Query().Get("cid")
			if r.URL.Query().Get("fnval") != "16" {
				http.Error(w, "bad fnval", http.StatusBadRequest)
				return
			}
			if cid == "102" && flaky != nil && flaky.Add(1) == 1 {
				http.Error(w, "try later", http.StatusBadGateway)
				return
			}
			if cid == "103" {
				fmt.Fprint(w, `{"code":0,"message":"0","data":{"dash":{"video":[],"audio":[]}}}`)
				return
			}
			fmt.Fprintf(w, `{"code":0,"message":"0","data":{"dash":{
				"video":[{"id":80,"baseUrl":"https://cdn.example/%s-video.m4s"}],
				"audio":[{"id":30280,"baseUrl":"https://cdn.example/%s-audio.m4s"}]}}}`, cid, cid)
		default:
			http.NotFound(w, r)
		}
	}))
}

func testResolver(server *httptest.Server) *Resolver {
	r := New(server.Client(), 2)
	r.BaseURL = server.URL
	r.RetryDelay = time.Millisecond
	return r
}

func TestResolveOrderedEpisodes(t *testing.T) {
	var flaky atomic.Int32
	server := apiServer(t, &flaky)
	defer server.Close()

	episodes, err := testResolver(server).Resolve(context.Background(), "BV1xx411c7mD")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(episodes) != 3 {
		t.Fatalf("Expected 3 episodes, got %d", len(episodes))
	}
	titles := []string{"Intro", "Chapter: 2", "Broken"}
	for i, ep := range episodes {
		if ep.Title != titles[i] {
			t.Errorf("Expected title %q at %d, got %q", titles[i], i, ep.Title)
		}
	}
	if episodes[0].VideoURL != "https://cdn.example/101-video.m4s" || episodes[0].AudioURL != "https://cdn.example/101-audio.m4s" {
		t.Errorf("Unexpected streams for part 1: %+v", episodes[0])
	}
	if !episodes[1].Resolved() {
		t.Errorf("Expected part 2 to resolve after a retry, got %+v", episodes[1])
	}
	if episodes[2].Resolved() {
		t.Errorf("Expected part 3 to stay unresolved, got %+v", episodes[2])
	}
}

func TestResolveAPIError(t *testing.T) {
	server := apiServer(t, nil)
	defer server.Close()

	_, err := testResolver(server).Resolve(context.Background(), "BVmissing")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected an APIError, got %v", err)
	}
	if apiErr.Code != -404 {
		t.Errorf("Expected code -404, got %d", apiErr.Code)
	}
}

func TestResolveEmptyID(t *testing.T) {
	if _, err := New(http.DefaultClient, 0).Resolve(context.Background(), "  "); err == nil {
		t.Error("Expected an error for an empty id")
	}
}
