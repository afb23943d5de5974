package ci

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) (*JenkinsClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewJenkinsClient(server.URL, "releasebot", "token",
		WithHTTPClient(server.Client()),
		WithPollInterval(time.Millisecond))
	return client, server
}

func TestTriggerJob(t *testing.T) {
	var gotAuth bool
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/job/lttng-tools_v2.13_release/build" || r.Method != http.MethodPost {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		user, token, ok := r.BasicAuth()
		gotAuth = ok && user == "releasebot" && token == "token"
		w.Header().Set("Location", "http://jenkins/queue/item/42/")
		w.WriteHeader(http.StatusCreated)
	}))

	queueURL, err := client.TriggerJob(context.Background(), "lttng-tools_v2.13_release")
	if err != nil {
		t.Fatalf("TriggerJob returned error: %v", err)
	}
	if queueURL != "http://jenkins/queue/item/42/" {
		t.Errorf("Unexpected queue URL %q", queueURL)
	}
	if !gotAuth {
		t.Error("Expected basic auth credentials on the request")
	}
}

func TestWaitForStart(t *testing.T) {
	var polls int32
	mux := http.NewServeMux()
	var server *httptest.Server

	mux.HandleFunc("/queue/item/42/api/json", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&polls, 1) < 3 {
			fmt.Fprint(w, `{}`)
			return
		}
		fmt.Fprintf(w, `{"executable":{"number":7,"url":"%s/job/rel/7/"}}`, server.URL)
	})
	mux.HandleFunc("/job/rel/7/api/json", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Build{Number: 7, Building: true})
	})

	client, srv := newTestClient(t, mux)
	server = srv

	build, err := client.WaitForStart(context.Background(), server.URL+"/queue/item/42/")
	if err != nil {
		t.Fatalf("WaitForStart returned error: %v", err)
	}
	if build.Number != 7 || !build.Building {
		t.Errorf("Unexpected build %+v", build)
	}
	if atomic.LoadInt32(&polls) < 3 {
		t.Errorf("Expected at least 3 queue polls, got %d", polls)
	}
}

func TestWaitForStartRetriesErrors(t *testing.T) {
	var polls int32
	mux := http.NewServeMux()
	var server *httptest.Server

	mux.HandleFunc("/queue/item/42/api/json", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&polls, 1) < 3 {
			http.Error(w, "proxy hiccup", http.StatusBadGateway)
			return
		}
		fmt.Fprintf(w, `{"executable":{"number":7,"url":"%s/job/rel/7/"}}`, server.URL)
	})
	mux.HandleFunc("/job/rel/7/api/json", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Build{Number: 7, Building: true})
	})

	client, srv := newTestClient(t, mux)
	server = srv

	build, err := client.WaitForStart(context.Background(), server.URL+"/queue/item/42/")
	if err != nil {
		t.Fatalf("WaitForStart returned error: %v", err)
	}
	if build.Number != 7 {
		t.Errorf("Unexpected build %+v", build)
	}
	if got := atomic.LoadInt32(&polls); got != 3 {
		t.Errorf("Expected 3 queue polls, got %d", got)
	}
}

func TestWaitForCompletion(t *testing.T) {
	var polls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/job/rel/7/api/json", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&polls, 1) < 3 {
			json.NewEncoder(w).Encode(Build{Number: 7, Building: true})
			return
		}
		json.NewEncoder(w).Encode(Build{Number: 7, Result: "UNSTABLE"})
	})

	client, server := newTestClient(t, mux)

	var progressCalls int
	build, err := client.WaitForCompletion(context.Background(), server.URL+"/job/rel/7/", func(*Build) {
		progressCalls++
	})
	if err != nil {
		t.Fatalf("WaitForCompletion returned error: %v", err)
	}
	if !build.Succeeded() {
		t.Errorf("Expected UNSTABLE build to count as succeeded, got %+v", build)
	}
	if progressCalls < 3 {
		t.Errorf("Expected progress callbacks, got %d", progressCalls)
	}
}

func TestWaitForCompletionCancelled(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/job/rel/7/api/json", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Build{Number: 7, Building: true})
	})

	client, server := newTestClient(t, mux)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.WaitForCompletion(ctx, server.URL+"/job/rel/7/", nil)
	if err == nil {
		t.Error("Expected an error after context cancellation")
	}
}

func TestLastSuccessfulBuild(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/job/lttng-tools_v2.13_release/lastSuccessfulBuild/api/json", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Build{
			Number: 12,
			Result: "SUCCESS",
			Artifacts: []Artifact{
				{FileName: "lttng-tools-2.13.1.tar.bz2", RelativePath: "out/lttng-tools-2.13.1.tar.bz2"},
			},
		})
	})

	client, server := newTestClient(t, mux)

	build, err := client.LastSuccessfulBuild(context.Background(), "lttng-tools_v2.13_release")
	if err != nil {
		t.Fatalf("LastSuccessfulBuild returned error: %v", err)
	}
	if build.Number != 12 || len(build.Artifacts) != 1 {
		t.Errorf("Unexpected build %+v", build)
	}
	want := server.URL + "/job/lttng-tools_v2.13_release/lastSuccessfulBuild"
	if build.URL != want {
		t.Errorf("Expected the build URL to be filled in from the request URL, got %q", build.URL)
	}
}

func TestDownloadArtifact(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/job/rel/7/artifact/out/lttng-tools-2.13.1.tar.bz2", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "tarball-bytes")
	})

	client, server := newTestClient(t, mux)

	build := &Build{URL: server.URL + "/job/rel/7/"}
	artifact := Artifact{FileName: "lttng-tools-2.13.1.tar.bz2", RelativePath: "out/lttng-tools-2.13.1.tar.bz2"}

	dir := t.TempDir()
	path, err := client.DownloadArtifact(context.Background(), build, artifact, dir)
	if err != nil {
		t.Fatalf("DownloadArtifact returned error: %v", err)
	}
	if path != filepath.Join(dir, "lttng-tools-2.13.1.tar.bz2") {
		t.Errorf("Unexpected artifact path %q", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read artifact: %v", err)
	}
	if string(data) != "tarball-bytes" {
		t.Errorf("Unexpected artifact contents %q", data)
	}
}

func TestBuildEstimated(t *testing.T) {
	b := &Build{EstimatedDuration: 90000}
	if b.Estimated() != 90*time.Second {
		t.Errorf("Estimated() = %v", b.Estimated())
	}
}
