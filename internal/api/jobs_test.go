package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/snarg/stt-gateway/internal/speech"
)

func waitForState(t *testing.T, pool *JobPool, id string, want JobState) Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		job, ok := pool.Get(id)
		if !ok {
			t.Fatalf("job %s disappeared", id)
		}
		if job.State == want {
			return job
		}
		if time.Now().After(deadline) {
			t.Fatalf("job %s stuck in %s, want %s", id, job.State, want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func waitForCount(t *testing.T, what string, fn func() int64, want int64) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for fn() != want {
		if time.Now().After(deadline) {
			t.Fatalf("%s = %d, want %d", what, fn(), want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestJobPool_CompletesJob(t *testing.T) {
	pool := NewJobPool(JobPoolOptions{
		Workers:   2,
		QueueSize: 4,
		Run: func(ctx context.Context, req *AudioRequest) (*speech.Result, error) {
			return &speech.Result{Text: "copy that", Provider: req.Provider, Model: "whisper-1", Language: "en"}, nil
		},
		Log: zerolog.Nop(),
	})
	pool.Start()
	defer pool.Stop()

	id, ok := pool.Enqueue(&AudioRequest{Provider: "whisper", Audio: testPCM()})
	if !ok {
		t.Fatal("Enqueue returned false on an empty queue")
	}

	job := waitForState(t, pool, id, JobCompleted)
	if job.Text != "copy that" {
		t.Errorf("text = %q, want copy that", job.Text)
	}
	if job.Model != "whisper-1" {
		t.Errorf("model = %q, want whisper-1", job.Model)
	}
	if job.Language != "en" {
		t.Errorf("language = %q, want en", job.Language)
	}
	if job.StartedAt == nil || job.FinishedAt == nil {
		t.Error("timestamps missing on a finished job")
	}
	if job.DurationMs < 0 {
		t.Errorf("duration_ms = %d, want >= 0", job.DurationMs)
	}
	waitForCount(t, "completed", pool.Completed, 1)
}

func TestJobPool_RecordsFailure(t *testing.T) {
	pool := NewJobPool(JobPoolOptions{
		Workers:   1,
		QueueSize: 4,
		Run: func(ctx context.Context, req *AudioRequest) (*speech.Result, error) {
			return nil, &speech.Error{Code: speech.ErrRecognitionFailed, Message: "backend exploded"}
		},
		Log: zerolog.Nop(),
	})
	pool.Start()
	defer pool.Stop()

	id, _ := pool.Enqueue(&AudioRequest{Provider: "whisper", Audio: testPCM()})
	job := waitForState(t, pool, id, JobFailed)

	if job.Code != "RECOGNITION_FAILED" {
		t.Errorf("code = %q, want RECOGNITION_FAILED", job.Code)
	}
	if !strings.Contains(job.Error, "backend exploded") {
		t.Errorf("error = %q, want backend exploded", job.Error)
	}
	if job.Text != "" {
		t.Errorf("text = %q, want empty on failure", job.Text)
	}
	waitForCount(t, "failed", pool.Failed, 1)
}

func TestJobPool_QueueFull(t *testing.T) {
	release := make(chan struct{})
	pool := NewJobPool(JobPoolOptions{
		Workers:   1,
		QueueSize: 1,
		Run: func(ctx context.Context, req *AudioRequest) (*speech.Result, error) {
			<-release
			return &speech.Result{Text: "late"}, nil
		},
		Log: zerolog.Nop(),
	})
	pool.Start()

	if _, ok := pool.Enqueue(&AudioRequest{Provider: "whisper", Audio: testPCM()}); !ok {
		t.Fatal("first Enqueue returned false")
	}
	waitForCount(t, "running", func() int64 { return int64(pool.Running()) }, 1)

	if _, ok := pool.Enqueue(&AudioRequest{Provider: "whisper", Audio: testPCM()}); !ok {
		t.Fatal("second Enqueue returned false with one queue slot free")
	}

	id, ok := pool.Enqueue(&AudioRequest{Provider: "whisper", Audio: testPCM()})
	if ok {
		t.Error("third Enqueue succeeded on a full queue")
	}
	if id != "" {
		t.Errorf("rejected Enqueue returned id %q, want empty", id)
	}
	if got := pool.Tracked(); got != 2 {
		t.Errorf("Tracked() = %d, want 2 (rejected job leaves no record)", got)
	}

	close(release)
	pool.Stop()
}

func TestJobPool_SweepExpiresFinishedRecords(t *testing.T) {
	pool := NewJobPool(JobPoolOptions{
		Workers:   1,
		QueueSize: 4,
		Retention: time.Minute,
		Run: func(ctx context.Context, req *AudioRequest) (*speech.Result, error) {
			return &speech.Result{Text: "done"}, nil
		},
		Log: zerolog.Nop(),
	})
	pool.Start()
	defer pool.Stop()

	id, _ := pool.Enqueue(&AudioRequest{Provider: "whisper", Audio: testPCM()})
	waitForState(t, pool, id, JobCompleted)

	if n := pool.sweep(time.Now()); n != 0 {
		t.Errorf("sweep(now) removed %d records, want 0 inside retention", n)
	}
	if n := pool.sweep(time.Now().Add(2 * time.Minute)); n != 1 {
		t.Errorf("sweep(now+2m) removed %d records, want 1", n)
	}
	if _, ok := pool.Get(id); ok {
		t.Error("swept record still queryable")
	}
}

func TestJobPool_SweepKeepsRunningJobs(t *testing.T) {
	release := make(chan struct{})
	pool := NewJobPool(JobPoolOptions{
		Workers:   1,
		QueueSize: 4,
		Retention: time.Minute,
		Run: func(ctx context.Context, req *AudioRequest) (*speech.Result, error) {
			<-release
			return &speech.Result{Text: "done"}, nil
		},
		Log: zerolog.Nop(),
	})
	pool.Start()

	id, _ := pool.Enqueue(&AudioRequest{Provider: "whisper", Audio: testPCM()})
	waitForCount(t, "running", func() int64 { return int64(pool.Running()) }, 1)

	if n := pool.sweep(time.Now().Add(2 * time.Minute)); n != 0 {
		t.Errorf("sweep removed %d in-flight records, want 0", n)
	}
	if _, ok := pool.Get(id); !ok {
		t.Error("in-flight record swept")
	}

	close(release)
	pool.Stop()
}

func TestJobPool_GetUnknown(t *testing.T) {
	pool := NewJobPool(JobPoolOptions{Log: zerolog.Nop()})
	if _, ok := pool.Get("nope"); ok {
		t.Error("Get returned a record for an unknown id")
	}
}

func jobsRouter(h *JobsHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/api/v1/jobs", h.Create)
	r.Get("/api/v1/jobs/{id}", h.Get)
	return r
}

func TestJobsHandler_Lifecycle(t *testing.T) {
	src := testSource(t, whisperCreds("http://127.0.0.1:1"))
	pool := NewJobPool(JobPoolOptions{
		Workers:   1,
		QueueSize: 4,
		Run: func(ctx context.Context, req *AudioRequest) (*speech.Result, error) {
			return &speech.Result{Text: "async transcript", Provider: req.Provider, Model: "whisper-1"}, nil
		},
		Log: zerolog.Nop(),
	})
	pool.Start()
	defer pool.Stop()

	router := jobsRouter(NewJobsHandler(pool, src))

	r := httptest.NewRequest(http.MethodPost, "/api/v1/jobs?provider=whisper&language=en", bytes.NewReader(testPCM()))
	r.Header.Set("Content-Type", "audio/l16")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusAccepted {
		t.Fatalf("create status = %d, want 202; body %s", w.Code, w.Body.String())
	}
	var created map[string]string
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created["id"] == "" {
		t.Fatal("create response missing id")
	}
	if created["state"] != "queued" {
		t.Errorf("state = %q, want queued", created["state"])
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		w = httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+created["id"], nil))
		if w.Code != http.StatusOK {
			t.Fatalf("get status = %d, want 200; body %s", w.Code, w.Body.String())
		}
		var job Job
		if err := json.NewDecoder(w.Body).Decode(&job); err != nil {
			t.Fatalf("decode job: %v", err)
		}
		if job.State == JobCompleted {
			if job.Text != "async transcript" {
				t.Errorf("text = %q, want async transcript", job.Text)
			}
			if job.Provider != "whisper" {
				t.Errorf("provider = %q, want whisper", job.Provider)
			}
			break
		}
		if job.State == JobFailed {
			t.Fatalf("job failed: %s", job.Error)
		}
		if time.Now().After(deadline) {
			t.Fatalf("job stuck in %s", job.State)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestJobsHandler_CreateRejections(t *testing.T) {
	src := testSource(t, `{}`)
	pool := NewJobPool(JobPoolOptions{Log: zerolog.Nop()})
	router := jobsRouter(NewJobsHandler(pool, src))

	post := func(target string, body []byte) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body))
		r.Header.Set("Content-Type", "audio/l16")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)
		return w
	}

	t.Run("unknown_provider_404", func(t *testing.T) {
		if w := post("/api/v1/jobs?provider=nope", testPCM()); w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", w.Code)
		}
	})

	t.Run("unconfigured_provider_409", func(t *testing.T) {
		if w := post("/api/v1/jobs?provider=deepgram", testPCM()); w.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", w.Code)
		}
	})

	t.Run("missing_provider_400", func(t *testing.T) {
		if w := post("/api/v1/jobs", testPCM()); w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("unknown_job_404", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/no-such-id", nil))
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", w.Code)
		}
	})
}

func TestJobsHandler_QueueFull(t *testing.T) {
	src := testSource(t, whisperCreds("http://127.0.0.1:1"))
	release := make(chan struct{})
	pool := NewJobPool(JobPoolOptions{
		Workers:   1,
		QueueSize: 1,
		Run: func(ctx context.Context, req *AudioRequest) (*speech.Result, error) {
			<-release
			return &speech.Result{Text: "late"}, nil
		},
		Log: zerolog.Nop(),
	})
	pool.Start()

	router := jobsRouter(NewJobsHandler(pool, src))
	post := func() *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/api/v1/jobs?provider=whisper", bytes.NewReader(testPCM()))
		r.Header.Set("Content-Type", "audio/l16")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)
		return w
	}

	if w := post(); w.Code != http.StatusAccepted {
		t.Fatalf("first create status = %d, want 202", w.Code)
	}
	waitForCount(t, "running", func() int64 { return int64(pool.Running()) }, 1)

	if w := post(); w.Code != http.StatusAccepted {
		t.Fatalf("second create status = %d, want 202", w.Code)
	}

	w := post()
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("third create status = %d, want 503; body %s", w.Code, w.Body.String())
	}
	var body ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "job queue full" {
		t.Errorf("error = %q, want job queue full", body.Error)
	}

	close(release)
	pool.Stop()
}
