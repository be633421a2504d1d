package api

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/snarg/stt-gateway/internal/speech"
)

// JobState is the lifecycle position of an async transcription.
type JobState string

const (
	JobQueued     JobState = "queued"
	JobProcessing JobState = "processing"
	JobCompleted  JobState = "completed"
	JobFailed     JobState = "failed"
)

// Job is one asynchronous transcription and its current state.
type Job struct {
	ID         string     `json:"id"`
	Provider   string     `json:"provider"`
	Language   string     `json:"language,omitempty"`
	State      JobState   `json:"state"`
	Text       string     `json:"text,omitempty"`
	Model      string     `json:"model,omitempty"`
	Error      string     `json:"error,omitempty"`
	Code       string     `json:"code,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	DurationMs int64      `json:"duration_ms,omitempty"`

	req *AudioRequest
}

// RunFunc executes one job's transcription.
type RunFunc func(ctx context.Context, req *AudioRequest) (*speech.Result, error)

// JobPoolOptions configures the async transcription pool.
type JobPoolOptions struct {
	Workers   int
	QueueSize int
	// Retention bounds how long finished job records stay queryable.
	Retention time.Duration
	// Timeout bounds a single job's execution. Zero leaves the run
	// function's own transport deadlines in charge.
	Timeout time.Duration
	Run     RunFunc
	Log     zerolog.Logger
}

// JobPool runs transcriptions on a fixed set of workers and keeps finished
// job records in memory until retention expires. Nothing is persisted.
type JobPool struct {
	jobs chan *Job
	opts JobPoolOptions
	log  zerolog.Logger

	mu      sync.Mutex
	records map[string]*Job

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	running   atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

func NewJobPool(opts JobPoolOptions) *JobPool {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.Retention <= 0 {
		opts.Retention = time.Hour
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &JobPool{
		jobs:    make(chan *Job, opts.QueueSize),
		opts:    opts,
		log:     opts.Log,
		records: make(map[string]*Job),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the worker goroutines and the retention sweeper.
func (p *JobPool) Start() {
	for i := 0; i < p.opts.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	go p.sweepLoop()
	p.log.Info().Int("workers", p.opts.Workers).Int("queue_size", p.opts.QueueSize).Msg("job pool started")
}

// Stop drains queued jobs and waits for workers to finish.
func (p *JobPool) Stop() {
	close(p.jobs)
	p.wg.Wait()
	p.cancel()
	p.log.Info().
		Int64("completed", p.completed.Load()).
		Int64("failed", p.failed.Load()).
		Msg("job pool stopped")
}

// Enqueue registers a job and queues it. ok is false when the queue is
// full; no record is kept in that case.
func (p *JobPool) Enqueue(req *AudioRequest) (string, bool) {
	j := &Job{
		ID:        uuid.NewString(),
		Provider:  req.Provider,
		Language:  req.Language,
		State:     JobQueued,
		CreatedAt: time.Now(),
		req:       req,
	}

	p.mu.Lock()
	p.records[j.ID] = j
	p.mu.Unlock()

	select {
	case p.jobs <- j:
		return j.ID, true
	default:
		p.mu.Lock()
		delete(p.records, j.ID)
		p.mu.Unlock()
		return "", false
	}
}

// Get returns a copy of the job record.
func (p *JobPool) Get(id string) (Job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	j, ok := p.records[id]
	if !ok {
		return Job{}, false
	}
	out := *j
	out.req = nil
	return out, true
}

// Pending, Running, Tracked, Completed and Failed feed the metrics collector
// at scrape time.
func (p *JobPool) Pending() int     { return len(p.jobs) }
func (p *JobPool) Running() int     { return int(p.running.Load()) }
func (p *JobPool) Completed() int64 { return p.completed.Load() }
func (p *JobPool) Failed() int64    { return p.failed.Load() }

func (p *JobPool) Tracked() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.records)
}

func (p *JobPool) worker(id int) {
	defer p.wg.Done()
	log := p.log.With().Int("worker", id).Logger()

	for j := range p.jobs {
		p.process(log, j)
	}
}

func (p *JobPool) process(log zerolog.Logger, j *Job) {
	p.running.Add(1)
	defer p.running.Add(-1)

	started := time.Now()
	p.mu.Lock()
	j.State = JobProcessing
	j.StartedAt = &started
	req := j.req
	p.mu.Unlock()

	ctx := p.ctx
	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}

	res, err := p.opts.Run(ctx, req)

	finished := time.Now()
	p.mu.Lock()
	j.FinishedAt = &finished
	j.DurationMs = finished.Sub(started).Milliseconds()
	j.req = nil
	if err != nil {
		j.State = JobFailed
		j.Error = err.Error()
		j.Code = speech.CodeOf(err).String()
	} else {
		j.State = JobCompleted
		j.Text = res.Text
		j.Model = res.Model
		if res.Language != "" {
			j.Language = res.Language
		}
	}
	p.mu.Unlock()

	if err != nil {
		p.failed.Add(1)
		log.Warn().Err(err).Str("job_id", j.ID).Str("provider", j.Provider).Msg("job failed")
	} else {
		p.completed.Add(1)
		log.Debug().Str("job_id", j.ID).Str("provider", j.Provider).Int64("duration_ms", j.DurationMs).Msg("job complete")
	}
}

func (p *JobPool) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-p.ctx.Done():
			return
		case now := <-ticker.C:
			if n := p.sweep(now); n > 0 {
				p.log.Debug().Int("expired", n).Msg("job records pruned")
			}
		}
	}
}

// sweep drops finished records older than the retention window.
func (p *JobPool) sweep(now time.Time) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for id, j := range p.records {
		if j.State != JobCompleted && j.State != JobFailed {
			continue
		}
		if j.FinishedAt != nil && now.Sub(*j.FinishedAt) > p.opts.Retention {
			delete(p.records, id)
			n++
		}
	}
	return n
}

// JobsHandler serves the async transcription endpoints.
type JobsHandler struct {
	pool *JobPool
	src  *ProviderSource
}

func NewJobsHandler(pool *JobPool, src *ProviderSource) *JobsHandler {
	return &JobsHandler{pool: pool, src: src}
}

// Create enqueues a transcription job and returns 202 with its id.
func (h *JobsHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, err := parseAudioRequest(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Reject unknown or unconfigured providers now rather than minting a
	// job doomed to fail.
	if !h.src.Configured(req.Provider) {
		if _, ok := speech.Lookup(req.Provider); !ok {
			WriteError(w, http.StatusNotFound, "unknown provider: "+req.Provider)
			return
		}
		WriteError(w, http.StatusConflict, "provider not configured: "+req.Provider)
		return
	}

	id, ok := h.pool.Enqueue(req)
	if !ok {
		WriteError(w, http.StatusServiceUnavailable, "job queue full")
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]string{"id": id, "state": string(JobQueued)})
}

// Get reports a job's current state.
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, ok := h.pool.Get(id)
	if !ok {
		WriteError(w, http.StatusNotFound, "unknown job: "+id)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}
