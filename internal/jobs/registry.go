package jobs

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry はジョブIDから状態への対応を一元管理するインメモリのレジストリです。
// すべての操作は複数ゴルーチンから同時に呼び出せます。
type Registry struct {
	mu     sync.Mutex
	jobs   map[string]*Job
	ttl    time.Duration
	logger *log.Logger
}

// NewRegistry は Registry を作成します。ttl は未回収ジョブを
// 掃除するまでの猶予で、0以下の場合は掃除を行いません。
func NewRegistry(ttl time.Duration, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Default()
	}
	return &Registry{
		jobs:   make(map[string]*Job),
		ttl:    ttl,
		logger: logger,
	}
}

// Submit は新しいジョブを Running 状態で登録し、即座に返します。
// ISBN一覧は以後変更されないようコピーして保持します。
func (r *Registry) Submit(isbns []string) *Job {
	now := time.Now()
	job := &Job{
		ID:        uuid.NewString(),
		ISBNs:     append([]string(nil), isbns...),
		Status:    StatusRunning,
		CreatedAt: now,
	}
	if r.ttl > 0 {
		job.ExpiresAt = now.Add(r.ttl)
	}

	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()
	return job
}

// AttachSink はジョブに進捗シンクを関連付けます。二重購読は
// ErrSinkAttached で拒否します。ジョブが既に終了している場合は
// 終端イベントをその場で送信してシンクを閉じます。
func (r *Registry) AttachSink(jobID string, sink *Emitter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if job.sink != nil {
		return ErrSinkAttached
	}
	job.sink = sink

	// 購読前に終了したジョブには終端イベントを即時再生する
	switch job.Status {
	case StatusSucceeded:
		if err := sink.Send(EventComplete, "100.00"); err != nil {
			r.logger.Printf("failed to replay complete event for job %s: %v", jobID, err)
		}
		sink.Close()
	case StatusFailed:
		if err := sink.Send(EventError, job.errMsg); err != nil {
			r.logger.Printf("failed to replay error event for job %s: %v", jobID, err)
		}
		sink.Close()
	}
	return nil
}

// Get はジョブのスナップショットを返します。
func (r *Registry) Get(jobID string) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	return &Snapshot{
		JobID:       job.ID,
		Status:      job.Status,
		Total:       len(job.ISBNs),
		HasArtifact: job.artifact != nil,
		Error:       job.errMsg,
		CreatedAt:   job.CreatedAt,
		ExpiresAt:   job.ExpiresAt,
	}, nil
}

// TakeArtifact は完成した成果物を返し、ジョブをレジストリから取り除きます。
// 取得は一度きりで、同じIDへの2回目の呼び出しは ErrJobNotFound になります。
func (r *Registry) TakeArtifact(jobID string) (io.WriterTo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	switch job.Status {
	case StatusRunning:
		return nil, ErrJobNotReady
	case StatusFailed:
		return nil, &JobFailedError{Reason: job.errMsg}
	}

	artifact := job.artifact
	delete(r.jobs, jobID)
	return artifact, nil
}

// Remove はジョブを無条件に取り除きます。
func (r *Registry) Remove(jobID string) {
	r.mu.Lock()
	delete(r.jobs, jobID)
	r.mu.Unlock()
}

// markSucceeded はジョブを成功で確定し、成果物を保存します。
// 遷移が行われた場合のみ ok=true と購読中のシンクを返します。
func (r *Registry) markSucceeded(jobID string, artifact io.WriterTo) (sink *Emitter, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, found := r.jobs[jobID]
	if !found || job.Status != StatusRunning {
		return nil, false
	}
	job.Status = StatusSucceeded
	job.artifact = artifact
	return job.sink, true
}

// markFailed はジョブを失敗で確定します。
func (r *Registry) markFailed(jobID string, message string) (sink *Emitter, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, found := r.jobs[jobID]
	if !found || job.Status != StatusRunning {
		return nil, false
	}
	job.Status = StatusFailed
	job.errMsg = message
	return job.sink, true
}

// sinkFor はジョブに関連付いたシンクを返します（未購読なら nil）。
func (r *Registry) sinkFor(jobID string) *Emitter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[jobID]; ok {
		return job.sink
	}
	return nil
}

// StartSweeper は期限切れジョブを定期的に掃除するゴルーチンを起動します。
// ダウンロードされないままのジョブがプロセス終了まで残るのを防ぎます。
func (r *Registry) StartSweeper(ctx context.Context, interval time.Duration) {
	if r.ttl <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				r.sweep(now)
			}
		}
	}()
}

func (r *Registry) sweep(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, job := range r.jobs {
		if job.ExpiresAt.IsZero() || now.Before(job.ExpiresAt) {
			continue
		}
		if job.sink != nil {
			job.sink.Close()
		}
		delete(r.jobs, id)
		r.logger.Printf("swept expired job %s (status=%s)", id, job.Status)
	}
}
