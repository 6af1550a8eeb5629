// Package jobs は ISBN 一括照会ジョブのライフサイクル管理を提供します。
package jobs

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/kisusu115/library-bookworm/internal/aladin"
)

// Status はジョブの実行状態を表します。
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "done"
	StatusFailed    Status = "error"
)

// Job はジョブの現在状態を表します。Registry が所有し、
// フィールドの変更はすべて Registry のロック配下で行われます。
type Job struct {
	ID        string
	ISBNs     []string
	Status    Status
	CreatedAt time.Time
	ExpiresAt time.Time

	artifact io.WriterTo
	errMsg   string
	sink     *Emitter
}

// Snapshot は Job の読み取り専用コピーです。
type Snapshot struct {
	JobID       string    `json:"jobId"`
	Status      Status    `json:"status"`
	Total       int       `json:"total"`
	HasArtifact bool      `json:"hasArtifact"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// LookupResult は1件のISBN照会の結果です。
// 提出時の並び順はスライスの添字で保持されます。
type LookupResult struct {
	ISBN string
	Item *aladin.Item
}

var (
	// ErrJobNotFound は未知のジョブIDを示します。
	ErrJobNotFound = errors.New("job not found")
	// ErrJobNotReady は実行中ジョブの成果物要求を示します。
	ErrJobNotReady = errors.New("job not ready")
	// ErrSinkAttached は二重購読を示します。
	ErrSinkAttached = errors.New("sink already attached")
	// ErrSinkClosed は閉じられたシンクへの送信を示します。
	ErrSinkClosed = errors.New("sink closed")
	// ErrSinkFull はバッファ溢れによる送信失敗を示します。
	ErrSinkFull = errors.New("sink buffer full")
)

// JobFailedError は失敗したジョブの成果物要求に返されます。
type JobFailedError struct {
	Reason string
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("job failed: %s", e.Reason)
}
