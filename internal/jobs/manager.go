package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
)

// Manager はジョブの投入・進捗配信・成果物受け渡しを束ねます。
// Registry と Runner の間の結線役で、HTTPハンドラーからはこの型だけを使います。
type Manager struct {
	registry *Registry
	runner   *Runner
	logger   *log.Logger
}

// NewManager は Manager を初期化します。
func NewManager(registry *Registry, runner *Runner, logger *log.Logger) (*Manager, error) {
	if registry == nil {
		return nil, errors.New("registry is nil")
	}
	if runner == nil {
		return nil, errors.New("runner is nil")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		registry: registry,
		runner:   runner,
		logger:   logger,
	}, nil
}

// Process はジョブを登録してバックグラウンドで実行を開始し、
// 照会を1件も始める前にジョブIDを返します。
func (m *Manager) Process(isbns []string, ttbKey string) string {
	job := m.registry.Submit(isbns)
	m.logger.Printf("starting job %s with %d ISBNs", job.ID, len(job.ISBNs))

	go m.runner.Run(context.Background(), job.ID, job.ISBNs, ttbKey,
		func(progress float64) { m.sendProgress(job.ID, progress) },
		func(artifact io.WriterTo, err error) { m.finishJob(job.ID, artifact, err) },
	)
	return job.ID
}

// Reject は入力の解析に失敗した提出を、失敗済みジョブとして登録します。
// 呼び出し元は通常どおりジョブIDを受け取り、失敗は進捗ストリーム経由で観測します。
func (m *Manager) Reject(message string) string {
	job := m.registry.Submit(nil)
	m.registry.markFailed(job.ID, message)
	m.logger.Printf("rejected job %s: %s", job.ID, message)
	return job.ID
}

// Subscribe はジョブの進捗ストリーム用エミッタを作成して関連付けます。
func (m *Manager) Subscribe(jobID string) (*Emitter, error) {
	emitter := NewEmitter(DefaultEmitterBuffer)
	if err := m.registry.AttachSink(jobID, emitter); err != nil {
		return nil, err
	}
	return emitter, nil
}

// TakeArtifact は完成した成果物を取り出します（取り出しは一度きり）。
func (m *Manager) TakeArtifact(jobID string) (io.WriterTo, error) {
	return m.registry.TakeArtifact(jobID)
}

// Get はジョブのスナップショットを返します。
func (m *Manager) Get(jobID string) (*Snapshot, error) {
	return m.registry.Get(jobID)
}

// sendProgress は進捗イベントを送信します。配信失敗はログに残すだけで
// バッチの実行は継続します。
func (m *Manager) sendProgress(jobID string, progress float64) {
	sink := m.registry.sinkFor(jobID)
	if sink == nil {
		return
	}
	if err := sink.Send(EventProgress, fmt.Sprintf("%.2f", progress)); err != nil {
		m.logger.Printf("failed to send progress for job %s: %v", jobID, err)
	}
}

// finishJob はジョブを終端状態へ遷移させ、終端イベントを配信します。
// 終端イベントの配信自体に失敗した場合、ジョブは回復不能とみなして
// レジストリから取り除きます（計算済みの成果物も破棄されます）。
func (m *Manager) finishJob(jobID string, artifact io.WriterTo, runErr error) {
	if runErr != nil {
		m.logger.Printf("job %s failed: %v", jobID, runErr)
		sink, ok := m.registry.markFailed(jobID, runErr.Error())
		if !ok {
			return
		}
		m.deliverTerminal(jobID, sink, EventError, runErr.Error())
		return
	}

	sink, ok := m.registry.markSucceeded(jobID, artifact)
	if !ok {
		return
	}
	m.logger.Printf("job %s completed", jobID)
	m.deliverTerminal(jobID, sink, EventComplete, "100.00")
}

func (m *Manager) deliverTerminal(jobID string, sink *Emitter, name, data string) {
	// 未購読のジョブはイベントを送れないが、IDでの取得は引き続き可能
	if sink == nil {
		return
	}
	if err := sink.Send(name, data); err != nil {
		m.logger.Printf("failed to deliver %s event for job %s, removing job: %v", name, jobID, err)
		sink.Close()
		m.registry.Remove(jobID)
		return
	}
	sink.Close()
}
