package jobs

import "sync"

// イベント名はSSEのイベント種別としてそのままクライアントに渡ります。
const (
	EventProgress = "progress"
	EventComplete = "complete"
	EventError    = "error"
)

// DefaultEmitterBuffer はエミッタのイベントバッファの既定サイズです。
const DefaultEmitterBuffer = 256

// Event はジョブ進捗ストリームの1イベントです。
type Event struct {
	Name string
	Data string
}

// Emitter はジョブごとの進捗イベントのプッシュチャネルです。
// Send はブロックせず、閉鎖済みまたはバッファ溢れの場合はエラーを返します。
type Emitter struct {
	mu     sync.Mutex
	events chan Event
	closed bool
}

// NewEmitter は Emitter を作成します。buffer が0以下の場合は既定値を使います。
func NewEmitter(buffer int) *Emitter {
	if buffer <= 0 {
		buffer = DefaultEmitterBuffer
	}
	return &Emitter{
		events: make(chan Event, buffer),
	}
}

// Send はイベントをバッファに積みます。購読者が未接続でも
// バッファに空きがある限り成功します。
func (e *Emitter) Send(name, data string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrSinkClosed
	}
	select {
	case e.events <- Event{Name: name, Data: data}:
		return nil
	default:
		return ErrSinkFull
	}
}

// Close はチャネルを閉じます。2回目以降の呼び出しは何もしません。
func (e *Emitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	close(e.events)
}

// Events は購読側が読み取るチャネルを返します。
func (e *Emitter) Events() <-chan Event {
	return e.events
}
