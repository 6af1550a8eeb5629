package jobs

import (
	"context"
	"io"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kisusu115/library-bookworm/internal/aladin"
)

// isbnPattern は照会対象とみなすISBN13の形式です。
var isbnPattern = regexp.MustCompile(`^\d{13}$`)

// Searcher はISBN1件の照会を行う外部カタログへのポートです。
type Searcher interface {
	SearchByISBN(ctx context.Context, isbn, ttbKey string) (*aladin.Item, error)
}

// Builder は照会結果の並びから成果物を組み立てます。
type Builder interface {
	Build(results []LookupResult) (io.WriterTo, error)
}

// Runner は1ジョブ分のISBN一覧を照会して成果物に変換します。
// ジョブ間で共有する可変状態は持ちません。
type Runner struct {
	searcher Searcher
	builder  Builder
	interval time.Duration
	logger   *log.Logger
}

// NewRunner は Runner を作成します。interval は照会ディスパッチの
// 最小間隔で、外部APIのレート制限を守るためのものです。
func NewRunner(searcher Searcher, builder Builder, interval time.Duration, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		searcher: searcher,
		builder:  builder,
		interval: interval,
		logger:   logger,
	}
}

// Run はISBN一覧を処理し、onDone をちょうど1回呼び出します。
// onProgress には 0 より大きく 100 で終わる単調非減少の進捗率を渡します。
// 個々の照会の失敗は「該当なし」として扱い、ジョブ全体は継続します。
func (r *Runner) Run(ctx context.Context, jobID string, isbns []string, ttbKey string, onProgress func(float64), onDone func(io.WriterTo, error)) {
	total := len(isbns)
	if total == 0 {
		artifact, err := r.builder.Build(nil)
		onDone(artifact, err)
		return
	}

	results := make([]LookupResult, total)

	var (
		mu        sync.Mutex
		completed int
		wg        sync.WaitGroup
	)
	// 完了処理を直列化して進捗の単調性と最終値100を保証する
	finish := func(ordinal int, isbn string, item *aladin.Item) {
		mu.Lock()
		defer mu.Unlock()
		results[ordinal] = LookupResult{ISBN: isbn, Item: item}
		completed++
		if onProgress != nil {
			onProgress(float64(completed) / float64(total) * 100)
		}
	}

	limiter := rate.NewLimiter(rate.Every(r.interval), 1)

	for i, raw := range isbns {
		isbn := strings.TrimSpace(raw)

		// 形式が不正なISBNはAPIに送らず「該当なし」で確定する
		if !isbnPattern.MatchString(isbn) {
			finish(i, isbn, nil)
			continue
		}

		// ディスパッチ間隔の制御。完了は並行してよい。
		if err := limiter.Wait(ctx); err != nil {
			r.logger.Printf("job %s: dispatch cancelled for ISBN %s: %v", jobID, isbn, err)
			finish(i, isbn, nil)
			continue
		}

		wg.Add(1)
		go func(ordinal int, isbn string) {
			defer wg.Done()
			item, err := r.searcher.SearchByISBN(ctx, isbn, ttbKey)
			if err != nil {
				// 1件の失敗でバッチ全体を落とさない
				r.logger.Printf("job %s: lookup failed for ISBN %s: %v", jobID, isbn, err)
				item = nil
			}
			finish(ordinal, isbn, item)
		}(i, isbn)
	}

	wg.Wait()

	artifact, err := r.builder.Build(results)
	if err != nil {
		onDone(nil, err)
		return
	}
	onDone(artifact, nil)
}
