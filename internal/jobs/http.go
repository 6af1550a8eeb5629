package jobs

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Processor はジョブの投入・購読・成果物取得を提供します。Manager が実装します。
type Processor interface {
	Process(isbns []string, ttbKey string) string
	Reject(message string) string
	Subscribe(jobID string) (*Emitter, error)
	TakeArtifact(jobID string) (io.WriterTo, error)
}

// ISBNSource は提出されたテキスト/ExcelからISBN一覧を抽出します。
type ISBNSource interface {
	ISBNsFromText(text string) []string
	ISBNsFromUpload(file *multipart.FileHeader, column string, startRow int) ([]string, error)
}

// ProcessTextHandler は POST /api/process/text のハンドラーを返します。
// リクエストボディの各行をISBNとして扱い、ジョブIDを即座に返します。
func ProcessTextHandler(svc Processor, src ISBNSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		ttbKey := requestTTBKey(c)
		if ttbKey == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "ttbkey を指定してください。",
			})
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "リクエストボディの読み込みに失敗しました。",
			})
			return
		}

		jobID := svc.Process(src.ISBNsFromText(string(body)), ttbKey)
		c.String(http.StatusOK, jobID)
	}
}

// ProcessExcelHandler は POST /api/process/excel のハンドラーを返します。
// 解析に失敗した場合もジョブIDを返し、失敗は進捗ストリームへ流します。
func ProcessExcelHandler(svc Processor, src ISBNSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		ttbKey := requestTTBKey(c)
		if ttbKey == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "ttbkey を指定してください。",
			})
			return
		}

		file, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "multipart/form-data でExcelファイルを送信してください。",
			})
			return
		}

		column := strings.TrimSpace(c.PostForm("isbnColumn"))
		startRow, convErr := strconv.Atoi(strings.TrimSpace(c.PostForm("startRow")))
		if column == "" || convErr != nil || startRow < 1 {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "isbnColumn と startRow を正しく指定してください。",
			})
			return
		}

		isbns, err := src.ISBNsFromUpload(file, column, startRow)
		if err != nil {
			jobID := svc.Reject(fmt.Sprintf("Excelファイルの処理中にエラーが発生しました: %v", err))
			c.String(http.StatusOK, jobID)
			return
		}

		jobID := svc.Process(isbns, ttbKey)
		c.String(http.StatusOK, jobID)
	}
}

// StatusHandler は GET /api/status/:id のSSEハンドラーを返します。
// 未知のジョブIDには error イベントを1件だけ送って閉じます。
func StatusHandler(svc Processor, streamTimeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("id")

		emitter, err := svc.Subscribe(jobID)
		if err != nil {
			if errors.Is(err, ErrSinkAttached) {
				c.JSON(http.StatusConflict, gin.H{
					"code":    "SINK_ALREADY_ATTACHED",
					"message": "このジョブは既に購読されています。",
				})
				return
			}
			setStreamHeaders(c)
			c.Status(http.StatusOK)
			_ = sse.Encode(c.Writer, sse.Event{Event: EventError, Data: "Invalid Job ID"})
			return
		}

		setStreamHeaders(c)

		timeout := time.NewTimer(streamTimeout)
		defer timeout.Stop()

		c.Stream(func(w io.Writer) bool {
			select {
			case ev, ok := <-emitter.Events():
				if !ok {
					return false
				}
				_ = sse.Encode(w, sse.Event{Event: ev.Name, Data: ev.Data})
				// 終端イベントの後にストリームを閉じる
				return ev.Name == EventProgress
			case <-c.Request.Context().Done():
				// 切断してもエミッタは閉じない。ジョブは走り続け、
				// 成果物はIDで回収できる。
				return false
			case <-timeout.C:
				return false
			}
		})
	}
}

// DownloadHandler は GET /api/download/:id のハンドラーを返します。
// 取得に成功するとジョブはレジストリから取り除かれます。
func DownloadHandler(svc Processor) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("id")

		artifact, err := svc.TakeArtifact(jobID)
		if err != nil {
			var failed *JobFailedError
			switch {
			case errors.As(err, &failed):
				c.JSON(http.StatusConflict, gin.H{
					"code":    "JOB_FAILED",
					"message": failed.Reason,
				})
			case errors.Is(err, ErrJobNotReady):
				c.JSON(http.StatusNotFound, gin.H{
					"code":    "JOB_NOT_READY",
					"message": "ジョブはまだ完了していません。",
				})
			default:
				c.JSON(http.StatusNotFound, gin.H{
					"code":    "JOB_NOT_FOUND",
					"message": "結果ファイルが見つかりませんでした。",
				})
			}
			return
		}

		filename := downloadFilename(jobID)
		encodedName := url.PathEscape(filename)
		c.Header("Content-Type", xlsxContentType)
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"; filename*=UTF-8''%s", filename, encodedName))
		c.Header("Cache-Control", "no-store")
		c.Header("X-Job-Id", jobID)
		c.Status(http.StatusOK)
		if _, err := artifact.WriteTo(c.Writer); err != nil {
			// ヘッダー送信後なのでJSONは返せない
			_ = c.Error(err)
		}
	}
}

func requestTTBKey(c *gin.Context) string {
	if key := strings.TrimSpace(c.Query("ttbkey")); key != "" {
		return key
	}
	return strings.TrimSpace(c.PostForm("ttbkey"))
}

func setStreamHeaders(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
}

func downloadFilename(jobID string) string {
	short := jobID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("도서_정보_결과_%s.xlsx", short)
}
