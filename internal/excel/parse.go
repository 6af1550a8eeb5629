package excel

import (
	"bytes"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/xuri/excelize/v2"
)

// ISBNsFromText は貼り付けテキストの各行をISBN候補として返します。
// 空行も元の位置を保つためにそのまま残します。
func (s *Service) ISBNsFromText(text string) []string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	isbns := make([]string, len(lines))
	for i, line := range lines {
		isbns[i] = strings.TrimSpace(line)
	}
	return isbns
}

// ISBNsFromUpload はアップロードされたxlsxから指定列のISBN一覧を抽出します。
// column は "A" のような列記号、startRow は1始まりの開始行です。
func (s *Service) ISBNsFromUpload(file *multipart.FileHeader, column string, startRow int) ([]string, error) {
	if file == nil {
		return nil, newError("INVALID_INPUT", "Excelファイルを選択してください。", nil)
	}
	if s.maxFileSize > 0 && file.Size > s.maxFileSize {
		return nil, newError("LIMIT_EXCEEDED", "ファイルサイズが上限を超えています。", nil)
	}

	colIndex, err := excelize.ColumnNameToNumber(strings.ToUpper(strings.TrimSpace(column)))
	if err != nil {
		return nil, newError("INVALID_INPUT", "ISBN列の指定が不正です。", err)
	}
	if startRow < 1 {
		return nil, newError("INVALID_INPUT", "開始行は1以上を指定してください。", nil)
	}

	reader, err := file.Open()
	if err != nil {
		return nil, newError("INVALID_INPUT", "ファイルを開けませんでした。", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, newError("INVALID_INPUT", "ファイルの読み込みに失敗しました。", err)
	}

	if mt := mimetype.Detect(data); !mt.Is(xlsxContentType) {
		return nil, newError("UNSUPPORTED_FILE", "xlsx形式のファイルのみ対応しています。", nil)
	}

	workbook, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, newError("UNSUPPORTED_FILE", "Excelファイルとして解析できませんでした。", err)
	}
	defer workbook.Close()

	sheet := workbook.GetSheetName(0)
	if sheet == "" {
		return nil, newError("UNSUPPORTED_FILE", "シートが見つかりませんでした。", nil)
	}

	// 数値セルが指数表記にならないよう生の値を読む
	rows, err := workbook.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, newError("UNSUPPORTED_FILE", "シートの読み込みに失敗しました。", err)
	}

	isbns := make([]string, 0, len(rows))
	for i := startRow - 1; i < len(rows); i++ {
		value := ""
		if colIndex-1 < len(rows[i]) {
			value = strings.TrimSpace(rows[i][colIndex-1])
		}
		isbns = append(isbns, value)
	}
	return isbns, nil
}
