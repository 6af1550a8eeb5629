package excel

import (
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kisusu115/library-bookworm/internal/aladin"
	"github.com/kisusu115/library-bookworm/internal/jobs"
)

const (
	sheetName       = "도서 정보"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// headers は成果物ワークブックの列見出しです（原文ママ）。
var headers = []string{
	"ISBN13", "제목", "주제목", "부제목", "저자", "지은이", "출판사", "출판일", "상세설명",
	"판매가", "정가", "표지 이미지 URL", "상품링크", "알라딘 ItemId", "페이지 수",
	"카테고리 체인", "카테고리",
}

// Workbook は組み立て済みのワークブックを成果物として包みます。
type Workbook struct {
	file *excelize.File
}

// WriteTo はワークブックをxlsx形式で書き出します。
func (w *Workbook) WriteTo(dst io.Writer) (int64, error) {
	return w.file.WriteTo(dst)
}

// Build は照会結果の並びからワークブックを組み立てます。
// 行順は提出順のままで、該当なしのISBNはA列にそのまま残し他列は空にします。
func (s *Service) Build(results []jobs.LookupResult) (io.WriterTo, error) {
	workbook := excelize.NewFile()
	if err := workbook.SetSheetName(workbook.GetSheetName(0), sheetName); err != nil {
		return nil, newError("BUILD_FAILED", "シートの作成に失敗しました。", err)
	}

	if err := writeHeaderRow(workbook); err != nil {
		return nil, newError("BUILD_FAILED", "見出し行の作成に失敗しました。", err)
	}

	for i, result := range results {
		row := i + 2
		if result.Item == nil {
			if err := setCell(workbook, 1, row, result.ISBN); err != nil {
				return nil, newError("BUILD_FAILED", "データ行の作成に失敗しました。", err)
			}
			continue
		}
		if err := writeItemRow(workbook, row, result.Item); err != nil {
			return nil, newError("BUILD_FAILED", "データ行の作成に失敗しました。", err)
		}
	}

	if err := workbook.SetColWidth(sheetName, "A", "Q", 20); err != nil {
		return nil, newError("BUILD_FAILED", "列幅の設定に失敗しました。", err)
	}

	return &Workbook{file: workbook}, nil
}

func writeHeaderRow(workbook *excelize.File) error {
	for i, header := range headers {
		if err := setCell(workbook, i+1, 1, header); err != nil {
			return err
		}
	}

	style, err := workbook.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	return workbook.SetCellStyle(sheetName, "A1", last, style)
}

func writeItemRow(workbook *excelize.File, row int, item *aladin.Item) error {
	mainTitle, subTitle := splitTitle(item.Title)
	link, itemID := processLink(item.Link)

	values := []any{
		item.ISBN13,
		item.Title,
		mainTitle,
		subTitle,
		item.Author,
		primaryAuthor(item.Author),
		item.Publisher,
		item.PubDate,
		item.Description,
		item.PriceSales,
		item.PriceStandard,
		coverURL(item.Cover),
		link,
		itemID,
		itemPage(item),
		item.CategoryName,
		lastCategory(item.CategoryName),
	}
	for i, value := range values {
		if err := setCell(workbook, i+1, row, value); err != nil {
			return err
		}
	}
	return nil
}

func setCell(workbook *excelize.File, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return workbook.SetCellValue(sheetName, cell, value)
}

// splitTitle は「主題 - 副題」形式のタイトルを分解します。
func splitTitle(title string) (main, sub string) {
	title = strings.TrimSpace(title)
	if idx := strings.Index(title, " - "); idx != -1 {
		return strings.TrimSpace(title[:idx]), strings.TrimSpace(title[idx+3:])
	}
	return title, ""
}

// primaryAuthor は著者欄から「(지은이)」より前の代表著者を取り出します。
func primaryAuthor(author string) string {
	if idx := strings.Index(author, " (지은이)"); idx != -1 {
		return strings.TrimSpace(author[:idx])
	}
	return strings.TrimSpace(author)
}

// coverURL はサムネイルURLを大判画像のURLに置き換えます。
func coverURL(cover string) string {
	return strings.Replace(cover, "coversum", "cover500", 1)
}

// processLink はアフィリエイトパラメータを取り除いた商品リンクと、
// リンクに含まれるアラジンItemIdを返します。
func processLink(link string) (processed, itemID string) {
	if link == "" {
		return "", ""
	}

	if start := strings.Index(link, "ItemId="); start != -1 {
		start += len("ItemId=")
		end := strings.Index(link[start:], "&")
		if end == -1 {
			itemID = link[start:]
		} else {
			itemID = link[start : start+end]
		}
	}

	processed = link
	if idx := strings.Index(link, "&partner="); idx != -1 {
		processed = link[:idx]
	}
	return processed, itemID
}

func itemPage(item *aladin.Item) any {
	if item.SubInfo == nil {
		return ""
	}
	return item.SubInfo.ItemPage
}

// lastCategory はカテゴリ体系の末尾セグメントを返します。
func lastCategory(categoryName string) string {
	categoryName = strings.TrimSpace(categoryName)
	if categoryName == "" {
		return ""
	}
	if idx := strings.LastIndex(categoryName, ">"); idx != -1 {
		return strings.TrimSpace(categoryName[idx+1:])
	}
	return categoryName
}

var (
	_ jobs.Builder    = (*Service)(nil)
	_ jobs.ISBNSource = (*Service)(nil)
)
