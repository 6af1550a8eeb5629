package excel

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestISBNsFromText(t *testing.T) {
	service := NewService(0)

	isbns := service.ISBNsFromText("9788966261024\r\n 9791162242742 \n\nnot-an-isbn")
	want := []string{"9788966261024", "9791162242742", "", "not-an-isbn"}
	if len(isbns) != len(want) {
		t.Fatalf("unexpected length: %v", isbns)
	}
	for i, v := range want {
		if isbns[i] != v {
			t.Fatalf("isbns[%d] = %q, want %q", i, isbns[i], v)
		}
	}
}

func TestISBNsFromTextEmpty(t *testing.T) {
	service := NewService(0)

	isbns := service.ISBNsFromText("")
	if len(isbns) != 1 || isbns[0] != "" {
		t.Fatalf("unexpected result for empty text: %v", isbns)
	}
}

// uploadFileHeader はテスト用のxlsxバイト列を multipart.FileHeader に包みます。
func uploadFileHeader(t *testing.T, name string, data []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fileWriter, err := writer.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := fileWriter.Write(data); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	file, header, err := req.FormFile("file")
	if err != nil {
		t.Fatalf("failed to re-read form file: %v", err)
	}
	file.Close()
	return header
}

func workbookBytes(t *testing.T, build func(f *excelize.File)) []byte {
	t.Helper()
	f := excelize.NewFile()
	build(f)
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("failed to serialize workbook: %v", err)
	}
	return buf.Bytes()
}

func TestISBNsFromUpload(t *testing.T) {
	service := NewService(0)

	data := workbookBytes(t, func(f *excelize.File) {
		sheet := f.GetSheetName(0)
		_ = f.SetCellValue(sheet, "B1", "ISBN")
		_ = f.SetCellValue(sheet, "B2", "9788966261024")
		_ = f.SetCellValue(sheet, "B3", 9791162242742) // 数値セル
		_ = f.SetCellValue(sheet, "B5", " 9788960777330 ")
	})

	isbns, err := service.ISBNsFromUpload(uploadFileHeader(t, "isbns.xlsx", data), "B", 2)
	if err != nil {
		t.Fatalf("ISBNsFromUpload returned error: %v", err)
	}

	want := []string{"9788966261024", "9791162242742", "", "9788960777330"}
	if len(isbns) != len(want) {
		t.Fatalf("unexpected length: %v", isbns)
	}
	for i, v := range want {
		if isbns[i] != v {
			t.Fatalf("isbns[%d] = %q, want %q", i, isbns[i], v)
		}
	}
}

func TestISBNsFromUploadUnsupportedFile(t *testing.T) {
	service := NewService(0)

	_, err := service.ISBNsFromUpload(uploadFileHeader(t, "isbns.txt", []byte("not an excel file")), "A", 1)
	var domainErr *Error
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if domainErr.Code != "UNSUPPORTED_FILE" {
		t.Fatalf("unexpected code: %s", domainErr.Code)
	}
}

func TestISBNsFromUploadInvalidColumn(t *testing.T) {
	service := NewService(0)

	data := workbookBytes(t, func(f *excelize.File) {})
	_, err := service.ISBNsFromUpload(uploadFileHeader(t, "isbns.xlsx", data), "##", 1)
	var domainErr *Error
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if domainErr.Code != "INVALID_INPUT" {
		t.Fatalf("unexpected code: %s", domainErr.Code)
	}
}

func TestISBNsFromUploadSizeLimit(t *testing.T) {
	service := NewService(8) // 極端に小さい上限

	data := workbookBytes(t, func(f *excelize.File) {})
	_, err := service.ISBNsFromUpload(uploadFileHeader(t, "isbns.xlsx", data), "A", 1)
	var domainErr *Error
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if domainErr.Code != "LIMIT_EXCEEDED" {
		t.Fatalf("unexpected code: %s", domainErr.Code)
	}
}

func TestISBNsFromUploadNilFile(t *testing.T) {
	service := NewService(0)

	if _, err := service.ISBNsFromUpload(nil, "A", 1); err == nil {
		t.Fatal("expected error for nil file")
	}
}
