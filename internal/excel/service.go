// Package excel は提出データからのISBN抽出と、照会結果のワークブック組み立てを提供します。
package excel

import "fmt"

// Service はExcel入出力のサービスです。
type Service struct {
	maxFileSize int64
}

// NewService は Service を作成します。maxFileSize が0以下の場合は
// アップロードサイズを制限しません。
func NewService(maxFileSize int64) *Service {
	return &Service{maxFileSize: maxFileSize}
}

// Error はコード付きのドメインエラーです。
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}
