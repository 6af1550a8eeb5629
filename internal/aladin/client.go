// Package aladin はアラジン商品照会API（ItemLookUp）のクライアントを提供します。
package aladin

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client はアラジンAPIへのHTTPクライアントです。
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// New は Client を作成します。
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
	}
}

// SearchByISBN はISBN13で書誌情報を1件照会します。
// 該当書籍が存在しない場合は (nil, nil) を返します。
func (c *Client) SearchByISBN(ctx context.Context, isbn, ttbKey string) (*Item, error) {
	if strings.TrimSpace(isbn) == "" {
		return nil, nil
	}

	query := url.Values{}
	query.Set("ttbkey", ttbKey)
	query.Set("itemIdType", "ISBN13")
	query.Set("ItemId", isbn)
	query.Set("output", "xml")
	query.Set("Version", "20131101")
	query.Set("OptResult", "packing,subinfo")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for ISBN %s: %w", isbn, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("aladin api call failed for ISBN %s: %w", isbn, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read aladin response for ISBN %s: %w", isbn, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("aladin api returned status %d for ISBN %s", resp.StatusCode, isbn)
	}

	// APIはエラー時もHTTP 200で <error> 要素を返すため、本文で判定する
	if strings.Contains(string(body), "<error>") {
		return nil, nil
	}

	var parsed apiResponse
	if err := xml.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse aladin response for ISBN %s: %w", isbn, err)
	}

	if len(parsed.Items) == 0 {
		return nil, nil
	}
	return &parsed.Items[0], nil
}
