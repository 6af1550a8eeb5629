package aladin

import "encoding/xml"

// Item はアラジンAPIが返す1冊分の書誌情報を表します。
type Item struct {
	Title         string   `xml:"title"`
	Author        string   `xml:"author"`
	PubDate       string   `xml:"pubDate"`
	Description   string   `xml:"description"`
	ISBN          string   `xml:"isbn"`
	ISBN13        string   `xml:"isbn13"`
	PriceSales    int      `xml:"priceSales"`
	PriceStandard int      `xml:"priceStandard"`
	Cover         string   `xml:"cover"`
	CategoryID    int64    `xml:"categoryId"`
	CategoryName  string   `xml:"categoryName"`
	Publisher     string   `xml:"publisher"`
	Link          string   `xml:"link"`
	SubInfo       *SubInfo `xml:"subInfo"`
}

// SubInfo は OptResult=subinfo で返される付加情報です。
type SubInfo struct {
	SubTitle      string `xml:"subTitle"`
	OriginalTitle string `xml:"originalTitle"`
	ItemPage      int    `xml:"itemPage"`
}

// apiResponse は ItemLookUp レスポンスのルート要素です。
type apiResponse struct {
	XMLName xml.Name `xml:"object"`
	Items   []Item   `xml:"item"`
}
