package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 250
)

type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

// Size clamps the requested page size into [1, MaxPageSize].
func (p Pagination) Size() int {
	switch {
	case p.PageSize <= 0:
		return DefaultPageSize
	case p.PageSize > MaxPageSize:
		return MaxPageSize
	default:
		return p.PageSize
	}
}

// Cursor marks the last row of a page in (date, id) order.
type Cursor struct {
	ID   int64  `json:"id"`
	Date string `json:"date"`
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token,omitempty"`
	HasMore       bool   `json:"has_more"`
}

func EncodeCursor(data Cursor) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func DecodeCursor(data string) (*Cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode page token: %w", err)
	}

	var cursor Cursor
	if err := json.Unmarshal(b, &cursor); err != nil {
		return nil, fmt.Errorf("decode page token: %w", err)
	}
	return &cursor, nil
}

// Trim cuts a limit+1 fetch back to limit and reports the next token.
func Trim[T any](data []T, limit int, extract func(T) Cursor) ([]T, PageInfo, error) {
	if len(data) <= limit {
		return data, PageInfo{}, nil
	}
	data = data[:limit]
	token, err := EncodeCursor(extract(data[len(data)-1]))
	if err != nil {
		return nil, PageInfo{}, err
	}
	return data, PageInfo{NextPageToken: token, HasMore: true}, nil
}
