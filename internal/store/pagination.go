package store

import (
	"encoding/base64"
	"encoding/json"
	"time"
)

// CursorPage wraps keyset-paginated results. NextCursor is empty on the
// last page.
type CursorPage struct {
	Items      interface{} `json:"items"`
	NextCursor string      `json:"next_cursor,omitempty"`
	HasMore    bool        `json:"has_more"`
}

// OffsetPage wraps page/size-paginated results for the admin and
// catalog listings.
type OffsetPage struct {
	Items      interface{} `json:"items"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int         `json:"total_pages"`
}

func totalPages(total int64, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}

// OrderCursor marks a position in a user's order history. The pair
// (CreatedAt, ID) matches the listing's sort key.
type OrderCursor struct {
	CreatedAt time.Time `json:"created_at"`
	ID        int64     `json:"id"`
}

func EncodeCursor(cursor OrderCursor) string {
	data, err := json.Marshal(cursor)
	if err != nil {
		return ""
	}
	return base64.URLEncoding.EncodeToString(data)
}

// DecodeCursor parses an opaque cursor token. Callers request the first
// page by passing no token at all.
func DecodeCursor(encoded string) (OrderCursor, error) {
	var cursor OrderCursor
	data, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return cursor, err
	}

	err = json.Unmarshal(data, &cursor)
	return cursor, err
}
