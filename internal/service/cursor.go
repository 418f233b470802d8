package service

import (
	"fmt"
	"strconv"
	"strings"
)

// DecodeCursor decodes a feed cursor, the id of the last row of the previous
// page. An empty cursor decodes to 0.
func DecodeCursor(cursor string) (int64, error) {
	cursor = strings.TrimSpace(cursor)
	if cursor == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(cursor, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("%w: invalid cursor %q", ErrValidation, cursor)
	}
	return id, nil
}

// EncodeCursor encodes the id of the last row of a page as a cursor.
func EncodeCursor(id int64) string {
	return strconv.FormatInt(id, 10)
}
