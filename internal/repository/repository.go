// Package repository persists accepted contact messages. Stores are
// append-only.
package repository

import (
	"encoding/json"
	"errors"
	"fmt"
)

// noData is stored when the caller supplied no metadata at all.
const noData = "null"

// encodeData serializes message metadata. A nil map becomes the literal
// "null"; an empty non-nil map becomes "{}".
func encodeData(data map[string]string) (string, error) {
	if data == nil {
		return noData, nil
	}
	buf, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode data: %w", err)
	}
	return string(buf), nil
}

// ErrDuplicateID is returned when a message with the same id already exists.
var ErrDuplicateID = errors.New("repository: duplicate message id")
