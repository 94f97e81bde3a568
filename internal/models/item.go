// Package models provides data model definitions for the clipboard history.
package models

import (
	"strings"
	"unicode/utf8"
)

// MaxTitleLength is the maximum number of characters kept in a derived title.
const MaxTitleLength = 100

// Item is one clipboard-history entry (text, or image metadata).
type Item struct {
	ID        int64  `db:"id" json:"id"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
	UpdatedAt int64  `db:"updated_at" json:"updated_at"`
	LastUsed  int64  `db:"last_used" json:"last_used"`
	Starred   bool   `db:"starred" json:"starred"`
	Title     string `db:"title" json:"title"`
	Body      string `db:"body" json:"body"`
	Hash      string `db:"hash" json:"hash"`
}

// Image is the binary payload owned by an image item.
type Image struct {
	ID        int64  `db:"id" json:"id"`
	ItemID    int64  `db:"item_id" json:"item_id"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
	MIME      string `db:"mime" json:"mime"`
	Bytes     []byte `db:"bytes" json:"-"`
}

// ItemSummary is the projection of an item returned to IPC clients.
type ItemSummary struct {
	ID            int64  `db:"id" json:"id"`
	Title         string `db:"title" json:"title"`
	Body          string `db:"body" json:"body"`
	CreatedAt     int64  `db:"created_at" json:"created_at"`
	UpdatedAt     int64  `db:"updated_at" json:"updated_at"`
	LastUsed      int64  `db:"last_used" json:"last_used"`
	Starred       bool   `db:"starred" json:"starred"`
	Hash          string `db:"hash" json:"hash"`
	HasImage      bool   `db:"has_image" json:"has_image"`
	ThumbnailPath string `db:"-" json:"thumbnail_path,omitempty"`
}

// TextTitle derives the title of a text item: the first line of body,
// truncated to MaxTitleLength characters.
func TextTitle(body string) string {
	line := body
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSuffix(line, "\r")
	if utf8.RuneCountInString(line) <= MaxTitleLength {
		return line
	}
	runes := []rune(line)
	return string(runes[:MaxTitleLength])
}

// ImageTitle is the synthetic title given to image items.
func ImageTitle(hash string) string {
	return "Image: " + hash
}
