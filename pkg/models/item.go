package models

import (
	"time"

	"github.com/google/uuid"
)

// CandidateItem represents one raw post extracted from the platform during a
// cycle. It is ephemeral: created when the fetcher extracts it, discarded
// after qualification unless accepted.
type CandidateItem struct {
	ID          string    // ID is the unique identifier of the item within the process
	Text        string    // Text is the raw post body as extracted
	Author      string    // Author is the author label as displayed on the post
	AuthorURL   string    // AuthorURL is the profile link if one was extracted, empty otherwise
	DeclaredAt  time.Time // DeclaredAt is the timestamp the platform displays on the post, zero if unknown
	Permalink   string    // Permalink is the canonical link to the post, empty if none was extracted
	Keyword     string    // Keyword is the search term that surfaced the item
	CollectedAt time.Time // CollectedAt is when the fetcher extracted the item
}

func NewCandidateItem(keyword string) *CandidateItem {
	return &CandidateItem{
		ID:      uuid.New().String(),
		Keyword: keyword,
	}
}

// HasAuthor reports whether the extraction produced a usable author label.
func (i *CandidateItem) HasAuthor() bool {
	return i.Author != ""
}
