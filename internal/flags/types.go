package flags

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("flag not found")

type Flag struct {
	Key       string    `json:"key"`
	Value     bool      `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Pipeline configuration flags. One pipeline implementation, behavior
// toggled at runtime instead of parallel copies.
const (
	// FlagIncludeStaples mines vote-staple operations during extraction.
	FlagIncludeStaples = "history.include_staples"
)

// Defaults apply when a flag has never been set.
var Defaults = map[string]bool{
	FlagIncludeStaples: true,
}
