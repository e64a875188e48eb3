package ranking

import "errors"

var (
	// ErrEmptyCatalog is returned when ranking is asked for over zero items.
	ErrEmptyCatalog = errors.New("catalog is empty")
	// ErrIndexNotReady is returned when no fitted index is available.
	ErrIndexNotReady = errors.New("catalog index not ready")
	// ErrDuplicateItem is returned when two catalog items share an id.
	ErrDuplicateItem = errors.New("duplicate item id")
	// ErrUnknownItem is returned for ids absent from the index.
	ErrUnknownItem = errors.New("item not in index")
)
