package ports

import (
	"context"
	"errors"

	"warpmine/domain/history"
)

// ErrHistoryClosed is returned by Append after Close
var ErrHistoryClosed = errors.New("history store closed")

// HistoryWriterPort provides append-only write access to the audit log.
// Writes are serialized by the implementation.
type HistoryWriterPort interface {
	Append(ctx context.Context, entry history.Entry) error
}

// HistoryReaderPort provides read-only access to prior entries.
// Reads never wait for an in-flight write.
type HistoryReaderPort interface {
	// List returns entries newest first
	List(ctx context.Context, filter history.Filter) ([]history.Entry, error)
}

// HistoryPort combines read and write access
type HistoryPort interface {
	HistoryWriterPort
	HistoryReaderPort
	Close() error
}

// NopHistory discards writes and lists nothing
type NopHistory struct{}

func (NopHistory) Append(context.Context, history.Entry) error { return nil }

func (NopHistory) List(context.Context, history.Filter) ([]history.Entry, error) {
	return []history.Entry{}, nil
}

func (NopHistory) Close() error { return nil }
