package service

import (
	"context"
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"github.com/corebanking/digibank/internal/domain"
)

const (
	minPageSize = 1
	maxPageSize = 100
)

// HistoryPage is one page of an actor's transfer history. NextCursor is empty
// once history is exhausted.
type HistoryPage struct {
	Items      []domain.TransferView `json:"items"`
	NextCursor string                `json:"next_cursor,omitempty"`
}

// List returns the actor's transfers (either leg) most recent first, keyed by
// (created_at, id) so pages stay stable when timestamps collide.
func (s *TransferService) List(ctx context.Context, actorUserID int64, limit int, cursor string) (HistoryPage, error) {
	if limit < minPageSize {
		limit = minPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	var before *domain.Cursor
	if cursor != "" {
		decoded, err := decodeCursor(cursor)
		if err != nil {
			return HistoryPage{}, err
		}
		before = &decoded
	}

	// Fetch one extra row to learn whether another page exists.
	rows, err := s.store.TransfersPage(ctx, actorUserID, limit+1, before)
	if err != nil {
		return HistoryPage{}, err
	}

	page := HistoryPage{Items: make([]domain.TransferView, 0, limit)}
	if len(rows) > limit {
		last := rows[limit-1]
		page.NextCursor = encodeCursor(last.CreatedAt, last.ID)
		rows = rows[:limit]
	}

	for i := range rows {
		page.Items = append(page.Items, rows[i].ViewFor(actorUserID))
	}
	return page, nil
}

// Cursors are base64url (unpadded) over "createdAtEpochMillis:id". Opaque to
// clients; any decode failure is the client's problem, never a server error.
func encodeCursor(createdAt time.Time, id int64) string {
	raw := strconv.FormatInt(createdAt.UnixMilli(), 10) + ":" + strconv.FormatInt(id, 10)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(cursor string) (domain.Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return domain.Cursor{}, domain.ErrInvalidCursor
	}

	millis, idPart, ok := strings.Cut(string(raw), ":")
	if !ok {
		return domain.Cursor{}, domain.ErrInvalidCursor
	}

	ms, err := strconv.ParseInt(millis, 10, 64)
	if err != nil {
		return domain.Cursor{}, domain.ErrInvalidCursor
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return domain.Cursor{}, domain.ErrInvalidCursor
	}

	return domain.Cursor{CreatedAt: time.UnixMilli(ms).UTC(), ID: id}, nil
}
