package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

type Caption struct {
	ID             string
	Room           string
	Sender         string
	SourceLanguage string
	Text           string
	TargetLanguage string
	Translation    string
	ReceivedAt     time.Time
}

const insertCaption = `-- name: InsertCaption :exec
INSERT INTO captions (
    id, room, sender, source_language, text, target_language, translation, received_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

type InsertCaptionParams struct {
	ID             string
	Room           string
	Sender         string
	SourceLanguage string
	Text           string
	TargetLanguage string
	Translation    string
	ReceivedAt     time.Time
}

func (q *Queries) InsertCaption(ctx context.Context, arg InsertCaptionParams) error {
	_, err := q.db.Exec(ctx, insertCaption,
		arg.ID,
		arg.Room,
		arg.Sender,
		arg.SourceLanguage,
		arg.Text,
		arg.TargetLanguage,
		arg.Translation,
		arg.ReceivedAt,
	)
	return err
}

const listRecentCaptions = `-- name: ListRecentCaptions :many
SELECT id, room, sender, source_language, text, target_language, translation, received_at
FROM captions
WHERE ($1::text = '' OR room = $1)
ORDER BY received_at DESC
LIMIT $2
`

type ListRecentCaptionsParams struct {
	Room  string
	Limit int32
}

func (q *Queries) ListRecentCaptions(ctx context.Context, arg ListRecentCaptionsParams) ([]Caption, error) {
	rows, err := q.db.Query(ctx, listRecentCaptions, arg.Room, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Caption
	for rows.Next() {
		var i Caption
		if err := rows.Scan(
			&i.ID,
			&i.Room,
			&i.Sender,
			&i.SourceLanguage,
			&i.Text,
			&i.TargetLanguage,
			&i.Translation,
			&i.ReceivedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
