package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// TagStore keeps the tag dictionary and the ordered tags of video items.
type TagStore struct {
	db *sqlx.DB
}

func NewTagStore(db *sqlx.DB) *TagStore {
	return &TagStore{db: db}
}

// UpsertBatch makes sure every label exists and returns the ids in input order.
func (s *TagStore) UpsertBatch(ctx context.Context, labels []string) ([]int64, error) {
	if len(labels) == 0 {
		return nil, nil
	}

	unique := make([]string, 0, len(labels))
	seen := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		unique = append(unique, l)
	}

	query := `
		INSERT INTO tags (label)
		SELECT unnest($1::text[])
		ON CONFLICT (label) DO UPDATE SET label = EXCLUDED.label
		RETURNING id, label`

	rows, err := GetExecutor(ctx, s.db).QueryContext(ctx, query, pq.Array(unique))
	if err != nil {
		return nil, fmt.Errorf("upsert tags: %w", err)
	}
	defer rows.Close()

	byLabel := make(map[string]int64, len(unique))
	for rows.Next() {
		var id int64
		var label string
		if err := rows.Scan(&id, &label); err != nil {
			return nil, err
		}
		byLabel[label] = id
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(unique))
	for _, l := range unique {
		ids = append(ids, byLabel[l])
	}
	return ids, nil
}

// LinkToItem replaces the tags of a video item, keeping their order.
func (s *TagStore) LinkToItem(ctx context.Context, itemID int64, tagIDs []int64) error {
	exec := GetExecutor(ctx, s.db)

	if _, err := exec.ExecContext(ctx, "DELETE FROM video_item_tags WHERE item_id = $1", itemID); err != nil {
		return fmt.Errorf("unlink tags: %w", err)
	}
	if len(tagIDs) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO video_item_tags (item_id, tag_id, position) VALUES ")
	valueArgs := make([]any, 0, len(tagIDs)*2+1)
	valueArgs = append(valueArgs, itemID)

	for i, tagID := range tagIDs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("($1, $")
		sb.WriteString(strconv.Itoa(i*2 + 2))
		sb.WriteString(", $")
		sb.WriteString(strconv.Itoa(i*2 + 3))
		sb.WriteString(")")
		valueArgs = append(valueArgs, tagID, i)
	}
	sb.WriteString(" ON CONFLICT DO NOTHING")

	if _, err := exec.ExecContext(ctx, sb.String(), valueArgs...); err != nil {
		return fmt.Errorf("link tags: %w", err)
	}
	return nil
}
