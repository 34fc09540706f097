package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/traderdesk/internal/model"
)

// PostgresFeedbackRepo はPostgreSQLを使用したフィードバックリポジトリ。
type PostgresFeedbackRepo struct {
	db *sql.DB
}

// NewPostgresFeedbackRepo はPostgresFeedbackRepoを生成する。
func NewPostgresFeedbackRepo(db *sql.DB) *PostgresFeedbackRepo {
	return &PostgresFeedbackRepo{db: db}
}

// ListByTraderID はトレーダーへのフィードバックをcreated_at降順で最大limit件返す。
func (r *PostgresFeedbackRepo) ListByTraderID(ctx context.Context, traderID string, limit int) ([]*model.Feedback, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, trader_id, client_id, rating, comment, created_at
		 FROM feedback
		 WHERE trader_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		traderID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("フィードバックの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var feedback []*model.Feedback
	for rows.Next() {
		f := &model.Feedback{}
		var comment sql.NullString
		if err := rows.Scan(&f.ID, &f.TraderID, &f.ClientID, &f.Rating, &comment, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("フィードバックの読み取りに失敗しました: %w", err)
		}
		f.Comment = nullStringPtr(comment)
		feedback = append(feedback, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("フィードバックの取得に失敗しました: %w", err)
	}

	return feedback, nil
}

// compile-time interface check
var _ FeedbackRepository = (*PostgresFeedbackRepo)(nil)
