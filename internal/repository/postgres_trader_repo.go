package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/traderdesk/internal/model"
	"github.com/lib/pq"
)

// PostgresTraderRepo はPostgreSQLを使用したトレーダー出品情報リポジトリ。
type PostgresTraderRepo struct {
	db *sql.DB
}

// NewPostgresTraderRepo はPostgresTraderRepoを生成する。
func NewPostgresTraderRepo(db *sql.DB) *PostgresTraderRepo {
	return &PostgresTraderRepo{db: db}
}

// FindByUserID は指定ユーザーIDの出品情報を取得する。見つからない場合はnilを返す。
// 単価は呼び出し時点の値を毎回読み直す。
func (r *PostgresTraderRepo) FindByUserID(ctx context.Context, userID string) (*model.TraderListing, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT user_id, price_per_minute, rating, categories, active
		 FROM traders WHERE user_id = $1`,
		userID,
	)

	listing, err := scanTraderListing(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("出品情報の取得に失敗しました: %w", err)
	}

	return listing, nil
}

// ListByRating は有効な出品情報を評価の高い順に返す。
func (r *PostgresTraderRepo) ListByRating(ctx context.Context) ([]*model.TraderListing, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, price_per_minute, rating, categories, active
		 FROM traders
		 WHERE active = TRUE
		 ORDER BY rating DESC, user_id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("出品一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var listings []*model.TraderListing
	for rows.Next() {
		listing, err := scanTraderListing(rows)
		if err != nil {
			return nil, fmt.Errorf("出品情報の読み取りに失敗しました: %w", err)
		}
		listings = append(listings, listing)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("出品一覧の取得に失敗しました: %w", err)
	}

	return listings, nil
}

func scanTraderListing(s rowScanner) (*model.TraderListing, error) {
	l := &model.TraderListing{}
	var categories []string

	// NUMERICはdecimal.Decimalのsql.Scanner実装で読み取る
	if err := s.Scan(&l.UserID, &l.PricePerMinute, &l.Rating, pq.Array(&categories), &l.Active); err != nil {
		return nil, err
	}

	l.Categories = categories
	return l, nil
}

// compile-time interface check
var _ TraderRepository = (*PostgresTraderRepo)(nil)
