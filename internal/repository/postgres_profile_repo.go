package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/traderdesk/internal/model"
	"github.com/lib/pq"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

const profileColumns = `user_id, display_name, bio, avatar_url, role, is_public, created_at`

// FindByID は指定ユーザーIDのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByID(ctx context.Context, userID string) (*model.Profile, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE user_id = $1`,
		userID,
	)

	profile, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}

	return profile, nil
}

// FindByIDs は指定ユーザーID集合のプロフィールを1回のクエリでまとめて取得する。
// ANY($1)で一括取得し、行ごとの問い合わせ（N+1）を避ける。
func (r *PostgresProfileRepo) FindByIDs(ctx context.Context, userIDs []string) ([]*model.Profile, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE user_id = ANY($1::uuid[])`,
		pq.Array(userIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの一括取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var profiles []*model.Profile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("プロフィールの読み取りに失敗しました: %w", err)
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("プロフィールの一括取得に失敗しました: %w", err)
	}

	return profiles, nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(s rowScanner) (*model.Profile, error) {
	p := &model.Profile{}
	var bio, avatarURL sql.NullString
	var role string

	if err := s.Scan(&p.UserID, &p.DisplayName, &bio, &avatarURL, &role, &p.IsPublic, &p.CreatedAt); err != nil {
		return nil, err
	}

	p.Role = model.Role(role)
	p.Bio = nullStringPtr(bio)
	p.AvatarURL = nullStringPtr(avatarURL)
	return p, nil
}

// nullStringPtr はsql.NullStringを*stringに変換する。NULLの場合はnilを返す。
func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
