package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/traderdesk/internal/model"
)

// PostgresBookingRepo はPostgreSQLを使用した予約リポジトリ。
type PostgresBookingRepo struct {
	db *sql.DB
}

// NewPostgresBookingRepo はPostgresBookingRepoを生成する。
func NewPostgresBookingRepo(db *sql.DB) *PostgresBookingRepo {
	return &PostgresBookingRepo{db: db}
}

const bookingColumns = `id, client_id, trader_id, minutes, estimated_cost, status, note, scheduled_at, created_at, updated_at`

// FindByID は指定IDの予約を取得する。見つからない場合はnilを返す。
func (r *PostgresBookingRepo) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`,
		id,
	)

	booking, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("予約の取得に失敗しました: %w", err)
	}

	return booking, nil
}

// Create は予約を作成する。
// estimated_costは呼び出し側で確定した値をそのまま保存する。
func (r *PostgresBookingRepo) Create(ctx context.Context, b *model.Booking) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO bookings (id, client_id, trader_id, minutes, estimated_cost, status, note, scheduled_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		b.ID, b.ClientID, b.TraderID, b.Minutes, b.EstimatedCost, string(b.Status),
		b.Note, b.ScheduledAt, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("予約の作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateStatus は現在のstatusがfromである場合に限りtoへ更新する。
// 条件付きUPDATEの1文で判定と更新を行うため、同時に2つの遷移が成功することはない。
func (r *PostgresBookingRepo) UpdateStatus(ctx context.Context, id string, from, to model.BookingStatus, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET status = $3, updated_at = $4
		 WHERE id = $1 AND status = $2`,
		id, string(from), string(to), at,
	)
	if err != nil {
		return false, fmt.Errorf("予約ステータスの更新に失敗しました: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

// ListByClientID はクライアントの予約一覧をcreated_at降順で返す。
func (r *PostgresBookingRepo) ListByClientID(ctx context.Context, clientID string) ([]*model.Booking, error) {
	return r.list(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE client_id = $1 ORDER BY created_at DESC`,
		clientID,
	)
}

// ListByTraderID はトレーダー宛ての予約一覧をcreated_at降順で返す。
func (r *PostgresBookingRepo) ListByTraderID(ctx context.Context, traderID string) ([]*model.Booking, error) {
	return r.list(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE trader_id = $1 ORDER BY created_at DESC`,
		traderID,
	)
}

func (r *PostgresBookingRepo) list(ctx context.Context, query string, args ...any) ([]*model.Booking, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("予約一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var bookings []*model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("予約の読み取りに失敗しました: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("予約一覧の取得に失敗しました: %w", err)
	}

	return bookings, nil
}

func scanBooking(s rowScanner) (*model.Booking, error) {
	b := &model.Booking{}
	var status string
	var note sql.NullString
	var scheduledAt sql.NullTime

	if err := s.Scan(
		&b.ID, &b.ClientID, &b.TraderID, &b.Minutes, &b.EstimatedCost,
		&status, &note, &scheduledAt, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}

	b.Status = model.BookingStatus(status)
	b.Note = nullStringPtr(note)
	if scheduledAt.Valid {
		t := scheduledAt.Time
		b.ScheduledAt = &t
	}
	return b, nil
}

// compile-time interface check
var _ BookingRepository = (*PostgresBookingRepo)(nil)
