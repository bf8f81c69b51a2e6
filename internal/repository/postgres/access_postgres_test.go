package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docvault/internal/model"
	"docvault/internal/repository"
)

var policy = repository.Policy{MaxDownloads: 3, Window: 7 * 24 * time.Hour}

func TestAccessLimitPostgres_Authorize(t *testing.T) {
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		setup  func(mock sqlmock.Sqlmock)
		want   repository.Decision
		errMsg string
	}{
		{
			name: "first access creates row",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("INSERT INTO access_limits").
					WithArgs("buyer1", "doc1", 3, now, now.Add(policy.Window)).
					WillReturnRows(sqlmock.NewRows([]string{"download_count"}).AddRow(1))
			},
			want: repository.Decision{Allowed: true, Reason: repository.ReasonFirstAccess, Count: 1},
		},
		{
			name: "existing row within limit",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("INSERT INTO access_limits").WillReturnError(sql.ErrNoRows)
				mock.ExpectQuery("UPDATE access_limits SET download_count = download_count \\+ 1").
					WithArgs("buyer1", "doc1", now).
					WillReturnRows(sqlmock.NewRows([]string{"download_count"}).AddRow(2))
			},
			want: repository.Decision{Allowed: true, Reason: repository.ReasonWithinLimit, Count: 2},
		},
		{
			name: "expired row is marked",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("INSERT INTO access_limits").WillReturnError(sql.ErrNoRows)
				mock.ExpectQuery("UPDATE access_limits SET download_count").WillReturnError(sql.ErrNoRows)
				mock.ExpectExec("UPDATE access_limits SET is_expired = true").
					WithArgs("buyer1", "doc1", now).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
			want: repository.Decision{Reason: repository.ReasonExpired},
		},
		{
			name: "exhausted row is denied",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("INSERT INTO access_limits").WillReturnError(sql.ErrNoRows)
				mock.ExpectQuery("UPDATE access_limits SET download_count").WillReturnError(sql.ErrNoRows)
				mock.ExpectExec("UPDATE access_limits SET is_expired = true").
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			want: repository.Decision{Reason: repository.ReasonDenied},
		},
		{
			name: "database error",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("INSERT INTO access_limits").WillReturnError(sql.ErrConnDone)
			},
			errMsg: "create access limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()
			tt.setup(mock)

			got, err := NewAccessLimitPostgres(db).Authorize(context.Background(), "buyer1", "doc1", now, policy)
			if tt.errMsg != "" {
				assert.ErrorContains(t, err, tt.errMsg)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAccessLimitPostgres_Find(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	repo := NewAccessLimitPostgres(db)

	mock.ExpectQuery("SELECT (.+) FROM access_limits").
		WithArgs("buyer1", "doc1").
		WillReturnRows(sqlmock.NewRows([]string{"recipient_id", "document_id", "max_downloads", "download_count", "first_access", "last_access", "expiry_at", "is_expired"}).
			AddRow("buyer1", "doc1", 3, 2, now, now, now.Add(time.Hour), false))

	rec, err := repo.Find(context.Background(), "buyer1", "doc1")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.DownloadCount)
	assert.Equal(t, 1, rec.Remaining(now))

	mock.ExpectQuery("SELECT (.+) FROM access_limits").
		WithArgs("buyer1", "doc2").
		WillReturnError(sql.ErrNoRows)
	_, err = repo.Find(context.Background(), "buyer1", "doc2")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccessLogPostgres_Append(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	entry := &model.AccessLogEntry{
		RecipientID:    "buyer1",
		DocumentID:     "doc1",
		Outcome:        model.OutcomeServed,
		ServedAt:       now,
		ClientIP:       "10.0.0.1",
		ClientAgent:    "curl/8",
		WasWatermarked: true,
		WasSigned:      true,
		Signature:      "c2ln",
	}

	mock.ExpectQuery("INSERT INTO access_logs").
		WithArgs("buyer1", "doc1", "served", now, "10.0.0.1", "curl/8", true, true, "c2ln").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	require.NoError(t, NewAccessLogPostgres(db).Append(context.Background(), entry))
	assert.Equal(t, int64(42), entry.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
