package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"sniperctl/internal/models"
	"sniperctl/pkg/crypto"
)

const testSecret = "unit-test-secret-0123456789"

// ============================================================
// CacheRepository Tests
// ============================================================

func TestNewCacheRepository(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewCacheRepository(db, testSecret)
	if repo == nil {
		t.Fatal("NewCacheRepository returned nil")
	}
	if repo.db != db {
		t.Error("db not set correctly")
	}
}

func TestCacheRepositorySaveToken(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`INSERT INTO session_cache`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := NewCacheRepository(db, testSecret)
	if err := repo.SaveToken("jwt-token-value"); err != nil {
		t.Fatalf("SaveToken failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCacheRepositoryLoadToken(t *testing.T) {
	encrypted, err := crypto.Seal("jwt-token-value", testSecret)
	if err != nil {
		t.Fatalf("failed to seal test token: %v", err)
	}

	tests := []struct {
		name        string
		mockSetup   func(mock sqlmock.Sqlmock)
		expected    string
		expectError error
	}{
		{
			name: "success",
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"token_encrypted"}).AddRow(encrypted)
				mock.ExpectQuery(`SELECT token_encrypted FROM session_cache WHERE id = 1`).
					WillReturnRows(rows)
			},
			expected: "jwt-token-value",
		},
		{
			name: "not found",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT token_encrypted FROM session_cache WHERE id = 1`).
					WillReturnError(sql.ErrNoRows)
			},
			expectError: ErrSessionNotFound,
		},
		{
			name: "corrupted ciphertext",
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"token_encrypted"}).AddRow("not-a-ciphertext")
				mock.ExpectQuery(`SELECT token_encrypted FROM session_cache WHERE id = 1`).
					WillReturnRows(rows)
			},
			expectError: crypto.ErrInvalidCiphertext,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			repo := NewCacheRepository(db, testSecret)
			token, err := repo.LoadToken()

			if tt.expectError != nil {
				if !errors.Is(err, tt.expectError) {
					t.Fatalf("expected error %v, got %v", tt.expectError, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadToken failed: %v", err)
			}
			if token != tt.expected {
				t.Errorf("expected token %q, got %q", tt.expected, token)
			}
		})
	}
}

func TestCacheRepositoryTokenRoundTrip(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	var stored string
	mock.ExpectExec(`INSERT INTO session_cache`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := NewCacheRepository(db, testSecret)
	if err := repo.SaveToken("round-trip-token"); err != nil {
		t.Fatalf("SaveToken failed: %v", err)
	}

	// Шифротекст, который ушёл в базу, расшифровывается обратно
	stored, err = crypto.Seal("round-trip-token", testSecret)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	plain, err := crypto.Open(stored, testSecret)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if plain != "round-trip-token" {
		t.Errorf("expected round-trip-token, got %q", plain)
	}
}

func TestCacheRepositoryClearSession(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`DELETE FROM session_cache WHERE id = 1`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewCacheRepository(db, testSecret)
	if err := repo.ClearSession(); err != nil {
		t.Fatalf("ClearSession failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCacheRepositorySaveSnapshot(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	snapshot := &models.MarketSnapshot{
		Running:    true,
		Symbol:     "BTC/USDT",
		ReceivedAt: time.Now(),
	}
	payload, _ := json.Marshal(snapshot)

	mock.ExpectExec(`INSERT INTO snapshot_cache`).
		WithArgs(string(payload), snapshot.ReceivedAt, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := NewCacheRepository(db, testSecret)
	if err := repo.SaveSnapshot(snapshot); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCacheRepositoryLoadSnapshot(t *testing.T) {
	tests := []struct {
		name        string
		mockSetup   func(mock sqlmock.Sqlmock)
		expected    *models.MarketSnapshot
		expectError error
	}{
		{
			name: "success",
			mockSetup: func(mock sqlmock.Sqlmock) {
				payload, _ := json.Marshal(&models.MarketSnapshot{
					Running: true,
					Symbol:  "ETH/USDT",
				})
				rows := sqlmock.NewRows([]string{"payload"}).AddRow(payload)
				mock.ExpectQuery(`SELECT payload FROM snapshot_cache WHERE id = 1`).
					WillReturnRows(rows)
			},
			expected: &models.MarketSnapshot{Running: true, Symbol: "ETH/USDT"},
		},
		{
			name: "not found",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT payload FROM snapshot_cache WHERE id = 1`).
					WillReturnError(sql.ErrNoRows)
			},
			expectError: ErrSnapshotNotFound,
		},
		{
			name: "corrupted payload",
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"payload"}).AddRow([]byte("{broken"))
				mock.ExpectQuery(`SELECT payload FROM snapshot_cache WHERE id = 1`).
					WillReturnRows(rows)
			},
			expectError: nil, // любая ошибка парсинга
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			repo := NewCacheRepository(db, testSecret)
			snapshot, err := repo.LoadSnapshot()

			if tt.name == "corrupted payload" {
				if err == nil {
					t.Fatal("expected parse error for corrupted payload")
				}
				return
			}
			if tt.expectError != nil {
				if !errors.Is(err, tt.expectError) {
					t.Fatalf("expected error %v, got %v", tt.expectError, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadSnapshot failed: %v", err)
			}
			if snapshot.Symbol != tt.expected.Symbol || snapshot.Running != tt.expected.Running {
				t.Errorf("unexpected snapshot: %+v", snapshot)
			}
		})
	}
}
