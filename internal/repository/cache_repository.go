package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"sniperctl/internal/models"
	"sniperctl/pkg/crypto"
)

// Ошибки кэш-репозитория
var (
	ErrSessionNotFound  = errors.New("session not found in cache")
	ErrSnapshotNotFound = errors.New("snapshot not found in cache")
)

// CacheRepository - durable кэш демона: токен сессии (шифрованный
// на диске) и последний подтверждённый сервером снапшот для гидратации
// после рестарта
type CacheRepository struct {
	db     *sql.DB
	secret string
}

// NewCacheRepository создает новый экземпляр репозитория
func NewCacheRepository(db *sql.DB, secret string) *CacheRepository {
	return &CacheRepository{db: db, secret: secret}
}

// SaveToken шифрует и сохраняет токен сессии (всегда id=1, одна запись)
func (r *CacheRepository) SaveToken(token string) error {
	encrypted, err := crypto.Seal(token, r.secret)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO session_cache (id, token_encrypted, updated_at)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET token_encrypted = $1, updated_at = $2`

	_, err = r.db.Exec(query, encrypted, time.Now())
	return err
}

// LoadToken возвращает расшифрованный токен сессии
func (r *CacheRepository) LoadToken() (string, error) {
	query := `SELECT token_encrypted FROM session_cache WHERE id = 1`

	var encrypted string
	err := r.db.QueryRow(query).Scan(&encrypted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrSessionNotFound
		}
		return "", err
	}

	return crypto.Open(encrypted, r.secret)
}

// ClearSession удаляет сохранённую сессию. Отсутствие записи не ошибка
func (r *CacheRepository) ClearSession() error {
	_, err := r.db.Exec(`DELETE FROM session_cache WHERE id = 1`)
	return err
}

// SaveSnapshot сохраняет последний подтверждённый снапшот
func (r *CacheRepository) SaveSnapshot(snapshot *models.MarketSnapshot) error {
	if snapshot == nil {
		return nil
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO snapshot_cache (id, payload, received_at, updated_at)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET payload = $1, received_at = $2, updated_at = $3`

	_, err = r.db.Exec(query, string(payload), snapshot.ReceivedAt, time.Now())
	return err
}

// LoadSnapshot возвращает снапшот для гидратации при старте
func (r *CacheRepository) LoadSnapshot() (*models.MarketSnapshot, error) {
	query := `SELECT payload FROM snapshot_cache WHERE id = 1`

	var payload []byte
	err := r.db.QueryRow(query).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}

	snapshot := &models.MarketSnapshot{}
	if err := json.Unmarshal(payload, snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// ClearSnapshot удаляет кэшированный снапшот (logout)
func (r *CacheRepository) ClearSnapshot() error {
	_, err := r.db.Exec(`DELETE FROM snapshot_cache WHERE id = 1`)
	return err
}
