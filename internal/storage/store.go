// Package storage persists credentials and analysis results in SQLite.
// The API key is encrypted at rest; cached analyses are plain rows keyed
// by frame hash.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/okarvi/cinelens/internal/gemini"
	_ "modernc.org/sqlite"
)

// StoredCredentials is the persisted form of the user's provider settings.
type StoredCredentials struct {
	APIKey       string
	ProxyBaseURL string
	UpdatedAt    time.Time
}

// CachedAnalysis is one cached frame analysis.
type CachedAnalysis struct {
	FrameHash string
	Analysis  gemini.Analysis
	CreatedAt time.Time
}

// Store defines the persistence interface.
type Store interface {
	GetCredentials() (*StoredCredentials, error)
	SaveCredentials(creds *StoredCredentials) error
	DeleteCredentials() error

	GetAnalysis(frameHash string) (*CachedAnalysis, error)
	SaveAnalysis(frameHash string, analysis *gemini.Analysis) error

	Close() error
}

// SQLiteStore implements Store on a local SQLite file.
type SQLiteStore struct {
	db            *sql.DB
	encryptionKey []byte
	mu            sync.RWMutex
}

// NewSQLiteStore opens (creating if needed) the database at dbPath. The
// encryptionKey protects the stored API key.
func NewSQLiteStore(dbPath string, encryptionKey []byte) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Settings hold a credential; keep the file private. Only effective
	// once the file exists, so failures are ignored.
	_ = os.Chmod(dbPath, 0600)

	store := &SQLiteStore{db: db, encryptionKey: encryptionKey}
	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS credentials (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			encrypted_api_key TEXT NOT NULL,
			proxy_base_url TEXT NOT NULL DEFAULT '',
			updated_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS analysis_cache (
			frame_hash TEXT PRIMARY KEY,
			analysis_json TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

// GetCredentials returns the stored settings, or nil, nil when none are
// saved.
func (s *SQLiteStore) GetCredentials() (*StoredCredentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var encryptedKey, proxyBaseURL string
	var updatedAt time.Time

	err := s.db.QueryRow(
		"SELECT encrypted_api_key, proxy_base_url, updated_at FROM credentials WHERE id = 1",
	).Scan(&encryptedKey, &proxyBaseURL, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}

	apiKey := ""
	if encryptedKey != "" {
		plaintext, err := Decrypt(encryptedKey, s.encryptionKey)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt api key: %w", err)
		}
		apiKey = string(plaintext)
	}

	return &StoredCredentials{
		APIKey:       apiKey,
		ProxyBaseURL: proxyBaseURL,
		UpdatedAt:    updatedAt,
	}, nil
}

// SaveCredentials upserts the single credentials row.
func (s *SQLiteStore) SaveCredentials(creds *StoredCredentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	encryptedKey := ""
	if creds.APIKey != "" {
		var err error
		encryptedKey, err = Encrypt([]byte(creds.APIKey), s.encryptionKey)
		if err != nil {
			return fmt.Errorf("failed to encrypt api key: %w", err)
		}
	}

	_, err := s.db.Exec(`
		INSERT INTO credentials (id, encrypted_api_key, proxy_base_url, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			encrypted_api_key = excluded.encrypted_api_key,
			proxy_base_url = excluded.proxy_base_url,
			updated_at = excluded.updated_at`,
		encryptedKey, creds.ProxyBaseURL, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}

// DeleteCredentials removes the stored settings.
func (s *SQLiteStore) DeleteCredentials() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM credentials WHERE id = 1"); err != nil {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	return nil
}

// GetAnalysis returns the cached analysis for a frame hash, or nil, nil
// on a miss.
func (s *SQLiteStore) GetAnalysis(frameHash string) (*CachedAnalysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var analysisJSON string
	var createdAt time.Time

	err := s.db.QueryRow(
		"SELECT analysis_json, created_at FROM analysis_cache WHERE frame_hash = ?",
		frameHash,
	).Scan(&analysisJSON, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cached analysis: %w", err)
	}

	var analysis gemini.Analysis
	if err := json.Unmarshal([]byte(analysisJSON), &analysis); err != nil {
		return nil, fmt.Errorf("failed to parse cached analysis: %w", err)
	}

	return &CachedAnalysis{FrameHash: frameHash, Analysis: analysis, CreatedAt: createdAt}, nil
}

// SaveAnalysis upserts one analysis under its frame hash.
func (s *SQLiteStore) SaveAnalysis(frameHash string, analysis *gemini.Analysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	analysisJSON, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("failed to encode analysis: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO analysis_cache (frame_hash, analysis_json)
		VALUES (?, ?)
		ON CONFLICT(frame_hash) DO UPDATE SET analysis_json = excluded.analysis_json`,
		frameHash, string(analysisJSON))
	if err != nil {
		return fmt.Errorf("failed to cache analysis: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
