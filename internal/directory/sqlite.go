package directory

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	dbconfig "meetinghost/pkg/database"
	"meetinghost/pkg/interfaces"
	"meetinghost/pkg/types"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

var (
	requiredTables  = []string{"users", "meetings"}
	requiredIndexes = []string{"idx_users_user_id"}
)

// ErrStoreClosed is returned by writes after Close.
var ErrStoreClosed = errors.New("directory store is closed")

const (
	writeTimeout = 30 * time.Second
	retryDelay   = 5 * time.Second
)

// Store is a SQLite-backed directory. Reads run concurrently on the pool;
// every write goes through a single writer goroutine.
type Store struct {
	db           *sql.DB
	writeChannel chan writeOperation
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex
	retryDelay   time.Duration
	logger       *slog.Logger
}

type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

var _ interfaces.DirectoryStore = (*Store)(nil)

// OpenStore opens the database, applies the embedded migrations and starts
// the writer.
func OpenStore(config *dbconfig.Config) (*Store, error) {
	db, err := dbconfig.Open(config)
	if err != nil {
		return nil, err
	}

	migrations := dbconfig.NewMigrationManager(db, migrationFS, "migrations")
	if err := migrations.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate directory: %w", err)
	}
	if err := migrations.ValidateSchema(requiredTables, requiredIndexes); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{
		db:           db,
		writeChannel: make(chan writeOperation, 100),
		shutdown:     make(chan struct{}),
		retryDelay:   retryDelay,
		logger:       slog.Default().With("component", "directory", "driver", "sqlite"),
	}

	// ARCHITECTURAL DISCOVERY: one writer goroutine avoids SQLITE_BUSY under
	// concurrent seeding
	s.wg.Add(1)
	go s.writeLoop()

	return s, nil
}

func (s *Store) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case op := <-s.writeChannel:
			// FUNCTIONAL DISCOVERY: a failed write is retried exactly once
			err := op.operation(s.db)
			if err != nil {
				s.logger.Warn("directory write failed, retrying", "error", err, "delay", s.retryDelay)
				select {
				case <-time.After(s.retryDelay):
					err = op.operation(s.db)
				case <-s.shutdown:
				}
				if err != nil {
					s.logger.Error("directory write failed after retry", "error", err)
				}
			}
			op.result <- err

		case <-s.shutdown:
			return
		}
	}
}

func (s *Store) executeWrite(ctx context.Context, operation func(*sql.DB) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrStoreClosed
	}
	s.mu.RUnlock()

	result := make(chan error, 1)
	timeout := time.NewTimer(writeTimeout)
	defer timeout.Stop()

	select {
	case s.writeChannel <- writeOperation{operation: operation, result: result}:
	case <-timeout.C:
		return errors.New("write operation timeout")
	case <-ctx.Done():
		return ctx.Err()
	case <-s.shutdown:
		return ErrStoreClosed
	}

	select {
	case err := <-result:
		return err
	case <-s.shutdown:
		return ErrStoreClosed
	}
}

// IsAvailable pings the database.
func (s *Store) IsAvailable(ctx context.Context) bool {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	return !closed && s.db.PingContext(ctx) == nil
}

// ResolveUser returns the profile stored under token.
func (s *Store) ResolveUser(ctx context.Context, token string) (*types.User, error) {
	const query = `
		SELECT user_id, first_name, surname, company, job_title, work_email, phone_number, avatar_id
		FROM users
		WHERE token = ?
	`
	var u types.User
	err := s.db.QueryRowContext(ctx, query, token).Scan(
		&u.ID,
		&u.FirstName,
		&u.Surname,
		&u.Company,
		&u.JobTitle,
		&u.WorkEmail,
		&u.PhoneNumber,
		&u.AvatarID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, interfaces.ErrInvalidToken
		}
		return nil, fmt.Errorf("%w: %w", interfaces.ErrDirectoryUnavailable, err)
	}
	return &u, nil
}

// ResolveMeeting returns the presenter id registered for code.
func (s *Store) ResolveMeeting(ctx context.Context, code string) (int, error) {
	var presenterID int
	err := s.db.QueryRowContext(ctx, "SELECT presenter_id FROM meetings WHERE code = ?", code).Scan(&presenterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, interfaces.ErrInvalidMeetingID
		}
		return 0, fmt.Errorf("%w: %w", interfaces.ErrDirectoryUnavailable, err)
	}
	return presenterID, nil
}

// PutUser inserts or replaces the profile for token.
func (s *Store) PutUser(ctx context.Context, token string, user *types.User) error {
	if token == "" {
		return interfaces.ErrInvalidToken
	}
	if err := user.Validate(); err != nil {
		return err
	}
	return s.executeWrite(ctx, func(db *sql.DB) error {
		const query = `
			INSERT INTO users (token, user_id, first_name, surname, company, job_title, work_email, phone_number, avatar_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(token) DO UPDATE SET
				user_id = excluded.user_id,
				first_name = excluded.first_name,
				surname = excluded.surname,
				company = excluded.company,
				job_title = excluded.job_title,
				work_email = excluded.work_email,
				phone_number = excluded.phone_number,
				avatar_id = excluded.avatar_id
		`
		_, err := db.ExecContext(ctx, query,
			token,
			user.ID,
			user.FirstName,
			user.Surname,
			user.Company,
			user.JobTitle,
			user.WorkEmail,
			user.PhoneNumber,
			user.AvatarID,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert user: %w", err)
		}
		return nil
	})
}

// PutMeeting inserts or replaces the presenter for code.
func (s *Store) PutMeeting(ctx context.Context, code string, presenterID int) error {
	if !types.IsValidMeetingCode(code) {
		return types.ErrInvalidMeetingCode
	}
	if presenterID < 0 {
		return types.ErrInvalidUserID
	}
	return s.executeWrite(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO meetings (code, presenter_id) VALUES (?, ?)
			ON CONFLICT(code) DO UPDATE SET presenter_id = excluded.presenter_id
		`, code, presenterID)
		if err != nil {
			return fmt.Errorf("failed to upsert meeting: %w", err)
		}
		return nil
	})
}

// Close stops the writer and closes the database. Safe to call twice.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.shutdown)
	s.wg.Wait()
	return s.db.Close()
}
