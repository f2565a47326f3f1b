package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/lib/pq"
)

const errUniqueViolation pq.ErrorCode = "23505"

const profileColumns = `id, wallet_address, role, lens_profile_id, lens_handle, full_name, bio,
	email, avatar_url, website, twitter_handle, created_at, updated_at`

// constraintFields maps unique constraints to the API names of their columns.
var constraintFields = map[string]string{
	"users_wallet_address_key":  "walletAddress",
	"users_lens_profile_id_key": "lensProfileId",
	"users_lens_handle_key":     "lensHandle",
	"users_email_key":           "email",
}

var columnFields = map[string]string{
	"wallet_address":  "walletAddress",
	"lens_profile_id": "lensProfileId",
	"lens_handle":     "lensHandle",
	"email":           "email",
}

var detailKey = regexp.MustCompile(`^Key \(([^)]+)\)=`)

// dbtx defines the interface for database and transactions
type dbtx interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// PostgresConfig holds the configuration for connecting to a Postgres database
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DB       string
	SSLMode  string
}

// PostgresStore implements the Store interface using a Postgres database
type PostgresStore struct {
	db dbtx
}

// NewPostgresDB creates a new Postgres database connection
func NewPostgresDB(ctx context.Context, cfg PostgresConfig) (*sql.DB, error) {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	db, err := sql.Open("postgres", fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.DB,
		sslMode))
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return db, nil
}

// NewPostgresStore creates a new PostgresStore instance
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetByAddress(ctx context.Context, address string) (Profile, error) {
	return s.getBy(ctx, "wallet_address", address)
}

func (s *PostgresStore) GetByExternalID(ctx context.Context, id string) (Profile, error) {
	return s.getBy(ctx, "lens_profile_id", id)
}

func (s *PostgresStore) GetByHandle(ctx context.Context, handle string) (Profile, error) {
	return s.getBy(ctx, "lens_handle", handle)
}

func (s *PostgresStore) getBy(ctx context.Context, column, value string) (Profile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM users WHERE `+column+` = $1`, value)

	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("select user by %s: %w", column, err)
	}

	return p, nil
}

// Create inserts p. Empty optional fields are stored as NULL.
func (s *PostgresStore) Create(ctx context.Context, p Profile) (Profile, error) {
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO users (wallet_address, role, lens_profile_id, lens_handle, full_name, bio,
		                    email, avatar_url, website, twitter_handle)
		 VALUES ($1, NULLIF($2, '')::user_role, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''),
		         NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''))
		 RETURNING `+profileColumns,
		p.WalletAddress,
		string(p.Role),
		p.ExternalProfileID,
		p.ExternalHandle,
		p.FullName,
		p.Bio,
		p.Email,
		p.AvatarURL,
		p.Website,
		p.TwitterHandle)

	created, err := scanProfile(row)
	if err != nil {
		if cErr := asConflict(err); cErr != nil {
			return Profile{}, cErr
		}
		return Profile{}, fmt.Errorf("insert user: %w", err)
	}

	return created, nil
}

// Update changes only the columns set in patch. An empty patch returns the current row.
func (s *PostgresStore) Update(ctx context.Context, address string, patch ProfilePatch) (Profile, error) {
	if patch.IsEmpty() {
		return s.GetByAddress(ctx, address)
	}

	var (
		sets []string
		args []any
	)
	set := func(column string, v *string, cast string) {
		if v == nil {
			return
		}
		args = append(args, *v)
		sets = append(sets, fmt.Sprintf("%s = NULLIF($%d, '')%s", column, len(args), cast))
	}

	if patch.Role != nil {
		role := string(*patch.Role)
		set("role", &role, "::user_role")
	}
	set("lens_profile_id", patch.ExternalProfileID, "")
	set("lens_handle", patch.ExternalHandle, "")
	set("full_name", patch.FullName, "")
	set("bio", patch.Bio, "")
	set("email", patch.Email, "")
	set("avatar_url", patch.AvatarURL, "")
	set("website", patch.Website, "")
	set("twitter_handle", patch.TwitterHandle, "")

	args = append(args, address)
	query := fmt.Sprintf(`UPDATE users SET %s WHERE wallet_address = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), profileColumns)

	updated, err := scanProfile(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		if cErr := asConflict(err); cErr != nil {
			return Profile{}, cErr
		}
		return Profile{}, fmt.Errorf("update user: %w", err)
	}

	return updated, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(row scanner) (Profile, error) {
	var (
		p                                        Profile
		role, lensID, lensHandle, fullName, bio  sql.NullString
		email, avatarURL, website, twitterHandle sql.NullString
	)

	err := row.Scan(
		&p.ID,
		&p.WalletAddress,
		&role,
		&lensID,
		&lensHandle,
		&fullName,
		&bio,
		&email,
		&avatarURL,
		&website,
		&twitterHandle,
		&p.CreatedAt,
		&p.UpdatedAt)
	if err != nil {
		return Profile{}, err
	}

	p.Role = Role(role.String)
	p.ExternalProfileID = lensID.String
	p.ExternalHandle = lensHandle.String
	p.FullName = fullName.String
	p.Bio = bio.String
	p.Email = email.String
	p.AvatarURL = avatarURL.String
	p.Website = website.String
	p.TwitterHandle = twitterHandle.String
	return p, nil
}

// asConflict converts a unique violation into a *ConflictError, or returns nil.
func asConflict(err error) *ConflictError {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != errUniqueViolation {
		return nil
	}

	if f, ok := constraintFields[pqErr.Constraint]; ok {
		return &ConflictError{Fields: []string{f}, Err: err}
	}

	var fields []string
	if m := detailKey.FindStringSubmatch(pqErr.Detail); m != nil {
		for _, col := range strings.Split(m[1], ",") {
			col = strings.TrimSpace(col)
			if f, ok := columnFields[col]; ok {
				col = f
			}
			fields = append(fields, col)
		}
	}
	if len(fields) == 0 {
		fields = []string{"unknown"}
	}

	return &ConflictError{Fields: fields, Err: err}
}
