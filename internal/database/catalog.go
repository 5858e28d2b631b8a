package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pawsit/internal/models"
)

func (db *DB) CreateAccount(ctx context.Context, account *models.Account) error {
	result, err := db.ExecContext(ctx,
		`INSERT INTO accounts (name, email) VALUES (?, ?)`,
		account.Name, account.Email)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	account.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	return nil
}

func (db *DB) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	var a models.Account
	err := db.QueryRowContext(ctx,
		`SELECT id, name, email, created_at FROM accounts WHERE id = ?`, id).
		Scan(&a.ID, &a.Name, &a.Email, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &a, nil
}

func (db *DB) AddAccountMember(ctx context.Context, member *models.AccountMember) error {
	_, err := db.ExecContext(ctx,
		`INSERT OR REPLACE INTO account_members (account_id, user_id, role) VALUES (?, ?, ?)`,
		member.AccountID, member.UserID, member.Role)
	if err != nil {
		return fmt.Errorf("failed to add account member: %w", err)
	}
	return nil
}

// IsAccountMember reports whether the user belongs to the account.
func (db *DB) IsAccountMember(ctx context.Context, accountID, userID int64) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM account_members WHERE account_id = ? AND user_id = ?`,
		accountID, userID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check account membership: %w", err)
	}
	return count > 0, nil
}

func (db *DB) CreatePet(ctx context.Context, pet *models.Pet) error {
	result, err := db.ExecContext(ctx,
		`INSERT INTO pets (account_id, name, species) VALUES (?, ?, ?)`,
		pet.AccountID, pet.Name, pet.Species)
	if err != nil {
		return fmt.Errorf("failed to create pet: %w", err)
	}
	pet.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	return nil
}

func (db *DB) GetPet(ctx context.Context, id int64) (*models.Pet, error) {
	var p models.Pet
	err := db.QueryRowContext(ctx,
		`SELECT id, account_id, name, species, created_at FROM pets WHERE id = ?`, id).
		Scan(&p.ID, &p.AccountID, &p.Name, &p.Species, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pet: %w", err)
	}
	return &p, nil
}

func (db *DB) CreateSitter(ctx context.Context, sitter *models.Sitter) error {
	result, err := db.ExecContext(ctx,
		`INSERT INTO sitters (user_id, name, is_active, chat_id) VALUES (?, ?, ?, ?)`,
		sitter.UserID, sitter.Name, sitter.IsActive, sitter.ChatID)
	if err != nil {
		return fmt.Errorf("failed to create sitter: %w", err)
	}
	sitter.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	return nil
}

func (db *DB) GetSitter(ctx context.Context, id int64) (*models.Sitter, error) {
	var s models.Sitter
	err := db.QueryRowContext(ctx,
		`SELECT id, user_id, name, is_active, chat_id, created_at FROM sitters WHERE id = ?`, id).
		Scan(&s.ID, &s.UserID, &s.Name, &s.IsActive, &s.ChatID, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sitter: %w", err)
	}
	return &s, nil
}

// CountSitters is used by the seed loader to decide whether the catalog is
// empty.
func (db *DB) CountSitters(ctx context.Context) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sitters`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sitters: %w", err)
	}
	return count, nil
}

func (db *DB) SetSitterActive(ctx context.Context, id int64, active bool) error {
	_, err := db.ExecContext(ctx,
		`UPDATE sitters SET is_active = ? WHERE id = ?`, active, id)
	if err != nil {
		return fmt.Errorf("failed to update sitter: %w", err)
	}
	return nil
}

func (db *DB) CreateOffering(ctx context.Context, offering *models.ServiceOffering) error {
	result, err := db.ExecContext(ctx,
		`INSERT INTO service_offerings (sitter_id, name, description, duration_minutes, price_cents, is_active)
         VALUES (?, ?, ?, ?, ?, ?)`,
		offering.SitterID, offering.Name, offering.Description,
		offering.DurationMinutes, offering.PriceCents, offering.IsActive)
	if err != nil {
		return fmt.Errorf("failed to create offering: %w", err)
	}
	offering.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	return nil
}

func (db *DB) GetOffering(ctx context.Context, id int64) (*models.ServiceOffering, error) {
	var o models.ServiceOffering
	err := db.QueryRowContext(ctx,
		`SELECT id, sitter_id, name, description, duration_minutes, price_cents, is_active, created_at
         FROM service_offerings WHERE id = ?`, id).
		Scan(&o.ID, &o.SitterID, &o.Name, &o.Description,
			&o.DurationMinutes, &o.PriceCents, &o.IsActive, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get offering: %w", err)
	}
	return &o, nil
}

func (db *DB) GetOfferingsBySitter(ctx context.Context, sitterID int64) ([]*models.ServiceOffering, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, sitter_id, name, description, duration_minutes, price_cents, is_active, created_at
         FROM service_offerings WHERE sitter_id = ? ORDER BY id ASC`, sitterID)
	if err != nil {
		return nil, fmt.Errorf("failed to list offerings: %w", err)
	}
	defer rows.Close()

	var offerings []*models.ServiceOffering
	for rows.Next() {
		o := &models.ServiceOffering{}
		if err := rows.Scan(&o.ID, &o.SitterID, &o.Name, &o.Description,
			&o.DurationMinutes, &o.PriceCents, &o.IsActive, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan offering: %w", err)
		}
		offerings = append(offerings, o)
	}
	return offerings, rows.Err()
}
