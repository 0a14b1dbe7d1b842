package db

import (
	"context"
	"fmt"
)

// CreateCustomCommand inserts a new custom command. A duplicate name yields ErrConflict.
func (s *Store) CreateCustomCommand(ctx context.Context, name, response, createdBy string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO custom_commands(name, response, created_by) VALUES($1,$2,$3)`,
		normalizeName(name), response, createdBy)
	return mapErr(err)
}

// GetCustomCommand returns the command named name or ErrNotFound.
func (s *Store) GetCustomCommand(ctx context.Context, name string) (*CustomCommand, error) {
	var c CustomCommand
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, response, created_by, use_count, created_at, updated_at
		 FROM custom_commands WHERE name = $1`, normalizeName(name)).
		Scan(&c.ID, &c.Name, &c.Response, &c.CreatedBy, &c.UseCount, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

// UpdateCustomCommand replaces the response of an existing command.
func (s *Store) UpdateCustomCommand(ctx context.Context, name, response string) error {
	return affected(s.db.ExecContext(ctx,
		`UPDATE custom_commands SET response = $2, updated_at = NOW() WHERE name = $1`,
		normalizeName(name), response))
}

// DeleteCustomCommand removes a command; ErrNotFound when it did not exist.
func (s *Store) DeleteCustomCommand(ctx context.Context, name string) error {
	return affected(s.db.ExecContext(ctx, `DELETE FROM custom_commands WHERE name = $1`, normalizeName(name)))
}

// IncrementUseCount bumps use_count by one.
func (s *Store) IncrementUseCount(ctx context.Context, name string) error {
	return affected(s.db.ExecContext(ctx,
		`UPDATE custom_commands SET use_count = use_count + 1 WHERE name = $1`, normalizeName(name)))
}

// ListCustomCommands returns every custom command ordered by name.
func (s *Store) ListCustomCommands(ctx context.Context) ([]CustomCommand, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, response, created_by, use_count, created_at, updated_at
		 FROM custom_commands ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list custom commands: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []CustomCommand
	for rows.Next() {
		var c CustomCommand
		if err := rows.Scan(&c.ID, &c.Name, &c.Response, &c.CreatedBy, &c.UseCount, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateAlias inserts alias -> target. A duplicate alias yields ErrConflict.
func (s *Store) CreateAlias(ctx context.Context, alias, target, createdBy string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO command_aliases(alias, target, created_by) VALUES($1,$2,$3)`,
		normalizeName(alias), normalizeName(target), createdBy)
	return mapErr(err)
}

// GetAlias returns the alias row or ErrNotFound.
func (s *Store) GetAlias(ctx context.Context, alias string) (*CommandAlias, error) {
	var a CommandAlias
	err := s.db.QueryRowContext(ctx,
		`SELECT id, alias, target, created_by, created_at FROM command_aliases WHERE alias = $1`,
		normalizeName(alias)).Scan(&a.ID, &a.Alias, &a.Target, &a.CreatedBy, &a.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &a, nil
}

// DeleteAlias removes an alias; ErrNotFound when it did not exist.
func (s *Store) DeleteAlias(ctx context.Context, alias string) error {
	return affected(s.db.ExecContext(ctx, `DELETE FROM command_aliases WHERE alias = $1`, normalizeName(alias)))
}

// ListAliases returns every alias ordered by target then alias.
func (s *Store) ListAliases(ctx context.Context) ([]CommandAlias, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, alias, target, created_by, created_at FROM command_aliases ORDER BY target, alias`)
	if err != nil {
		return nil, fmt.Errorf("list aliases: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []CommandAlias
	for rows.Next() {
		var a CommandAlias
		if err := rows.Scan(&a.ID, &a.Alias, &a.Target, &a.CreatedBy, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
