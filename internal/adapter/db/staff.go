package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Arielutooo/restaurant-app/internal/database"
	"github.com/Arielutooo/restaurant-app/internal/models"
)

func (s *Store) InsertStaff(ctx context.Context, st *models.Staff) error {
	_, err := s.db.Exec(ctx, database.InsertStaffSQL, st.ID, st.Name, string(st.Role), st.PinHash, st.Active)
	if err != nil {
		return fmt.Errorf("insert staff: %w", err)
	}
	return nil
}

// ActiveStaff lists active staff holding role, ordered by name
func (s *Store) ActiveStaff(ctx context.Context, role models.Role) ([]models.Staff, error) {
	rows, err := s.db.Query(ctx, database.ListActiveStaffSQL, string(role))
	if err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Staff, error) {
		var (
			st   models.Staff
			name string
		)
		err := row.Scan(&st.ID, &st.Name, &name, &st.PinHash, &st.Active)
		st.Role = models.Role(name)
		return st, err
	})
}
