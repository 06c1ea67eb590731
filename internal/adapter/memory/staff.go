package memory

import (
	"context"
	"sort"

	"github.com/Arielutooo/restaurant-app/internal/models"
)

func (s *Store) InsertStaff(ctx context.Context, st *models.Staff) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staff[st.ID] = *st
	return nil
}

// ActiveStaff lists active staff holding role, ordered by name
func (s *Store) ActiveStaff(ctx context.Context, role models.Role) ([]models.Staff, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Staff, 0)
	for _, st := range s.staff {
		if st.Active && st.Role == role {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
