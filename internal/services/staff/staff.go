// Package staff registers restaurant employees and checks their PINs.
package staff

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Arielutooo/restaurant-app/internal/logger"
	"github.com/Arielutooo/restaurant-app/internal/models"
	"github.com/Arielutooo/restaurant-app/internal/services/order"
)

const minPINLength = 4

// Directory is the staff storage used by Service
type Directory interface {
	InsertStaff(ctx context.Context, s *models.Staff) error
	ActiveStaff(ctx context.Context, role models.Role) ([]models.Staff, error)
}

type Service struct {
	dir    Directory
	logger *logger.Logger
	cost   int
}

func NewService(dir Directory, log *logger.Logger) *Service {
	return &Service{dir: dir, logger: log, cost: bcrypt.DefaultCost}
}

// SetCost changes the bcrypt cost for newly registered PINs
func (s *Service) SetCost(cost int) {
	s.cost = cost
}

// Register stores a new active staff member with a hashed PIN
func (s *Service) Register(ctx context.Context, name string, role models.Role, pin string) (*models.Staff, error) {
	if strings.TrimSpace(name) == "" {
		return nil, order.ValidationError{Field: "name", Message: "name is required"}
	}
	if !role.IsValid() {
		return nil, order.ValidationError{Field: "role", Message: "role must be kitchen, waiter or owner"}
	}
	if len(pin) < minPINLength {
		return nil, order.ValidationError{Field: "pin", Message: fmt.Sprintf("pin must have at least %d digits", minPINLength)}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash pin: %w", err)
	}

	st := &models.Staff{
		ID:      uuid.New(),
		Name:    name,
		Role:    role,
		PinHash: string(hash),
		Active:  true,
	}
	if err := s.dir.InsertStaff(ctx, st); err != nil {
		return nil, fmt.Errorf("failed to insert staff: %w", err)
	}

	s.logger.Info("staff_registered", "Staff member registered", "", map[string]interface{}{
		"staff_id": st.ID,
		"role":     st.Role,
	})
	return st, nil
}

// VerifyWaiter returns the id of the active waiter or owner whose PIN
// matches. Owners may approve on behalf of waiters.
func (s *Service) VerifyWaiter(ctx context.Context, pin string) (uuid.UUID, error) {
	for _, role := range []models.Role{models.RoleWaiter, models.RoleOwner} {
		members, err := s.dir.ActiveStaff(ctx, role)
		if err != nil {
			return uuid.Nil, fmt.Errorf("failed to list %s staff: %w", role, err)
		}
		for _, m := range members {
			err := bcrypt.CompareHashAndPassword([]byte(m.PinHash), []byte(pin))
			if err == nil {
				return m.ID, nil
			}
			if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
				s.logger.Warn("pin_hash_invalid", "Stored PIN hash could not be compared", "", map[string]interface{}{
					"staff_id": m.ID,
					"error":    err.Error(),
				})
			}
		}
	}
	return uuid.Nil, order.ErrInvalidCredentials
}
