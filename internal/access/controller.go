package access

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/huudong03uet/credit-scoring/internal/apperr"
	"github.com/huudong03uet/credit-scoring/internal/events"
	"github.com/huudong03uet/credit-scoring/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// Role is a named capability.
type Role string

const (
	RoleAdmin        Role = "ADMIN"
	RoleAnalyzer     Role = "ANALYZER"
	RoleDataProvider Role = "DATA_PROVIDER"
	RoleLoanManager  Role = "LOAN_MANAGER"
	RoleScorer       Role = "SCORER"
	RoleVerifier     Role = "VERIFIER"
)

var knownRoles = []Role{RoleAdmin, RoleAnalyzer, RoleDataProvider, RoleLoanManager, RoleScorer, RoleVerifier}

// ParseRole accepts a role name in any case.
func ParseRole(s string) (Role, error) {
	for _, r := range knownRoles {
		if strings.EqualFold(string(r), s) {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: unknown role %q", apperr.ErrInvalidInput, s)
}

// Controller is the single permission gate of every privileged operation.
type Controller interface {
	Require(ctx context.Context, caller common.Address, role Role) error
	HasRole(ctx context.Context, account common.Address, role Role) (bool, error)
	Roles(ctx context.Context, account common.Address) ([]Role, error)
	Grant(ctx context.Context, caller, account common.Address, role Role) error
	Revoke(ctx context.Context, caller, account common.Address, role Role) error
	Seed(ctx context.Context, admins []common.Address) error
}

type controller struct {
	repo  RoleRepository
	clock clockwork.Clock
	pub   events.Publisher
	log   *logrus.Entry
}

func NewController(repo RoleRepository, clock clockwork.Clock, pub events.Publisher, log *logrus.Entry) Controller {
	return &controller{
		repo:  repo,
		clock: clock,
		pub:   pub,
		log:   log.WithField("component", "access"),
	}
}

func (c *controller) Require(ctx context.Context, caller common.Address, role Role) error {
	ok, err := c.HasRole(ctx, caller, role)
	if err != nil {
		return fmt.Errorf("check role: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s requires %s", apperr.ErrUnauthorized, caller.Hex(), role)
	}
	return nil
}

func (c *controller) HasRole(ctx context.Context, account common.Address, role Role) (bool, error) {
	return c.repo.Has(ctx, account.Hex(), string(role))
}

func (c *controller) Roles(ctx context.Context, account common.Address) ([]Role, error) {
	grants, err := c.repo.ListByAccount(ctx, account.Hex())
	if err != nil {
		return nil, err
	}
	roles := make([]Role, 0, len(grants))
	for _, g := range grants {
		roles = append(roles, Role(g.Role))
	}
	return roles, nil
}

func (c *controller) Grant(ctx context.Context, caller, account common.Address, role Role) error {
	if err := c.Require(ctx, caller, RoleAdmin); err != nil {
		return err
	}
	created, err := c.repo.Grant(ctx, &models.RoleGrant{
		Account:   account.Hex(),
		Role:      string(role),
		GrantedBy: caller.Hex(),
		GrantedAt: c.clock.Now(),
	})
	if err != nil {
		return fmt.Errorf("grant role: %w", err)
	}
	if created {
		c.log.WithFields(logrus.Fields{"account": account.Hex(), "role": role}).Info("Role granted")
		events.Emit(ctx, c.pub, c.log, events.New(events.EventRoleGranted, account, c.clock.Now(), map[string]any{
			"role":       role,
			"granted_by": caller.Hex(),
		}))
	}
	return nil
}

func (c *controller) Revoke(ctx context.Context, caller, account common.Address, role Role) error {
	if err := c.Require(ctx, caller, RoleAdmin); err != nil {
		return err
	}
	removed, err := c.repo.Revoke(ctx, account.Hex(), string(role))
	if err != nil {
		return fmt.Errorf("revoke role: %w", err)
	}
	if removed {
		c.log.WithFields(logrus.Fields{"account": account.Hex(), "role": role}).Info("Role revoked")
		events.Emit(ctx, c.pub, c.log, events.New(events.EventRoleRevoked, account, c.clock.Now(), map[string]any{
			"role":       role,
			"revoked_by": caller.Hex(),
		}))
	}
	return nil
}

// Seed grants ADMIN to each configured address without a caller check.
func (c *controller) Seed(ctx context.Context, admins []common.Address) error {
	for _, admin := range admins {
		_, err := c.repo.Grant(ctx, &models.RoleGrant{
			Account:   admin.Hex(),
			Role:      string(RoleAdmin),
			GrantedBy: common.Address{}.Hex(),
			GrantedAt: c.clock.Now(),
		})
		if err != nil {
			return fmt.Errorf("seed admin %s: %w", admin.Hex(), err)
		}
	}
	return nil
}
