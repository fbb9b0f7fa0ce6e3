package identity

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/huudong03uet/credit-scoring/internal/access"
	"github.com/huudong03uet/credit-scoring/internal/apperr"
	"github.com/huudong03uet/credit-scoring/internal/database"
	"github.com/huudong03uet/credit-scoring/internal/events"
	"github.com/huudong03uet/credit-scoring/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const maxDIDLength = 255

// Service is the identity registry. Registration and verification are never
// undone, so other ledgers may check them before opening their own
// transaction.
type Service interface {
	Register(ctx context.Context, caller common.Address, did string, profileHash common.Hash) (*models.UserProfile, error)
	Verify(ctx context.Context, caller, user common.Address) error
	UpdateProfileHash(ctx context.Context, caller common.Address, profileHash common.Hash) error

	IsRegistered(ctx context.Context, user common.Address) (bool, error)
	IsVerified(ctx context.Context, user common.Address) (bool, error)
	ResolveDID(ctx context.Context, did string) (common.Address, error)
	GetProfile(ctx context.Context, user common.Address) (*models.UserProfile, error)
	ListVerified(ctx context.Context) ([]common.Address, error)
}

type service struct {
	db     *gorm.DB
	repo   ProfileRepository
	access access.Controller
	locks  *database.UserLocks
	clock  clockwork.Clock
	pub    events.Publisher
	log    *logrus.Entry
}

func NewService(db *gorm.DB, repo ProfileRepository, ac access.Controller, locks *database.UserLocks,
	clock clockwork.Clock, pub events.Publisher, log *logrus.Entry) Service {
	return &service{
		db:     db,
		repo:   repo,
		access: ac,
		locks:  locks,
		clock:  clock,
		pub:    pub,
		log:    log.WithField("component", "identity"),
	}
}

func (s *service) Register(ctx context.Context, caller common.Address, did string, profileHash common.Hash) (*models.UserProfile, error) {
	if did == "" || len(did) > maxDIDLength {
		return nil, fmt.Errorf("%w: did must be 1-%d characters", apperr.ErrInvalidInput, maxDIDLength)
	}

	unlock := s.locks.Lock(caller)
	defer unlock()

	now := s.clock.Now()
	profile := &models.UserProfile{
		Address:          caller.Hex(),
		DID:              did,
		IsVerified:       false,
		IsActive:         true,
		RegistrationTime: now,
		LastUpdateTime:   now,
		ProfileHash:      profileHash.Hex(),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		existing, err := repo.GetByAddress(ctx, caller.Hex())
		if err != nil {
			return err
		}
		if existing != nil {
			return apperr.ErrAlreadyRegistered
		}

		owner, err := repo.GetByDID(ctx, did)
		if err != nil {
			return err
		}
		if owner != nil {
			return apperr.ErrDidTaken
		}

		return repo.Create(ctx, profile)
	})
	if err != nil {
		return nil, fmt.Errorf("register %s: %w", caller.Hex(), err)
	}

	s.log.WithFields(logrus.Fields{"user": caller.Hex(), "did": did}).Info("User registered")
	events.Emit(ctx, s.pub, s.log, events.New(events.EventUserRegistered, caller, now, map[string]any{"did": did}))
	return profile, nil
}

func (s *service) Verify(ctx context.Context, caller, user common.Address) error {
	if err := s.access.Require(ctx, caller, access.RoleVerifier); err != nil {
		return err
	}

	unlock := s.locks.Lock(user)
	defer unlock()

	now := s.clock.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		profile, err := repo.GetByAddress(ctx, user.Hex())
		if err != nil {
			return err
		}
		if profile == nil {
			return apperr.ErrNotRegistered
		}
		profile.IsVerified = true
		profile.LastUpdateTime = now
		return repo.Update(ctx, profile)
	})
	if err != nil {
		return fmt.Errorf("verify %s: %w", user.Hex(), err)
	}

	s.log.WithFields(logrus.Fields{"user": user.Hex(), "verifier": caller.Hex()}).Info("User verified")
	events.Emit(ctx, s.pub, s.log, events.New(events.EventUserVerified, user, now, map[string]any{"verifier": caller.Hex()}))
	return nil
}

func (s *service) UpdateProfileHash(ctx context.Context, caller common.Address, profileHash common.Hash) error {
	unlock := s.locks.Lock(caller)
	defer unlock()

	now := s.clock.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		profile, err := repo.GetByAddress(ctx, caller.Hex())
		if err != nil {
			return err
		}
		if profile == nil {
			return apperr.ErrNotRegistered
		}
		profile.ProfileHash = profileHash.Hex()
		profile.LastUpdateTime = now
		return repo.Update(ctx, profile)
	})
	if err != nil {
		return fmt.Errorf("update profile hash: %w", err)
	}

	events.Emit(ctx, s.pub, s.log, events.New(events.EventProfileUpdated, caller, now, map[string]any{"profile_hash": profileHash.Hex()}))
	return nil
}

func (s *service) IsRegistered(ctx context.Context, user common.Address) (bool, error) {
	profile, err := s.repo.GetByAddress(ctx, user.Hex())
	if err != nil {
		return false, err
	}
	return profile != nil, nil
}

func (s *service) IsVerified(ctx context.Context, user common.Address) (bool, error) {
	profile, err := s.repo.GetByAddress(ctx, user.Hex())
	if err != nil {
		return false, err
	}
	return profile != nil && profile.IsVerified, nil
}

func (s *service) ResolveDID(ctx context.Context, did string) (common.Address, error) {
	if did == "" {
		return common.Address{}, fmt.Errorf("%w: empty did", apperr.ErrInvalidInput)
	}
	profile, err := s.repo.GetByDID(ctx, did)
	if err != nil {
		return common.Address{}, err
	}
	if profile == nil {
		return common.Address{}, fmt.Errorf("resolve %q: %w", did, apperr.ErrNotRegistered)
	}
	return common.HexToAddress(profile.Address), nil
}

func (s *service) GetProfile(ctx context.Context, user common.Address) (*models.UserProfile, error) {
	profile, err := s.repo.GetByAddress(ctx, user.Hex())
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, fmt.Errorf("profile %s: %w", user.Hex(), apperr.ErrNotRegistered)
	}
	return profile, nil
}

func (s *service) ListVerified(ctx context.Context) ([]common.Address, error) {
	profiles, err := s.repo.ListVerified(ctx)
	if err != nil {
		return nil, err
	}
	users := make([]common.Address, 0, len(profiles))
	for _, p := range profiles {
		users = append(users, common.HexToAddress(p.Address))
	}
	return users, nil
}
