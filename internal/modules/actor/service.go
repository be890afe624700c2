// README: Actor service: identity resolution, profile updates, verification.
package actor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"agrimatch/internal/types"
)

type ActorStore interface {
	Get(ctx context.Context, id types.ID) (*Actor, error)
	GetMany(ctx context.Context, ids []types.ID) (map[types.ID]*Actor, error)
	FindOrCreateByExternalID(ctx context.Context, a *Actor) (*Actor, error)
	Update(ctx context.Context, a *Actor) error
}

type Service struct {
	store ActorStore
	now   func() time.Time
}

func NewService(store ActorStore) *Service {
	return &Service{store: store, now: time.Now}
}

type ResolveCommand struct {
	ExternalID string `validate:"required"`
	Name       string
	Role       string
}

// Resolve maps an identity-provider subject to a local actor, creating a
// pending, unverified record on first sight.
func (s *Service) Resolve(ctx context.Context, cmd ResolveCommand) (*Actor, error) {
	if err := types.Validate(cmd); err != nil {
		return nil, err
	}
	now := s.now()
	a := &Actor{
		ID:           types.NewID(),
		ExternalID:   cmd.ExternalID,
		Name:         strings.TrimSpace(cmd.Name),
		Verification: VerificationPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	// The identity provider may suggest a starting role, never admin.
	if r := Role(cmd.Role); r.Valid() && r != RoleAdmin {
		a.Roles = []Role{r}
		a.PrimaryRole = r
	}
	return s.store.FindOrCreateByExternalID(ctx, a)
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Actor, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) GetMany(ctx context.Context, ids []types.ID) (map[types.ID]*Actor, error) {
	return s.store.GetMany(ctx, ids)
}

type UpdateProfileCommand struct {
	CallerID types.ID
	TargetID types.ID
	Update   ProfileUpdate
}

func (s *Service) UpdateProfile(ctx context.Context, cmd UpdateProfileCommand) (*Actor, error) {
	caller, err := s.store.Get(ctx, cmd.CallerID)
	if err != nil {
		return nil, err
	}
	target := caller
	if cmd.TargetID != "" && cmd.TargetID != cmd.CallerID {
		if err := Require(caller, CapManageAnyEntity); err != nil {
			return nil, err
		}
		if target, err = s.store.Get(ctx, cmd.TargetID); err != nil {
			return nil, err
		}
	}
	if GrantsAdmin(*target, cmd.Update) {
		if err := Require(caller, CapGrantAdmin); err != nil {
			return nil, err
		}
	}
	next, err := ApplyProfile(*target, cmd.Update)
	if err != nil {
		return nil, err
	}
	next.UpdatedAt = s.now()
	if err := s.store.Update(ctx, &next); err != nil {
		return nil, err
	}
	return &next, nil
}

type SetVerificationCommand struct {
	CallerID     types.ID
	TargetID     types.ID `validate:"required"`
	Verification Verification
}

func (s *Service) SetVerification(ctx context.Context, cmd SetVerificationCommand) (*Actor, error) {
	if err := types.Validate(cmd); err != nil {
		return nil, err
	}
	if !cmd.Verification.Valid() {
		return nil, fmt.Errorf("%w: unknown verification %q", types.ErrValidation, cmd.Verification)
	}
	caller, err := s.store.Get(ctx, cmd.CallerID)
	if err != nil {
		return nil, err
	}
	if err := Require(caller, CapManageVerification); err != nil {
		return nil, err
	}
	target, err := s.store.Get(ctx, cmd.TargetID)
	if err != nil {
		return nil, err
	}
	target.Verification = cmd.Verification
	target.UpdatedAt = s.now()
	if err := s.store.Update(ctx, target); err != nil {
		return nil, err
	}
	return target, nil
}
