package actor_test

import (
	"context"
	"errors"
	"testing"

	"agrimatch/internal/modules/actor"
	"agrimatch/internal/store/memory"
	"agrimatch/internal/types"
)

func TestResolveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := actor.NewService(memory.New().Actors())

	first, err := svc.Resolve(ctx, actor.ResolveCommand{ExternalID: "firebase|abc", Name: " Wanjiku ", Role: "farmer"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if first.Name != "Wanjiku" || first.PrimaryRole != actor.RoleFarmer || first.Verified() {
		t.Fatalf("unexpected new actor %+v", first)
	}
	again, err := svc.Resolve(ctx, actor.ResolveCommand{ExternalID: "firebase|abc", Role: "buyer"})
	if err != nil {
		t.Fatalf("resolve again: %v", err)
	}
	if again.ID != first.ID || again.PrimaryRole != actor.RoleFarmer {
		t.Fatalf("second resolve should return the same actor, got %+v", again)
	}
	admin, err := svc.Resolve(ctx, actor.ResolveCommand{ExternalID: "firebase|root", Role: "admin"})
	if err != nil {
		t.Fatalf("resolve admin: %v", err)
	}
	if admin.IsAdmin() {
		t.Fatalf("identity provider must not grant admin")
	}
}

func TestUpdateProfileAuthorisation(t *testing.T) {
	ctx := context.Background()
	db := memory.New()
	svc := actor.NewService(db.Actors())
	admin := &actor.Actor{ID: types.NewID(), Roles: []actor.Role{actor.RoleAdmin}, PrimaryRole: actor.RoleAdmin}
	buyer := &actor.Actor{ID: types.NewID(), Name: "Otieno", Roles: []actor.Role{actor.RoleBuyer}, PrimaryRole: actor.RoleBuyer}
	other := &actor.Actor{ID: types.NewID(), Name: "Achieng", Roles: []actor.Role{actor.RoleFarmer}, PrimaryRole: actor.RoleFarmer}
	for _, a := range []*actor.Actor{admin, buyer, other} {
		db.Actors().Put(a)
	}

	got, err := svc.UpdateProfile(ctx, actor.UpdateProfileCommand{CallerID: buyer.ID, Update: actor.ProfileUpdate{
		County: types.Some("Nakuru"), PrimaryRole: types.Some(actor.RoleFarmer),
	}})
	if err != nil {
		t.Fatalf("self update: %v", err)
	}
	if got.Location.County != "Nakuru" || got.PrimaryRole != actor.RoleFarmer || !got.HasRole(actor.RoleBuyer) {
		t.Fatalf("unexpected profile %+v", got)
	}

	if _, err := svc.UpdateProfile(ctx, actor.UpdateProfileCommand{CallerID: buyer.ID, TargetID: other.ID, Update: actor.ProfileUpdate{Name: types.Some("x")}}); !errors.Is(err, types.ErrUnauthorized) {
		t.Fatalf("editing someone else: expected unauthorized, got %v", err)
	}
	if _, err := svc.UpdateProfile(ctx, actor.UpdateProfileCommand{CallerID: buyer.ID, Update: actor.ProfileUpdate{PrimaryRole: types.Some(actor.RoleAdmin)}}); !errors.Is(err, types.ErrUnauthorized) {
		t.Fatalf("self promotion: expected unauthorized, got %v", err)
	}
	if _, err := svc.UpdateProfile(ctx, actor.UpdateProfileCommand{CallerID: admin.ID, TargetID: other.ID, Update: actor.ProfileUpdate{Roles: types.Some([]actor.Role{actor.RoleFarmer, actor.RoleAdmin})}}); err != nil {
		t.Fatalf("admin granting admin: %v", err)
	}
}

func TestSetVerification(t *testing.T) {
	ctx := context.Background()
	db := memory.New()
	svc := actor.NewService(db.Actors())
	admin := &actor.Actor{ID: types.NewID(), Roles: []actor.Role{actor.RoleAdmin}}
	farmer := &actor.Actor{ID: types.NewID(), Roles: []actor.Role{actor.RoleFarmer}, Verification: actor.VerificationPending}
	db.Actors().Put(admin)
	db.Actors().Put(farmer)

	if _, err := svc.SetVerification(ctx, actor.SetVerificationCommand{CallerID: farmer.ID, TargetID: farmer.ID, Verification: actor.VerificationApproved}); !errors.Is(err, types.ErrUnauthorized) {
		t.Fatalf("self verification: expected unauthorized, got %v", err)
	}
	got, err := svc.SetVerification(ctx, actor.SetVerificationCommand{CallerID: admin.ID, TargetID: farmer.ID, Verification: actor.VerificationApproved})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !actor.HasCapability(got, actor.CapCreateListing) {
		t.Fatalf("verified farmer should be able to list")
	}
	if _, err := svc.SetVerification(ctx, actor.SetVerificationCommand{CallerID: admin.ID, TargetID: farmer.ID, Verification: "maybe"}); !errors.Is(err, types.ErrValidation) {
		t.Fatalf("unknown verification: expected validation error, got %v", err)
	}
}
