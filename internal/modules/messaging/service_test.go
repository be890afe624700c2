package messaging_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"agrimatch/internal/modules/actor"
	"agrimatch/internal/modules/fanout"
	"agrimatch/internal/modules/match"
	"agrimatch/internal/modules/messaging"
	"agrimatch/internal/store/memory"
	"agrimatch/internal/types"
)

type thread struct {
	ctx                                    context.Context
	db                                     *memory.DB
	svc                                    *messaging.Service
	pub                                    *fanout.Recorder
	match                                  *match.Match
	farmer, buyer, driver, admin, stranger types.ID
}

func newThread(t *testing.T, assignment match.DriverAssignment) *thread {
	t.Helper()
	th := &thread{ctx: context.Background(), db: memory.New(), pub: fanout.NewRecorder()}
	put := func(role actor.Role) types.ID {
		a := &actor.Actor{ID: types.NewID(), Name: string(role), Roles: []actor.Role{role}, PrimaryRole: role, Verification: actor.VerificationApproved}
		th.db.Actors().Put(a)
		return a.ID
	}
	th.farmer, th.buyer, th.driver = put(actor.RoleFarmer), put(actor.RoleBuyer), put(actor.RoleDriver)
	th.admin, th.stranger = put(actor.RoleAdmin), put(actor.RoleBuyer)

	now := time.Now()
	th.match = &match.Match{
		ID: types.NewID(), ListingID: types.NewID(), DemandID: types.NewID(),
		FarmerID: th.farmer, BuyerID: th.buyer, InitiatedBy: th.buyer,
		DriverID: th.driver, DriverAssignment: assignment,
		Status: match.StatusDriverAccepted, Version: 1, CreatedAt: now, UpdatedAt: now,
	}
	ev := match.NewEvent(th.match.ID, th.buyer, "", match.Created{}, now)
	if err := th.db.Matches().Create(th.ctx, th.match, &ev); err != nil {
		t.Fatalf("create match: %v", err)
	}
	th.svc = messaging.NewService(th.db.Messages(), th.db.Matches(), th.db.Actors(), th.pub)
	return th
}

func (th *thread) send(t *testing.T, from, to types.ID, body string) *messaging.Message {
	t.Helper()
	msg, err := th.svc.Send(th.ctx, messaging.SendCommand{MatchID: th.match.ID, SenderID: from, RecipientID: to, Body: body})
	if err != nil {
		t.Fatalf("send %q: %v", body, err)
	}
	return msg
}

func TestThreadOrderAndEvents(t *testing.T) {
	th := newThread(t, match.AssignmentAccepted)
	first := th.send(t, th.buyer, "", "when can you load?")
	if first.RecipientID != th.farmer {
		t.Fatalf("buyer should default to farmer, got %s", first.RecipientID)
	}
	th.send(t, th.farmer, "", "tomorrow 7am")
	th.send(t, th.driver, th.buyer, "on my way")

	msgs, err := th.svc.Thread(th.ctx, th.farmer, th.match.ID)
	if err != nil {
		t.Fatalf("thread: %v", err)
	}
	want := []string{"when can you load?", "tomorrow 7am", "on my way"}
	if len(msgs) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(msgs))
	}
	for i, body := range want {
		if msgs[i].Body != body {
			t.Fatalf("message %d = %q, want %q", i, msgs[i].Body, body)
		}
		if i > 0 && msgs[i].Seq <= msgs[i-1].Seq {
			t.Fatalf("sequence must increase")
		}
	}

	evs, err := th.db.Matches().Events(th.ctx, th.match.ID)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(evs) != 4 || evs[0].Kind != match.EventCreated {
		t.Fatalf("expected created + 3 message events, got %d", len(evs))
	}
	for _, ev := range evs[1:] {
		if ev.Kind != match.EventMessage {
			t.Fatalf("unexpected event kind %s", ev.Kind)
		}
	}
	if n := len(th.pub.On(fanout.ActorChannel(th.buyer))); n != 2 {
		t.Fatalf("buyer should be notified twice, got %d", n)
	}
}

func TestResolveRecipient(t *testing.T) {
	th := newThread(t, match.AssignmentAccepted)
	cases := []struct {
		name      string
		sender    types.ID
		requested types.ID
		want      types.ID
		err       error
	}{
		{"farmer defaults to buyer", th.farmer, "", th.buyer, nil},
		{"farmer to driver", th.farmer, th.driver, th.driver, nil},
		{"driver must choose", th.driver, "", "", types.ErrInvalidState},
		{"driver to farmer", th.driver, th.farmer, th.farmer, nil},
		{"self", th.buyer, th.buyer, "", types.ErrInvalidState},
		{"outsider recipient", th.buyer, th.stranger, "", types.ErrInvalidState},
		{"outsider sender", th.stranger, th.buyer, "", types.ErrUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := messaging.ResolveRecipient(th.match, tc.sender, tc.requested)
			if tc.err != nil {
				if !errors.Is(err, tc.err) {
					t.Fatalf("expected %v, got %v", tc.err, err)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Fatalf("got %s err=%v, want %s", got, err, tc.want)
			}
		})
	}
}

func TestRejectedDriverLeavesThread(t *testing.T) {
	th := newThread(t, match.AssignmentRejected)
	_, err := th.svc.Send(th.ctx, messaging.SendCommand{MatchID: th.match.ID, SenderID: th.driver, RecipientID: th.buyer, Body: "hi"})
	if !errors.Is(err, types.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := th.svc.Thread(th.ctx, th.driver, th.match.ID); !errors.Is(err, types.ErrUnauthorized) {
		t.Fatalf("expected unauthorized thread read, got %v", err)
	}
}

func TestSendValidation(t *testing.T) {
	th := newThread(t, match.AssignmentAccepted)
	_, err := th.svc.Send(th.ctx, messaging.SendCommand{MatchID: th.match.ID, SenderID: th.buyer, Body: "   "})
	if !errors.Is(err, types.ErrValidation) {
		t.Fatalf("blank body: expected validation error, got %v", err)
	}
	_, err = th.svc.Send(th.ctx, messaging.SendCommand{MatchID: types.NewID(), SenderID: th.buyer, Body: "hello"})
	if !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("unknown match: expected not found, got %v", err)
	}
}

func TestMarkRead(t *testing.T) {
	th := newThread(t, match.AssignmentAccepted)
	th.send(t, th.buyer, "", "one")
	th.send(t, th.buyer, "", "two")
	th.send(t, th.farmer, "", "three")

	n, err := th.svc.MarkRead(th.ctx, th.farmer, th.match.ID)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 messages marked, got %d err=%v", n, err)
	}
	if n, _ := th.svc.MarkRead(th.ctx, th.farmer, th.match.ID); n != 0 {
		t.Fatalf("second mark should be a no-op, got %d", n)
	}
	if _, err := th.svc.MarkRead(th.ctx, th.stranger, th.match.ID); !errors.Is(err, types.ErrUnauthorized) {
		t.Fatalf("stranger: expected unauthorized, got %v", err)
	}
	if _, err := th.svc.Thread(th.ctx, th.admin, th.match.ID); err != nil {
		t.Fatalf("admin should read any thread: %v", err)
	}
}
