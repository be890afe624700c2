// README: Messaging service: thread participants, recipient resolution, read state.
package messaging

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"agrimatch/internal/modules/actor"
	"agrimatch/internal/modules/fanout"
	"agrimatch/internal/modules/match"
	"agrimatch/internal/types"
)

type MessageStore interface {
	Send(ctx context.Context, msg *Message, ev *match.Event) error
	Thread(ctx context.Context, matchID types.ID) ([]*Message, error)
	MarkRead(ctx context.Context, matchID, readerID types.ID, now time.Time) (int, error)
}

type MatchReader interface {
	Get(ctx context.Context, id types.ID) (*match.Match, error)
}

type ActorReader interface {
	Get(ctx context.Context, id types.ID) (*actor.Actor, error)
}

type Service struct {
	store   MessageStore
	matches MatchReader
	actors  ActorReader
	pub     fanout.Publisher
	now     func() time.Time
}

func NewService(store MessageStore, matches MatchReader, actors ActorReader, pub fanout.Publisher) *Service {
	if pub == nil {
		pub = fanout.Nop{}
	}
	return &Service{store: store, matches: matches, actors: actors, pub: pub, now: time.Now}
}

// Eligible lists who may take part in the match thread: both parties and the
// driver while the assignment is pending or accepted.
func Eligible(m *match.Match) []types.ID {
	return m.Participants()
}

func isEligible(m *match.Match, id types.ID) bool {
	for _, p := range Eligible(m) {
		if p == id {
			return true
		}
	}
	return false
}

// ResolveRecipient picks who a message from sender goes to. Farmer and buyer
// default to each other; a driver has to name the recipient.
func ResolveRecipient(m *match.Match, sender, requested types.ID) (types.ID, error) {
	if !isEligible(m, sender) {
		return "", fmt.Errorf("%w: %s is not part of match %s", types.ErrUnauthorized, sender, m.ID)
	}
	if requested != "" {
		if requested == sender || !isEligible(m, requested) {
			return "", fmt.Errorf("%w: %s cannot receive messages on match %s", types.ErrInvalidState, requested, m.ID)
		}
		return requested, nil
	}
	if other := m.OtherParty(sender); other != "" {
		return other, nil
	}
	return "", fmt.Errorf("%w: no recipient for %s on match %s", types.ErrInvalidState, sender, m.ID)
}

type SendCommand struct {
	MatchID     types.ID `validate:"required"`
	SenderID    types.ID `validate:"required"`
	RecipientID types.ID
	Body        string `validate:"required,max=2000"`
}

func (s *Service) Send(ctx context.Context, cmd SendCommand) (*Message, error) {
	cmd.Body = strings.TrimSpace(cmd.Body)
	if err := types.Validate(cmd); err != nil {
		return nil, err
	}
	m, err := s.matches.Get(ctx, cmd.MatchID)
	if err != nil {
		return nil, err
	}
	recipient, err := ResolveRecipient(m, cmd.SenderID, cmd.RecipientID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	msg := &Message{
		ID:          types.NewID(),
		MatchID:     m.ID,
		SenderID:    cmd.SenderID,
		RecipientID: recipient,
		Body:        cmd.Body,
		CreatedAt:   now,
	}
	ev := match.NewEvent(m.ID, cmd.SenderID, "", match.MessageSent{MessageID: msg.ID, RecipientID: recipient}, now)
	if err := s.store.Send(ctx, msg, &ev); err != nil {
		return nil, err
	}
	if err := s.pub.Publish(ctx, fanout.MatchChannel(m.ID), "message", msg); err != nil {
		log.Printf("match %s: publish message: %v", m.ID, err)
	}
	if err := s.pub.Publish(ctx, fanout.ActorChannel(recipient), "message", msg); err != nil {
		log.Printf("match %s: publish message to %s: %v", m.ID, recipient, err)
	}
	return msg, nil
}

// Thread returns the match's messages in send order.
func (s *Service) Thread(ctx context.Context, callerID, matchID types.ID) ([]*Message, error) {
	if err := s.authorize(ctx, callerID, matchID); err != nil {
		return nil, err
	}
	return s.store.Thread(ctx, matchID)
}

func (s *Service) MarkRead(ctx context.Context, callerID, matchID types.ID) (int, error) {
	if err := s.authorize(ctx, callerID, matchID); err != nil {
		return 0, err
	}
	return s.store.MarkRead(ctx, matchID, callerID, s.now())
}

func (s *Service) authorize(ctx context.Context, callerID, matchID types.ID) error {
	m, err := s.matches.Get(ctx, matchID)
	if err != nil {
		return err
	}
	if isEligible(m, callerID) {
		return nil
	}
	caller, err := s.actors.Get(ctx, callerID)
	if err != nil {
		return err
	}
	if actor.HasCapability(caller, actor.CapManageAnyEntity) {
		return nil
	}
	return fmt.Errorf("%w: %s is not part of match %s", types.ErrUnauthorized, callerID, matchID)
}
