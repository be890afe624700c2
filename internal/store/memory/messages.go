package memory

import (
	"context"
	"time"

	"agrimatch/internal/modules/match"
	"agrimatch/internal/modules/messaging"
	"agrimatch/internal/types"
)

type Messages struct {
	db *DB
}

func (s *Messages) Send(_ context.Context, msg *messaging.Message, ev *match.Event) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.messageSeq++
	msg.Seq = s.db.messageSeq
	c := *msg
	s.db.messages[msg.MatchID] = append(s.db.messages[msg.MatchID], &c)
	s.db.appendEvent(ev)
	return nil
}

func (s *Messages) Thread(_ context.Context, matchID types.ID) ([]*messaging.Message, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	src := s.db.messages[matchID]
	out := make([]*messaging.Message, 0, len(src))
	for _, m := range src {
		c := *m
		out = append(out, &c)
	}
	return out, nil
}

func (s *Messages) MarkRead(_ context.Context, matchID, readerID types.ID, now time.Time) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	n := 0
	for _, m := range s.db.messages[matchID] {
		if m.RecipientID == readerID && !m.IsRead {
			m.IsRead = true
			t := now
			m.ReadAt = &t
			n++
		}
	}
	return n, nil
}
