package memory

import (
	"context"
	"fmt"

	"agrimatch/internal/modules/actor"
	"agrimatch/internal/types"
)

type Actors struct {
	db *DB
}

// Put stores a as-is, replacing any actor with the same id.
func (s *Actors) Put(a *actor.Actor) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.actors[a.ID] = copyActor(a)
	if a.ExternalID != "" {
		s.db.externalID[a.ExternalID] = a.ID
	}
}

func (s *Actors) Get(_ context.Context, id types.ID) (*actor.Actor, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	a, ok := s.db.actors[id]
	if !ok {
		return nil, fmt.Errorf("%w: actor %s", types.ErrNotFound, id)
	}
	return copyActor(a), nil
}

func (s *Actors) GetMany(_ context.Context, ids []types.ID) (map[types.ID]*actor.Actor, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := make(map[types.ID]*actor.Actor, len(ids))
	for _, id := range ids {
		if a, ok := s.db.actors[id]; ok {
			out[id] = copyActor(a)
		}
	}
	return out, nil
}

func (s *Actors) FindOrCreateByExternalID(_ context.Context, a *actor.Actor) (*actor.Actor, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if id, ok := s.db.externalID[a.ExternalID]; ok {
		return copyActor(s.db.actors[id]), nil
	}
	c := copyActor(a)
	c.RatingAverage, c.RatingCount = 0, 0
	s.db.actors[c.ID] = c
	s.db.externalID[c.ExternalID] = c.ID
	return copyActor(c), nil
}

func (s *Actors) Update(_ context.Context, a *actor.Actor) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	cur, ok := s.db.actors[a.ID]
	if !ok {
		return fmt.Errorf("%w: actor %s", types.ErrNotFound, a.ID)
	}
	c := copyActor(a)
	// ratings only move through reviews
	c.RatingAverage, c.RatingCount = cur.RatingAverage, cur.RatingCount
	c.ExternalID = cur.ExternalID
	s.db.actors[a.ID] = c
	return nil
}
