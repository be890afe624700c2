// README: Match-scoped message record.
package messaging

import (
	"time"

	"agrimatch/internal/types"
)

type Message struct {
	Seq         int64      `json:"seq"`
	ID          types.ID   `json:"id"`
	MatchID     types.ID   `json:"match_id"`
	SenderID    types.ID   `json:"sender_id"`
	RecipientID types.ID   `json:"recipient_id"`
	Body        string     `json:"body"`
	IsRead      bool       `json:"is_read"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
