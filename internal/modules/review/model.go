// README: Post-completion review record.
package review

import (
	"time"

	"agrimatch/internal/types"
)

type Review struct {
	ID         types.ID  `json:"id"`
	MatchID    types.ID  `json:"match_id"`
	ReviewerID types.ID  `json:"reviewer_id"`
	RevieweeID types.ID  `json:"reviewee_id"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"created_at"`
}
