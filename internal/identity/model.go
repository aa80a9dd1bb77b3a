package identity

import "time"

// User is the account record for a player. Judges are ordinary users with the
// judge flag set; their rating and resolved-dispute counter back the judge
// directory ordering.
type User struct {
	ID             string
	Username       string
	Email          string
	PasswordHash   []byte
	IsJudge        bool
	JudgeRating    float64
	DisputesJudged int
	CreatedAt      time.Time
	LastLogin      time.Time
}
