package domain

import "time"

// AgentProfile is the logged-in Moltbook agent. Unclaimed agents only carry
// Name, Description and IsClaimed=false.
type AgentProfile struct {
	Name           string
	DisplayName    string
	Description    string
	Karma          int
	FollowerCount  *int
	FollowingCount *int
	IsClaimed      bool
	Status         string
	CreatedAt      time.Time
}

// CachedAgent is the minimal agent record kept next to the credentials so other
// parts of the extension can render the user without an API round trip.
type CachedAgent struct {
	Name      string `json:"name"`
	IsClaimed bool   `json:"isClaimed"`
}
