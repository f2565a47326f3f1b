// Package social reads profiles from the Lens social graph. Lookups never fail
// outward: any upstream problem is logged and reported as an absent profile.
package social

import "context"

type Stats struct {
	Followers int64 `json:"followers"`
	Following int64 `json:"following"`
	Posts     int64 `json:"posts"`
}

type Profile struct {
	ID          string `json:"id"`
	Handle      string `json:"handle,omitempty"`
	OwnedBy     string `json:"ownedBy,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Bio         string `json:"bio,omitempty"`
	PictureURL  string `json:"picture,omitempty"`
	Stats       Stats  `json:"stats"`
}

type Lookup interface {
	ByHandle(ctx context.Context, handle string) *Profile
	ByAddress(ctx context.Context, address string) *Profile
	Follows(ctx context.Context, observerAddress, profileID string) bool
}
