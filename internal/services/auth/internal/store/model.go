package store

import "time"

type Role string

const (
	RoleCreator  Role = "creator"
	RoleConsumer Role = "consumer"
)

func (r Role) Valid() bool {
	return r == RoleCreator || r == RoleConsumer
}

// Profile is a row of the users table. Empty strings stand for NULL columns.
type Profile struct {
	ID                int64
	WalletAddress     string
	Role              Role
	ExternalProfileID string
	ExternalHandle    string
	FullName          string
	Bio               string
	Email             string
	AvatarURL         string
	Website           string
	TwitterHandle     string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Field names an optional profile column using its API name.
type Field string

const (
	FieldExternalProfileID Field = "lensProfileId"
	FieldExternalHandle    Field = "lensHandle"
	FieldFullName          Field = "fullName"
	FieldBio               Field = "bio"
	FieldEmail             Field = "email"
	FieldAvatarURL         Field = "avatarUrl"
	FieldWebsite           Field = "website"
	FieldTwitterHandle     Field = "twitterHandle"
)

func (p Profile) Get(f Field) string {
	switch f {
	case FieldExternalProfileID:
		return p.ExternalProfileID
	case FieldExternalHandle:
		return p.ExternalHandle
	case FieldFullName:
		return p.FullName
	case FieldBio:
		return p.Bio
	case FieldEmail:
		return p.Email
	case FieldAvatarURL:
		return p.AvatarURL
	case FieldWebsite:
		return p.Website
	case FieldTwitterHandle:
		return p.TwitterHandle
	}
	return ""
}

// ProfilePatch lists the columns to change. Nil leaves a column untouched,
// a pointer to "" clears it.
type ProfilePatch struct {
	Role              *Role
	ExternalProfileID *string
	ExternalHandle    *string
	FullName          *string
	Bio               *string
	Email             *string
	AvatarURL         *string
	Website           *string
	TwitterHandle     *string
}

func (p *ProfilePatch) Set(f Field, v string) {
	switch f {
	case FieldExternalProfileID:
		p.ExternalProfileID = &v
	case FieldExternalHandle:
		p.ExternalHandle = &v
	case FieldFullName:
		p.FullName = &v
	case FieldBio:
		p.Bio = &v
	case FieldEmail:
		p.Email = &v
	case FieldAvatarURL:
		p.AvatarURL = &v
	case FieldWebsite:
		p.Website = &v
	case FieldTwitterHandle:
		p.TwitterHandle = &v
	}
}

func (p ProfilePatch) IsEmpty() bool {
	return p.Role == nil &&
		p.ExternalProfileID == nil &&
		p.ExternalHandle == nil &&
		p.FullName == nil &&
		p.Bio == nil &&
		p.Email == nil &&
		p.AvatarURL == nil &&
		p.Website == nil &&
		p.TwitterHandle == nil
}

// Apply returns p with the patch applied, as the store would persist it.
func (pp ProfilePatch) Apply(p Profile) Profile {
	if pp.Role != nil {
		p.Role = *pp.Role
	}
	for _, f := range []struct {
		src *string
		dst *string
	}{
		{pp.ExternalProfileID, &p.ExternalProfileID},
		{pp.ExternalHandle, &p.ExternalHandle},
		{pp.FullName, &p.FullName},
		{pp.Bio, &p.Bio},
		{pp.Email, &p.Email},
		{pp.AvatarURL, &p.AvatarURL},
		{pp.Website, &p.Website},
		{pp.TwitterHandle, &p.TwitterHandle},
	} {
		if f.src != nil {
			*f.dst = *f.src
		}
	}
	return p
}
