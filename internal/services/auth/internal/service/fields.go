package service

import (
	"net/mail"
	"net/url"
	"strings"

	"github.com/decentrahub/hub/internal/pkg/serr"
	"github.com/decentrahub/hub/internal/services/auth/internal/store"
)

// ProfileFields are the user editable profile columns. Nil means not supplied,
// a pointer to "" clears the column.
type ProfileFields struct {
	FullName      *string
	Bio           *string
	Email         *string
	AvatarURL     *string
	Website       *string
	TwitterHandle *string
}

func (f ProfileFields) IsEmpty() bool {
	return f.patch().IsEmpty()
}

func (f ProfileFields) patch() store.ProfilePatch {
	return store.ProfilePatch{
		FullName:      trimmed(f.FullName),
		Bio:           f.Bio,
		Email:         trimmed(f.Email),
		AvatarURL:     trimmed(f.AvatarURL),
		Website:       trimmed(f.Website),
		TwitterHandle: trimmed(f.TwitterHandle),
	}
}

func (f ProfileFields) validate() error {
	if f.Email != nil && *f.Email != "" {
		if _, err := mail.ParseAddress(strings.TrimSpace(*f.Email)); err != nil {
			return serr.BadRequest(err, "Invalid email address.")
		}
	}

	for name, v := range map[string]*string{"avatarUrl": f.AvatarURL, "website": f.Website} {
		if v == nil || strings.TrimSpace(*v) == "" {
			continue
		}
		u, err := url.ParseRequestURI(strings.TrimSpace(*v))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "ipfs") || u.Host == "" {
			return serr.BadRequest(err, "Invalid URL for %s.", name).With("field", name)
		}
	}

	return nil
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}
