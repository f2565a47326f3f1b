package service

import (
	"github.com/decentrahub/hub/internal/services/auth/internal/social"
	"github.com/decentrahub/hub/internal/services/auth/internal/store"
)

// EnrichFields are filled from the social profile when the local record lacks them.
var EnrichFields = []store.Field{
	store.FieldExternalProfileID,
	store.FieldExternalHandle,
	store.FieldFullName,
	store.FieldBio,
	store.FieldAvatarURL,
}

// MergeIfAbsent returns a patch setting every field of fields that is empty on
// current and non-empty on incoming. Local values are never overwritten.
func MergeIfAbsent(current, incoming store.Profile, fields []store.Field) store.ProfilePatch {
	var patch store.ProfilePatch
	for _, f := range fields {
		if current.Get(f) == "" && incoming.Get(f) != "" {
			patch.Set(f, incoming.Get(f))
		}
	}
	return patch
}

func fromSocial(sp *social.Profile) store.Profile {
	return store.Profile{
		ExternalProfileID: sp.ID,
		ExternalHandle:    sp.Handle,
		FullName:          sp.DisplayName,
		Bio:               sp.Bio,
		AvatarURL:         sp.PictureURL,
	}
}
