package tgauth

import "context"

// noopAvatarResolver keeps the host-supplied photo URL when present and
// otherwise hands back the placeholder. Real deployments plug the image
// pipeline in via WithUsersAvatarResolver.
type noopAvatarResolver struct{}

func (noopAvatarResolver) Resolve(_ context.Context, user *TelegramUser) (string, error) {
	if user != nil && user.PhotoURL != "" {
		return user.PhotoURL, nil
	}
	return DefaultAvatarURL, nil
}

func normalizeAvatarResolver(r AvatarResolver) AvatarResolver {
	if r == nil {
		return noopAvatarResolver{}
	}
	return r
}

// resolveAvatar runs enrichment with the placeholder fallback. Pipeline
// failures never propagate to the auth caller.
func resolveAvatar(ctx context.Context, resolver AvatarResolver, user *TelegramUser, logger Logger) string {
	avatar, err := normalizeAvatarResolver(resolver).Resolve(ctx, user)
	if err != nil || avatar == "" {
		if err != nil && logger != nil {
			logger.Warn("avatar enrichment failed, using placeholder", "error", err)
		}
		return DefaultAvatarURL
	}
	return avatar
}
