package sessions

import "context"

// Get returns the session as seen by the token's role. An empty token reads
// the spectator view, which is redacted like a player's.
func (s *Service) Get(ctx context.Context, id, token string) (View, error) {
	rec, err := s.sessions.Get(ctx, id)
	if err != nil {
		return View{}, mapRepoErr(err)
	}

	sess, err := s.hydrate(rec)
	if err != nil {
		return View{}, err
	}

	if token == "" {
		return s.view(sess, RoleSpectator), nil
	}

	role, _, err := roleOf(rec, token)
	if err != nil {
		return View{}, err
	}

	return s.view(sess, string(role)), nil
}
