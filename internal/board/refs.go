package board

import (
	"context"
	"database/sql"
	"errors"

	"taskboard/api/internal/store"
)

// Cross-references attached to a card must resolve within the card's own
// board. Candidate users must be the owner or an explicit member; labels
// and sprints must be owned by the board. Everything else is an invalid
// request, never a silent drop.

func (s *Service) resolveBoardUser(ctx context.Context, board store.Board, userID string) (store.User, error) {
	resolved, err := s.resolveBoardUsers(ctx, board, []string{userID})
	if err != nil {
		return store.User{}, err
	}
	if len(resolved) == 0 {
		return store.User{}, errInvalid("All referenced users must belong to the board")
	}
	return resolved[0], nil
}

func (s *Service) resolveBoardUsers(ctx context.Context, board store.Board, userIDs []string) ([]store.User, error) {
	ids := dedupe(userIDs)
	resolved := make([]store.User, 0, len(ids))
	for _, id := range ids {
		user, err := s.users.FindByID(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound("User " + id + " not found")
		}
		if err != nil {
			return nil, err
		}
		if !isMember(board, user.ID) {
			return nil, errInvalid("All referenced users must belong to the board")
		}
		resolved = append(resolved, user)
	}
	return resolved, nil
}

func resolveBoardLabels(board store.Board, labelIDs []string) ([]store.Label, error) {
	ids := dedupe(labelIDs)
	byID := make(map[string]store.Label, len(board.Labels))
	for _, label := range board.Labels {
		byID[label.ID] = label
	}
	labels := make([]store.Label, 0, len(ids))
	for _, id := range ids {
		label, ok := byID[id]
		if !ok {
			return nil, errInvalid("One or more labels do not belong to the board")
		}
		labels = append(labels, label)
	}
	return labels, nil
}

func findBoardSprint(board store.Board, sprintID string) (store.Sprint, error) {
	for _, sprint := range board.Sprints {
		if sprint.ID == sprintID {
			return sprint, nil
		}
	}
	return store.Sprint{}, errInvalid("Sprint must belong to the card board")
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
