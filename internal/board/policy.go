package board

import (
	"taskboard/api/internal/rbac"
	"taskboard/api/internal/store"
)

// The owner is never materialized into the members set; membership is the
// derived predicate owner-or-member so removal and idempotence stay simple.

func isMember(board store.Board, userID string) bool {
	if board.OwnerID == userID {
		return true
	}
	for _, member := range board.Members {
		if member.ID == userID {
			return true
		}
	}
	return false
}

func isManager(board store.Board, userID string) bool {
	if board.OwnerID == userID {
		return true
	}
	for _, member := range board.Members {
		if member.ID == userID {
			return rbac.IsAdmin(member.Role)
		}
	}
	return false
}

func requireMember(board store.Board, userID string) error {
	if !isMember(board, userID) {
		return errForbidden("You must be a member of the board to perform this action")
	}
	return nil
}

func requireManager(board store.Board, userID string) error {
	if !isManager(board, userID) {
		return errForbidden("Only the board owner or administrators can perform this action")
	}
	return nil
}
