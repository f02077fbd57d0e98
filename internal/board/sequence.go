package board

import (
	"context"

	"taskboard/api/internal/store"
)

// Resequencing re-reads the sibling set ordered by (position, creation
// time) and rewrites positions to the list index, so every structural
// change converges back to a gap-free 0..n-1 sequence. Running it twice
// without an intervening mutation is a no-op.

func (s *Service) resequenceColumns(ctx context.Context, boardID string) error {
	columns, err := s.store.ListColumns(ctx, boardID)
	if err != nil {
		return err
	}
	for index, column := range columns {
		if column.Position == index {
			continue
		}
		if err := s.store.UpdateColumnPosition(ctx, column.ID, index); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) resequenceCards(ctx context.Context, columnID string) error {
	cards, err := s.store.ListCards(ctx, columnID)
	if err != nil {
		return err
	}
	for index, card := range cards {
		if card.Position == index {
			continue
		}
		if err := s.store.UpdateCardPosition(ctx, card.ID, index); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) resequenceChecklist(ctx context.Context, cardID string) error {
	items, err := s.store.ListChecklistItems(ctx, cardID)
	if err != nil {
		return err
	}
	for index, item := range items {
		if item.Position == index {
			continue
		}
		if err := s.store.UpdateChecklistItemPosition(ctx, item.ID, index); err != nil {
			return err
		}
	}
	return nil
}

// columnOrderPositions validates that order is a full permutation of the
// existing column IDs and returns the target position of each column.
// Partial reorders are rejected before anything is written.
func columnOrderPositions(columns []store.Column, order []string) (map[string]int, error) {
	if len(order) != len(columns) {
		return nil, errInvalidDetails("Column order does not match existing columns", map[string]any{
			"expected": len(columns),
			"got":      len(order),
		})
	}
	positions := make(map[string]int, len(order))
	for index, columnID := range order {
		if _, dup := positions[columnID]; dup {
			return nil, errInvalid("Column order contains a duplicate column")
		}
		positions[columnID] = index
	}
	for _, column := range columns {
		if _, ok := positions[column.ID]; !ok {
			return nil, errInvalid("Column order missing existing column")
		}
	}
	return positions, nil
}
