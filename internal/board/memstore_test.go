package board

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"taskboard/api/internal/store"
)

// memStore is a stateful in-memory dataStore and userDirectory. It keeps
// the same flat-row shape as the SQL store and reassembles aggregates on
// every load, so ordering and reference semantics get exercised for real.
type memStore struct {
	users       map[string]store.User
	boards      map[string]store.Board
	members     map[string][]string
	columns     map[string]store.Column
	cards       map[string]store.Card
	checklist   map[string]store.ChecklistItem
	comments    map[string]store.Comment
	attachments map[string]store.Attachment
	labels      map[string]store.Label
	sprints     map[string]store.Sprint
	watchers    map[string][]string
	cardLabels  map[string][]string

	seq int
}

func newMemStore() *memStore {
	return &memStore{
		users:       map[string]store.User{},
		boards:      map[string]store.Board{},
		members:     map[string][]string{},
		columns:     map[string]store.Column{},
		cards:       map[string]store.Card{},
		checklist:   map[string]store.ChecklistItem{},
		comments:    map[string]store.Comment{},
		attachments: map[string]store.Attachment{},
		labels:      map[string]store.Label{},
		sprints:     map[string]store.Sprint{},
		watchers:    map[string][]string{},
		cardLabels:  map[string][]string{},
	}
}

func (m *memStore) now() time.Time {
	m.seq++
	return time.Unix(1700000000, 0).Add(time.Duration(m.seq) * time.Second)
}

func (m *memStore) addUser(id, email, name, role string) store.User {
	now := m.now()
	user := store.User{ID: id, Email: email, DisplayName: name, Role: role, CreatedAt: now, UpdatedAt: now}
	m.users[id] = user
	return user
}

// ---- userDirectory ----

func (m *memStore) FindByID(ctx context.Context, userID string) (store.User, error) {
	user, ok := m.users[userID]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (m *memStore) FindByEmail(ctx context.Context, email string) (store.User, error) {
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return store.User{}, sql.ErrNoRows
}

// ---- aggregate loads ----

func (m *memStore) GetBoard(ctx context.Context, boardID string) (store.Board, error) {
	board, err := m.GetBoardAccess(ctx, boardID)
	if err != nil {
		return store.Board{}, err
	}
	columns := make([]store.Column, 0)
	for _, column := range m.columns {
		if column.BoardID == boardID {
			column.Cards = m.columnCards(column.ID)
			columns = append(columns, column)
		}
	}
	sort.SliceStable(columns, func(i, j int) bool {
		if columns[i].Position != columns[j].Position {
			return columns[i].Position < columns[j].Position
		}
		return columns[i].CreatedAt.Before(columns[j].CreatedAt)
	})
	board.Columns = columns
	return board, nil
}

func (m *memStore) GetBoardAccess(ctx context.Context, boardID string) (store.Board, error) {
	board, ok := m.boards[boardID]
	if !ok {
		return store.Board{}, sql.ErrNoRows
	}
	board.Owner = m.users[board.OwnerID]
	board.Members = nil
	for _, id := range m.members[boardID] {
		board.Members = append(board.Members, m.users[id])
	}
	board.Labels = nil
	for _, label := range m.labels {
		if label.BoardID == boardID {
			board.Labels = append(board.Labels, label)
		}
	}
	sort.SliceStable(board.Labels, func(i, j int) bool { return board.Labels[i].Name < board.Labels[j].Name })
	board.Sprints = nil
	for _, sprint := range m.sprints {
		if sprint.BoardID == boardID {
			board.Sprints = append(board.Sprints, sprint)
		}
	}
	sort.SliceStable(board.Sprints, func(i, j int) bool { return board.Sprints[i].CreatedAt.Before(board.Sprints[j].CreatedAt) })
	return board, nil
}

func (m *memStore) GetCard(ctx context.Context, cardID string) (store.Card, error) {
	card, ok := m.cards[cardID]
	if !ok {
		return store.Card{}, sql.ErrNoRows
	}
	for _, id := range m.watchers[cardID] {
		card.Watchers = append(card.Watchers, m.users[id])
	}
	for _, id := range m.cardLabels[cardID] {
		card.Labels = append(card.Labels, m.labels[id])
	}
	card.ChecklistItems, _ = m.ListChecklistItems(ctx, cardID)
	for _, comment := range m.comments {
		if comment.CardID == cardID {
			if comment.AuthorID != nil {
				author := m.users[*comment.AuthorID]
				comment.Author = &author
			}
			card.Comments = append(card.Comments, comment)
		}
	}
	sort.SliceStable(card.Comments, func(i, j int) bool { return card.Comments[i].CreatedAt.Before(card.Comments[j].CreatedAt) })
	for _, attachment := range m.attachments {
		if attachment.CardID == cardID {
			if attachment.UploadedByID != nil {
				uploader := m.users[*attachment.UploadedByID]
				attachment.UploadedBy = &uploader
			}
			card.Attachments = append(card.Attachments, attachment)
		}
	}
	sort.SliceStable(card.Attachments, func(i, j int) bool { return card.Attachments[i].CreatedAt.Before(card.Attachments[j].CreatedAt) })
	if card.AssigneeID != nil {
		assignee := m.users[*card.AssigneeID]
		card.Assignee = &assignee
	}
	if card.ReporterID != nil {
		reporter := m.users[*card.ReporterID]
		card.Reporter = &reporter
	}
	if card.SprintID != nil {
		sprint := m.sprints[*card.SprintID]
		card.Sprint = &sprint
	}
	return card, nil
}

func (m *memStore) GetColumn(ctx context.Context, columnID string) (store.Column, error) {
	column, ok := m.columns[columnID]
	if !ok {
		return store.Column{}, sql.ErrNoRows
	}
	return column, nil
}

func (m *memStore) ListBoardIDsForUser(ctx context.Context, userID string) ([]string, error) {
	var boards []store.Board
	for _, board := range m.boards {
		member := board.OwnerID == userID
		for _, id := range m.members[board.ID] {
			if id == userID {
				member = true
			}
		}
		if member {
			boards = append(boards, board)
		}
	}
	sort.SliceStable(boards, func(i, j int) bool { return boards[i].CreatedAt.Before(boards[j].CreatedAt) })
	ids := make([]string, 0, len(boards))
	for _, board := range boards {
		ids = append(ids, board.ID)
	}
	return ids, nil
}

func (m *memStore) columnCards(columnID string) []store.Card {
	var cards []store.Card
	for _, card := range m.cards {
		if card.ColumnID == columnID {
			full, _ := m.GetCard(context.Background(), card.ID)
			cards = append(cards, full)
		}
	}
	sort.SliceStable(cards, func(i, j int) bool {
		if cards[i].Position != cards[j].Position {
			return cards[i].Position < cards[j].Position
		}
		return cards[i].CreatedAt.Before(cards[j].CreatedAt)
	})
	return cards
}

// ---- boards ----

func (m *memStore) InsertBoard(ctx context.Context, board store.Board) error {
	now := m.now()
	board.CreatedAt = now
	board.UpdatedAt = now
	m.boards[board.ID] = board
	return nil
}

func (m *memStore) UpdateBoard(ctx context.Context, boardID, name, description string) error {
	board := m.boards[boardID]
	board.Name = name
	board.Description = description
	board.UpdatedAt = m.now()
	m.boards[boardID] = board
	return nil
}

func (m *memStore) DeleteBoard(ctx context.Context, boardID string) error {
	delete(m.boards, boardID)
	delete(m.members, boardID)
	for id, column := range m.columns {
		if column.BoardID == boardID {
			m.DeleteColumn(ctx, id)
		}
	}
	return nil
}

func (m *memStore) AddBoardMember(ctx context.Context, boardID, userID string) error {
	for _, id := range m.members[boardID] {
		if id == userID {
			return nil
		}
	}
	m.members[boardID] = append(m.members[boardID], userID)
	return nil
}

func (m *memStore) RemoveBoardMember(ctx context.Context, boardID, userID string) error {
	kept := m.members[boardID][:0]
	for _, id := range m.members[boardID] {
		if id != userID {
			kept = append(kept, id)
		}
	}
	m.members[boardID] = kept
	return nil
}

// ---- columns ----

func (m *memStore) InsertColumn(ctx context.Context, column store.Column) error {
	now := m.now()
	column.CreatedAt = now
	column.UpdatedAt = now
	m.columns[column.ID] = column
	return nil
}

func (m *memStore) UpdateColumn(ctx context.Context, column store.Column) error {
	stored := m.columns[column.ID]
	stored.Title = column.Title
	stored.Position = column.Position
	stored.UpdatedAt = m.now()
	m.columns[column.ID] = stored
	return nil
}

func (m *memStore) DeleteColumn(ctx context.Context, columnID string) error {
	delete(m.columns, columnID)
	for id, card := range m.cards {
		if card.ColumnID == columnID {
			m.DeleteCard(ctx, id)
		}
	}
	return nil
}

func (m *memStore) ListColumns(ctx context.Context, boardID string) ([]store.Column, error) {
	var columns []store.Column
	for _, column := range m.columns {
		if column.BoardID == boardID {
			columns = append(columns, column)
		}
	}
	sort.SliceStable(columns, func(i, j int) bool {
		if columns[i].Position != columns[j].Position {
			return columns[i].Position < columns[j].Position
		}
		return columns[i].CreatedAt.Before(columns[j].CreatedAt)
	})
	return columns, nil
}

func (m *memStore) UpdateColumnPosition(ctx context.Context, columnID string, position int) error {
	column := m.columns[columnID]
	column.Position = position
	m.columns[columnID] = column
	return nil
}

// ---- cards ----

func (m *memStore) InsertCard(ctx context.Context, card store.Card) error {
	now := m.now()
	card.CreatedAt = now
	card.UpdatedAt = now
	m.cards[card.ID] = card
	return nil
}

func (m *memStore) UpdateCard(ctx context.Context, card store.Card) error {
	stored := m.cards[card.ID]
	stored.ColumnID = card.ColumnID
	stored.Title = card.Title
	stored.Description = card.Description
	stored.Position = card.Position
	stored.DueDate = card.DueDate
	stored.Priority = card.Priority
	stored.Type = card.Type
	stored.StoryPoints = card.StoryPoints
	stored.AssigneeID = card.AssigneeID
	stored.ReporterID = card.ReporterID
	stored.SprintID = card.SprintID
	stored.UpdatedAt = m.now()
	m.cards[card.ID] = stored
	return nil
}

func (m *memStore) DeleteCard(ctx context.Context, cardID string) error {
	delete(m.cards, cardID)
	delete(m.watchers, cardID)
	delete(m.cardLabels, cardID)
	for id, item := range m.checklist {
		if item.CardID == cardID {
			delete(m.checklist, id)
		}
	}
	for id, comment := range m.comments {
		if comment.CardID == cardID {
			delete(m.comments, id)
		}
	}
	for id, attachment := range m.attachments {
		if attachment.CardID == cardID {
			delete(m.attachments, id)
		}
	}
	return nil
}

func (m *memStore) ListCards(ctx context.Context, columnID string) ([]store.Card, error) {
	var cards []store.Card
	for _, card := range m.cards {
		if card.ColumnID == columnID {
			cards = append(cards, card)
		}
	}
	sort.SliceStable(cards, func(i, j int) bool {
		if cards[i].Position != cards[j].Position {
			return cards[i].Position < cards[j].Position
		}
		return cards[i].CreatedAt.Before(cards[j].CreatedAt)
	})
	return cards, nil
}

func (m *memStore) UpdateCardPosition(ctx context.Context, cardID string, position int) error {
	card := m.cards[cardID]
	card.Position = position
	m.cards[cardID] = card
	return nil
}

func (m *memStore) ReplaceCardWatchers(ctx context.Context, cardID string, userIDs []string) error {
	m.watchers[cardID] = append([]string(nil), userIDs...)
	return nil
}

func (m *memStore) ReplaceCardLabels(ctx context.Context, cardID string, labelIDs []string) error {
	m.cardLabels[cardID] = append([]string(nil), labelIDs...)
	return nil
}

// ---- checklist items ----

func (m *memStore) InsertChecklistItem(ctx context.Context, item store.ChecklistItem) error {
	now := m.now()
	item.CreatedAt = now
	item.UpdatedAt = now
	m.checklist[item.ID] = item
	return nil
}

func (m *memStore) UpdateChecklistItem(ctx context.Context, item store.ChecklistItem) error {
	stored := m.checklist[item.ID]
	stored.Content = item.Content
	stored.Completed = item.Completed
	stored.Position = item.Position
	stored.UpdatedAt = m.now()
	m.checklist[item.ID] = stored
	return nil
}

func (m *memStore) DeleteChecklistItem(ctx context.Context, itemID string) error {
	delete(m.checklist, itemID)
	return nil
}

func (m *memStore) ListChecklistItems(ctx context.Context, cardID string) ([]store.ChecklistItem, error) {
	var items []store.ChecklistItem
	for _, item := range m.checklist {
		if item.CardID == cardID {
			items = append(items, item)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Position != items[j].Position {
			return items[i].Position < items[j].Position
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (m *memStore) UpdateChecklistItemPosition(ctx context.Context, itemID string, position int) error {
	item := m.checklist[itemID]
	item.Position = position
	m.checklist[itemID] = item
	return nil
}

// ---- comments ----

func (m *memStore) InsertComment(ctx context.Context, comment store.Comment) error {
	now := m.now()
	comment.CreatedAt = now
	comment.UpdatedAt = now
	m.comments[comment.ID] = comment
	return nil
}

func (m *memStore) UpdateCommentContent(ctx context.Context, commentID, content string) error {
	comment := m.comments[commentID]
	comment.Content = content
	comment.UpdatedAt = m.now()
	m.comments[commentID] = comment
	return nil
}

func (m *memStore) DeleteComment(ctx context.Context, commentID string) error {
	delete(m.comments, commentID)
	return nil
}

// ---- attachments ----

func (m *memStore) InsertAttachment(ctx context.Context, attachment store.Attachment) error {
	attachment.CreatedAt = m.now()
	m.attachments[attachment.ID] = attachment
	return nil
}

func (m *memStore) DeleteAttachment(ctx context.Context, attachmentID string) error {
	delete(m.attachments, attachmentID)
	return nil
}

// ---- labels ----

func (m *memStore) InsertLabel(ctx context.Context, label store.Label) error {
	now := m.now()
	label.CreatedAt = now
	label.UpdatedAt = now
	m.labels[label.ID] = label
	return nil
}

func (m *memStore) UpdateLabel(ctx context.Context, labelID, name, color string) error {
	label := m.labels[labelID]
	label.Name = name
	label.Color = color
	label.UpdatedAt = m.now()
	m.labels[labelID] = label
	return nil
}

func (m *memStore) DeleteLabel(ctx context.Context, labelID string) error {
	delete(m.labels, labelID)
	for cardID, ids := range m.cardLabels {
		kept := ids[:0]
		for _, id := range ids {
			if id != labelID {
				kept = append(kept, id)
			}
		}
		m.cardLabels[cardID] = kept
	}
	return nil
}

// ---- sprints ----

func (m *memStore) InsertSprint(ctx context.Context, sprint store.Sprint) error {
	now := m.now()
	sprint.CreatedAt = now
	sprint.UpdatedAt = now
	m.sprints[sprint.ID] = sprint
	return nil
}

func (m *memStore) UpdateSprint(ctx context.Context, sprint store.Sprint) error {
	stored := m.sprints[sprint.ID]
	stored.Name = sprint.Name
	stored.Goal = sprint.Goal
	stored.StartDate = sprint.StartDate
	stored.EndDate = sprint.EndDate
	stored.Status = sprint.Status
	stored.UpdatedAt = m.now()
	m.sprints[sprint.ID] = stored
	return nil
}

func (m *memStore) DeleteSprint(ctx context.Context, sprintID string) error {
	delete(m.sprints, sprintID)
	for id, card := range m.cards {
		if card.SprintID != nil && *card.SprintID == sprintID {
			card.SprintID = nil
			m.cards[id] = card
		}
	}
	return nil
}
