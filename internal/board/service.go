// Package board implements the board-hierarchy consistency and
// authorization engine. Every operation is a short-lived transaction over
// the persistent store: load, authorize, validate references, mutate,
// resequence where ordering changed, then reload and project. No aggregate
// state survives between calls.
package board

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"taskboard/api/internal/store"
	"taskboard/api/internal/util"
)

const (
	PriorityLow    = "LOW"
	PriorityMedium = "MEDIUM"
	PriorityHigh   = "HIGH"

	CardTypeTask  = "TASK"
	CardTypeBug   = "BUG"
	CardTypeStory = "STORY"

	SprintPlanned   = "PLANNED"
	SprintActive    = "ACTIVE"
	SprintCompleted = "COMPLETED"
)

var allowedPriorities = map[string]struct{}{
	PriorityLow:    {},
	PriorityMedium: {},
	PriorityHigh:   {},
}

var allowedCardTypes = map[string]struct{}{
	CardTypeTask:  {},
	CardTypeBug:   {},
	CardTypeStory: {},
}

var allowedSprintStatuses = map[string]struct{}{
	SprintPlanned:   {},
	SprintActive:    {},
	SprintCompleted: {},
}

type CreateBoardInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type UpdateBoardInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type AddMemberInput struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

type CreateColumnInput struct {
	Title    string `json:"title"`
	Position *int   `json:"position"`
}

type UpdateColumnInput struct {
	Title    *string `json:"title"`
	Position *int    `json:"position"`
}

type ReorderColumnsInput struct {
	ColumnOrder []string `json:"columnOrder"`
}

type CreateCardInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	DueDate     string   `json:"dueDate"`
	Priority    string   `json:"priority"`
	Type        string   `json:"type"`
	StoryPoints *int     `json:"storyPoints"`
	AssigneeID  string   `json:"assigneeId"`
	ReporterID  string   `json:"reporterId"`
	LabelIDs    []string `json:"labelIds"`
}

// UpdateCardInput distinguishes absent from explicitly empty: a nil field
// leaves the card unchanged, a present-but-empty value clears the optional
// reference it names.
type UpdateCardInput struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	DueDate     *string   `json:"dueDate"`
	Priority    *string   `json:"priority"`
	Type        *string   `json:"type"`
	StoryPoints *int      `json:"storyPoints"`
	AssigneeID  *string   `json:"assigneeId"`
	ReporterID  *string   `json:"reporterId"`
	LabelIDs    *[]string `json:"labelIds"`
}

type MoveCardInput struct {
	TargetColumnID string `json:"targetColumnId"`
	TargetPosition *int   `json:"targetPosition"`
}

type UpdateCardAssigneeInput struct {
	AssigneeID string `json:"assigneeId"`
}

type UpdateCardWatchersInput struct {
	WatcherIDs []string `json:"watcherIds"`
}

type UpdateCardLabelsInput struct {
	LabelIDs []string `json:"labelIds"`
}

type UpdateCardSprintInput struct {
	SprintID string `json:"sprintId"`
}

type CreateChecklistItemInput struct {
	Content string `json:"content"`
}

type UpdateChecklistItemInput struct {
	Content   *string `json:"content"`
	Completed *bool   `json:"completed"`
	Position  *int    `json:"position"`
}

type AddCommentInput struct {
	Content string `json:"content"`
}

type UpdateCommentInput struct {
	Content string `json:"content"`
}

type AddAttachmentInput struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	MimeType string `json:"mimeType"`
}

type CreateLabelInput struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type UpdateLabelInput struct {
	Name  *string `json:"name"`
	Color *string `json:"color"`
}

type CreateSprintInput struct {
	Name      string `json:"name"`
	Goal      string `json:"goal"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type UpdateSprintInput struct {
	Name      *string `json:"name"`
	Goal      *string `json:"goal"`
	StartDate *string `json:"startDate"`
	EndDate   *string `json:"endDate"`
}

type UpdateSprintStatusInput struct {
	Status string `json:"status"`
}

type dataStore interface {
	GetBoard(ctx context.Context, boardID string) (store.Board, error)
	GetBoardAccess(ctx context.Context, boardID string) (store.Board, error)
	GetCard(ctx context.Context, cardID string) (store.Card, error)
	GetColumn(ctx context.Context, columnID string) (store.Column, error)
	ListBoardIDsForUser(ctx context.Context, userID string) ([]string, error)

	InsertBoard(ctx context.Context, board store.Board) error
	UpdateBoard(ctx context.Context, boardID, name, description string) error
	DeleteBoard(ctx context.Context, boardID string) error
	AddBoardMember(ctx context.Context, boardID, userID string) error
	RemoveBoardMember(ctx context.Context, boardID, userID string) error

	InsertColumn(ctx context.Context, column store.Column) error
	UpdateColumn(ctx context.Context, column store.Column) error
	DeleteColumn(ctx context.Context, columnID string) error
	ListColumns(ctx context.Context, boardID string) ([]store.Column, error)
	UpdateColumnPosition(ctx context.Context, columnID string, position int) error

	InsertCard(ctx context.Context, card store.Card) error
	UpdateCard(ctx context.Context, card store.Card) error
	DeleteCard(ctx context.Context, cardID string) error
	ListCards(ctx context.Context, columnID string) ([]store.Card, error)
	UpdateCardPosition(ctx context.Context, cardID string, position int) error
	ReplaceCardWatchers(ctx context.Context, cardID string, userIDs []string) error
	ReplaceCardLabels(ctx context.Context, cardID string, labelIDs []string) error

	InsertChecklistItem(ctx context.Context, item store.ChecklistItem) error
	UpdateChecklistItem(ctx context.Context, item store.ChecklistItem) error
	DeleteChecklistItem(ctx context.Context, itemID string) error
	ListChecklistItems(ctx context.Context, cardID string) ([]store.ChecklistItem, error)
	UpdateChecklistItemPosition(ctx context.Context, itemID string, position int) error

	InsertComment(ctx context.Context, comment store.Comment) error
	UpdateCommentContent(ctx context.Context, commentID, content string) error
	DeleteComment(ctx context.Context, commentID string) error

	InsertAttachment(ctx context.Context, attachment store.Attachment) error
	DeleteAttachment(ctx context.Context, attachmentID string) error

	InsertLabel(ctx context.Context, label store.Label) error
	UpdateLabel(ctx context.Context, labelID, name, color string) error
	DeleteLabel(ctx context.Context, labelID string) error

	InsertSprint(ctx context.Context, sprint store.Sprint) error
	UpdateSprint(ctx context.Context, sprint store.Sprint) error
	DeleteSprint(ctx context.Context, sprintID string) error
}

type userDirectory interface {
	FindByID(ctx context.Context, userID string) (store.User, error)
	FindByEmail(ctx context.Context, email string) (store.User, error)
}

type Service struct {
	store dataStore
	users userDirectory
}

func New(ds dataStore, users userDirectory) *Service {
	return &Service{store: ds, users: users}
}

// ---- boards ----

func (s *Service) ListBoards(ctx context.Context, userID string) ([]map[string]any, error) {
	ids, err := s.store.ListBoardIDsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	boards := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		board, err := s.loadBoard(ctx, id)
		if err != nil {
			return nil, err
		}
		if !isMember(board, userID) {
			continue
		}
		boards = append(boards, boardView(board))
	}
	return boards, nil
}

func (s *Service) CreateBoard(ctx context.Context, ownerID string, in CreateBoardInput) (map[string]any, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, errInvalid("name is required")
	}
	owner, err := s.users.FindByID(ctx, ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errNotFound("User not found")
	}
	if err != nil {
		return nil, err
	}

	board := store.Board{
		ID:          util.NewID("brd"),
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		OwnerID:     owner.ID,
	}
	if err := s.store.InsertBoard(ctx, board); err != nil {
		return nil, err
	}
	return s.boardResponse(ctx, board.ID)
}

func (s *Service) GetBoard(ctx context.Context, boardID, userID string) (map[string]any, error) {
	board, err := s.loadBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if err := requireMember(board, userID); err != nil {
		return nil, err
	}
	return boardView(board), nil
}

func (s *Service) UpdateBoard(ctx context.Context, boardID, userID string, in UpdateBoardInput) (map[string]any, error) {
	board, err := s.loadBoardAccess(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if err := requireManager(board, userID); err != nil {
		return nil, err
	}

	name := board.Name
	if in.Name != nil && strings.TrimSpace(*in.Name) != "" {
		name = strings.TrimSpace(*in.Name)
	}
	description := board.Description
	if in.Description != nil {
		description = strings.TrimSpace(*in.Description)
	}
	if err := s.store.UpdateBoard(ctx, boardID, name, description); err != nil {
		return nil, err
	}
	return s.boardResponse(ctx, boardID)
}

func (s *Service) DeleteBoard(ctx context.Context, boardID, userID string) error {
	board, err := s.loadBoardAccess(ctx, boardID)
	if err != nil {
		return err
	}
	if err := requireManager(board, userID); err != nil {
		return err
	}
	return s.store.DeleteBoard(ctx, boardID)
}

func (s *Service) AddMember(ctx context.Context, boardID, actorID string, in AddMemberInput) (map[string]any, error) {
	board, err := s.loadBoardAccess(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if err := requireManager(board, actorID); err != nil {
		return nil, err
	}
	if in.UserID == "" && strings.TrimSpace(in.Email) == "" {
		return nil, errInvalid("Provide either userId or email")
	}

	var target store.User
	if in.UserID != "" {
		target, err = s.users.FindByID(ctx, in.UserID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound("User not found")
		}
	} else {
		email := strings.ToLower(strings.TrimSpace(in.Email))
		target, err = s.users.FindByEmail(ctx, email)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound("User with email " + email + " not found")
		}
	}
	if err != nil {
		return nil, err
	}

	// Adding someone twice is a no-op, not an error.
	if isMember(board, target.ID) {
		return s.boardResponse(ctx, boardID)
	}
	if err := s.store.AddBoardMember(ctx, boardID, target.ID); err != nil {
		return nil, err
	}
	return s.boardResponse(ctx, boardID)
}

func (s *Service) RemoveMember(ctx context.Context, boardID, actorID, memberID string) (map[string]any, error) {
	board, err := s.loadBoardAccess(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if err := requireManager(board, actorID); err != nil {
		return nil, err
	}
	if board.OwnerID == memberID {
		return nil, errInvalid("Cannot remove the board owner")
	}
	if err := s.store.RemoveBoardMember(ctx, boardID, memberID); err != nil {
		return nil, err
	}
	return s.boardResponse(ctx, boardID)
}

// ---- columns ----

func (s *Service) CreateColumn(ctx context.Context, boardID, userID string, in CreateColumnInput) (map[string]any, error) {
	board, err := s.loadBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if err := requireMember(board, userID); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, errInvalid("title is required")
	}

	position := len(board.Columns)
	if in.Position != nil {
		if *in.Position < 0 {
			return nil, errInvalid("position must be non-negative")
		}
		position = *in.Position
	}
	column := store.Column{
		ID:       util.NewID("col"),
		BoardID:  boardID,
		Title:    title,
		Position: position,
	}
	if err := s.store.InsertColumn(ctx, column); err != nil {
		return nil, err
	}
	if err := s.resequenceColumns(ctx, boardID); err != nil {
		return nil, err
	}
	return s.boardResponse(ctx, boardID)
}

func (s *Service) UpdateColumn(ctx context.Context, boardID, userID, columnID string, in UpdateColumnInput) (map[string]any, error) {
	board, err := s.loadBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if err := requireMember(board, userID); err != nil {
		return nil, err
	}
	column, err := findColumn(board, columnID)
	if err != nil {
		return nil, err
	}

	if in.Title != nil && strings.TrimSpace(*in.Title) != "" {
		column.Title = strings.TrimSpace(*in.Title)
	}
	repositioned := false
	if in.Position != nil {
		if *in.Position < 0 {
			return nil, errInvalid("position must be non-negative")
		}
		column.Position = *in.Position
		repositioned = true
	}
	if err := s.store.UpdateColumn(ctx, column); err != nil {
		return nil, err
	}
	if repositioned {
		if err := s.resequenceColumns(ctx, boardID); err != nil {
			return nil, err
		}
	}
	return s.boardResponse(ctx, boardID)
}

func (s *Service) ReorderColumns(ctx context.Context, boardID, userID string, in ReorderColumnsInput) (map[string]any, error) {
	board, err := s.loadBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if err := requireMember(board, userID); err != nil {
		return nil, err
	}
	positions, err := columnOrderPositions(board.Columns, in.ColumnOrder)
	if err != nil {
		return nil, err
	}
	for _, column := range board.Columns {
		if err := s.store.UpdateColumnPosition(ctx, column.ID, positions[column.ID]); err != nil {
			return nil, err
		}
	}
	return s.boardResponse(ctx, boardID)
}

func (s *Service) DeleteColumn(ctx context.Context, boardID, userID, columnID string) (map[string]any, error) {
	board, err := s.loadBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if err := requireMember(board, userID); err != nil {
		return nil, err
	}
	if _, err := findColumn(board, columnID); err != nil {
		return nil, err
	}
	if err := s.store.DeleteColumn(ctx, columnID); err != nil {
		return nil, err
	}
	if err := s.resequenceColumns(ctx, boardID); err != nil {
		return nil, err
	}
	return s.boardResponse(ctx, boardID)
}

// ---- cards ----

func (s *Service) CreateCard(ctx context.Context, boardID, columnID, userID string, in CreateCardInput) (map[string]any, error) {
	board, err := s.loadBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if err := requireMember(board, userID); err != nil {
		return nil, err
	}
	column, err := findColumn(board, columnID)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, errInvalid("title is required")
	}

	priority := PriorityMedium
	if in.Priority != "" {
		priority = strings.ToUpper(in.Priority)
		if _, ok := allowedPriorities[priority]; !ok {
			return nil, errInvalid("invalid card priority")
		}
	}
	cardType := CardTypeTask
	if in.Type != "" {
		cardType = strings.ToUpper(in.Type)
		if _, ok := allowedCardTypes[cardType]; !ok {
			return nil, errInvalid("invalid card type")
		}
	}
	dueDate, err := parseTime(in.DueDate)
	if err != nil {
		return nil, err
	}
	if in.StoryPoints != nil && *in.StoryPoints < 0 {
		return nil, errInvalid("storyPoints must be non-negative")
	}

	card := store.Card{
		ID:          util.NewID("crd"),
		BoardID:     boardID,
		ColumnID:    column.ID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Position:    len(column.Cards),
		DueDate:     dueDate,
		Priority:    priority,
		Type:        cardType,
		StoryPoints: in.StoryPoints,
	}
	if in.AssigneeID != "" {
		assignee, err := s.resolveBoardUser(ctx, board, in.AssigneeID)
		if err != nil {
			return nil, err
		}
		card.AssigneeID = &assignee.ID
	}
	if in.ReporterID != "" {
		reporter, err := s.resolveBoardUser(ctx, board, in.ReporterID)
		if err != nil {
			return nil, err
		}
		card.ReporterID = &reporter.ID
	}
	labels, err := resolveBoardLabels(board, in.LabelIDs)
	if err != nil {
		return nil, err
	}

	if err := s.store.InsertCard(ctx, card); err != nil {
		return nil, err
	}
	if len(labels) > 0 {
		if err := s.store.ReplaceCardLabels(ctx, card.ID, labelIDs(labels)); err != nil {
			return nil, err
		}
	}
	return s.cardResponse(ctx, card.ID)
}

func (s *Service) GetCard(ctx context.Context, cardID, userID string) (map[string]any, error) {
	card, board, err := s.loadCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if err := requireMember(board, userID); err != nil {
		return nil, err
	}
	return cardView(card), nil
}

func (s *Service) UpdateCard(ctx context.Context, cardID, userID string, in UpdateCardInput) (map[string]any, error) {
	card, board, err := s.loadCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if err := requireMember(board, userID); err != nil {
		return nil, err
	}

	if in.Title != nil && strings.TrimSpace(*in.Title) != "" {
		card.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		card.Description = strings.TrimSpace(*in.Description)
	}
	if in.Priority != nil {
		priority := strings.ToUpper(*in.Priority)
		if _, ok := allowedPriorities[priority]; !ok {
			return nil, errInvalid("invalid card priority")
		}
		card.Priority = priority
	}
	if in.Type != nil {
		cardType := strings.ToUpper(*in.Type)
		if _, ok := allowedCardTypes[cardType]; !ok {
			return nil, errInvalid("invalid card type")
		}
		card.Type = cardType
	}
	if in.DueDate != nil {
		dueDate, err := parseTime(*in.DueDate)
		if err != nil {
			return nil, err
		}
		card.DueDate = dueDate
	}
	if in.StoryPoints != nil {
		if *in.StoryPoints < 0 {
			return nil, errInvalid("storyPoints must be non-negative")
		}
		card.StoryPoints = in.StoryPoints
	}
	if in.AssigneeID != nil {
		if *in.AssigneeID == "" {
			card.AssigneeID = nil
		} else {
			assignee, err := s.resolveBoardUser(ctx, board, *in.AssigneeID)
			if err != nil {
				return nil, err
			}
			card.AssigneeID = &assignee.ID
		}
	}
	if in.ReporterID != nil {
		if *in.ReporterID == "" {
			card.ReporterID = nil
		} else {
			reporter, err := s.resolveBoardUser(ctx, board, *in.ReporterID)
			if err != nil {
				return nil, err
			}
			card.ReporterID = &reporter.ID
		}
	}
	var replaceLabels []string
	if in.LabelIDs != nil {
		labels, err := resolveBoardLabels(board, *in.LabelIDs)
		if err != nil {
			return nil, err
		}
		replaceLabels = labelIDs(labels)
	}

	if err := s.store.UpdateCard(ctx, card); err != nil {
		return nil, err
	}
	if in.LabelIDs != nil {
		if err := s.store.ReplaceCardLabels(ctx, card.ID, replaceLabels); err != nil {
			return nil, err
		}
	}
	return s.cardResponse(ctx, cardID)
}

func (s *Service) DeleteCard(ctx context.Context, cardID, userID string) error {
	card, board, err := s.loadCard(ctx, cardID)
	if err != nil {
		return err
	}
	if err := requireMember(board, userID); err != nil {
		return err
	}
	columnID := card.ColumnID
	if err := s.store.DeleteCard(ctx, cardID); err != nil {
		return err
	}
	return s.resequenceCards(ctx, columnID)
}

func (s *Service) MoveCard(ctx context.Context, cardID, userID string, in MoveCardInput) (map[string]any, error) {
	card, board, err := s.loadCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if err := requireMember(board, userID); err != nil {
		return nil, err
	}

	target, err := s.store.GetColumn(ctx, in.TargetColumnID)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && target.BoardID != card.BoardID) {
		return nil, errInvalid("Target column must belong to the same board")
	}
	if err != nil {
		return nil, err
	}

	position := 0
	if in.TargetPosition != nil {
		if *in.TargetPosition < 0 {
			return nil, errInvalid("targetPosition must be non-negative")
		}
		position = *in.TargetPosition
	} else {
		targetCards, err := s.store.ListCards(ctx, target.ID)
		if err != nil {
			return nil, err
		}
		position = len(targetCards)
	}

	previousColumnID := card.ColumnID
	card.ColumnID = target.ID
	card.Position = position
	if err := s.store.UpdateCard(ctx, card); err != nil {
		return nil, err
	}
	// Source before target; still correct (just redundant) when both match.
	if err := s.resequenceCards(ctx, previousColumnID); err != nil {
		return nil, err
	}
	if err := s.resequenceCards(ctx, target.ID); err != nil {
		return nil, err
	}
	return s.cardResponse(ctx, cardID)
}

func (s *Service) UpdateCardAssignee(ctx context.Context, cardID, userID string, in UpdateCardAssigneeInput) (map[string]any, error) {
	card, board, err := s.loadCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if err := requireMember(board, userID); err != nil {
		return nil, err
	}
	if in.AssigneeID == "" {
		card.AssigneeID = nil
	} else {
		assignee, err := s.resolveBoardUser(ctx, board, in.AssigneeID)
		if err != nil {
			return nil, err
		}
		card.AssigneeID = &assignee.ID
	}
	if err := s.store.UpdateCard(ctx, card); err != nil {
		return nil, err
	}
	return s.cardResponse(ctx, cardID)
}

func (s *Service) UpdateCardWatchers(ctx context.Context, cardID, userID string, in UpdateCardWatchersInput) (map[string]any, error) {
	card, board, err := s.loadCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if err := requireMember(board, userID); err != nil {
		return nil, err
	}
	watchers, err := s.resolveBoardUsers(ctx, board, in.WatcherIDs)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(watchers))
	for _, watcher := range watchers {
		ids = append(ids, watcher.ID)
	}
	if err := s.store.ReplaceCardWatchers(ctx, card.ID, ids); err != nil {
		return nil, err
	}
	return s.cardResponse(ctx, cardID)
}

func (s *Service) UpdateCardLabels(ctx context.Context, cardID, userID string, in UpdateCardLabelsInput) (map[string]any, error) {
	card, board, err := s.loadCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if err := requireMember(board, userID); err != nil {
		return nil, err
	}
	labels, err := resolveBoardLabels(board, in.LabelIDs)
	if err != nil {
		return nil, err
	}
	if err := s.store.ReplaceCardLabels(ctx, card.ID, labelIDs(labels)); err != nil {
		return nil, err
	}
	return s.cardResponse(ctx, cardID)
}

func (s *Service) UpdateCardSprint(ctx context.Context, cardID, userID string, in UpdateCardSprintInput) (map[string]any, error) {
	card, board, err := s.loadCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if err := requireMember(board, userID); err != nil {
		return nil, err
	}
	if in.SprintID == "" {
		card.SprintID = nil
	} else {
		sprint, err := findBoardSprint(board, in.SprintID)
		if err != nil {
			return nil, err
		}
		card.SprintID = &sprint.ID
	}
	if err := s.store.UpdateCard(ctx, card); err != nil {
		return nil, err
	}
	return s.cardResponse(ctx, cardID)
}

// ---- checklist items ----

func (s *Service) CreateChecklistItem(ctx context.Context, cardID, userID string, in CreateChecklistItemInput) (map[string]any, error) {
	card, board, err := s.loadCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if err := requireMember(board, userID); err != nil {
		return nil, err
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, errInvalid("content is required")
	}

	item := store.ChecklistItem{
		ID:       util.NewID("chk"),
		CardID:   card.ID,
		Content:  content,
		Position: len(card.ChecklistItems),
	}
	if err := s.store.InsertChecklistItem(ctx, item); err != nil {
		return nil, err
	}
	if err := s.resequenceChecklist(ctx, card.ID); err != nil {
		return nil, err
	}
	return s.cardResponse(ctx, cardID)
}

func (s *Service) UpdateChecklistItem(ctx context.Context, cardID, userID, itemID string, in UpdateChecklistItemInput) (map[string]any, error) {
	card, board, err := s.loadCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if err := requireMember(board, userID); err != nil {
		return nil, err
	}
	item, err := findChecklistItem(card, itemID)
	if err != nil {
		return nil, err
	}

	if in.Content != nil && strings.TrimSpace(*in.Content) != "" {
		item.Content = strings.TrimSpace(*in.Content)
	}
	if in.Completed != nil {
		item.Completed = *in.Completed
	}
	repositioned := false
	if in.Position != nil {
		if *in.Position < 0 {
			return nil, errInvalid("position must be non-negative")
		}
		item.Position = *in.Position
		repositioned = true
	}
	if err := s.store.UpdateChecklistItem(ctx, item); err != nil {
		return nil, err
	}
	if repositioned {
		if err := s.resequenceChecklist(ctx, card.ID); err != nil {
			return nil, err
		}
	}
	return s.cardResponse(ctx, cardID)
}

func (s *Service) DeleteChecklistItem(ctx context.Context, cardID, userID, itemID string) (map[string]any, error) {
	card, board, err := s.loadCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if err := requireMember(board, userID); err != nil {
		return nil, err
	}
	if _, err := findChecklistItem(card, itemID); err != nil {
		return nil, err
	}
	if err := s.store.DeleteChecklistItem(ctx, itemID); err != nil {
		return nil, err
	}
	if err := s.resequenceChecklist(ctx, card.ID); err != nil {
		return nil, err
	}
	return s.cardResponse(ctx, cardID)
}

// ---- comments ----

func (s *Service) AddComment(ctx context.Context, cardID, userID string, in AddCommentInput) (map[string]any, error) {
	card, board, err := s.loadCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if err := requireMember(board, userID); err != nil {
		return nil, err
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, errInvalid("content is required")
	}
	author, err := s.resolveBoardUser(ctx, board, userID)
	if err != nil {
		return nil, err
	}

	comment := store.Comment{
		ID:       util.NewID("cmt"),
		CardID:   card.ID,
		Content:  content,
		AuthorID: &author.ID,
	}
	if err := s.store.InsertComment(ctx, comment); err != nil {
		return nil, err
	}
	return s.cardResponse(ctx, cardID)
}

func (s *Service) UpdateComment(ctx context.Context, cardID, userID, commentID string, in UpdateCommentInput) (map[string]any, error) {
	card, board, err := s.loadCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if err := requireMember(board, userID); err != nil {
		return nil, err
	}
	comment, err := findComment(card, commentID)
	if err != nil {
		return nil, err
	}
	// Author only; managers get no override on edits.
	if comment.AuthorID == nil || *comment.AuthorID != userID {
		return nil, errForbidden("Only the author can edit comments")
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, errInvalid("content is required")
	}
	if err := s.store.UpdateCommentContent(ctx, commentID, content); err != nil {
		return nil, err
	}
	return s.cardResponse(ctx, cardID)
}

func (s *Service) DeleteComment(ctx context.Context, cardID, userID, commentID string) (map[string]any, error) {
	card, board, err := s.loadCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if err := requireMember(board, userID); err != nil {
		return nil, err
	}
	comment, err := findComment(card, commentID)
	if err != nil {
		return nil, err
	}
	if comment.AuthorID != nil && *comment.AuthorID != userID && !isManager(board, userID) {
		return nil, errForbidden("Only the author or board managers can delete comments")
	}
	if err := s.store.DeleteComment(ctx, commentID); err != nil {
		return nil, err
	}
	return s.cardResponse(ctx, cardID)
}

// ---- attachments ----

func (s *Service) AddAttachment(ctx context.Context, cardID, userID string, in AddAttachmentInput) (map[string]any, error) {
	card, board, err := s.loadCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if err := requireMember(board, userID); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	url := strings.TrimSpace(in.URL)
	if name == "" || url == "" {
		return nil, errInvalid("name and url are required")
	}
	uploader, err := s.resolveBoardUser(ctx, board, userID)
	if err != nil {
		return nil, err
	}

	attachment := store.Attachment{
		ID:           util.NewID("att"),
		CardID:       card.ID,
		Name:         name,
		URL:          url,
		MimeType:     strings.TrimSpace(in.MimeType),
		UploadedByID: &uploader.ID,
	}
	if err := s.store.InsertAttachment(ctx, attachment); err != nil {
		return nil, err
	}
	return s.cardResponse(ctx, cardID)
}

func (s *Service) DeleteAttachment(ctx context.Context, cardID, userID, attachmentID string) (map[string]any, error) {
	card, board, err := s.loadCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if err := requireMember(board, userID); err != nil {
		return nil, err
	}
	attachment, err := findAttachment(card, attachmentID)
	if err != nil {
		return nil, err
	}
	if attachment.UploadedByID != nil && *attachment.UploadedByID != userID && !isManager(board, userID) {
		return nil, errForbidden("Only the uploader or board managers can delete attachments")
	}
	if err := s.store.DeleteAttachment(ctx, attachmentID); err != nil {
		return nil, err
	}
	return s.cardResponse(ctx, cardID)
}

// ---- labels ----

func (s *Service) CreateLabel(ctx context.Context, boardID, userID string, in CreateLabelInput) (map[string]any, error) {
	board, err := s.loadBoardAccess(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if err := requireMember(board, userID); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	color := strings.TrimSpace(in.Color)
	if name == "" || color == "" {
		return nil, errInvalid("name and color are required")
	}
	label := store.Label{
		ID:      util.NewID("lbl"),
		BoardID: boardID,
		Name:    name,
		Color:   color,
	}
	if err := s.store.InsertLabel(ctx, label); err != nil {
		return nil, err
	}
	return s.boardResponse(ctx, boardID)
}

func (s *Service) UpdateLabel(ctx context.Context, boardID, userID, labelID string, in UpdateLabelInput) (map[string]any, error) {
	board, err := s.loadBoardAccess(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if err := requireMember(board, userID); err != nil {
		return nil, err
	}
	label, err := findLabel(board, labelID)
	if err != nil {
		return nil, err
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) != "" {
		label.Name = strings.TrimSpace(*in.Name)
	}
	if in.Color != nil && strings.TrimSpace(*in.Color) != "" {
		label.Color = strings.TrimSpace(*in.Color)
	}
	if err := s.store.UpdateLabel(ctx, label.ID, label.Name, label.Color); err != nil {
		return nil, err
	}
	return s.boardResponse(ctx, boardID)
}

func (s *Service) DeleteLabel(ctx context.Context, boardID, userID, labelID string) (map[string]any, error) {
	board, err := s.loadBoardAccess(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if err := requireMember(board, userID); err != nil {
		return nil, err
	}
	if _, err := findLabel(board, labelID); err != nil {
		return nil, err
	}
	if err := s.store.DeleteLabel(ctx, labelID); err != nil {
		return nil, err
	}
	return s.boardResponse(ctx, boardID)
}

// ---- sprints ----

func (s *Service) CreateSprint(ctx context.Context, boardID, userID string, in CreateSprintInput) (map[string]any, error) {
	board, err := s.loadBoardAccess(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if err := requireMember(board, userID); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, errInvalid("name is required")
	}
	startDate, err := parseTime(in.StartDate)
	if err != nil {
		return nil, err
	}
	endDate, err := parseTime(in.EndDate)
	if err != nil {
		return nil, err
	}

	sprint := store.Sprint{
		ID:        util.NewID("spr"),
		BoardID:   boardID,
		Name:      name,
		Goal:      strings.TrimSpace(in.Goal),
		StartDate: startDate,
		EndDate:   endDate,
		Status:    SprintPlanned,
	}
	if err := s.store.InsertSprint(ctx, sprint); err != nil {
		return nil, err
	}
	return s.boardResponse(ctx, boardID)
}

func (s *Service) UpdateSprint(ctx context.Context, boardID, userID, sprintID string, in UpdateSprintInput) (map[string]any, error) {
	board, err := s.loadBoardAccess(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if err := requireMember(board, userID); err != nil {
		return nil, err
	}
	sprint, err := findSprint(board, sprintID)
	if err != nil {
		return nil, err
	}

	if in.Name != nil && strings.TrimSpace(*in.Name) != "" {
		sprint.Name = strings.TrimSpace(*in.Name)
	}
	if in.Goal != nil {
		sprint.Goal = strings.TrimSpace(*in.Goal)
	}
	if in.StartDate != nil {
		startDate, err := parseTime(*in.StartDate)
		if err != nil {
			return nil, err
		}
		sprint.StartDate = startDate
	}
	if in.EndDate != nil {
		endDate, err := parseTime(*in.EndDate)
		if err != nil {
			return nil, err
		}
		sprint.EndDate = endDate
	}
	if err := s.store.UpdateSprint(ctx, sprint); err != nil {
		return nil, err
	}
	return s.boardResponse(ctx, boardID)
}

func (s *Service) UpdateSprintStatus(ctx context.Context, boardID, userID, sprintID string, in UpdateSprintStatusInput) (map[string]any, error) {
	board, err := s.loadBoardAccess(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if err := requireMember(board, userID); err != nil {
		return nil, err
	}
	sprint, err := findSprint(board, sprintID)
	if err != nil {
		return nil, err
	}
	status := strings.ToUpper(strings.TrimSpace(in.Status))
	if _, ok := allowedSprintStatuses[status]; !ok {
		return nil, errInvalid("invalid sprint status")
	}
	sprint.Status = status
	if err := s.store.UpdateSprint(ctx, sprint); err != nil {
		return nil, err
	}
	return s.boardResponse(ctx, boardID)
}

func (s *Service) DeleteSprint(ctx context.Context, boardID, userID, sprintID string) (map[string]any, error) {
	board, err := s.loadBoardAccess(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if err := requireMember(board, userID); err != nil {
		return nil, err
	}
	if _, err := findSprint(board, sprintID); err != nil {
		return nil, err
	}
	if err := s.store.DeleteSprint(ctx, sprintID); err != nil {
		return nil, err
	}
	return s.boardResponse(ctx, boardID)
}

// ---- loading and projection helpers ----

func (s *Service) loadBoard(ctx context.Context, boardID string) (store.Board, error) {
	board, err := s.store.GetBoard(ctx, boardID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Board{}, errNotFound("Board not found")
	}
	if err != nil {
		return store.Board{}, err
	}
	return board, nil
}

func (s *Service) loadBoardAccess(ctx context.Context, boardID string) (store.Board, error) {
	board, err := s.store.GetBoardAccess(ctx, boardID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Board{}, errNotFound("Board not found")
	}
	if err != nil {
		return store.Board{}, err
	}
	return board, nil
}

func (s *Service) loadCard(ctx context.Context, cardID string) (store.Card, store.Board, error) {
	card, err := s.store.GetCard(ctx, cardID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Card{}, store.Board{}, errNotFound("Card not found")
	}
	if err != nil {
		return store.Card{}, store.Board{}, err
	}
	board, err := s.loadBoardAccess(ctx, card.BoardID)
	if err != nil {
		return store.Card{}, store.Board{}, err
	}
	return card, board, nil
}

func (s *Service) boardResponse(ctx context.Context, boardID string) (map[string]any, error) {
	board, err := s.loadBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	return boardView(board), nil
}

func (s *Service) cardResponse(ctx context.Context, cardID string) (map[string]any, error) {
	card, err := s.store.GetCard(ctx, cardID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errNotFound("Card not found")
	}
	if err != nil {
		return nil, err
	}
	return cardView(card), nil
}

func findColumn(board store.Board, columnID string) (store.Column, error) {
	for _, column := range board.Columns {
		if column.ID == columnID {
			return column, nil
		}
	}
	return store.Column{}, errNotFound("Column not found")
}

func findLabel(board store.Board, labelID string) (store.Label, error) {
	for _, label := range board.Labels {
		if label.ID == labelID {
			return label, nil
		}
	}
	return store.Label{}, errNotFound("Label not found")
}

func findSprint(board store.Board, sprintID string) (store.Sprint, error) {
	for _, sprint := range board.Sprints {
		if sprint.ID == sprintID {
			return sprint, nil
		}
	}
	return store.Sprint{}, errNotFound("Sprint not found")
}

func findChecklistItem(card store.Card, itemID string) (store.ChecklistItem, error) {
	for _, item := range card.ChecklistItems {
		if item.ID == itemID {
			return item, nil
		}
	}
	return store.ChecklistItem{}, errNotFound("Checklist item not found")
}

func findComment(card store.Card, commentID string) (store.Comment, error) {
	for _, comment := range card.Comments {
		if comment.ID == commentID {
			return comment, nil
		}
	}
	return store.Comment{}, errNotFound("Comment not found")
}

func findAttachment(card store.Card, attachmentID string) (store.Attachment, error) {
	for _, attachment := range card.Attachments {
		if attachment.ID == attachmentID {
			return attachment, nil
		}
	}
	return store.Attachment{}, errNotFound("Attachment not found")
}

func labelIDs(labels []store.Label) []string {
	ids := make([]string, 0, len(labels))
	for _, label := range labels {
		ids = append(ids, label.ID)
	}
	return ids
}

func parseTime(value string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return nil, errInvalid("dates must be RFC 3339 timestamps")
	}
	return &parsed, nil
}
