package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
)

// PostgresStore persists the board hierarchy. Aggregate loads fan out over
// several queries and are assembled in memory; sibling ordering is re-sorted
// defensively after every load because concurrent writers can leave
// transient gaps between a persist and its resequence pass.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ---- board aggregate loads ----

func (s *PostgresStore) GetBoard(ctx context.Context, boardID string) (Board, error) {
	board, err := s.getBoardRow(ctx, boardID)
	if err != nil {
		return Board{}, err
	}

	if board.Members, err = s.listBoardMembers(ctx, boardID); err != nil {
		return Board{}, err
	}
	if board.Labels, err = s.listBoardLabels(ctx, boardID); err != nil {
		return Board{}, err
	}
	if board.Sprints, err = s.listBoardSprints(ctx, boardID); err != nil {
		return Board{}, err
	}

	columns, err := s.ListColumns(ctx, boardID)
	if err != nil {
		return Board{}, err
	}

	cards, err := s.listCardRows(ctx, `c.board_id = $1`, boardID)
	if err != nil {
		return Board{}, err
	}
	if err := s.loadCardRelations(ctx, cards, `c.board_id = $1`, boardID); err != nil {
		return Board{}, err
	}
	if err := s.resolveCardUsers(ctx, cards, board); err != nil {
		return Board{}, err
	}

	byColumn := make(map[string][]Card, len(columns))
	for _, card := range cards {
		byColumn[card.ColumnID] = append(byColumn[card.ColumnID], *card)
	}
	// Re-sort defensively: a crash between a persist and its resequence can
	// leave duplicate or gapped positions until the next mutation heals them.
	sort.SliceStable(columns, func(i, j int) bool {
		if columns[i].Position != columns[j].Position {
			return columns[i].Position < columns[j].Position
		}
		return columns[i].CreatedAt.Before(columns[j].CreatedAt)
	})
	for i := range columns {
		columnCards := byColumn[columns[i].ID]
		sort.SliceStable(columnCards, func(a, b int) bool {
			if columnCards[a].Position != columnCards[b].Position {
				return columnCards[a].Position < columnCards[b].Position
			}
			return columnCards[a].CreatedAt.Before(columnCards[b].CreatedAt)
		})
		for c := range columnCards {
			items := columnCards[c].ChecklistItems
			sort.SliceStable(items, func(a, b int) bool {
				if items[a].Position != items[b].Position {
					return items[a].Position < items[b].Position
				}
				return items[a].CreatedAt.Before(items[b].CreatedAt)
			})
		}
		columns[i].Cards = columnCards
	}
	board.Columns = columns

	return board, nil
}

// GetBoardAccess loads the board with only the relations authorization and
// reference validation need: owner, members, labels and sprints.
func (s *PostgresStore) GetBoardAccess(ctx context.Context, boardID string) (Board, error) {
	board, err := s.getBoardRow(ctx, boardID)
	if err != nil {
		return Board{}, err
	}
	if board.Members, err = s.listBoardMembers(ctx, boardID); err != nil {
		return Board{}, err
	}
	if board.Labels, err = s.listBoardLabels(ctx, boardID); err != nil {
		return Board{}, err
	}
	if board.Sprints, err = s.listBoardSprints(ctx, boardID); err != nil {
		return Board{}, err
	}
	return board, nil
}

func (s *PostgresStore) GetCard(ctx context.Context, cardID string) (Card, error) {
	cards, err := s.listCardRows(ctx, `c.id = $1`, cardID)
	if err != nil {
		return Card{}, err
	}
	if len(cards) == 0 {
		return Card{}, sql.ErrNoRows
	}
	card := cards[0]

	if err := s.loadCardRelations(ctx, cards, `c.id = $1`, cardID); err != nil {
		return Card{}, err
	}
	sort.SliceStable(card.ChecklistItems, func(a, b int) bool {
		if card.ChecklistItems[a].Position != card.ChecklistItems[b].Position {
			return card.ChecklistItems[a].Position < card.ChecklistItems[b].Position
		}
		return card.ChecklistItems[a].CreatedAt.Before(card.ChecklistItems[b].CreatedAt)
	})
	if card.AssigneeID != nil {
		user, err := s.GetUserByID(ctx, *card.AssigneeID)
		if err != nil {
			return Card{}, fmt.Errorf("resolve assignee: %w", err)
		}
		card.Assignee = &user
	}
	if card.ReporterID != nil {
		user, err := s.GetUserByID(ctx, *card.ReporterID)
		if err != nil {
			return Card{}, fmt.Errorf("resolve reporter: %w", err)
		}
		card.Reporter = &user
	}
	if card.SprintID != nil {
		sprint, err := s.getSprintRow(ctx, *card.SprintID)
		if err != nil {
			return Card{}, fmt.Errorf("resolve sprint: %w", err)
		}
		card.Sprint = &sprint
	}
	return *card, nil
}

func (s *PostgresStore) GetColumn(ctx context.Context, columnID string) (Column, error) {
	var column Column
	err := s.db.QueryRowContext(ctx, `
		SELECT id, board_id, title, position, created_at, updated_at
		FROM board_columns WHERE id = $1
	`, columnID).Scan(&column.ID, &column.BoardID, &column.Title, &column.Position, &column.CreatedAt, &column.UpdatedAt)
	if err != nil {
		return Column{}, err
	}
	return column, nil
}

func (s *PostgresStore) ListBoardIDsForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT b.id, b.created_at
		FROM boards b
		LEFT JOIN board_members bm ON bm.board_id = b.id
		WHERE b.owner_id = $1 OR bm.user_id = $1
		ORDER BY b.created_at ASC, b.id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list boards for user: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		var createdAt sql.NullTime
		if err := rows.Scan(&id, &createdAt); err != nil {
			return nil, fmt.Errorf("scan board id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStore) getBoardRow(ctx context.Context, boardID string) (Board, error) {
	var board Board
	err := s.db.QueryRowContext(ctx, `
		SELECT b.id, b.name, b.description, b.owner_id, b.created_at, b.updated_at,
			u.id, u.email, u.display_name, u.role, u.created_at, u.updated_at
		FROM boards b
		JOIN users u ON u.id = b.owner_id
		WHERE b.id = $1
	`, boardID).Scan(
		&board.ID, &board.Name, &board.Description, &board.OwnerID, &board.CreatedAt, &board.UpdatedAt,
		&board.Owner.ID, &board.Owner.Email, &board.Owner.DisplayName, &board.Owner.Role,
		&board.Owner.CreatedAt, &board.Owner.UpdatedAt,
	)
	if err != nil {
		return Board{}, err
	}
	return board, nil
}

func (s *PostgresStore) listBoardMembers(ctx context.Context, boardID string) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.email, u.display_name, u.role, u.created_at, u.updated_at
		FROM board_members bm
		JOIN users u ON u.id = bm.user_id
		WHERE bm.board_id = $1
		ORDER BY bm.added_at ASC, u.id ASC
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list board members: %w", err)
	}
	defer rows.Close()

	var members []User
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.ID, &user.Email, &user.DisplayName, &user.Role, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan board member: %w", err)
		}
		members = append(members, user)
	}
	return members, rows.Err()
}

func (s *PostgresStore) listBoardLabels(ctx context.Context, boardID string) ([]Label, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, board_id, name, color, created_at, updated_at
		FROM labels WHERE board_id = $1
		ORDER BY name ASC
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	defer rows.Close()

	var labels []Label
	for rows.Next() {
		var label Label
		if err := rows.Scan(&label.ID, &label.BoardID, &label.Name, &label.Color, &label.CreatedAt, &label.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan label: %w", err)
		}
		labels = append(labels, label)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i].Name < labels[j].Name })
	return labels, nil
}

func (s *PostgresStore) listBoardSprints(ctx context.Context, boardID string) ([]Sprint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, board_id, name, goal, start_date, end_date, status, created_at, updated_at
		FROM sprints WHERE board_id = $1
		ORDER BY created_at ASC, id ASC
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list sprints: %w", err)
	}
	defer rows.Close()

	var sprints []Sprint
	for rows.Next() {
		var sprint Sprint
		if err := rows.Scan(&sprint.ID, &sprint.BoardID, &sprint.Name, &sprint.Goal,
			&sprint.StartDate, &sprint.EndDate, &sprint.Status, &sprint.CreatedAt, &sprint.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan sprint: %w", err)
		}
		sprints = append(sprints, sprint)
	}
	return sprints, rows.Err()
}

func (s *PostgresStore) getSprintRow(ctx context.Context, sprintID string) (Sprint, error) {
	var sprint Sprint
	err := s.db.QueryRowContext(ctx, `
		SELECT id, board_id, name, goal, start_date, end_date, status, created_at, updated_at
		FROM sprints WHERE id = $1
	`, sprintID).Scan(&sprint.ID, &sprint.BoardID, &sprint.Name, &sprint.Goal,
		&sprint.StartDate, &sprint.EndDate, &sprint.Status, &sprint.CreatedAt, &sprint.UpdatedAt)
	if err != nil {
		return Sprint{}, err
	}
	return sprint, nil
}

func (s *PostgresStore) listCardRows(ctx context.Context, where string, arg any) ([]*Card, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.board_id, c.column_id, c.title, c.description, c.position,
			c.due_date, c.priority, c.type, c.story_points,
			c.assignee_id, c.reporter_id, c.sprint_id, c.created_at, c.updated_at
		FROM cards c
		WHERE `+where+`
		ORDER BY c.position ASC, c.created_at ASC
	`, arg)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	var cards []*Card
	for rows.Next() {
		var card Card
		if err := rows.Scan(&card.ID, &card.BoardID, &card.ColumnID, &card.Title, &card.Description, &card.Position,
			&card.DueDate, &card.Priority, &card.Type, &card.StoryPoints,
			&card.AssigneeID, &card.ReporterID, &card.SprintID, &card.CreatedAt, &card.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		cards = append(cards, &card)
	}
	return cards, rows.Err()
}

// loadCardRelations fills watchers, labels, checklist items, comments and
// attachments for every card in the slice. The where fragment scopes the
// joined cards table (board-wide or single card).
func (s *PostgresStore) loadCardRelations(ctx context.Context, cards []*Card, where string, arg any) error {
	if len(cards) == 0 {
		return nil
	}
	byID := make(map[string]*Card, len(cards))
	for _, card := range cards {
		byID[card.ID] = card
	}

	watcherRows, err := s.db.QueryContext(ctx, `
		SELECT cw.card_id, u.id, u.email, u.display_name, u.role, u.created_at, u.updated_at
		FROM card_watchers cw
		JOIN cards c ON c.id = cw.card_id
		JOIN users u ON u.id = cw.user_id
		WHERE `+where+`
		ORDER BY u.display_name ASC, u.id ASC
	`, arg)
	if err != nil {
		return fmt.Errorf("list card watchers: %w", err)
	}
	defer watcherRows.Close()
	for watcherRows.Next() {
		var cardID string
		var user User
		if err := watcherRows.Scan(&cardID, &user.ID, &user.Email, &user.DisplayName, &user.Role, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return fmt.Errorf("scan card watcher: %w", err)
		}
		if card, ok := byID[cardID]; ok {
			card.Watchers = append(card.Watchers, user)
		}
	}
	if err := watcherRows.Err(); err != nil {
		return err
	}

	labelRows, err := s.db.QueryContext(ctx, `
		SELECT cl.card_id, l.id, l.board_id, l.name, l.color, l.created_at, l.updated_at
		FROM card_labels cl
		JOIN cards c ON c.id = cl.card_id
		JOIN labels l ON l.id = cl.label_id
		WHERE `+where+`
		ORDER BY l.name ASC
	`, arg)
	if err != nil {
		return fmt.Errorf("list card labels: %w", err)
	}
	defer labelRows.Close()
	for labelRows.Next() {
		var cardID string
		var label Label
		if err := labelRows.Scan(&cardID, &label.ID, &label.BoardID, &label.Name, &label.Color, &label.CreatedAt, &label.UpdatedAt); err != nil {
			return fmt.Errorf("scan card label: %w", err)
		}
		if card, ok := byID[cardID]; ok {
			card.Labels = append(card.Labels, label)
		}
	}
	if err := labelRows.Err(); err != nil {
		return err
	}

	checkRows, err := s.db.QueryContext(ctx, `
		SELECT ci.id, ci.card_id, ci.content, ci.completed, ci.position, ci.created_at, ci.updated_at
		FROM checklist_items ci
		JOIN cards c ON c.id = ci.card_id
		WHERE `+where+`
		ORDER BY ci.position ASC, ci.created_at ASC
	`, arg)
	if err != nil {
		return fmt.Errorf("list checklist items: %w", err)
	}
	defer checkRows.Close()
	for checkRows.Next() {
		var item ChecklistItem
		if err := checkRows.Scan(&item.ID, &item.CardID, &item.Content, &item.Completed, &item.Position, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return fmt.Errorf("scan checklist item: %w", err)
		}
		if card, ok := byID[item.CardID]; ok {
			card.ChecklistItems = append(card.ChecklistItems, item)
		}
	}
	if err := checkRows.Err(); err != nil {
		return err
	}

	commentRows, err := s.db.QueryContext(ctx, `
		SELECT cm.id, cm.card_id, cm.content, cm.author_id, cm.created_at, cm.updated_at,
			u.id, u.email, u.display_name, u.role, u.created_at, u.updated_at
		FROM comments cm
		JOIN cards c ON c.id = cm.card_id
		LEFT JOIN users u ON u.id = cm.author_id
		WHERE `+where+`
		ORDER BY cm.created_at ASC, cm.id ASC
	`, arg)
	if err != nil {
		return fmt.Errorf("list comments: %w", err)
	}
	defer commentRows.Close()
	for commentRows.Next() {
		var comment Comment
		var authorID, authorEmail, authorName, authorRole sql.NullString
		var authorCreated, authorUpdated sql.NullTime
		if err := commentRows.Scan(&comment.ID, &comment.CardID, &comment.Content, &comment.AuthorID,
			&comment.CreatedAt, &comment.UpdatedAt,
			&authorID, &authorEmail, &authorName, &authorRole, &authorCreated, &authorUpdated); err != nil {
			return fmt.Errorf("scan comment: %w", err)
		}
		if authorID.Valid {
			comment.Author = &User{
				ID:          authorID.String,
				Email:       authorEmail.String,
				DisplayName: authorName.String,
				Role:        authorRole.String,
				CreatedAt:   authorCreated.Time,
				UpdatedAt:   authorUpdated.Time,
			}
		}
		if card, ok := byID[comment.CardID]; ok {
			card.Comments = append(card.Comments, comment)
		}
	}
	if err := commentRows.Err(); err != nil {
		return err
	}

	attachmentRows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.card_id, a.name, a.url, a.mime_type, a.uploaded_by, a.created_at,
			u.id, u.email, u.display_name, u.role, u.created_at, u.updated_at
		FROM attachments a
		JOIN cards c ON c.id = a.card_id
		LEFT JOIN users u ON u.id = a.uploaded_by
		WHERE `+where+`
		ORDER BY a.created_at ASC, a.id ASC
	`, arg)
	if err != nil {
		return fmt.Errorf("list attachments: %w", err)
	}
	defer attachmentRows.Close()
	for attachmentRows.Next() {
		var attachment Attachment
		var uploaderID, uploaderEmail, uploaderName, uploaderRole sql.NullString
		var uploaderCreated, uploaderUpdated sql.NullTime
		if err := attachmentRows.Scan(&attachment.ID, &attachment.CardID, &attachment.Name, &attachment.URL,
			&attachment.MimeType, &attachment.UploadedByID, &attachment.CreatedAt,
			&uploaderID, &uploaderEmail, &uploaderName, &uploaderRole, &uploaderCreated, &uploaderUpdated); err != nil {
			return fmt.Errorf("scan attachment: %w", err)
		}
		if uploaderID.Valid {
			attachment.UploadedBy = &User{
				ID:          uploaderID.String,
				Email:       uploaderEmail.String,
				DisplayName: uploaderName.String,
				Role:        uploaderRole.String,
				CreatedAt:   uploaderCreated.Time,
				UpdatedAt:   uploaderUpdated.Time,
			}
		}
		if card, ok := byID[attachment.CardID]; ok {
			card.Attachments = append(card.Attachments, attachment)
		}
	}
	return attachmentRows.Err()
}

// resolveCardUsers fills assignee/reporter/sprint from relations already in
// the aggregate where possible. An assignee who has since left the board is
// still resolvable with a direct lookup.
func (s *PostgresStore) resolveCardUsers(ctx context.Context, cards []*Card, board Board) error {
	users := make(map[string]User, len(board.Members)+1)
	users[board.Owner.ID] = board.Owner
	for _, member := range board.Members {
		users[member.ID] = member
	}
	sprints := make(map[string]Sprint, len(board.Sprints))
	for _, sprint := range board.Sprints {
		sprints[sprint.ID] = sprint
	}

	lookup := func(userID string) (User, error) {
		if user, ok := users[userID]; ok {
			return user, nil
		}
		user, err := s.GetUserByID(ctx, userID)
		if err != nil {
			return User{}, err
		}
		users[userID] = user
		return user, nil
	}

	for _, card := range cards {
		if card.AssigneeID != nil {
			user, err := lookup(*card.AssigneeID)
			if err != nil {
				return fmt.Errorf("resolve assignee: %w", err)
			}
			card.Assignee = &user
		}
		if card.ReporterID != nil {
			user, err := lookup(*card.ReporterID)
			if err != nil {
				return fmt.Errorf("resolve reporter: %w", err)
			}
			card.Reporter = &user
		}
		if card.SprintID != nil {
			if sprint, ok := sprints[*card.SprintID]; ok {
				card.Sprint = &sprint
			}
		}
	}
	return nil
}

// ---- board mutations ----

func (s *PostgresStore) InsertBoard(ctx context.Context, board Board) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO boards (id, name, description, owner_id)
		VALUES ($1, $2, $3, $4)
	`, board.ID, board.Name, board.Description, board.OwnerID)
	if err != nil {
		return fmt.Errorf("insert board: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateBoard(ctx context.Context, boardID, name, description string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE boards SET name=$2, description=$3, updated_at=NOW() WHERE id=$1
	`, boardID, name, description)
	if err != nil {
		return fmt.Errorf("update board: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteBoard(ctx context.Context, boardID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM boards WHERE id=$1`, boardID)
	if err != nil {
		return fmt.Errorf("delete board: %w", err)
	}
	return nil
}

func (s *PostgresStore) AddBoardMember(ctx context.Context, boardID, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO board_members (board_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (board_id, user_id) DO NOTHING
	`, boardID, userID)
	if err != nil {
		return fmt.Errorf("add board member: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveBoardMember(ctx context.Context, boardID, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM board_members WHERE board_id=$1 AND user_id=$2
	`, boardID, userID)
	if err != nil {
		return fmt.Errorf("remove board member: %w", err)
	}
	return nil
}

// ---- columns ----

func (s *PostgresStore) InsertColumn(ctx context.Context, column Column) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO board_columns (id, board_id, title, position)
		VALUES ($1, $2, $3, $4)
	`, column.ID, column.BoardID, column.Title, column.Position)
	if err != nil {
		return fmt.Errorf("insert column: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateColumn(ctx context.Context, column Column) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE board_columns SET title=$2, position=$3, updated_at=NOW() WHERE id=$1
	`, column.ID, column.Title, column.Position)
	if err != nil {
		return fmt.Errorf("update column: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteColumn(ctx context.Context, columnID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM board_columns WHERE id=$1`, columnID)
	if err != nil {
		return fmt.Errorf("delete column: %w", err)
	}
	return nil
}

// ListColumns returns the columns of a board ordered by (position,
// creation time), the order resequencing relies on.
func (s *PostgresStore) ListColumns(ctx context.Context, boardID string) ([]Column, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, board_id, title, position, created_at, updated_at
		FROM board_columns WHERE board_id = $1
		ORDER BY position ASC, created_at ASC
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var column Column
		if err := rows.Scan(&column.ID, &column.BoardID, &column.Title, &column.Position, &column.CreatedAt, &column.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, column)
	}
	return columns, rows.Err()
}

func (s *PostgresStore) UpdateColumnPosition(ctx context.Context, columnID string, position int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE board_columns SET position=$2, updated_at=NOW() WHERE id=$1
	`, columnID, position)
	if err != nil {
		return fmt.Errorf("update column position: %w", err)
	}
	return nil
}

// ---- cards ----

func (s *PostgresStore) InsertCard(ctx context.Context, card Card) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cards (id, board_id, column_id, title, description, position,
			due_date, priority, type, story_points, assignee_id, reporter_id, sprint_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, card.ID, card.BoardID, card.ColumnID, card.Title, card.Description, card.Position,
		card.DueDate, card.Priority, card.Type, card.StoryPoints, card.AssigneeID, card.ReporterID, card.SprintID)
	if err != nil {
		return fmt.Errorf("insert card: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateCard(ctx context.Context, card Card) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE cards SET column_id=$2, title=$3, description=$4, position=$5,
			due_date=$6, priority=$7, type=$8, story_points=$9,
			assignee_id=$10, reporter_id=$11, sprint_id=$12, updated_at=NOW()
		WHERE id=$1
	`, card.ID, card.ColumnID, card.Title, card.Description, card.Position,
		card.DueDate, card.Priority, card.Type, card.StoryPoints, card.AssigneeID, card.ReporterID, card.SprintID)
	if err != nil {
		return fmt.Errorf("update card: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteCard(ctx context.Context, cardID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cards WHERE id=$1`, cardID)
	if err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	return nil
}

// ListCards returns the cards of one column ordered by (position, creation
// time), scalar columns only.
func (s *PostgresStore) ListCards(ctx context.Context, columnID string) ([]Card, error) {
	cards, err := s.listCardRows(ctx, `c.column_id = $1`, columnID)
	if err != nil {
		return nil, err
	}
	out := make([]Card, 0, len(cards))
	for _, card := range cards {
		out = append(out, *card)
	}
	return out, nil
}

func (s *PostgresStore) UpdateCardPosition(ctx context.Context, cardID string, position int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE cards SET position=$2, updated_at=NOW() WHERE id=$1
	`, cardID, position)
	if err != nil {
		return fmt.Errorf("update card position: %w", err)
	}
	return nil
}

func (s *PostgresStore) ReplaceCardWatchers(ctx context.Context, cardID string, userIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace watchers: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM card_watchers WHERE card_id=$1`, cardID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear card watchers: %w", err)
	}
	for _, userID := range userIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO card_watchers (card_id, user_id) VALUES ($1, $2)
			ON CONFLICT (card_id, user_id) DO NOTHING
		`, cardID, userID); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert card watcher: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace watchers: %w", err)
	}
	return nil
}

func (s *PostgresStore) ReplaceCardLabels(ctx context.Context, cardID string, labelIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace labels: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM card_labels WHERE card_id=$1`, cardID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear card labels: %w", err)
	}
	for _, labelID := range labelIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO card_labels (card_id, label_id) VALUES ($1, $2)
			ON CONFLICT (card_id, label_id) DO NOTHING
		`, cardID, labelID); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert card label: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace labels: %w", err)
	}
	return nil
}

// ---- checklist items ----

func (s *PostgresStore) InsertChecklistItem(ctx context.Context, item ChecklistItem) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checklist_items (id, card_id, content, completed, position)
		VALUES ($1, $2, $3, $4, $5)
	`, item.ID, item.CardID, item.Content, item.Completed, item.Position)
	if err != nil {
		return fmt.Errorf("insert checklist item: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateChecklistItem(ctx context.Context, item ChecklistItem) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE checklist_items SET content=$2, completed=$3, position=$4, updated_at=NOW() WHERE id=$1
	`, item.ID, item.Content, item.Completed, item.Position)
	if err != nil {
		return fmt.Errorf("update checklist item: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteChecklistItem(ctx context.Context, itemID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM checklist_items WHERE id=$1`, itemID)
	if err != nil {
		return fmt.Errorf("delete checklist item: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListChecklistItems(ctx context.Context, cardID string) ([]ChecklistItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, card_id, content, completed, position, created_at, updated_at
		FROM checklist_items WHERE card_id = $1
		ORDER BY position ASC, created_at ASC
	`, cardID)
	if err != nil {
		return nil, fmt.Errorf("list checklist items: %w", err)
	}
	defer rows.Close()

	var items []ChecklistItem
	for rows.Next() {
		var item ChecklistItem
		if err := rows.Scan(&item.ID, &item.CardID, &item.Content, &item.Completed, &item.Position, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan checklist item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *PostgresStore) UpdateChecklistItemPosition(ctx context.Context, itemID string, position int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE checklist_items SET position=$2, updated_at=NOW() WHERE id=$1
	`, itemID, position)
	if err != nil {
		return fmt.Errorf("update checklist item position: %w", err)
	}
	return nil
}

// ---- comments and attachments ----

func (s *PostgresStore) InsertComment(ctx context.Context, comment Comment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (id, card_id, content, author_id)
		VALUES ($1, $2, $3, $4)
	`, comment.ID, comment.CardID, comment.Content, comment.AuthorID)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateCommentContent(ctx context.Context, commentID, content string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE comments SET content=$2, updated_at=NOW() WHERE id=$1
	`, commentID, content)
	if err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteComment(ctx context.Context, commentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id=$1`, commentID)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertAttachment(ctx context.Context, attachment Attachment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attachments (id, card_id, name, url, mime_type, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, attachment.ID, attachment.CardID, attachment.Name, attachment.URL, attachment.MimeType, attachment.UploadedByID)
	if err != nil {
		return fmt.Errorf("insert attachment: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteAttachment(ctx context.Context, attachmentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM attachments WHERE id=$1`, attachmentID)
	if err != nil {
		return fmt.Errorf("delete attachment: %w", err)
	}
	return nil
}

// ---- labels and sprints ----

func (s *PostgresStore) InsertLabel(ctx context.Context, label Label) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO labels (id, board_id, name, color)
		VALUES ($1, $2, $3, $4)
	`, label.ID, label.BoardID, label.Name, label.Color)
	if err != nil {
		return fmt.Errorf("insert label: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateLabel(ctx context.Context, labelID, name, color string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE labels SET name=$2, color=$3, updated_at=NOW() WHERE id=$1
	`, labelID, name, color)
	if err != nil {
		return fmt.Errorf("update label: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteLabel(ctx context.Context, labelID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM labels WHERE id=$1`, labelID)
	if err != nil {
		return fmt.Errorf("delete label: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertSprint(ctx context.Context, sprint Sprint) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sprints (id, board_id, name, goal, start_date, end_date, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, sprint.ID, sprint.BoardID, sprint.Name, sprint.Goal, sprint.StartDate, sprint.EndDate, sprint.Status)
	if err != nil {
		return fmt.Errorf("insert sprint: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateSprint(ctx context.Context, sprint Sprint) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sprints SET name=$2, goal=$3, start_date=$4, end_date=$5, status=$6, updated_at=NOW() WHERE id=$1
	`, sprint.ID, sprint.Name, sprint.Goal, sprint.StartDate, sprint.EndDate, sprint.Status)
	if err != nil {
		return fmt.Errorf("update sprint: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteSprint(ctx context.Context, sprintID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sprints WHERE id=$1`, sprintID)
	if err != nil {
		return fmt.Errorf("delete sprint: %w", err)
	}
	return nil
}
