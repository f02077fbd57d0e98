package store

import "time"

type User struct {
	ID           string
	Email        string
	PasswordHash string
	DisplayName  string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Board is the aggregate root. Loads populate the full graph; mutations go
// through the granular statements in postgres.go and reload afterwards.
type Board struct {
	ID          string
	Name        string
	Description string
	OwnerID     string
	Owner       User
	Members     []User
	Columns     []Column
	Labels      []Label
	Sprints     []Sprint
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Column struct {
	ID        string
	BoardID   string
	Title     string
	Position  int
	Cards     []Card
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Card struct {
	ID          string
	BoardID     string
	ColumnID    string
	Title       string
	Description string
	Position    int
	DueDate     *time.Time
	Priority    string
	Type        string
	StoryPoints *int
	AssigneeID  *string
	ReporterID  *string
	SprintID    *string

	// Resolved relations, populated on aggregate loads only.
	Assignee       *User
	Reporter       *User
	Watchers       []User
	Labels         []Label
	ChecklistItems []ChecklistItem
	Comments       []Comment
	Attachments    []Attachment
	Sprint         *Sprint

	CreatedAt time.Time
	UpdatedAt time.Time
}

type Label struct {
	ID        string
	BoardID   string
	Name      string
	Color     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type ChecklistItem struct {
	ID        string
	CardID    string
	Content   string
	Completed bool
	Position  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Comment struct {
	ID        string
	CardID    string
	Content   string
	AuthorID  *string
	Author    *User
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Attachment struct {
	ID           string
	CardID       string
	Name         string
	URL          string
	MimeType     string
	UploadedByID *string
	UploadedBy   *User
	CreatedAt    time.Time
}

type Sprint struct {
	ID        string
	BoardID   string
	Name      string
	Goal      string
	StartDate *time.Time
	EndDate   *time.Time
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}
