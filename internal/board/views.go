package board

import (
	"time"

	"taskboard/api/internal/store"
)

// Read-model projection. Every operation answers with a fresh board or
// card view built from a reload, never from the mutated in-memory state.

func userView(user store.User) map[string]any {
	return map[string]any{
		"id":          user.ID,
		"email":       user.Email,
		"displayName": user.DisplayName,
		"role":        user.Role,
		"createdAt":   user.CreatedAt.Format(time.RFC3339),
		"updatedAt":   user.UpdatedAt.Format(time.RFC3339),
	}
}

func boardView(board store.Board) map[string]any {
	members := make([]map[string]any, 0, len(board.Members))
	for _, member := range board.Members {
		members = append(members, userView(member))
	}
	columns := make([]map[string]any, 0, len(board.Columns))
	for _, column := range board.Columns {
		columns = append(columns, columnView(column))
	}
	labels := make([]map[string]any, 0, len(board.Labels))
	for _, label := range board.Labels {
		labels = append(labels, labelView(label))
	}
	sprints := make([]map[string]any, 0, len(board.Sprints))
	for _, sprint := range board.Sprints {
		sprints = append(sprints, sprintView(sprint))
	}
	return map[string]any{
		"id":          board.ID,
		"name":        board.Name,
		"description": nilIfEmpty(board.Description),
		"owner":       userView(board.Owner),
		"members":     members,
		"columns":     columns,
		"labels":      labels,
		"sprints":     sprints,
		"createdAt":   board.CreatedAt.Format(time.RFC3339),
		"updatedAt":   board.UpdatedAt.Format(time.RFC3339),
	}
}

func columnView(column store.Column) map[string]any {
	cards := make([]map[string]any, 0, len(column.Cards))
	for _, card := range column.Cards {
		cards = append(cards, cardView(card))
	}
	return map[string]any{
		"id":        column.ID,
		"title":     column.Title,
		"position":  column.Position,
		"cards":     cards,
		"createdAt": column.CreatedAt.Format(time.RFC3339),
		"updatedAt": column.UpdatedAt.Format(time.RFC3339),
	}
}

func cardView(card store.Card) map[string]any {
	watchers := make([]map[string]any, 0, len(card.Watchers))
	for _, watcher := range card.Watchers {
		watchers = append(watchers, userView(watcher))
	}
	labels := make([]map[string]any, 0, len(card.Labels))
	for _, label := range card.Labels {
		labels = append(labels, labelView(label))
	}
	checklist := make([]map[string]any, 0, len(card.ChecklistItems))
	for _, item := range card.ChecklistItems {
		checklist = append(checklist, map[string]any{
			"id":        item.ID,
			"content":   item.Content,
			"completed": item.Completed,
			"position":  item.Position,
			"createdAt": item.CreatedAt.Format(time.RFC3339),
			"updatedAt": item.UpdatedAt.Format(time.RFC3339),
		})
	}
	comments := make([]map[string]any, 0, len(card.Comments))
	for _, comment := range card.Comments {
		comments = append(comments, commentView(comment))
	}
	attachments := make([]map[string]any, 0, len(card.Attachments))
	for _, attachment := range card.Attachments {
		attachments = append(attachments, attachmentView(attachment))
	}

	view := map[string]any{
		"id":             card.ID,
		"columnId":       card.ColumnID,
		"title":          card.Title,
		"description":    nilIfEmpty(card.Description),
		"position":       card.Position,
		"dueDate":        formatTimePtr(card.DueDate),
		"priority":       card.Priority,
		"type":           card.Type,
		"storyPoints":    nil,
		"assignee":       nil,
		"reporter":       nil,
		"watchers":       watchers,
		"labels":         labels,
		"checklistItems": checklist,
		"comments":       comments,
		"attachments":    attachments,
		"sprint":         nil,
		"createdAt":      card.CreatedAt.Format(time.RFC3339),
		"updatedAt":      card.UpdatedAt.Format(time.RFC3339),
	}
	if card.StoryPoints != nil {
		view["storyPoints"] = *card.StoryPoints
	}
	if card.Assignee != nil {
		view["assignee"] = userView(*card.Assignee)
	}
	if card.Reporter != nil {
		view["reporter"] = userView(*card.Reporter)
	}
	if card.Sprint != nil {
		view["sprint"] = sprintView(*card.Sprint)
	}
	return view
}

func labelView(label store.Label) map[string]any {
	return map[string]any{
		"id":        label.ID,
		"name":      label.Name,
		"color":     label.Color,
		"createdAt": label.CreatedAt.Format(time.RFC3339),
		"updatedAt": label.UpdatedAt.Format(time.RFC3339),
	}
}

func sprintView(sprint store.Sprint) map[string]any {
	return map[string]any{
		"id":        sprint.ID,
		"name":      sprint.Name,
		"goal":      nilIfEmpty(sprint.Goal),
		"startDate": formatTimePtr(sprint.StartDate),
		"endDate":   formatTimePtr(sprint.EndDate),
		"status":    sprint.Status,
		"createdAt": sprint.CreatedAt.Format(time.RFC3339),
		"updatedAt": sprint.UpdatedAt.Format(time.RFC3339),
	}
}

func commentView(comment store.Comment) map[string]any {
	view := map[string]any{
		"id":        comment.ID,
		"content":   comment.Content,
		"author":    nil,
		"createdAt": comment.CreatedAt.Format(time.RFC3339),
		"updatedAt": comment.UpdatedAt.Format(time.RFC3339),
	}
	if comment.Author != nil {
		view["author"] = userView(*comment.Author)
	}
	return view
}

func attachmentView(attachment store.Attachment) map[string]any {
	view := map[string]any{
		"id":         attachment.ID,
		"name":       attachment.Name,
		"url":        attachment.URL,
		"mimeType":   nilIfEmpty(attachment.MimeType),
		"uploadedBy": nil,
		"createdAt":  attachment.CreatedAt.Format(time.RFC3339),
	}
	if attachment.UploadedBy != nil {
		view["uploadedBy"] = userView(*attachment.UploadedBy)
	}
	return view
}

func nilIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTimePtr(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.Format(time.RFC3339)
}
