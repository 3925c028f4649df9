package app

import (
	"time"

	"koinonia/api/internal/store"
)

// Wire shapes for the JSON surface. Store rows stay presentation-free; these
// views carry the field names the frontend binds to.

type BoardView struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Description        string     `json:"description"`
	IsPublic           bool       `json:"isPublic"`
	AccessType         string     `json:"accessType"`
	PinnedAnnouncement string     `json:"pinnedAnnouncement,omitempty"`
	DisplayOrder       int        `json:"displayOrder"`
	ArchivedAt         *time.Time `json:"archivedAt,omitempty"`
	CreatedBy          string     `json:"createdBy"`
	CreatedAt          time.Time  `json:"createdAt"`
}

type ThreadSummaryView struct {
	ID            string     `json:"id"`
	BoardID       string     `json:"boardId"`
	Title         string     `json:"title"`
	IsPinned      bool       `json:"isPinned"`
	IsLocked      bool       `json:"isLocked"`
	ArchivedAt    *time.Time `json:"archivedAt,omitempty"`
	CreatedBy     string     `json:"createdBy"`
	MessageCount  int        `json:"messageCount"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

type FlatMessageView struct {
	ID         string     `json:"id"`
	ThreadID   string     `json:"threadId"`
	AuthorID   string     `json:"authorId"`
	AuthorName string     `json:"authorName"`
	Content    string     `json:"content"`
	ReplyToID  *string    `json:"replyToId,omitempty"`
	IsDeleted  bool       `json:"isDeleted"`
	EditedAt   *time.Time `json:"editedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

type ReportView struct {
	ID           int64     `json:"id"`
	MessageID    string    `json:"messageId"`
	ReportedBy   string    `json:"reportedBy"`
	ReporterName string    `json:"reporterName"`
	Reason       string    `json:"reason"`
	CreatedAt    time.Time `json:"createdAt"`
}

type PreferenceView struct {
	BoardID            string `json:"boardId"`
	EmailNotifications bool   `json:"emailNotifications"`
	InAppNotifications bool   `json:"inAppNotifications"`
}

type NotificationView struct {
	ID        int64     `json:"id"`
	BoardID   string    `json:"boardId"`
	ThreadID  string    `json:"threadId"`
	MessageID string    `json:"messageId"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

func renderBoard(board store.Board) BoardView {
	return BoardView{
		ID:                 board.ID,
		Name:               board.Name,
		Description:        board.Description,
		IsPublic:           board.IsPublic,
		AccessType:         board.AccessType,
		PinnedAnnouncement: board.PinnedAnnouncement,
		DisplayOrder:       board.DisplayOrder,
		ArchivedAt:         board.ArchivedAt,
		CreatedBy:          board.CreatedBy,
		CreatedAt:          board.CreatedAt,
	}
}

func renderBoards(boards []store.Board) []BoardView {
	views := make([]BoardView, 0, len(boards))
	for _, board := range boards {
		views = append(views, renderBoard(board))
	}
	return views
}

func renderThread(thread store.Thread) ThreadSummaryView {
	return ThreadSummaryView{
		ID:            thread.ID,
		BoardID:       thread.BoardID,
		Title:         thread.Title,
		IsPinned:      thread.IsPinned,
		IsLocked:      thread.IsLocked,
		ArchivedAt:    thread.ArchivedAt,
		CreatedBy:     thread.CreatedBy,
		MessageCount:  thread.MessageCount,
		LastMessageAt: thread.LastMessageAt,
		CreatedAt:     thread.CreatedAt,
	}
}

func renderThreads(threads []store.Thread) []ThreadSummaryView {
	views := make([]ThreadSummaryView, 0, len(threads))
	for _, thread := range threads {
		views = append(views, renderThread(thread))
	}
	return views
}

func renderMessage(message store.Message) FlatMessageView {
	view := FlatMessageView{
		ID:         message.ID,
		ThreadID:   message.ThreadID,
		AuthorID:   message.AuthorID,
		AuthorName: message.AuthorName,
		ReplyToID:  message.ReplyToID,
		IsDeleted:  message.IsDeleted,
		EditedAt:   message.EditedAt,
		CreatedAt:  message.CreatedAt,
	}
	if !message.IsDeleted {
		view.Content = message.Content
	}
	return view
}

func renderReports(reports []store.Report) []ReportView {
	views := make([]ReportView, 0, len(reports))
	for _, report := range reports {
		views = append(views, ReportView{
			ID:           report.ID,
			MessageID:    report.MessageID,
			ReportedBy:   report.ReportedBy,
			ReporterName: report.ReporterName,
			Reason:       report.Reason,
			CreatedAt:    report.CreatedAt,
		})
	}
	return views
}

func renderPreference(preference store.NotificationPreference) PreferenceView {
	return PreferenceView{
		BoardID:            preference.BoardID,
		EmailNotifications: preference.EmailNotifications,
		InAppNotifications: preference.InAppNotifications,
	}
}

func renderNotifications(notifications []store.Notification) []NotificationView {
	views := make([]NotificationView, 0, len(notifications))
	for _, notification := range notifications {
		views = append(views, NotificationView{
			ID:        notification.ID,
			BoardID:   notification.BoardID,
			ThreadID:  notification.ThreadID,
			MessageID: notification.MessageID,
			IsRead:    notification.IsRead,
			CreatedAt: notification.CreatedAt,
		})
	}
	return views
}
