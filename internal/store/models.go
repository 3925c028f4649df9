package store

import "time"

type Board struct {
	ID                 string
	Name               string
	Description        string
	IsPublic           bool
	AccessType         string
	PinnedAnnouncement string
	DisplayOrder       int
	ArchivedAt         *time.Time
	CreatedBy          string
	CreatedAt          time.Time
}

type Thread struct {
	ID            string
	BoardID       string
	Title         string
	IsPinned      bool
	IsLocked      bool
	ArchivedAt    *time.Time
	CreatedBy     string
	MessageCount  int
	LastMessageAt *time.Time
	CreatedAt     time.Time
}

type Message struct {
	ID          string
	ThreadID    string
	AuthorID    string
	AuthorName  string
	Content     string
	ContentHTML string
	ReplyToID   *string
	IsDeleted   bool
	EditedAt    *time.Time
	CreatedAt   time.Time
	// Seq is the insertion sequence, the stable tie-break for created_at.
	Seq int64
}

type Reaction struct {
	MessageID    string
	MemberID     string
	ReactionType string
	CreatedAt    time.Time
}

type Report struct {
	ID           int64
	MessageID    string
	ReportedBy   string
	ReporterName string
	Reason       string
	CreatedAt    time.Time
}

type NotificationPreference struct {
	MemberID           string
	BoardID            string
	EmailNotifications bool
	InAppNotifications bool
	UpdatedAt          time.Time
}

type Notification struct {
	ID        int64
	MemberID  string
	BoardID   string
	ThreadID  string
	MessageID string
	IsRead    bool
	CreatedAt time.Time
}
