package app

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"strings"
	"time"

	"koinonia/api/internal/config"
	"koinonia/api/internal/cursor"
	"koinonia/api/internal/notify"
	"koinonia/api/internal/replytree"
	"koinonia/api/internal/store"
	"koinonia/api/internal/util"
)

// Caller is the resolved identity handed over by the external gateway.
// CanModerate is the permission resolver's boolean capability; Grants lists
// restricted boards the caller may enter. This core never computes either.
type Caller struct {
	ID          string
	Name        string
	CanModerate bool
	Grants      []string
}

type CreateBoardInput struct {
	Name               string `json:"name"`
	Description        string `json:"description"`
	AccessType         string `json:"accessType"`
	PinnedAnnouncement string `json:"pinnedAnnouncement"`
	DisplayOrder       int    `json:"displayOrder"`
}

type CreateThreadInput struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type CreateMessageInput struct {
	Content   string `json:"content"`
	ReplyToID string `json:"replyToId"`
}

type PreferencesInput struct {
	EmailNotifications bool `json:"emailNotifications"`
	InAppNotifications bool `json:"inAppNotifications"`
}

// ReactionSummary is the per-type rollup recomputed from the raw reaction
// rows on every read; there is no cached counter to drift.
type ReactionSummary struct {
	Type    string `json:"type"`
	Count   int    `json:"count"`
	Reacted bool   `json:"reacted"`
}

// MessageView is one node of the rendered reply forest. Tombstoned messages
// keep their place and their replies but expose no content.
type MessageView struct {
	ID         string            `json:"id"`
	AuthorID   string            `json:"authorId"`
	AuthorName string            `json:"authorName"`
	Content    string            `json:"content"`
	ReplyToID  *string           `json:"replyToId,omitempty"`
	IsDeleted  bool              `json:"isDeleted"`
	EditedAt   *time.Time        `json:"editedAt,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	ReplyCount int               `json:"replyCount"`
	Reactions  []ReactionSummary `json:"reactions"`
	Replies    []MessageView     `json:"replies"`
}

type ThreadView struct {
	Thread   store.Thread
	Messages []MessageView
}

var allowedAccessTypes = map[string]struct{}{
	"public":        {},
	"authenticated": {},
	"role_based":    {},
	"department":    {},
	"ministry":      {},
}

var reactionTypes = []string{"like", "love", "prayer", "check"}

var allowedReactionTypes = map[string]struct{}{
	"like":   {},
	"love":   {},
	"prayer": {},
	"check":  {},
}

type dataStore interface {
	ListBoards(context.Context) ([]store.Board, error)
	GetBoard(context.Context, string) (store.Board, error)
	InsertBoard(context.Context, store.Board) error
	SetBoardArchived(context.Context, string, bool) (bool, error)
	ListBoardThreads(context.Context, string) ([]store.Thread, error)
	ListActiveThreads(context.Context, []string) ([]store.Thread, error)
	GetThread(context.Context, string) (store.Thread, error)
	CreateThreadWithFirstMessage(context.Context, store.Thread, store.Message) (store.Thread, store.Message, error)
	SetThreadLocked(context.Context, string, bool) (bool, error)
	SetThreadPinned(context.Context, string, bool) (bool, error)
	SetThreadArchived(context.Context, string, bool) (bool, error)
	InsertMessage(context.Context, store.Message) (store.Message, error)
	GetMessage(context.Context, string) (store.Message, error)
	ListThreadMessages(context.Context, string) ([]store.Message, error)
	UpdateMessageContent(context.Context, string, string, string) (bool, error)
	SoftDeleteMessage(context.Context, string, string) (bool, error)
	AddReaction(context.Context, store.Reaction) (bool, error)
	RemoveReaction(context.Context, store.Reaction) error
	ListMessageReactions(context.Context, []string) ([]store.Reaction, error)
	InsertReport(context.Context, store.Report) error
	ListReports(context.Context, int) ([]store.Report, error)
	UpsertNotificationPreference(context.Context, store.NotificationPreference) error
	GetNotificationPreference(context.Context, string, string) (store.NotificationPreference, error)
	ListBoardSubscribers(context.Context, string) ([]store.NotificationPreference, error)
	InsertNotification(context.Context, store.Notification) error
	ListNotifications(context.Context, string, int) ([]store.Notification, error)
	UnreadNotificationCount(context.Context, string) (int, error)
	MarkNotificationRead(context.Context, int64, string) (bool, error)
	MarkAllNotificationsRead(context.Context, string) error
	CountMessagesAfter(context.Context, string, time.Time) (int, error)
	CountMessagesInWindow(context.Context, string, time.Time, time.Time) (int, error)
	Ping(ctx context.Context) error
}

type Service struct {
	cfg     config.Config
	store   dataStore
	cursors cursor.Store
	hub     *notify.Hub
}

// New wires the service with Postgres-backed read cursors.
func New(cfg config.Config, dataStore *store.PostgresStore, hub *notify.Hub) *Service {
	return &Service{cfg: cfg, store: dataStore, cursors: dataStore, hub: hub}
}

// NewWithCursorStore wires the service with an external cursor backend
// (Redis in production when REDIS_URL is set).
func NewWithCursorStore(cfg config.Config, dataStore *store.PostgresStore, cursors cursor.Store, hub *notify.Hub) *Service {
	return &Service{cfg: cfg, store: dataStore, cursors: cursors, hub: hub}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) GatewaySecret() []byte {
	return []byte(s.cfg.GatewaySecret)
}

// canSeeBoard applies the board's access policy to the caller. Moderators
// see everything; restricted access types are satisfied by the grants the
// permission resolver placed in the caller's token.
func canSeeBoard(caller Caller, board store.Board) bool {
	if caller.CanModerate {
		return true
	}
	switch board.AccessType {
	case "public", "authenticated":
		return true
	default:
		for _, grant := range caller.Grants {
			if grant == board.ID {
				return true
			}
		}
		return false
	}
}

func (s *Service) ListBoards(ctx context.Context, caller Caller) ([]store.Board, error) {
	boards, err := s.store.ListBoards(ctx)
	if err != nil {
		return nil, err
	}
	visible := make([]store.Board, 0, len(boards))
	for _, board := range boards {
		if canSeeBoard(caller, board) {
			visible = append(visible, board)
		}
	}
	return visible, nil
}

func (s *Service) CreateBoard(ctx context.Context, caller Caller, input CreateBoardInput) (store.Board, error) {
	if !caller.CanModerate {
		return store.Board{}, domainError(http.StatusForbidden, "FORBIDDEN", "moderation capability required", nil)
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return store.Board{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	accessType := strings.TrimSpace(input.AccessType)
	if accessType == "" {
		accessType = "public"
	}
	if _, ok := allowedAccessTypes[accessType]; !ok {
		return store.Board{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid access type", nil)
	}

	board := store.Board{
		ID:                 util.NewID("brd"),
		Name:               name,
		Description:        strings.TrimSpace(input.Description),
		IsPublic:           accessType == "public",
		AccessType:         accessType,
		PinnedAnnouncement: strings.TrimSpace(input.PinnedAnnouncement),
		DisplayOrder:       input.DisplayOrder,
		CreatedBy:          caller.ID,
	}
	if err := s.store.InsertBoard(ctx, board); err != nil {
		return store.Board{}, err
	}
	return s.store.GetBoard(ctx, board.ID)
}

func (s *Service) ArchiveBoard(ctx context.Context, caller Caller, boardID string, archived bool) (store.Board, error) {
	if !caller.CanModerate {
		return store.Board{}, domainError(http.StatusForbidden, "FORBIDDEN", "moderation capability required", nil)
	}
	changed, err := s.store.SetBoardArchived(ctx, boardID, archived)
	if err != nil {
		return store.Board{}, err
	}
	if !changed {
		return store.Board{}, sql.ErrNoRows
	}
	return s.store.GetBoard(ctx, boardID)
}

func (s *Service) ListThreads(ctx context.Context, caller Caller, boardID string) ([]store.Thread, error) {
	board, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if !canSeeBoard(caller, board) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "no access to this board", nil)
	}
	return s.store.ListBoardThreads(ctx, boardID)
}

// CreateThread creates the thread and its first message as one atomic unit;
// a thread is never observable without content.
func (s *Service) CreateThread(ctx context.Context, caller Caller, boardID string, input CreateThreadInput) (store.Thread, store.Message, error) {
	board, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return store.Thread{}, store.Message{}, err
	}
	if board.ArchivedAt != nil {
		return store.Thread{}, store.Message{}, sql.ErrNoRows
	}
	if !canSeeBoard(caller, board) {
		return store.Thread{}, store.Message{}, domainError(http.StatusForbidden, "FORBIDDEN", "no access to this board", nil)
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return store.Thread{}, store.Message{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return store.Thread{}, store.Message{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "content is required", nil)
	}

	thread := store.Thread{
		ID:        util.NewID("thr"),
		BoardID:   board.ID,
		Title:     title,
		CreatedBy: caller.ID,
	}
	message := store.Message{
		ID:          util.NewID("msg"),
		AuthorID:    caller.ID,
		AuthorName:  caller.Name,
		Content:     content,
		ContentHTML: content,
	}
	thread, message, err = s.store.CreateThreadWithFirstMessage(ctx, thread, message)
	if err != nil {
		return store.Thread{}, store.Message{}, err
	}

	s.fanOut(ctx, board.ID, thread.ID, message)
	return thread, message, nil
}

// CreateMessage posts into a thread. The lock binds non-moderators only;
// archived threads refuse new messages from everyone.
func (s *Service) CreateMessage(ctx context.Context, caller Caller, threadID string, input CreateMessageInput) (store.Message, error) {
	thread, err := s.store.GetThread(ctx, threadID)
	if err != nil {
		return store.Message{}, err
	}
	board, err := s.store.GetBoard(ctx, thread.BoardID)
	if err != nil {
		return store.Message{}, err
	}
	if !canSeeBoard(caller, board) {
		return store.Message{}, domainError(http.StatusForbidden, "FORBIDDEN", "no access to this board", nil)
	}
	if thread.ArchivedAt != nil {
		return store.Message{}, domainError(http.StatusForbidden, "FORBIDDEN", "thread is archived", nil)
	}
	if thread.IsLocked && !caller.CanModerate {
		return store.Message{}, domainError(http.StatusForbidden, "FORBIDDEN", "thread is locked", nil)
	}

	content := strings.TrimSpace(input.Content)
	if content == "" {
		return store.Message{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "content is required", nil)
	}

	var replyTo *string
	if replyToID := strings.TrimSpace(input.ReplyToID); replyToID != "" {
		parent, err := s.store.GetMessage(ctx, replyToID)
		if err != nil {
			return store.Message{}, err
		}
		if parent.ThreadID != threadID {
			return store.Message{}, sql.ErrNoRows
		}
		replyTo = &parent.ID
	}

	message, err := s.store.InsertMessage(ctx, store.Message{
		ID:          util.NewID("msg"),
		ThreadID:    threadID,
		AuthorID:    caller.ID,
		AuthorName:  caller.Name,
		Content:     content,
		ContentHTML: content,
		ReplyToID:   replyTo,
	})
	if err != nil {
		return store.Message{}, err
	}

	s.fanOut(ctx, board.ID, threadID, message)
	return message, nil
}

// fanOut records one notification row per in-app subscriber of the board
// and pushes a live badge event. It runs after the message committed and is
// best-effort: a subscriber's failure is logged, never propagated, so the
// primary write is never lost to a secondary side effect. Email delivery is
// the external collaborator's job; it reads the same preference rows.
func (s *Service) fanOut(ctx context.Context, boardID, threadID string, message store.Message) {
	subscribers, err := s.store.ListBoardSubscribers(ctx, boardID)
	if err != nil {
		log.Printf("notification fan-out: list subscribers for %s: %v", boardID, err)
		return
	}
	for _, subscriber := range subscribers {
		if subscriber.MemberID == message.AuthorID || !subscriber.InAppNotifications {
			continue
		}
		if err := s.store.InsertNotification(ctx, store.Notification{
			MemberID:  subscriber.MemberID,
			BoardID:   boardID,
			ThreadID:  threadID,
			MessageID: message.ID,
		}); err != nil {
			log.Printf("notification fan-out: insert for %s: %v", subscriber.MemberID, err)
			continue
		}
		if s.hub != nil {
			s.hub.Push(subscriber.MemberID, notify.Event{
				Type:      notify.EventNewMessage,
				BoardID:   boardID,
				ThreadID:  threadID,
				MessageID: message.ID,
			})
		}
	}
}

// ThreadMessages returns the thread's full reply forest with reaction
// rollups, tombstones included but stripped of content.
func (s *Service) ThreadMessages(ctx context.Context, caller Caller, threadID string) (ThreadView, error) {
	thread, err := s.store.GetThread(ctx, threadID)
	if err != nil {
		return ThreadView{}, err
	}
	board, err := s.store.GetBoard(ctx, thread.BoardID)
	if err != nil {
		return ThreadView{}, err
	}
	if !canSeeBoard(caller, board) {
		return ThreadView{}, domainError(http.StatusForbidden, "FORBIDDEN", "no access to this board", nil)
	}

	messages, err := s.store.ListThreadMessages(ctx, threadID)
	if err != nil {
		return ThreadView{}, err
	}
	messageIDs := make([]string, 0, len(messages))
	for _, message := range messages {
		messageIDs = append(messageIDs, message.ID)
	}
	reactions, err := s.store.ListMessageReactions(ctx, messageIDs)
	if err != nil {
		return ThreadView{}, err
	}
	grouped := groupReactions(reactions)

	forest := replytree.Build(messages)
	views := make([]MessageView, 0, len(forest))
	for _, node := range forest {
		views = append(views, renderNode(node, grouped, caller.ID))
	}
	return ThreadView{Thread: thread, Messages: views}, nil
}

// groupReactions maps message id to its raw reaction rows.
func groupReactions(reactions []store.Reaction) map[string][]store.Reaction {
	grouped := make(map[string][]store.Reaction)
	for _, reaction := range reactions {
		grouped[reaction.MessageID] = append(grouped[reaction.MessageID], reaction)
	}
	return grouped
}

// summarizeReactions derives per-type counts and the viewer's own state from
// the full reaction list. Recomputed on every read; reactions can be toggled
// at any moment by any viewer.
func summarizeReactions(reactions []store.Reaction, viewerID string) []ReactionSummary {
	summaries := make([]ReactionSummary, 0, len(reactionTypes))
	for _, reactionType := range reactionTypes {
		summary := ReactionSummary{Type: reactionType}
		for _, reaction := range reactions {
			if reaction.ReactionType != reactionType {
				continue
			}
			summary.Count++
			if reaction.MemberID == viewerID {
				summary.Reacted = true
			}
		}
		if summary.Count > 0 {
			summaries = append(summaries, summary)
		}
	}
	return summaries
}

func renderNode(node *replytree.Node, grouped map[string][]store.Reaction, viewerID string) MessageView {
	message := node.Message
	view := MessageView{
		ID:         message.ID,
		AuthorID:   message.AuthorID,
		AuthorName: message.AuthorName,
		ReplyToID:  message.ReplyToID,
		IsDeleted:  message.IsDeleted,
		EditedAt:   message.EditedAt,
		CreatedAt:  message.CreatedAt,
		ReplyCount: node.ReplyCount,
		Reactions:  summarizeReactions(grouped[message.ID], viewerID),
		Replies:    make([]MessageView, 0, len(node.Replies)),
	}
	if !message.IsDeleted {
		view.Content = message.Content
	}
	for _, reply := range node.Replies {
		view.Replies = append(view.Replies, renderNode(reply, grouped, viewerID))
	}
	return view
}

// UpdateMessage lets the original author revise content. created_at and the
// reply target are immutable; edited_at marks the revision.
func (s *Service) UpdateMessage(ctx context.Context, caller Caller, messageID, content string) (store.Message, error) {
	message, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return store.Message{}, err
	}
	if message.IsDeleted {
		return store.Message{}, sql.ErrNoRows
	}
	if message.AuthorID != caller.ID {
		return store.Message{}, domainError(http.StatusForbidden, "FORBIDDEN", "only the author can edit a message", nil)
	}
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return store.Message{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "content is required", nil)
	}
	changed, err := s.store.UpdateMessageContent(ctx, messageID, trimmed, trimmed)
	if err != nil {
		return store.Message{}, err
	}
	if !changed {
		return store.Message{}, sql.ErrNoRows
	}
	return s.store.GetMessage(ctx, messageID)
}

// DeleteMessage tombstones a message. The author or a moderator may delete;
// replies and reactions stay attached and the row is never purged.
func (s *Service) DeleteMessage(ctx context.Context, caller Caller, messageID string) error {
	message, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if message.AuthorID != caller.ID && !caller.CanModerate {
		return domainError(http.StatusForbidden, "FORBIDDEN", "only the author or a moderator can delete a message", nil)
	}
	if message.IsDeleted {
		return nil
	}
	_, err = s.store.SoftDeleteMessage(ctx, messageID, message.ThreadID)
	return err
}

// checkMessageBoardAccess resolves the board a message lives on and applies
// the caller's access policy. Knowing a message id is not enough to touch a
// message on a restricted board.
func (s *Service) checkMessageBoardAccess(ctx context.Context, caller Caller, message store.Message) error {
	thread, err := s.store.GetThread(ctx, message.ThreadID)
	if err != nil {
		return err
	}
	board, err := s.store.GetBoard(ctx, thread.BoardID)
	if err != nil {
		return err
	}
	if !canSeeBoard(caller, board) {
		return domainError(http.StatusForbidden, "FORBIDDEN", "no access to this board", nil)
	}
	return nil
}

// AddReaction is idempotent: repeating an identical reaction leaves exactly
// one row and succeeds.
func (s *Service) AddReaction(ctx context.Context, caller Caller, messageID, reactionType string) error {
	if _, ok := allowedReactionTypes[reactionType]; !ok {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid reaction type", nil)
	}
	message, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if err := s.checkMessageBoardAccess(ctx, caller, message); err != nil {
		return err
	}
	if message.IsDeleted {
		return sql.ErrNoRows
	}
	_, err = s.store.AddReaction(ctx, store.Reaction{
		MessageID:    messageID,
		MemberID:     caller.ID,
		ReactionType: reactionType,
	})
	return err
}

// RemoveReaction deletes the caller's reaction; removing one that does not
// exist is a no-op.
func (s *Service) RemoveReaction(ctx context.Context, caller Caller, messageID, reactionType string) error {
	if _, ok := allowedReactionTypes[reactionType]; !ok {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid reaction type", nil)
	}
	message, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if err := s.checkMessageBoardAccess(ctx, caller, message); err != nil {
		return err
	}
	return s.store.RemoveReaction(ctx, store.Reaction{
		MessageID:    messageID,
		MemberID:     caller.ID,
		ReactionType: reactionType,
	})
}

func (s *Service) SetThreadLocked(ctx context.Context, caller Caller, threadID string, locked bool) (store.Thread, error) {
	if !caller.CanModerate {
		return store.Thread{}, domainError(http.StatusForbidden, "FORBIDDEN", "moderation capability required", nil)
	}
	changed, err := s.store.SetThreadLocked(ctx, threadID, locked)
	if err != nil {
		return store.Thread{}, err
	}
	if !changed {
		return store.Thread{}, sql.ErrNoRows
	}
	return s.store.GetThread(ctx, threadID)
}

func (s *Service) SetThreadPinned(ctx context.Context, caller Caller, threadID string, pinned bool) (store.Thread, error) {
	if !caller.CanModerate {
		return store.Thread{}, domainError(http.StatusForbidden, "FORBIDDEN", "moderation capability required", nil)
	}
	changed, err := s.store.SetThreadPinned(ctx, threadID, pinned)
	if err != nil {
		return store.Thread{}, err
	}
	if !changed {
		return store.Thread{}, sql.ErrNoRows
	}
	return s.store.GetThread(ctx, threadID)
}

func (s *Service) ArchiveThread(ctx context.Context, caller Caller, threadID string, archived bool) (store.Thread, error) {
	if !caller.CanModerate {
		return store.Thread{}, domainError(http.StatusForbidden, "FORBIDDEN", "moderation capability required", nil)
	}
	changed, err := s.store.SetThreadArchived(ctx, threadID, archived)
	if err != nil {
		return store.Thread{}, err
	}
	if !changed {
		return store.Thread{}, sql.ErrNoRows
	}
	return s.store.GetThread(ctx, threadID)
}

// CreateReport appends to the moderation queue. Repeated reports of the same
// message are recorded independently; resolution is manual and external.
func (s *Service) CreateReport(ctx context.Context, caller Caller, messageID, reason string) error {
	trimmed := strings.TrimSpace(reason)
	if trimmed == "" {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "reason is required", nil)
	}
	message, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if err := s.checkMessageBoardAccess(ctx, caller, message); err != nil {
		return err
	}
	return s.store.InsertReport(ctx, store.Report{
		MessageID:    messageID,
		ReportedBy:   caller.ID,
		ReporterName: caller.Name,
		Reason:       trimmed,
	})
}

func (s *Service) ListReports(ctx context.Context, caller Caller, limit int) ([]store.Report, error) {
	if !caller.CanModerate {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "moderation capability required", nil)
	}
	return s.store.ListReports(ctx, limit)
}

// MarkThreadSeen advances the caller's watermark to now and returns how many
// messages the advance newly covered. Calling again with no new messages
// returns 0.
func (s *Service) MarkThreadSeen(ctx context.Context, caller Caller, threadID string) (int, error) {
	thread, err := s.store.GetThread(ctx, threadID)
	if err != nil {
		return 0, err
	}
	board, err := s.store.GetBoard(ctx, thread.BoardID)
	if err != nil {
		return 0, err
	}
	if !canSeeBoard(caller, board) {
		return 0, domainError(http.StatusForbidden, "FORBIDDEN", "no access to this board", nil)
	}

	previous, err := s.cursors.Get(ctx, caller.ID, threadID)
	if err != nil {
		return 0, err
	}
	// Message timestamps come from the database clock. When it runs ahead of
	// this process, a watermark at local now would leave the newest messages
	// uncounted, so the watermark never trails the thread's last activity.
	now := time.Now().UTC()
	if thread.LastMessageAt != nil && thread.LastMessageAt.After(now) {
		now = *thread.LastMessageAt
	}
	newlySeen, err := s.store.CountMessagesInWindow(ctx, threadID, previous, now)
	if err != nil {
		return 0, err
	}
	if err := s.cursors.Advance(ctx, caller.ID, threadID, now); err != nil {
		return 0, err
	}
	return newlySeen, nil
}

// UnseenCount counts non-deleted messages behind the caller's watermark for
// one thread, or summed across every thread the caller can see when
// threadID is empty. A never-opened thread counts in full.
func (s *Service) UnseenCount(ctx context.Context, caller Caller, threadID string) (int, error) {
	if threadID != "" {
		thread, err := s.store.GetThread(ctx, threadID)
		if err != nil {
			return 0, err
		}
		board, err := s.store.GetBoard(ctx, thread.BoardID)
		if err != nil {
			return 0, err
		}
		if !canSeeBoard(caller, board) {
			return 0, domainError(http.StatusForbidden, "FORBIDDEN", "no access to this board", nil)
		}
		watermark, err := s.cursors.Get(ctx, caller.ID, threadID)
		if err != nil {
			return 0, err
		}
		return s.store.CountMessagesAfter(ctx, threadID, watermark)
	}

	boards, err := s.ListBoards(ctx, caller)
	if err != nil {
		return 0, err
	}
	boardIDs := make([]string, 0, len(boards))
	for _, board := range boards {
		boardIDs = append(boardIDs, board.ID)
	}
	threads, err := s.store.ListActiveThreads(ctx, boardIDs)
	if err != nil {
		return 0, err
	}
	watermarks, err := s.cursors.All(ctx, caller.ID)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, thread := range threads {
		watermark, opened := watermarks[thread.ID]
		if !opened {
			total += thread.MessageCount
			continue
		}
		if thread.LastMessageAt == nil || !thread.LastMessageAt.After(watermark) {
			continue
		}
		count, err := s.store.CountMessagesAfter(ctx, thread.ID, watermark)
		if err != nil {
			return 0, err
		}
		total += count
	}
	return total, nil
}

func (s *Service) Notifications(ctx context.Context, caller Caller, limit int) ([]store.Notification, error) {
	return s.store.ListNotifications(ctx, caller.ID, limit)
}

func (s *Service) UnreadNotificationCount(ctx context.Context, caller Caller) (int, error) {
	return s.store.UnreadNotificationCount(ctx, caller.ID)
}

func (s *Service) MarkNotificationRead(ctx context.Context, caller Caller, notificationID int64) error {
	changed, err := s.store.MarkNotificationRead(ctx, notificationID, caller.ID)
	if err != nil {
		return err
	}
	if !changed {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Service) MarkAllNotificationsRead(ctx context.Context, caller Caller) error {
	return s.store.MarkAllNotificationsRead(ctx, caller.ID)
}

func (s *Service) NotificationPreferences(ctx context.Context, caller Caller, boardID string) (store.NotificationPreference, error) {
	if _, err := s.store.GetBoard(ctx, boardID); err != nil {
		return store.NotificationPreference{}, err
	}
	return s.store.GetNotificationPreference(ctx, caller.ID, boardID)
}

func (s *Service) UpdateNotificationPreferences(ctx context.Context, caller Caller, boardID string, input PreferencesInput) (store.NotificationPreference, error) {
	if _, err := s.store.GetBoard(ctx, boardID); err != nil {
		return store.NotificationPreference{}, err
	}
	if err := s.store.UpsertNotificationPreference(ctx, store.NotificationPreference{
		MemberID:           caller.ID,
		BoardID:            boardID,
		EmailNotifications: input.EmailNotifications,
		InAppNotifications: input.InAppNotifications,
	}); err != nil {
		return store.NotificationPreference{}, err
	}
	return s.store.GetNotificationPreference(ctx, caller.ID, boardID)
}
