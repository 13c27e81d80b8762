package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/courier-dispatch/pkg/db/models"
	pkgerrors "github.com/angelmondragon/courier-dispatch/pkg/errors"
	"github.com/angelmondragon/courier-dispatch/pkg/pagination"
)

// Service is the recipient-facing inbox: customers, couriers and restaurant
// staff read the notifications the dispatch flow recorded for them.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID, orderID *uuid.UUID) (int64, error)
	Delete(ctx context.Context, userID, notificationID uuid.UUID) error
}

// ListParams selects one page of a recipient's inbox.
type ListParams struct {
	UserID     uuid.UUID
	OrderID    *uuid.UUID
	Limit      int
	Cursor     string
	UnreadOnly bool
}

// ListResult is one page plus the unread total for the same filter.
type ListResult struct {
	Items       []models.Notification
	Cursor      string
	UnreadCount int64
}

type service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func requireIDs(ids map[string]uuid.UUID) error {
	for name, id := range ids {
		if id == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, name+" required")
		}
	}
	return nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if err := requireIDs(map[string]uuid.UUID{"user id": params.UserID}); err != nil {
		return nil, err
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	filter := inboxFilter{UserID: params.UserID, OrderID: params.OrderID, UnreadOnly: params.UnreadOnly}
	rows, next, err := s.repo.List(ctx, filter, cursor, params.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}
	unread, err := s.repo.CountUnread(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread notifications")
	}

	result := &ListResult{Items: rows, UnreadCount: unread}
	if result.Items == nil {
		result.Items = []models.Notification{}
	}
	if next != nil {
		result.Cursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}

// MarkRead is idempotent for the owner and NOT_FOUND for anyone else.
func (s *service) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	if err := requireIDs(map[string]uuid.UUID{"user id": userID, "notification id": notificationID}); err != nil {
		return err
	}
	found, err := s.repo.MarkRead(ctx, userID, notificationID, s.now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

// MarkAllRead clears the inbox, or only one order's thread when orderID is set.
func (s *service) MarkAllRead(ctx context.Context, userID uuid.UUID, orderID *uuid.UUID) (int64, error) {
	if err := requireIDs(map[string]uuid.UUID{"user id": userID}); err != nil {
		return 0, err
	}
	count, err := s.repo.MarkAllRead(ctx, inboxFilter{UserID: userID, OrderID: orderID}, s.now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return count, nil
}

func (s *service) Delete(ctx context.Context, userID, notificationID uuid.UUID) error {
	if err := requireIDs(map[string]uuid.UUID{"user id": userID, "notification id": notificationID}); err != nil {
		return err
	}
	deleted, err := s.repo.Delete(ctx, userID, notificationID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete notification")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}
