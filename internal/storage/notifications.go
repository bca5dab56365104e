package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"bilancio/internal/core"
)

func (r *SQLiteRepository) InsertNotification(ctx context.Context, n core.Notification) (int64, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (user_id, type, message, is_read, created_at, related_entity_id, related_entity_type)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.UserID, string(n.Type), n.Message, boolToDB(n.IsRead), timeToDB(n.CreatedAt),
		nullIDToDB(n.RelatedEntityID), nullStringToDB(n.RelatedEntityType))
	if err != nil {
		return 0, fmt.Errorf("insert notification: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert notification id: %w", err)
	}
	return id, nil
}

// NotificationFilter narrows ListNotifications.
type NotificationFilter struct {
	IsRead *bool
	Limit  int
	Offset int
}

func (r *SQLiteRepository) ListNotifications(ctx context.Context, userID int64, f NotificationFilter) ([]core.Notification, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, user_id, type, message, is_read, created_at, related_entity_id, related_entity_type
		FROM notifications WHERE user_id = ?`)
	args := []any{userID}

	if f.IsRead != nil {
		sb.WriteString(` AND is_read = ?`)
		args = append(args, boolToDB(*f.IsRead))
	}
	sb.WriteString(` ORDER BY created_at DESC, id DESC`)
	if f.Limit > 0 {
		sb.WriteString(` LIMIT ? OFFSET ?`)
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []core.Notification
	for rows.Next() {
		var n core.Notification
		var typ, createdAt string
		var read int
		var relatedID sql.NullInt64
		var relatedType sql.NullString
		if err := rows.Scan(&n.ID, &n.UserID, &typ, &n.Message, &read, &createdAt, &relatedID, &relatedType); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		if n.CreatedAt, err = timeFromDB(createdAt); err != nil {
			return nil, err
		}
		n.Type = core.NotificationType(typ)
		n.IsRead = read != 0
		n.RelatedEntityID = relatedID.Int64
		n.RelatedEntityType = relatedType.String
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SetNotificationRead(ctx context.Context, id, userID int64, isRead bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = ? WHERE id = ? AND user_id = ?`,
		boolToDB(isRead), id, userID)
	if err != nil {
		return fmt.Errorf("set notification read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) MarkAllNotificationsRead(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE user_id = ? AND is_read = 0`, userID)
	if err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}
