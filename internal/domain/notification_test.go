package domain

import (
	"testing"
	"time"
)

func TestNotificationLog_Migration_UniqueKey(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&NotificationLog{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()
	if !m.HasTable(&NotificationLog{}) {
		t.Fatalf("expected table %q to exist", NotificationLog{}.TableName())
	}
	if !m.HasIndex(&NotificationLog{}, "ux_notification_booking_user_event") {
		t.Fatalf("expected composite index ux_notification_booking_user_event")
	}

	now := time.Now().UTC()
	first := &NotificationLog{ID: "n1", BookingID: 1, UserID: 10, Event: EventBookingConfirmed, CreatedAt: now}
	if err := db.Create(first).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}

	// Same user, other event is allowed.
	other := &NotificationLog{ID: "n2", BookingID: 1, UserID: 10, Event: EventBookingCancelled, CreatedAt: now}
	if err := db.Create(other).Error; err != nil {
		t.Fatalf("insert other event: %v", err)
	}

	dup := &NotificationLog{ID: "n3", BookingID: 1, UserID: 10, Event: EventBookingConfirmed, CreatedAt: now}
	if err := db.Create(dup).Error; err == nil {
		t.Fatalf("expected UNIQUE violation on (booking_id, user_id, event)")
	}

	// NOT NULL on event.
	if err := db.Exec(`INSERT INTO notification_log (id, booking_id, user_id, event, created_at) VALUES (?,?,?,?,?)`,
		"n4", 2, 10, nil, now).Error; err == nil {
		t.Fatalf("expected NOT NULL violation on event")
	}
}
