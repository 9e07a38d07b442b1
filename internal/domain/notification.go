package domain

import "time"

// Notification event names sent to booking parties.
const (
	EventBookingConfirmed = "booking_confirmed"
	EventBookingCancelled = "booking_cancelled"
)

// NotificationLog records that a booking notification has been issued to a
// user, keyed by (booking_id, user_id, event). The unique key makes a repeated
// status transition unable to notify the same user twice.
type NotificationLog struct {
	ID        string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	BookingID int64     `gorm:"not null;uniqueIndex:ux_notification_booking_user_event,priority:1"`
	UserID    int64     `gorm:"not null;uniqueIndex:ux_notification_booking_user_event,priority:2"`
	Event     string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_notification_booking_user_event,priority:3"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
}

// TableName implements the GORM tabler interface.
func (NotificationLog) TableName() string { return "notification_log" }
