package model

import "time"

// Notification is a message addressed to a shop.  ReadAt is nil until the
// shop marks it read.
type Notification struct {
	ID        string     // notifications.id
	ShopID    string     // notifications.shop_id
	Message   string     // notifications.message
	ReadAt    *time.Time // notifications.read_at (nullable)
	CreatedAt time.Time  // notifications.created_at
}
