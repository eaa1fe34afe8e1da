package model

import "time"

// Shop is the tenant root.  All tenant-owned rows reference Shop.ID and
// are removed together when a shop is deleted.
type Shop struct {
	ID           string    // shops.id
	Name         string    // shops.name
	Phone        string    // shops.phone
	Email        *string   // shops.email (nullable)
	LocationNote *string   // shops.location_note (nullable)
	CreatedAt    time.Time // shops.created_at
	UpdatedAt    time.Time // shops.updated_at
}

// DashboardCounts aggregates tenant activity for the dashboard summary.
type DashboardCounts struct {
	InventoryItems      int
	Dealers             int
	Consignments        int
	OverdueConsignments int
	UnreadNotifications int
}
