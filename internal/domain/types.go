package domain

import "time"

// RealmID identifies one QuickBooks company ("realm").  All credentials
// and synced data are scoped by it.
type RealmID string

func (r RealmID) String() string {
	return string(r)
}

type EntityKind string

func (k EntityKind) String() string {
	return string(k)
}

const (
	EntityCustomer EntityKind = "Customer"
	EntityInvoice  EntityKind = "Invoice"
	EntityPayment  EntityKind = "Payment"
	EntityAccount  EntityKind = "Account"
	EntityVendor   EntityKind = "Vendor"
)

type Operation string

const (
	OperationCreate Operation = "Create"
	OperationUpdate Operation = "Update"
	OperationDelete Operation = "Delete"
	OperationMerge  Operation = "Merge"
)

// ConnectionRecord is the durable token state for one realm.  A refresh
// replaces the whole record - a reader must never observe a token/expiry
// pair that was not written together.
type ConnectionRecord struct {
	RealmID      RealmID
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	CompanyName  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// EntityChange is one entity-level change reported by a webhook
// notification.
type EntityChange struct {
	RealmID   RealmID
	Name      EntityKind
	ID        string
	Operation Operation
}
