package sync

// Envelope is the inbound webhook payload shape.  One delivery can carry
// change events for multiple realms.
type Envelope struct {
	EventNotifications []EventNotification `json:"eventNotifications" validate:"required"`
}

type EventNotification struct {
	RealmID         string          `json:"realmId" validate:"required"`
	DataChangeEvent DataChangeEvent `json:"dataChangeEvent"`
}

type DataChangeEvent struct {
	Entities []EntityNotification `json:"entities"`
}

type EntityNotification struct {
	Name        string `json:"name"`
	ID          string `json:"id"`
	Operation   string `json:"operation"`
	LastUpdated string `json:"lastUpdated,omitempty"`
}
