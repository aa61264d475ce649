package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Stock ledger events
	EventStockReceived   = "stock.received"
	EventStockDisposed   = "stock.disposed"
	EventStockShipped    = "stock.shipped"
	EventLotExpired      = "stock.lot.expired"
	EventProductDepleted = "stock.product.depleted"

	// Catalog events consumed by the ledger
	EventProductUpserted  = "catalog.product.upserted"
	EventProductDeleted   = "catalog.product.deleted"
	EventSupplierUpserted = "catalog.supplier.upserted"
	EventBranchUpserted   = "catalog.branch.upserted"
)

// Exchange names
const (
	ExchangeStockEvents   = "stock.events"
	ExchangeCatalogEvents = "catalog.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Stock Events

// LotMovement is one lot touched by a ledger operation
type LotMovement struct {
	LotID      string    `json:"lot_id"`
	Quantity   int       `json:"quantity"`
	ExpiryDate time.Time `json:"expiry_date"`
}

// StockReceivedEvent is published after a receipt is committed
type StockReceivedEvent struct {
	ReceiptID     string        `json:"receipt_id"`
	SupplierID    string        `json:"supplier_id"`
	InvoiceNumber string        `json:"invoice_number"`
	Lots          []LotReceived `json:"lots"`
	PerformedBy   string        `json:"performed_by,omitempty"`
}

// LotReceived is one line of a receipt as it landed in the lot store
type LotReceived struct {
	LotID     string `json:"lot_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Merged    bool   `json:"merged"`
}

// StockDisposedEvent is published after expired or defective stock is written off
type StockDisposedEvent struct {
	ProductID         string        `json:"product_id"`
	Cause             string        `json:"cause"`
	Quantity          int           `json:"quantity"`
	Lots              []LotMovement `json:"lots"`
	RemainingQuantity int           `json:"remaining_quantity"`
	PerformedBy       string        `json:"performed_by,omitempty"`
}

// StockShippedEvent is published after an outbound transaction is committed
type StockShippedEvent struct {
	TransactionID string            `json:"transaction_id"`
	BranchID      string            `json:"branch_id"`
	InvoiceNumber string            `json:"invoice_number"`
	Lines         []ShipmentLineOut `json:"lines"`
	PerformedBy   string            `json:"performed_by,omitempty"`
}

// ShipmentLineOut is one shipped product with the lots it was drawn from
type ShipmentLineOut struct {
	ProductID         string        `json:"product_id"`
	Quantity          int           `json:"quantity"`
	Lots              []LotMovement `json:"lots"`
	RemainingQuantity int           `json:"remaining_quantity"`
}

// LotExpiredEvent is published by the expiry scanner for every expired lot still holding stock
type LotExpiredEvent struct {
	LotID             string    `json:"lot_id"`
	ProductID         string    `json:"product_id"`
	ProductCode       string    `json:"product_code"`
	ExpiryDate        time.Time `json:"expiry_date"`
	RemainingQuantity int       `json:"remaining_quantity"`
}

// ProductDepletedEvent is published when a product's remaining stock reaches zero
type ProductDepletedEvent struct {
	ProductID string `json:"product_id"`
}

// Catalog Events

// ProductUpsertedEvent carries a product definition from the catalog
type ProductUpsertedEvent struct {
	ProductID string  `json:"product_id"`
	Code      string  `json:"code"`
	Barcode   *string `json:"barcode,omitempty"`
	Name      string  `json:"name"`
	Category  *string `json:"category,omitempty"`
	Brand     *string `json:"brand,omitempty"`
	UnitType  *string `json:"unit_type,omitempty"`
}

// ProductDeletedEvent is published by the catalog when a product is retired
type ProductDeletedEvent struct {
	ProductID string `json:"product_id"`
}

// SupplierUpsertedEvent carries a supplier definition from the catalog
type SupplierUpsertedEvent struct {
	SupplierID    string  `json:"supplier_id"`
	Name          string  `json:"name"`
	ContactPerson *string `json:"contact_person,omitempty"`
	Phone         *string `json:"phone,omitempty"`
	Address       *string `json:"address,omitempty"`
}

// BranchUpsertedEvent carries a branch definition from the catalog
type BranchUpsertedEvent struct {
	BranchID string  `json:"branch_id"`
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	Address  *string `json:"address,omitempty"`
}
