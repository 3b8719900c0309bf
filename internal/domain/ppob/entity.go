package ppob

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Transaction lifecycle states. A transaction only ever moves forward;
// REVERSED is terminal and implies the compensating credit was attempted.
const (
	StatusInquiry   = "INQUIRY"
	StatusDebited   = "DEBITED"
	StatusSubmitted = "SUBMITTED"
	StatusSuccess   = "SUCCESS"
	StatusFailed    = "FAILED"
	StatusReversed  = "REVERSED"
)

const (
	ProductTypePrepaid  = "prepaid"
	ProductTypePostpaid = "postpaid"
)

// Transaction is one provider transaction row, upserted on ref_id
type Transaction struct {
	TxID          uuid.UUID       `db:"tx_id" json:"tx_id"`
	RefID         string          `db:"ref_id" json:"ref_id"`
	UserID        uuid.UUID       `db:"user_id" json:"user_id"`
	AccountID     uuid.UUID       `db:"account_id" json:"account_id"`
	BuyerSKUCode  string          `db:"buyer_sku_code" json:"buyer_sku_code"`
	CustomerNo    string          `db:"customer_no" json:"customer_no"`
	ProductType   string          `db:"product_type" json:"product_type"`
	AmountNominal float64         `db:"amount_nominal" json:"amount_nominal"`
	Price         float64         `db:"price" json:"price"`
	Status        string          `db:"status" json:"status"`
	RC            string          `db:"rc" json:"rc"`
	Message       string          `db:"message" json:"message"`
	SN            string          `db:"sn" json:"sn"`
	Reversed      bool            `db:"reversed" json:"reversed"`
	RawRequest    json.RawMessage `db:"raw_request" json:"-"`
	RawResponse   json.RawMessage `db:"raw_response" json:"-"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// Product is one read-only catalog entry synced from the provider price list
type Product struct {
	BuyerSKUCode        string  `db:"buyer_sku_code" json:"buyer_sku_code"`
	ProductName         string  `db:"product_name" json:"product_name"`
	Category            string  `db:"category" json:"category"`
	Brand               string  `db:"brand" json:"brand"`
	Type                string  `db:"type" json:"type"`
	Price               float64 `db:"price" json:"price"`
	BuyerProductStatus  bool    `db:"buyer_product_status" json:"buyer_product_status"`
	SellerProductStatus bool    `db:"seller_product_status" json:"seller_product_status"`
}

// IsEMoney reports whether the product belongs to the e-money family, the
// only family for which a caller-chosen nominal amount is forwarded.
func (p *Product) IsEMoney() bool {
	for _, v := range []string{p.Category, p.Brand, p.Type} {
		if strings.EqualFold(strings.TrimSpace(v), "E-MONEY") {
			return true
		}
	}
	return false
}
