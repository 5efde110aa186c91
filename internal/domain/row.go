package domain

import "time"

// Tag is the tax-relevant category of a transaction.
type Tag string

const (
	TagTransfer Tag = "Transfer"
	TagTrade    Tag = "Trade"
	TagApproval Tag = "Approval"
	TagWrap     Tag = "Wrap"
	TagContract Tag = "Contract"
	TagFailed   Tag = "Failed"
)

// Row is one output line of the export before serialization. An empty field
// means the column does not apply to this row.
type Row struct {
	Date             string `json:"date"`
	ReceivedAmount   string `json:"received_amount"`
	ReceivedCurrency string `json:"received_currency"`
	SentAmount       string `json:"sent_amount"`
	SentCurrency     string `json:"sent_currency"`
	FeeAmount        string `json:"fee_amount"`
	FeeCurrency      string `json:"fee_currency"`
	Tag              Tag    `json:"tag"`
}

// ExportRun records one completed export.
type ExportRun struct {
	ID           string    `json:"id"`
	ChainID      string    `json:"chain_id"`
	ChainName    string    `json:"chain_name"`
	Address      string    `json:"address"`
	Transactions int       `json:"transactions"`
	Rows         int       `json:"rows"`
	Partial      bool      `json:"partial"`
	Filename     string    `json:"filename"`
	CreatedAt    time.Time `json:"created_at"`
}
