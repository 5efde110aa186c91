package domain

// Direction tells whether a movement entered or left the queried wallet.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Movement is one directional, single-asset transfer observed within a transaction.
// Amount holds the raw base-unit integer as a decimal string.
type Movement struct {
	Direction Direction `json:"direction"`
	Amount    string    `json:"amount"`
	Currency  string    `json:"currency"`
	Decimals  int       `json:"decimals"`
}

// Transaction is the merged view of one on-chain transaction as it pertains to
// the queried wallet. Hash, From and To are lowercase.
type Transaction struct {
	Hash         string     `json:"hash"`
	Timestamp    int64      `json:"timestamp"`
	From         string     `json:"from"`
	To           string     `json:"to"`
	IsError      bool       `json:"is_error"`
	GasPrice     string     `json:"gas_price"`
	GasUsed      string     `json:"gas_used"`
	FunctionName string     `json:"function_name"`
	Input        string     `json:"input"`
	Movements    []Movement `json:"movements"`
}

// PlainInput is the call data of a value transfer that invoked no contract.
const PlainInput = "0x"

// Inbound returns the inbound movements in fold order.
func (t Transaction) Inbound() []Movement {
	return t.filter(DirectionIn)
}

// Outbound returns the outbound movements in fold order.
func (t Transaction) Outbound() []Movement {
	return t.filter(DirectionOut)
}

func (t Transaction) filter(direction Direction) []Movement {
	var out []Movement
	for _, movement := range t.Movements {
		if movement.Direction == direction {
			out = append(out, movement)
		}
	}
	return out
}
