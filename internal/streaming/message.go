package streaming

import (
	"encoding/json"
	"errors"

	"walletcsv/internal/domain"
)

type MessageType string

const (
	MessageTypeExport      MessageType = "export"
	MessageTypeTransaction MessageType = "transaction"
)

// Message is the broker payload for export events. An export message
// summarises one run; each transaction message carries one canonical
// transaction of that run.
type Message struct {
	Type      MessageType `json:"type"`
	ChainID   string      `json:"chain_id"`
	ChainName string      `json:"chain_name,omitempty"`
	RunID     string      `json:"run_id,omitempty"`
	TraceID   string      `json:"trace_id,omitempty"`
	Address   string      `json:"address"`

	Transactions int    `json:"transactions,omitempty"`
	Rows         int    `json:"rows,omitempty"`
	Partial      bool   `json:"partial,omitempty"`
	Filename     string `json:"filename,omitempty"`

	TxHash       string            `json:"tx_hash,omitempty"`
	Timestamp    int64             `json:"timestamp,omitempty"`
	From         string            `json:"from,omitempty"`
	To           string            `json:"to,omitempty"`
	IsError      bool              `json:"is_error,omitempty"`
	GasPrice     string            `json:"gas_price,omitempty"`
	GasUsed      string            `json:"gas_used,omitempty"`
	FunctionName string            `json:"function_name,omitempty"`
	Input        string            `json:"input,omitempty"`
	Tag          domain.Tag        `json:"tag,omitempty"`
	Movements    []domain.Movement `json:"movements,omitempty"`
}

func Encode(msg Message) ([]byte, error) {
	if err := validate(msg); err != nil {
		return nil, err
	}
	return json.Marshal(msg)
}

func Decode(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if err := validate(msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

func validate(msg Message) error {
	switch msg.Type {
	case MessageTypeExport:
	case MessageTypeTransaction:
		if msg.TxHash == "" {
			return errors.New("tx_hash is required for transaction messages")
		}
	case "":
		return errors.New("message type is required")
	default:
		return errors.New("unknown message type " + string(msg.Type))
	}
	if msg.ChainID == "" {
		return errors.New("chain_id is required")
	}
	if msg.Address == "" {
		return errors.New("address is required")
	}
	return nil
}

// TransactionMessage wraps tx for publishing.
func TransactionMessage(run domain.ExportRun, tx domain.Transaction, tag domain.Tag) Message {
	return Message{
		Type:         MessageTypeTransaction,
		ChainID:      run.ChainID,
		ChainName:    run.ChainName,
		RunID:        run.ID,
		Address:      run.Address,
		TxHash:       tx.Hash,
		Timestamp:    tx.Timestamp,
		From:         tx.From,
		To:           tx.To,
		IsError:      tx.IsError,
		GasPrice:     tx.GasPrice,
		GasUsed:      tx.GasUsed,
		FunctionName: tx.FunctionName,
		Input:        tx.Input,
		Tag:          tag,
		Movements:    tx.Movements,
	}
}

// ExportMessage summarises run.
func ExportMessage(run domain.ExportRun) Message {
	return Message{
		Type:         MessageTypeExport,
		ChainID:      run.ChainID,
		ChainName:    run.ChainName,
		RunID:        run.ID,
		Address:      run.Address,
		Transactions: run.Transactions,
		Rows:         run.Rows,
		Partial:      run.Partial,
		Filename:     run.Filename,
	}
}

// Transaction rebuilds the canonical transaction carried by a transaction
// message.
func (m Message) Transaction() domain.Transaction {
	return domain.Transaction{
		Hash:         m.TxHash,
		Timestamp:    m.Timestamp,
		From:         m.From,
		To:           m.To,
		IsError:      m.IsError,
		GasPrice:     m.GasPrice,
		GasUsed:      m.GasUsed,
		FunctionName: m.FunctionName,
		Input:        m.Input,
		Movements:    m.Movements,
	}
}
