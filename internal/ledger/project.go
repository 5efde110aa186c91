package ledger

import (
	"fmt"
	"strings"
	"time"

	"walletcsv/internal/domain"
)

// Projector expands canonical transactions into export rows for one wallet.
type Projector struct {
	chain  domain.Chain
	wallet string
}

// NewProjector returns a projector for wallet on chain.
func NewProjector(chain domain.Chain, wallet string) (*Projector, error) {
	if err := ValidateChain(chain); err != nil {
		return nil, err
	}
	return &Projector{chain: chain, wallet: strings.ToLower(strings.TrimSpace(wallet))}, nil
}

// Project returns the rows for tx. Inbound and outbound movements are paired by
// index, giving max(len(in), len(out), 1) rows; the fee sits on the first row
// only. On a malformed amount no rows are returned.
func (p *Projector) Project(tx domain.Transaction) ([]domain.Row, error) {
	tag := Classify(tx)
	date := FormatDate(tx.Timestamp)
	isSender := strings.EqualFold(tx.From, p.wallet)

	fee := "0"
	feeCurrency := ""
	if isSender {
		var err error
		fee, err = Fee(tx.GasPrice, tx.GasUsed, p.chain.Decimals)
		if err != nil {
			return nil, fmt.Errorf("tx %s fee: %w", tx.Hash, err)
		}
		feeCurrency = p.chain.Symbol
	}

	if len(tx.Movements) == 0 {
		return []domain.Row{{
			Date:        date,
			FeeAmount:   fee,
			FeeCurrency: feeCurrency,
			Tag:         tag,
		}}, nil
	}

	ins := tx.Inbound()
	outs := tx.Outbound()
	n := max(len(ins), len(outs), 1)

	rows := make([]domain.Row, 0, n)
	for i := range n {
		row := domain.Row{Date: date, FeeAmount: "0", Tag: tag}
		if i < len(ins) {
			amount, err := FormatUnits(ins[i].Amount, ins[i].Decimals)
			if err != nil {
				return nil, fmt.Errorf("tx %s received %s: %w", tx.Hash, ins[i].Currency, err)
			}
			row.ReceivedAmount = amount
			row.ReceivedCurrency = ins[i].Currency
		}
		if i < len(outs) {
			amount, err := FormatUnits(outs[i].Amount, outs[i].Decimals)
			if err != nil {
				return nil, fmt.Errorf("tx %s sent %s: %w", tx.Hash, outs[i].Currency, err)
			}
			row.SentAmount = amount
			row.SentCurrency = outs[i].Currency
		}
		if i == 0 {
			row.FeeAmount = fee
			row.FeeCurrency = feeCurrency
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// FormatDate renders epoch seconds as M/D/YY H:MM in UTC.
func FormatDate(timestamp int64) string {
	t := time.Unix(timestamp, 0).UTC()
	return fmt.Sprintf("%d/%d/%02d %d:%02d", int(t.Month()), t.Day(), t.Year()%100, t.Hour(), t.Minute())
}
