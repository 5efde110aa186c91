package application

import (
	"fmt"
	"strings"
	"time"

	"walletcsv/internal/domain"

	"github.com/shopspring/decimal"
)

const SearchPageSize = 50

const rowDateLayout = "1/2/06 15:04"

// SearchFilter narrows loaded rows. Empty fields do not constrain.
type SearchFilter struct {
	Query     string
	Tag       string
	Currency  string
	From      time.Time
	To        time.Time
	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal
	Offset    int
}

type SearchPage struct {
	Total  int          `json:"total"`
	Offset int          `json:"offset"`
	Rows   []domain.Row `json:"rows"`
	// Searched is the number of rows the filter was applied to.
	Searched int `json:"searched"`
}

// SearchRows applies filter to rows and returns one page of at most
// SearchPageSize matches starting at filter.Offset.
func SearchRows(rows []domain.Row, filter SearchFilter) SearchPage {
	query := strings.ToLower(strings.TrimSpace(filter.Query))
	var to time.Time
	if !filter.To.IsZero() {
		// An end date includes the whole day.
		to = filter.To.Truncate(24 * time.Hour).Add(24*time.Hour - time.Minute)
	}

	var matched []domain.Row
	for _, row := range rows {
		if filter.Tag != "" && !strings.EqualFold(string(row.Tag), strings.TrimSpace(filter.Tag)) {
			continue
		}
		if filter.Currency != "" &&
			!strings.EqualFold(row.ReceivedCurrency, filter.Currency) &&
			!strings.EqualFold(row.SentCurrency, filter.Currency) {
			continue
		}
		if !filter.From.IsZero() || !to.IsZero() {
			date, err := time.Parse(rowDateLayout, row.Date)
			if err != nil {
				continue
			}
			if !filter.From.IsZero() && date.Before(filter.From) {
				continue
			}
			if !to.IsZero() && date.After(to) {
				continue
			}
		}
		if filter.MinAmount != nil || filter.MaxAmount != nil {
			amount := rowAmount(row)
			if filter.MinAmount != nil && amount.LessThan(*filter.MinAmount) {
				continue
			}
			if filter.MaxAmount != nil && amount.GreaterThan(*filter.MaxAmount) {
				continue
			}
		}
		if query != "" && !strings.Contains(strings.ToLower(haystack(row)), query) {
			continue
		}
		matched = append(matched, row)
	}

	offset := max(filter.Offset, 0)
	page := SearchPage{Total: len(matched), Offset: offset, Searched: len(rows)}
	if offset < len(matched) {
		page.Rows = matched[offset:min(offset+SearchPageSize, len(matched))]
	}
	return page
}

// rowAmount is the larger of the received and sent quantities.
func rowAmount(row domain.Row) decimal.Decimal {
	received, err := decimal.NewFromString(row.ReceivedAmount)
	if err != nil {
		received = decimal.Zero
	}
	sent, err := decimal.NewFromString(row.SentAmount)
	if err != nil {
		sent = decimal.Zero
	}
	return decimal.Max(received.Abs(), sent.Abs())
}

func haystack(row domain.Row) string {
	return strings.Join([]string{
		row.Date, row.ReceivedAmount, row.ReceivedCurrency,
		row.SentAmount, row.SentCurrency, row.FeeAmount, row.FeeCurrency, string(row.Tag),
	}, " ")
}

// DescribeRow is the single-line rendering used in chat replies.
func DescribeRow(row domain.Row) string {
	return fmt.Sprintf("%s | Recv: %s %s | Sent: %s %s | Fee: %s %s | %s",
		row.Date, row.ReceivedAmount, row.ReceivedCurrency,
		row.SentAmount, row.SentCurrency, row.FeeAmount, row.FeeCurrency, row.Tag)
}

// Describe renders the page the way the assistant reports it.
func (p SearchPage) Describe() string {
	if len(p.Rows) == 0 {
		return fmt.Sprintf("No matching transactions found (searched %d rows).", p.Searched)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d matching rows (showing %d-%d):", p.Total, p.Offset+1, p.Offset+len(p.Rows))
	for _, row := range p.Rows {
		b.WriteString("\n")
		b.WriteString(DescribeRow(row))
	}
	if next := p.Offset + SearchPageSize; next < p.Total {
		fmt.Fprintf(&b, "\n... %d more rows. Use offset=%d to see next page.", p.Total-next, next)
	}
	return b.String()
}
