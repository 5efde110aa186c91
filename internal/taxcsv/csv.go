// Package taxcsv renders export rows in the column layout expected by
// spreadsheet-based crypto tax tools.
package taxcsv

import (
	"regexp"
	"strings"
	"time"

	"walletcsv/internal/domain"
)

// Header is the fixed first line of every export.
const Header = "Date,Received Quantity,Received Currency,Sent Quantity,Sent Currency,Fee Amount,Fee Currency,Notes"

var controlReplacer = strings.NewReplacer("\t", " ", "\r", " ")

// EscapeField makes value safe for a CSV cell. Tabs and carriage returns
// become spaces, formula-looking values get a leading quote, and values with
// a comma, double quote or newline are quoted.
func EscapeField(value string) string {
	if value == "" {
		return ""
	}
	value = controlReplacer.Replace(value)
	switch value[0] {
	case '=', '+', '-', '@':
		value = "'" + value
	}
	if strings.ContainsAny(value, ",\"\n") {
		return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
	}
	return value
}

// Line renders one row without a trailing newline.
func Line(row domain.Row) string {
	fields := [...]string{
		row.Date,
		row.ReceivedAmount,
		row.ReceivedCurrency,
		row.SentAmount,
		row.SentCurrency,
		row.FeeAmount,
		row.FeeCurrency,
		string(row.Tag),
	}
	var b strings.Builder
	for i, field := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(EscapeField(field))
	}
	return b.String()
}

// Encode renders the header and one line per row, separated by "\n" with no
// trailing separator.
func Encode(rows []domain.Row) string {
	var b strings.Builder
	b.WriteString(Header)
	for _, row := range rows {
		b.WriteByte('\n')
		b.WriteString(Line(row))
	}
	return b.String()
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// Filename returns the download name for an export of address on chainName,
// e.g. "Ethereum_0x1234ab_20240102.csv".
func Filename(chainName, address string, now time.Time) string {
	prefix := address
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	name := unsafeNameChars.ReplaceAllString(chainName, "_")
	return name + "_" + prefix + "_" + now.UTC().Format("20060102") + ".csv"
}
