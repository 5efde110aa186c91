package application

import (
	"fmt"
	"strings"

	"walletcsv/internal/domain"
)

type TagCount struct {
	Tag   domain.Tag `json:"tag"`
	Count int        `json:"count"`
}

// TagBreakdown counts rows per tag in order of first appearance.
type TagBreakdown []TagCount

func BreakdownTags(rows []domain.Row) TagBreakdown {
	var breakdown TagBreakdown
	index := make(map[domain.Tag]int)
	for _, row := range rows {
		i, ok := index[row.Tag]
		if !ok {
			i = len(breakdown)
			index[row.Tag] = i
			breakdown = append(breakdown, TagCount{Tag: row.Tag})
		}
		breakdown[i].Count++
	}
	return breakdown
}

func (b TagBreakdown) String() string {
	parts := make([]string, 0, len(b))
	for _, tc := range b {
		parts = append(parts, fmt.Sprintf("%s: %d", tc.Tag, tc.Count))
	}
	return strings.Join(parts, ", ")
}
