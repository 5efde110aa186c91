package application

import "time"

// ArchiveQuery selects archived transactions. Zero values leave a field
// unconstrained.
type ArchiveQuery struct {
	ChainID string
	Address string
	TxHash  string
	Since   time.Time
	Until   time.Time
	Limit   int
}

type RunQuery struct {
	ChainID string
	Address string
	Limit   int
}
