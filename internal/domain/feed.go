package domain

// PlainTransfer is a top-level transaction record from the explorer's txlist feed.
type PlainTransfer struct {
	Hash         string `json:"hash"`
	TimeStamp    string `json:"timeStamp"`
	From         string `json:"from"`
	To           string `json:"to"`
	Value        string `json:"value"`
	GasPrice     string `json:"gasPrice"`
	GasUsed      string `json:"gasUsed"`
	IsError      string `json:"isError"`
	FunctionName string `json:"functionName"`
	Input        string `json:"input"`
}

// InternalTransfer is a contract-triggered native transfer from the txlistinternal feed.
type InternalTransfer struct {
	Hash      string `json:"hash"`
	TimeStamp string `json:"timeStamp"`
	From      string `json:"from"`
	To        string `json:"to"`
	Value     string `json:"value"`
	IsError   string `json:"isError"`
}

// TokenTransfer is a token movement from the tokentx feed.
type TokenTransfer struct {
	Hash            string `json:"hash"`
	TimeStamp       string `json:"timeStamp"`
	From            string `json:"from"`
	To              string `json:"to"`
	Value           string `json:"value"`
	TokenName       string `json:"tokenName"`
	TokenSymbol     string `json:"tokenSymbol"`
	TokenDecimal    string `json:"tokenDecimal"`
	ContractAddress string `json:"contractAddress"`
}

// Feeds holds whatever the explorer returned for one (chain, address) pair.
// Partial is set when fetching stopped early; the feeds need not be the same
// length or fully paginated.
type Feeds struct {
	Plain    []PlainTransfer    `json:"plain"`
	Internal []InternalTransfer `json:"internal"`
	Tokens   []TokenTransfer    `json:"tokens"`
	Partial  bool               `json:"partial"`
}

// Len returns the total number of raw records across all feeds.
func (f Feeds) Len() int {
	return len(f.Plain) + len(f.Internal) + len(f.Tokens)
}
