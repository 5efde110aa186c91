package domain

// Chain describes a network with a block-explorer API.
type Chain struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Symbol    string `json:"symbol"`
	Decimals  int    `json:"decimals"`
	APIURL    string `json:"api_url"`
	Logo      string `json:"logo,omitempty"`
	IsTestnet bool   `json:"is_testnet,omitempty"`
}
