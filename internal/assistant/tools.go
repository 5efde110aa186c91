package assistant

const (
	ToolListChains         = "list_chains"
	ToolSetAddress         = "set_address"
	ToolScanChains         = "scan_chains"
	ToolFetchTransactions  = "fetch_transactions"
	ToolDownloadCSV        = "download_csv"
	ToolGetStatus          = "get_status"
	ToolSearchTransactions = "search_transactions"
)

var safeTools = map[string]bool{
	ToolListChains:         true,
	ToolGetStatus:          true,
	ToolSearchTransactions: true,
}

// SafeTool reports whether name only reads session state and can run
// without asking the user.
func SafeTool(name string) bool {
	return safeTools[name]
}

func objectSchema(properties map[string]any, required ...string) map[string]any {
	if properties == nil {
		properties = map[string]any{}
	}
	if required == nil {
		required = []string{}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

func stringProperty(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func numberProperty(description string) map[string]any {
	return map[string]any{"type": "number", "description": description}
}

// Tools is the catalogue offered to the model on every turn.
func Tools() []ToolSpec {
	return []ToolSpec{
		{
			Name:        ToolListChains,
			Description: "List all available blockchain chains the user can query. Returns chain names, symbols, and IDs.",
			Parameters:  objectSchema(nil),
		},
		{
			Name:        ToolSetAddress,
			Description: "Set the wallet address to query. Must be a valid 0x Ethereum-style address (42 hex chars).",
			Parameters: objectSchema(map[string]any{
				"address": stringProperty("The 0x wallet address"),
			}, "address"),
		},
		{
			Name:        ToolScanChains,
			Description: "Scan multiple chains to find which ones have transaction activity for the current wallet address. This checks each chain's BlockScout API for any transactions. Returns a list of chains with activity.",
			Parameters: objectSchema(map[string]any{
				"chain_names": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Optional list of chain names to scan. If empty, scans all chains.",
				},
			}),
		},
		{
			Name:        ToolFetchTransactions,
			Description: "Fetch all transactions for the current wallet address on a specific chain. This loads the full transaction history and prepares CSV export data.",
			Parameters: objectSchema(map[string]any{
				"chain_name": stringProperty("The name of the chain to fetch transactions from (e.g. 'Ethereum', 'Polygon')"),
			}, "chain_name"),
		},
		{
			Name:        ToolDownloadCSV,
			Description: "Write the CSV of the currently loaded transactions for a specific chain.",
			Parameters: objectSchema(map[string]any{
				"chain_name": stringProperty("The chain name for the download"),
			}, "chain_name"),
		},
		{
			Name:        ToolGetStatus,
			Description: "Get the current status: which chain is selected, what address is entered, how many transactions are loaded, and a summary of the data.",
			Parameters:  objectSchema(nil),
		},
		{
			Name:        ToolSearchTransactions,
			Description: "Search the loaded CSV rows. All filters are optional and combined. Returns up to 50 rows per call; use offset to page.",
			Parameters: objectSchema(map[string]any{
				"query":      stringProperty("Free text matched against the whole row"),
				"tag":        stringProperty("Exact tag, e.g. Trade or Transfer"),
				"currency":   stringProperty("Received or sent currency symbol"),
				"date_from":  stringProperty("Earliest date, YYYY-MM-DD"),
				"date_to":    stringProperty("Latest date, YYYY-MM-DD, inclusive"),
				"min_amount": numberProperty("Minimum of the larger of received and sent quantity"),
				"max_amount": numberProperty("Maximum of the larger of received and sent quantity"),
				"offset":     numberProperty("Number of matching rows to skip"),
			}),
		},
	}
}
