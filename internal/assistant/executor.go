package assistant

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"walletcsv/internal/application"
	"walletcsv/internal/domain"
	"walletcsv/internal/taxcsv"

	"github.com/shopspring/decimal"
)

var ErrUnknownTool = errors.New("unknown tool")

// toolFailure is a message meant for the model, rendered after "Error: ".
type toolFailure string

func (f toolFailure) Error() string { return string(f) }

func failf(format string, args ...any) error {
	return toolFailure(fmt.Sprintf(format, args...))
}

type Exporter interface {
	Export(ctx context.Context, chain domain.Chain, address string, progress application.ProgressFunc) (application.Result, error)
}

type Scanner interface {
	Scan(ctx context.Context, chains []domain.Chain, address string) (application.ScanResult, error)
}

// CSVSink stores a finished CSV and returns where it went.
type CSVSink interface {
	SaveCSV(ctx context.Context, filename, content string) (string, error)
}

// Confirmer asks the user before a tool with side effects runs.
type Confirmer interface {
	Confirm(ctx context.Context, call ToolCall, description string) (bool, error)
}

type ConfirmFunc func(ctx context.Context, call ToolCall, description string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, call ToolCall, description string) (bool, error) {
	return f(ctx, call, description)
}

var (
	ApproveAll Confirmer = ConfirmFunc(func(context.Context, ToolCall, string) (bool, error) { return true, nil })
	DenyAll    Confirmer = ConfirmFunc(func(context.Context, ToolCall, string) (bool, error) { return false, nil })
)

// DirSink writes CSV files into a directory.
type DirSink struct {
	Dir string
}

func (d DirSink) SaveCSV(_ context.Context, filename, content string) (string, error) {
	dir := d.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, filepath.Base(filename))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

type ExecutorConfig struct {
	Chains    application.ChainDirectory
	Exporter  Exporter
	Scanner   Scanner
	Sink      CSVSink
	// Confirmer defaults to DenyAll.
	Confirmer Confirmer
	Now       func() time.Time
}

// Executor runs tool calls against a Session.
type Executor struct {
	chains    application.ChainDirectory
	exporter  Exporter
	scanner   Scanner
	sink      CSVSink
	confirmer Confirmer
	now       func() time.Time
}

func NewExecutor(cfg ExecutorConfig) (*Executor, error) {
	if cfg.Chains == nil {
		return nil, errors.New("chain directory is required")
	}
	if cfg.Exporter == nil {
		return nil, errors.New("exporter is required")
	}
	if cfg.Scanner == nil {
		return nil, errors.New("scanner is required")
	}
	if cfg.Confirmer == nil {
		cfg.Confirmer = DenyAll
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Executor{
		chains:    cfg.Chains,
		exporter:  cfg.Exporter,
		scanner:   cfg.Scanner,
		sink:      cfg.Sink,
		confirmer: cfg.Confirmer,
		now:       cfg.Now,
	}, nil
}

// Execute runs call and renders the outcome as text for the model. Failures
// come back as text too.
func (e *Executor) Execute(ctx context.Context, session *Session, call ToolCall, status func(string)) string {
	if !SafeTool(call.Name) {
		approved, err := e.confirmer.Confirm(ctx, call, DescribeCall(call))
		if err != nil {
			return "Error: " + err.Error()
		}
		if !approved {
			return fmt.Sprintf("Action %q was denied by the user.", call.Name)
		}
	}
	out, err := e.run(ctx, session, call, status)
	if errors.Is(err, ErrUnknownTool) {
		return "Unknown tool: " + call.Name
	}
	if err != nil {
		return "Error: " + err.Error()
	}
	return out
}

func (e *Executor) run(ctx context.Context, session *Session, call ToolCall, status func(string)) (string, error) {
	switch call.Name {
	case ToolListChains:
		return e.listChains(ctx)
	case ToolSetAddress:
		return e.setAddress(session, call.Arguments)
	case ToolScanChains:
		return e.scanChains(ctx, session, call.Arguments)
	case ToolFetchTransactions:
		return e.fetchTransactions(ctx, session, call.Arguments, status)
	case ToolDownloadCSV:
		return e.downloadCSV(ctx, session, call.Arguments)
	case ToolGetStatus:
		return e.status(ctx, session)
	case ToolSearchTransactions:
		return searchTransactions(session, call.Arguments)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)
	}
}

// DescribeCall is the one-line summary shown when asking for confirmation.
func DescribeCall(call ToolCall) string {
	switch call.Name {
	case ToolSetAddress:
		return fmt.Sprintf("Set wallet address to %s", stringArg(call.Arguments, "address"))
	case ToolScanChains:
		if names := stringsArg(call.Arguments, "chain_names"); len(names) > 0 {
			return fmt.Sprintf("Scan %d chains for activity", len(names))
		}
		return "Scan all chains for activity"
	case ToolFetchTransactions:
		return fmt.Sprintf("Fetch transactions on %s", stringArg(call.Arguments, "chain_name"))
	case ToolDownloadCSV:
		return fmt.Sprintf("Download CSV for %s", stringArg(call.Arguments, "chain_name"))
	default:
		return fmt.Sprintf("Run %s", call.Name)
	}
}

func (e *Executor) listChains(ctx context.Context) (string, error) {
	chains, err := e.chains.Chains(ctx)
	if err != nil {
		return "", err
	}
	names := make([]string, len(chains))
	for i, chain := range chains {
		names[i] = fmt.Sprintf("%s (%s)", chain.Name, chain.Symbol)
	}
	return fmt.Sprintf("Available chains (%d): %s", len(chains), strings.Join(names, ", ")), nil
}

func (e *Executor) setAddress(session *Session, args map[string]any) (string, error) {
	addr, err := application.NormalizeAddress(stringArg(args, "address"))
	if err != nil {
		return "", failf("Invalid address format. Must be 0x followed by 40 hex characters.")
	}
	session.SetAddress(addr)
	return "Address set to " + addr, nil
}

func (e *Executor) scanChains(ctx context.Context, session *Session, args map[string]any) (string, error) {
	addr := session.State().Address
	if addr == "" {
		return "", failf("No wallet address set. Use set_address first.")
	}
	chains, err := e.chains.Chains(ctx)
	if err != nil {
		return "", err
	}
	names := stringsArg(args, "chain_names")
	targets := application.MatchChains(chains, names)
	if len(targets) == 0 {
		return fmt.Sprintf("No matching chains found for: %s. Use list_chains to see available chains.", strings.Join(names, ", ")), nil
	}
	result, err := e.scanner.Scan(ctx, targets, addr)
	if err != nil {
		return "", err
	}
	return result.Summary(addr), nil
}

func (e *Executor) fetchTransactions(ctx context.Context, session *Session, args map[string]any, status func(string)) (string, error) {
	addr := session.State().Address
	if addr == "" {
		return "", failf("No wallet address set. Use set_address first.")
	}
	name := stringArg(args, "chain_name")
	chain, err := e.findChain(ctx, name)
	if err != nil {
		return "", failf("Chain %q not found. Use list_chains to see available chains.", name)
	}
	session.SelectChain(chain)

	result, err := e.exporter.Export(ctx, chain, addr, application.ProgressFunc(status))
	if err != nil {
		return fmt.Sprintf("Error fetching transactions on %s: %v", chain.Name, err), nil
	}
	session.Load(result)

	if len(result.Transactions) == 0 {
		return fmt.Sprintf("Fetched transactions on %s: 0 transactions found.", chain.Name), nil
	}
	msg := fmt.Sprintf("Fetched %d transactions (%d CSV rows) on %s.\nTag breakdown: %s",
		len(result.Transactions), len(result.Rows), chain.Name, result.Tags)
	if result.Run.Partial {
		msg += "\nThe fetch was cancelled, so this history is incomplete."
	}
	return msg, nil
}

func (e *Executor) downloadCSV(ctx context.Context, session *Session, args map[string]any) (string, error) {
	state := session.State()
	if state.Address == "" {
		return "", failf("No wallet address set.")
	}
	name := stringArg(args, "chain_name")
	chain, err := e.findChain(ctx, name)
	if err != nil {
		return "", failf("Chain %q not found.", name)
	}
	if len(state.Transactions) == 0 {
		return "", failf("No transactions loaded. Use fetch_transactions first.")
	}
	if state.LoadedChain != chain.ID {
		return "", failf("The loaded transactions are not from %s. Use fetch_transactions first.", chain.Name)
	}
	if e.sink == nil {
		return "", failf("CSV output is not configured.")
	}

	filename := taxcsv.Filename(chain.Name, state.Address, e.now())
	location, err := e.sink.SaveCSV(ctx, filename, state.CSV)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("CSV downloaded: %s (%d transactions)", location, len(state.Transactions)), nil
}

func (e *Executor) status(ctx context.Context, session *Session) (string, error) {
	state := session.State()
	chainName, symbol := "none", ""
	if state.Chain != nil {
		chainName, symbol = state.Chain.Name, state.Chain.Symbol
	}
	address := state.Address
	if address == "" {
		address = "none"
	}
	available := 0
	if chains, err := e.chains.Chains(ctx); err == nil {
		available = len(chains)
	}
	return fmt.Sprintf("Status:\n- Chain: %s (%s)\n- Address: %s\n- Transactions loaded: %d\n- CSV rows: %d\n- Available chains: %d",
		chainName, symbol, address, len(state.Transactions), len(state.Rows), available), nil
}

func searchTransactions(session *Session, args map[string]any) (string, error) {
	rows := session.State().Rows
	if len(rows) == 0 {
		return "No transactions loaded. Use fetch_transactions first.", nil
	}
	filter, err := searchFilter(args)
	if err != nil {
		return "", err
	}
	return application.SearchRows(rows, filter).Describe(), nil
}

func searchFilter(args map[string]any) (application.SearchFilter, error) {
	filter := application.SearchFilter{
		Query:    stringArg(args, "query"),
		Tag:      stringArg(args, "tag"),
		Currency: stringArg(args, "currency"),
		Offset:   int(numberArg(args, "offset")),
	}
	var err error
	if filter.From, err = dateArg(args, "date_from"); err != nil {
		return filter, err
	}
	if filter.To, err = dateArg(args, "date_to"); err != nil {
		return filter, err
	}
	if filter.MinAmount, err = decimalArg(args, "min_amount"); err != nil {
		return filter, err
	}
	if filter.MaxAmount, err = decimalArg(args, "max_amount"); err != nil {
		return filter, err
	}
	return filter, nil
}

func (e *Executor) findChain(ctx context.Context, name string) (domain.Chain, error) {
	chains, err := e.chains.Chains(ctx)
	if err != nil {
		return domain.Chain{}, err
	}
	return application.FindChain(chains, name)
}

func stringArg(args map[string]any, key string) string {
	value, _ := args[key].(string)
	return strings.TrimSpace(value)
}

func stringsArg(args map[string]any, key string) []string {
	switch value := args[key].(type) {
	case []string:
		return value
	case []any:
		out := make([]string, 0, len(value))
		for _, item := range value {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	case string:
		if strings.TrimSpace(value) != "" {
			return []string{strings.TrimSpace(value)}
		}
	}
	return nil
}

func numberArg(args map[string]any, key string) float64 {
	switch value := args[key].(type) {
	case float64:
		return value
	case int:
		return float64(value)
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(value))
		if err == nil {
			return d.InexactFloat64()
		}
	}
	return 0
}

func decimalArg(args map[string]any, key string) (*decimal.Decimal, error) {
	var value decimal.Decimal
	switch raw := args[key].(type) {
	case nil:
		return nil, nil
	case float64:
		value = decimal.NewFromFloat(raw)
	case int:
		value = decimal.NewFromInt(int64(raw))
	case string:
		if strings.TrimSpace(raw) == "" {
			return nil, nil
		}
		parsed, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q", key, raw)
		}
		value = parsed
	default:
		return nil, fmt.Errorf("invalid %s", key)
	}
	return &value, nil
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "1/2/06"}

func dateArg(args map[string]any, key string) (time.Time, error) {
	raw := stringArg(args, key)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid %s %q, want YYYY-MM-DD", key, raw)
}

// WithConfirmer returns a copy of e that asks c before side effects.
func (e *Executor) WithConfirmer(c Confirmer) *Executor {
	clone := *e
	if c == nil {
		c = DenyAll
	}
	clone.confirmer = c
	return &clone
}
