package assistant

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"walletcsv/internal/application"
	"walletcsv/internal/domain"
)

const testWallet = "0x00000000000000000000000000000000000000aa"

var (
	ethereum = domain.Chain{ID: "1", Name: "Ethereum", Symbol: "ETH", Decimals: 18, APIURL: "https://eth.example/api"}
	gnosis   = domain.Chain{ID: "100", Name: "Gnosis", Symbol: "XDAI", Decimals: 18, APIURL: "https://gnosis.example/api"}
)

type staticChains []domain.Chain

func (c staticChains) Chains(context.Context) ([]domain.Chain, error) { return c, nil }

type fakeExporter struct {
	result application.Result
	err    error
	calls  int
}

func (f *fakeExporter) Export(_ context.Context, chain domain.Chain, address string, progress application.ProgressFunc) (application.Result, error) {
	f.calls++
	if progress != nil {
		progress("Fetching normal transactions...")
	}
	if f.err != nil {
		return application.Result{}, f.err
	}
	result := f.result
	result.Run.ChainID = chain.ID
	result.Run.Address = address
	return result, nil
}

type fakeScanner struct {
	scanned []domain.Chain
}

func (f *fakeScanner) Scan(_ context.Context, chains []domain.Chain, _ string) (application.ScanResult, error) {
	f.scanned = chains
	return application.ScanResult{
		Scanned: len(chains),
		Active:  []application.ChainActivity{{Chain: chains[0], Count: 1}},
	}, nil
}

type memorySink struct {
	files map[string]string
}

func (m *memorySink) SaveCSV(_ context.Context, filename, content string) (string, error) {
	if m.files == nil {
		m.files = map[string]string{}
	}
	m.files[filename] = content
	return filename, nil
}

func sampleResult() application.Result {
	rows := []domain.Row{
		{Date: "11/14/23 22:13", SentAmount: "1", SentCurrency: "ETH", FeeAmount: "0.00042", FeeCurrency: "ETH", Tag: domain.TagTransfer},
		{Date: "11/15/23 08:00", ReceivedAmount: "250", ReceivedCurrency: "USDC", SentAmount: "0.1", SentCurrency: "ETH", FeeAmount: "0.001", FeeCurrency: "ETH", Tag: domain.TagTrade},
	}
	return application.Result{
		Transactions: []domain.Transaction{{Hash: "0x1"}, {Hash: "0x2"}},
		Rows:         rows,
		CSV:          "csv-body",
		Tags:         application.BreakdownTags(rows),
	}
}

func newTestExecutor(t *testing.T, exporter *fakeExporter, confirmer Confirmer) (*Executor, *fakeScanner, *memorySink) {
	t.Helper()
	scanner := &fakeScanner{}
	sink := &memorySink{}
	executor, err := NewExecutor(ExecutorConfig{
		Chains:    staticChains{ethereum, gnosis},
		Exporter:  exporter,
		Scanner:   scanner,
		Sink:      sink,
		Confirmer: confirmer,
		Now:       func() time.Time { return time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}
	return executor, scanner, sink
}

func call(name string, args map[string]any) ToolCall {
	if args == nil {
		args = map[string]any{}
	}
	return ToolCall{ID: "call-" + name, Name: name, Arguments: args}
}

func TestExecutorWorkflow(t *testing.T) {
	exporter := &fakeExporter{result: sampleResult()}
	executor, scanner, sink := newTestExecutor(t, exporter, ApproveAll)
	session := NewSession()
	ctx := context.Background()

	if got := executor.Execute(ctx, session, call(ToolFetchTransactions, map[string]any{"chain_name": "ethereum"}), nil); got != "Error: No wallet address set. Use set_address first." {
		t.Fatalf("fetch without address: %q", got)
	}

	if got := executor.Execute(ctx, session, call(ToolSetAddress, map[string]any{"address": "0x00000000000000000000000000000000000000AA"}), nil); got != "Address set to "+testWallet {
		t.Fatalf("set_address: %q", got)
	}

	got := executor.Execute(ctx, session, call(ToolScanChains, map[string]any{"chain_names": []any{"gno"}}), nil)
	if !strings.HasPrefix(got, "Found activity on 1 of 1 chains scanned:") {
		t.Fatalf("scan_chains: %q", got)
	}
	if len(scanner.scanned) != 1 || scanner.scanned[0].ID != "100" {
		t.Fatalf("scanned %v", scanner.scanned)
	}

	var statuses []string
	got = executor.Execute(ctx, session, call(ToolFetchTransactions, map[string]any{"chain_name": "ethereum"}), func(s string) { statuses = append(statuses, s) })
	want := "Fetched 2 transactions (2 CSV rows) on Ethereum.\nTag breakdown: Transfer: 1, Trade: 1"
	if got != want {
		t.Fatalf("fetch_transactions = %q, want %q", got, want)
	}
	if len(statuses) != 1 {
		t.Fatalf("expected progress to reach status callback, got %v", statuses)
	}

	got = executor.Execute(ctx, session, call(ToolDownloadCSV, map[string]any{"chain_name": "Ethereum"}), nil)
	if got != "CSV downloaded: Ethereum_0x000000_20240102.csv (2 transactions)" {
		t.Fatalf("download_csv = %q", got)
	}
	if sink.files["Ethereum_0x000000_20240102.csv"] != "csv-body" {
		t.Fatalf("unexpected sink contents %v", sink.files)
	}

	got = executor.Execute(ctx, session, call(ToolGetStatus, nil), nil)
	want = "Status:\n- Chain: Ethereum (ETH)\n- Address: " + testWallet + "\n- Transactions loaded: 2\n- CSV rows: 2\n- Available chains: 2"
	if got != want {
		t.Fatalf("get_status = %q", got)
	}

	got = executor.Execute(ctx, session, call(ToolSearchTransactions, map[string]any{"tag": "trade", "min_amount": 100.0}), nil)
	if !strings.HasPrefix(got, "Found 1 matching rows (showing 1-1):\n11/15/23 08:00 | Recv: 250 USDC") {
		t.Fatalf("search_transactions = %q", got)
	}

	got = executor.Execute(ctx, session, call(ToolSearchTransactions, map[string]any{"date_from": "2023-11-15"}), nil)
	if !strings.HasPrefix(got, "Found 1 matching rows") {
		t.Fatalf("search by date = %q", got)
	}
}

func TestExecutorDownloadRequiresMatchingChain(t *testing.T) {
	executor, _, _ := newTestExecutor(t, &fakeExporter{result: sampleResult()}, ApproveAll)
	session := NewSession()
	ctx := context.Background()
	session.SetAddress(testWallet)
	executor.Execute(ctx, session, call(ToolFetchTransactions, map[string]any{"chain_name": "Ethereum"}), nil)

	got := executor.Execute(ctx, session, call(ToolDownloadCSV, map[string]any{"chain_name": "Gnosis"}), nil)
	if got != "Error: The loaded transactions are not from Gnosis. Use fetch_transactions first." {
		t.Fatalf("download_csv = %q", got)
	}
}

func TestExecutorConfirmation(t *testing.T) {
	var asked []string
	confirmer := ConfirmFunc(func(_ context.Context, call ToolCall, description string) (bool, error) {
		asked = append(asked, description)
		return false, nil
	})
	exporter := &fakeExporter{result: sampleResult()}
	executor, _, _ := newTestExecutor(t, exporter, confirmer)
	session := NewSession()
	ctx := context.Background()

	got := executor.Execute(ctx, session, call(ToolSetAddress, map[string]any{"address": testWallet}), nil)
	if got != `Action "set_address" was denied by the user.` {
		t.Fatalf("denied set_address = %q", got)
	}
	if session.State().Address != "" {
		t.Fatal("denied tool must not change the session")
	}

	if got := executor.Execute(ctx, session, call(ToolListChains, nil), nil); got != "Available chains (2): Ethereum (ETH), Gnosis (XDAI)" {
		t.Fatalf("list_chains = %q", got)
	}
	if len(asked) != 1 || asked[0] != "Set wallet address to "+testWallet {
		t.Fatalf("unexpected confirmations %v", asked)
	}
}

func TestExecutorFailures(t *testing.T) {
	exporter := &fakeExporter{err: errors.New("blockscout api error: HTTP 502")}
	executor, _, _ := newTestExecutor(t, exporter, ApproveAll)
	session := NewSession()
	ctx := context.Background()

	cases := []struct {
		name string
		call ToolCall
		want string
	}{
		{"unknown tool", call("delete_wallet", nil), "Unknown tool: delete_wallet"},
		{"bad address", call(ToolSetAddress, map[string]any{"address": "0x123"}), "Error: Invalid address format. Must be 0x followed by 40 hex characters."},
		{"search before fetch", call(ToolSearchTransactions, nil), "No transactions loaded. Use fetch_transactions first."},
		{"download before fetch", call(ToolDownloadCSV, map[string]any{"chain_name": "Ethereum"}), "Error: No wallet address set."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := executor.Execute(ctx, session, tc.call, nil); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}

	session.SetAddress(testWallet)
	if got := executor.Execute(ctx, session, call(ToolFetchTransactions, map[string]any{"chain_name": "Solana"}), nil); got != `Error: Chain "Solana" not found. Use list_chains to see available chains.` {
		t.Fatalf("unknown chain = %q", got)
	}
	if got := executor.Execute(ctx, session, call(ToolFetchTransactions, map[string]any{"chain_name": "Ethereum"}), nil); got != "Error fetching transactions on Ethereum: blockscout api error: HTTP 502" {
		t.Fatalf("export failure = %q", got)
	}
	if got := executor.Execute(ctx, session, call(ToolScanChains, map[string]any{"chain_names": []any{"solana"}}), nil); got != "No matching chains found for: solana. Use list_chains to see available chains." {
		t.Fatalf("scan without match = %q", got)
	}
}

func TestSetAddressDropsLoadedData(t *testing.T) {
	session := NewSession()
	session.SetAddress(testWallet)
	session.Load(sampleResult())
	session.SetAddress(testWallet)
	if len(session.State().Rows) != 2 {
		t.Fatal("same address must keep loaded rows")
	}
	session.SetAddress("0x00000000000000000000000000000000000000bb")
	if len(session.State().Rows) != 0 {
		t.Fatal("new address must drop loaded rows")
	}
}

func TestSystemPrompt(t *testing.T) {
	empty := SystemPrompt(State{}, 42)
	if !strings.Contains(empty, "across 42 EVM chains") || !strings.Contains(empty, "No transactions currently loaded.") {
		t.Fatalf("unexpected prompt %q", empty)
	}

	result := sampleResult()
	for range 40 {
		result.Rows = append(result.Rows, result.Rows[0])
	}
	chain := ethereum
	prompt := SystemPrompt(State{Address: testWallet, Chain: &chain, Transactions: result.Transactions, Rows: result.Rows}, 2)
	if !strings.Contains(prompt, "Currently 2 transactions loaded on Ethereum for address "+testWallet) {
		t.Fatalf("missing summary in %q", prompt)
	}
	if strings.Count(prompt, "| Recv:") != 30 {
		t.Fatalf("expected 30 preview rows, got %d", strings.Count(prompt, "| Recv:"))
	}
	if !strings.Contains(prompt, "... and 12 more rows.") {
		t.Fatal("missing remainder line")
	}
}

type scriptedProvider struct {
	replies   []Reply
	responded [][]ToolResult
	history   []Message
	system    string
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Converse(system string, history []Message, _ []ToolSpec) Conversation {
	p.system = system
	p.history = history
	return &scriptedConversation{provider: p}
}

type scriptedConversation struct {
	provider *scriptedProvider
	turn     int
}

func (c *scriptedConversation) Send(context.Context) (Reply, error) {
	replies := c.provider.replies
	reply := replies[min(c.turn, len(replies)-1)]
	c.turn++
	return reply, nil
}

func (c *scriptedConversation) Respond(results []ToolResult) {
	c.provider.responded = append(c.provider.responded, results)
}

func TestAgentRunsTools(t *testing.T) {
	executor, _, _ := newTestExecutor(t, &fakeExporter{result: sampleResult()}, DenyAll)
	provider := &scriptedProvider{replies: []Reply{
		{Calls: []ToolCall{call(ToolGetStatus, nil), call(ToolSetAddress, map[string]any{"address": testWallet})}},
		{Text: ""},
	}}
	agent, err := NewAgent(provider, executor, AgentConfig{})
	if err != nil {
		t.Fatal(err)
	}

	var streamed []string
	history := []Message{
		{Role: RoleUser, Content: "hello"},
		{Role: RoleStatus, Content: "Running get_status..."},
		{Role: RoleAssistant, Content: "hi"},
		{Role: RoleUser, Content: "status?"},
	}
	result, err := agent.Chat(context.Background(), NewSession(), history, func(s string) { streamed = append(streamed, s) })
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if result.Reply != "Done." {
		t.Fatalf("reply = %q", result.Reply)
	}
	if len(result.Status) != 2 || result.Status[0].Content != "Running get_status..." || result.Status[1].Content != "Running set_address..." {
		t.Fatalf("unexpected status %v", result.Status)
	}
	if len(streamed) != 2 {
		t.Fatalf("streamed %v", streamed)
	}
	if len(provider.history) != 3 {
		t.Fatalf("status messages must not reach the model, got %v", provider.history)
	}
	results := provider.responded[0]
	if results[1].CallID != "call-set_address" || results[1].Content != `Action "set_address" was denied by the user.` {
		t.Fatalf("unexpected tool results %v", results)
	}
}

func TestAgentStopsAfterMaxTurns(t *testing.T) {
	executor, _, _ := newTestExecutor(t, &fakeExporter{}, DenyAll)
	provider := &scriptedProvider{replies: []Reply{{Calls: []ToolCall{call(ToolGetStatus, nil)}}}}
	agent, _ := NewAgent(provider, executor, AgentConfig{})

	result, err := agent.Chat(context.Background(), NewSession(), []Message{{Role: RoleUser, Content: "loop"}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Reply != "Reached maximum tool call iterations." {
		t.Fatalf("reply = %q", result.Reply)
	}
	if len(provider.responded) != DefaultMaxTurns {
		t.Fatalf("expected %d turns, got %d", DefaultMaxTurns, len(provider.responded))
	}
}

func TestAgentFinalReplyIgnoresCalls(t *testing.T) {
	executor, _, _ := newTestExecutor(t, &fakeExporter{}, DenyAll)
	provider := &scriptedProvider{replies: []Reply{{Text: "Bye.", Final: true, Calls: []ToolCall{call(ToolGetStatus, nil)}}}}
	agent, _ := NewAgent(provider, executor, AgentConfig{})

	result, err := agent.Chat(context.Background(), NewSession(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Reply != "Bye." || len(result.Status) != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestDirSink(t *testing.T) {
	dir := t.TempDir()
	path, err := DirSink{Dir: dir}.SaveCSV(context.Background(), "../escape.csv", "a,b")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(path, dir) {
		t.Fatalf("file escaped the directory: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "a,b" {
		t.Fatalf("read back %q, %v", data, err)
	}
}
