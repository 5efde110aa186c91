package assistant

import (
	"sync"

	"walletcsv/internal/application"
	"walletcsv/internal/domain"

	"github.com/google/uuid"
)

// Session is the state a chat works on: the wallet, the selected chain and
// the last fetched export. It is safe for concurrent use.
type Session struct {
	ID string

	mu      sync.Mutex
	address string
	chain   *domain.Chain
	loaded  *application.Result
}

func NewSession() *Session {
	return &Session{ID: uuid.NewString()}
}

// State is a point-in-time copy of a Session.
type State struct {
	Address      string
	Chain        *domain.Chain
	LoadedChain  string
	Transactions []domain.Transaction
	Rows         []domain.Row
	CSV          string
	Partial      bool
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := State{Address: s.address}
	if s.chain != nil {
		chain := *s.chain
		state.Chain = &chain
	}
	if s.loaded != nil {
		state.LoadedChain = s.loaded.Run.ChainID
		state.Transactions = s.loaded.Transactions
		state.Rows = s.loaded.Rows
		state.CSV = s.loaded.CSV
		state.Partial = s.loaded.Run.Partial
	}
	return state
}

// SetAddress switches the wallet. Loaded data of another wallet is dropped.
func (s *Session) SetAddress(address string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.address != address {
		s.loaded = nil
	}
	s.address = address
}

func (s *Session) SelectChain(chain domain.Chain) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chain = &chain
}

func (s *Session) Load(result application.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = &result
}
