package ledger

import (
	"testing"

	"walletcsv/internal/domain"
)

func TestClassify(t *testing.T) {
	in := domain.Movement{Direction: domain.DirectionIn, Amount: "1", Currency: "ETH", Decimals: 18}
	out := domain.Movement{Direction: domain.DirectionOut, Amount: "1", Currency: "ETH", Decimals: 18}

	cases := []struct {
		name string
		tx   domain.Transaction
		want domain.Tag
	}{
		{"failed beats everything", domain.Transaction{IsError: true, FunctionName: "swap", Movements: []domain.Movement{in, out}}, domain.TagFailed},
		{"approve", domain.Transaction{FunctionName: "approve(address,uint256)", Input: "0x095ea7b3"}, domain.TagApproval},
		{"approve beats balanced", domain.Transaction{FunctionName: "Approve", Movements: []domain.Movement{in, out}}, domain.TagApproval},
		{"wrap", domain.Transaction{FunctionName: "deposit wrap", Movements: []domain.Movement{out}}, domain.TagWrap},
		{"unwrap", domain.Transaction{FunctionName: "unwrapWETH9(uint256)", Movements: []domain.Movement{in}}, domain.TagWrap},
		{"swap name", domain.Transaction{FunctionName: "swapExactTokensForETH", Input: "0x18cbafe5", Movements: []domain.Movement{in}}, domain.TagTrade},
		{"balanced movements", domain.Transaction{FunctionName: "execute(bytes)", Input: "0x3593", Movements: []domain.Movement{out, in}}, domain.TagTrade},
		{"plain value transfer", domain.Transaction{Input: "0x", Movements: []domain.Movement{out}}, domain.TagTransfer},
		{"inbound only contract", domain.Transaction{Input: "0xabcdef", Movements: []domain.Movement{in}}, domain.TagTransfer},
		{"contract interaction", domain.Transaction{Input: "0xa9059cbb"}, domain.TagContract},
		{"nothing at all", domain.Transaction{Input: "0x"}, domain.TagTransfer},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.tx); got != tc.want {
				t.Fatalf("Classify() = %s, want %s", got, tc.want)
			}
		})
	}
}
