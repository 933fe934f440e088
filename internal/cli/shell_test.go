package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"stockledger/internal/ledger"
	"stockledger/internal/store/memory"
)

func runScript(t *testing.T, ldg *ledger.Ledger, lines ...string) string {
	t.Helper()
	var out bytes.Buffer
	shell := New(ldg, strings.NewReader(strings.Join(lines, "\n")+"\n"), &out)
	require.NoError(t, shell.Run(context.Background()))
	return out.String()
}

func newLedger() *ledger.Ledger {
	return ledger.Open(context.Background(), memory.NewStore(), zap.NewNop(), ledger.Settings{
		InitialBalance: decimal.NewFromInt(1_000_000),
		Currency:       "PLN",
	})
}

func TestShell_PurchaseConfirmAndSell(t *testing.T) {
	ldg := newLedger()
	out := runScript(t, ldg,
		"purchase", "Bike", "5", "540", "maybe", "y",
		"sale", "bike", "10",
		"sale", "bike", "5",
		"end",
	)

	assert.Contains(t, out, "total 2700 PLN")
	assert.Contains(t, out, "Enter y or n.")
	assert.Contains(t, out, "Purchased 5 units of bike")
	assert.Contains(t, out, "Insufficient stock")
	assert.Contains(t, out, "Sold 5 units of bike")
	assert.Contains(t, out, "End of the program.")
	assert.True(t, ldg.Balance().Equal(decimal.NewFromInt(1_000_000)))
}

func TestShell_PurchaseDeclined(t *testing.T) {
	ldg := newLedger()
	out := runScript(t, ldg, "purchase", "lamp", "2", "10", "n", "end")

	assert.Contains(t, out, "Purchase cancelled.")
	assert.Empty(t, ldg.Items())
	assert.Equal(t, 0, ldg.HistoryLen())
}

func TestShell_BalanceAndAccount(t *testing.T) {
	ldg := newLedger()
	out := runScript(t, ldg,
		"balance", "add", "100.25",
		"balance", "sub", "abc",
		"balance", "mul",
		"account",
		"end",
	)

	assert.Contains(t, out, "Balance topped up. Current balance: 1000100.25 PLN.")
	assert.Contains(t, out, "Invalid amount")
	assert.Contains(t, out, "Enter a valid operation")
	assert.Contains(t, out, "Current balance: 1000100.25 PLN.")
	assert.Equal(t, 2, ldg.HistoryLen())
}

func TestShell_ListAndWarehouse(t *testing.T) {
	ldg := newLedger()
	require.True(t, ldg.Purchase(context.Background(), "desk", 2, decimal.NewFromInt(150)).OK)

	out := runScript(t, ldg, "list", "desk", "warehouse", "DESK", "warehouse", "sofa", "end")

	assert.Contains(t, out, "Products: desk")
	assert.Contains(t, out, "Stock value: 300 PLN")
	assert.Contains(t, out, "desk is in stock (2 units).")
	assert.Contains(t, out, "Product 'sofa' not found in stock.")
}

func TestShell_Review(t *testing.T) {
	ldg := newLedger()
	ctx := context.Background()
	ldg.CheckBalance(ctx)
	ldg.CheckBalance(ctx)
	ldg.CheckBalance(ctx)

	out := runScript(t, ldg, "review", "2", "3", "end")
	assert.Contains(t, out, "Operation 2. ")
	assert.Contains(t, out, "Operation 3. ")
	assert.NotContains(t, out, "Operation 1. ")

	out = runScript(t, ldg, "review", "", "", "end")
	assert.Contains(t, out, "Operation 1. ")

	out = runScript(t, ldg, "review", "3", "2", "end")
	assert.Contains(t, out, "Enter a valid range")

	out = runScript(t, ldg, "review", "x", "", "end")
	assert.Contains(t, out, "must be whole numbers")
	assert.Contains(t, out, "Operation 3. ")
}

func TestShell_UnknownCommandAndEOF(t *testing.T) {
	ldg := newLedger()
	var out bytes.Buffer
	shell := New(ldg, strings.NewReader("dance\npurchase\nlamp\n"), &out)

	require.NoError(t, shell.Run(context.Background()))
	assert.Contains(t, out.String(), "Enter a valid command.")
	assert.Empty(t, ldg.Items())
}

func TestShell_HandlersCoverEveryCommand(t *testing.T) {
	shell := New(newLedger(), strings.NewReader(""), &bytes.Buffer{})
	for _, c := range Commands {
		_, ok := shell.handlers[c]
		assert.True(t, ok, "no handler for %s", c)
	}
	assert.Len(t, shell.handlers, len(Commands))
}
