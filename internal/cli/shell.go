// Package cli is the interactive command loop over the ledger.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"stockledger/internal/domain"
	"stockledger/internal/ledger"
)

type Command string

const (
	CommandBalance   Command = "balance"
	CommandSale      Command = "sale"
	CommandPurchase  Command = "purchase"
	CommandAccount   Command = "account"
	CommandList      Command = "list"
	CommandWarehouse Command = "warehouse"
	CommandReview    Command = "review"
	CommandEnd       Command = "end"
)

// Commands is the menu order.
var Commands = []Command{
	CommandBalance,
	CommandSale,
	CommandPurchase,
	CommandAccount,
	CommandList,
	CommandWarehouse,
	CommandReview,
	CommandEnd,
}

var errStop = errors.New("stop")

// errInputClosed means the reader ran dry in the middle of a prompt.
var errInputClosed = errors.New("input closed")

type handler func(ctx context.Context) error

type Shell struct {
	ledger   *ledger.Ledger
	in       *bufio.Scanner
	out      io.Writer
	handlers map[Command]handler
}

func New(ldg *ledger.Ledger, in io.Reader, out io.Writer) *Shell {
	s := &Shell{
		ledger: ldg,
		in:     bufio.NewScanner(in),
		out:    out,
	}
	s.handlers = map[Command]handler{
		CommandBalance:   s.balance,
		CommandSale:      s.sale,
		CommandPurchase:  s.purchase,
		CommandAccount:   s.account,
		CommandList:      s.list,
		CommandWarehouse: s.warehouse,
		CommandReview:    s.review,
		CommandEnd:       s.end,
	}
	return s
}

// Run reads commands until "end", end of input or ctx is cancelled.
func (s *Shell) Run(ctx context.Context) error {
	names := make([]string, len(Commands))
	for i, c := range Commands {
		names[i] = string(c)
	}
	menu := strings.Join(names, ", ")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.printf("\nAvailable commands: %s\n", menu)
		raw, ok := s.ask("Enter the command you want to execute: ")
		if !ok {
			return s.in.Err()
		}
		h, found := s.handlers[Command(strings.ToLower(raw))]
		if !found {
			s.println("Enter a valid command.")
			continue
		}
		err := h(ctx)
		switch {
		case errors.Is(err, errStop):
			return nil
		case errors.Is(err, errInputClosed):
			return s.in.Err()
		case err != nil:
			return err
		}
	}
}

func (s *Shell) balance(ctx context.Context) error {
	op, ok := s.ask("What operation do you want to perform? add/sub: ")
	if !ok {
		return errInputClosed
	}
	direction := domain.Direction(strings.ToLower(op))
	if direction != domain.DirectionAdd && direction != domain.DirectionSubtract {
		s.println("Enter a valid operation (add or sub).")
		return nil
	}
	raw, ok := s.ask("Enter the amount: ")
	if !ok {
		return errInputClosed
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		s.println("Invalid amount, enter a number.")
		return nil
	}
	s.report(s.ledger.AdjustBalance(ctx, direction, amount))
	return nil
}

func (s *Shell) sale(ctx context.Context) error {
	s.printProducts()
	name, ok := s.ask("Enter the name of the product you want to sell: ")
	if !ok {
		return errInputClosed
	}
	p, found := s.ledger.Product(name)
	if !found {
		s.println("Enter a product from the list.")
		return nil
	}
	s.printf("In stock: %d units. Unit price: %s %s.\n", p.Quantity, p.Price, s.ledger.Currency())
	quantity, ok, valid := s.askInt("How many units do you want to sell? ")
	if !ok {
		return errInputClosed
	}
	if !valid {
		s.println("Invalid input, enter a whole number.")
		return nil
	}
	s.report(s.ledger.Sell(ctx, name, quantity))
	return nil
}

func (s *Shell) purchase(ctx context.Context) error {
	name, ok := s.ask("Enter the name of the product you want to buy: ")
	if !ok {
		return errInputClosed
	}
	quantity, ok, valid := s.askInt("Enter the quantity: ")
	if !ok {
		return errInputClosed
	}
	if !valid {
		s.println("Invalid input, enter a whole number.")
		return nil
	}
	raw, ok := s.ask("Enter the unit price: ")
	if !ok {
		return errInputClosed
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		s.println("Invalid price, enter a number.")
		return nil
	}
	if quantity <= 0 || !price.IsPositive() {
		// let the ledger word the rejection
		s.report(s.ledger.Purchase(ctx, name, quantity, price))
		return nil
	}

	total := price.Mul(decimal.NewFromInt(quantity))
	s.printf("You want to buy %d units of %s, total %s %s.\n", quantity, ledger.NormalizeName(name), total, s.ledger.Currency())
	for {
		answer, ok := s.ask("Do you want to continue? y/n ")
		if !ok {
			return errInputClosed
		}
		switch strings.ToLower(answer) {
		case "y", "yes":
			s.report(s.ledger.Purchase(ctx, name, quantity, price))
			return nil
		case "n", "no":
			s.println("Purchase cancelled.")
			return nil
		default:
			s.println("Enter y or n.")
		}
	}
}

func (s *Shell) account(ctx context.Context) error {
	s.report(s.ledger.CheckBalance(ctx))
	return nil
}

func (s *Shell) list(ctx context.Context) error {
	s.printProducts()
	name, ok := s.ask("Enter the name of a product in stock: ")
	if !ok {
		return errInputClosed
	}
	s.report(s.ledger.InspectProduct(ctx, name))
	return nil
}

func (s *Shell) warehouse(ctx context.Context) error {
	s.printProducts()
	name, ok := s.ask("Enter the product you want to know the status of: ")
	if !ok {
		return errInputClosed
	}
	s.report(s.ledger.ProductAvailability(ctx, name))
	return nil
}

func (s *Shell) review(_ context.Context) error {
	total := s.ledger.HistoryLen()
	s.printf("\n%d operations recorded so far.\n", total)
	rawFrom, ok := s.ask("From which operation? (Enter for the full list) ")
	if !ok {
		return errInputClosed
	}
	rawTo, ok := s.ask("To which operation? (Enter for the full list) ")
	if !ok {
		return errInputClosed
	}

	from, to, valid := ledger.ParseRange(rawFrom, rawTo)
	if !valid {
		s.println("Operation numbers must be whole numbers, showing the full history.")
	}
	lines, offset := s.ledger.History(from, to)
	if len(lines) == 0 && (from != nil || to != nil) && total > 0 {
		s.println("Enter a valid range of operations (starting from 1).")
		return nil
	}
	for i, line := range lines {
		s.printf("Operation %d. %s\n", offset+i+1, line)
	}
	return nil
}

func (s *Shell) end(_ context.Context) error {
	s.println("End of the program.")
	return errStop
}

func (s *Shell) printProducts() {
	items := s.ledger.Items()
	names := make([]string, 0, len(items))
	for name := range items {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		s.println("\nThe warehouse is empty.")
		return
	}
	s.printf("\nProducts: %s\n", strings.Join(names, ", "))
}

func (s *Shell) report(res domain.Result) {
	s.println(res.Message)
}

// ask prompts and returns the trimmed answer; false means end of input.
func (s *Shell) ask(prompt string) (string, bool) {
	fmt.Fprint(s.out, prompt)
	if !s.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(s.in.Text()), true
}

func (s *Shell) askInt(prompt string) (n int64, ok, valid bool) {
	raw, ok := s.ask(prompt)
	if !ok {
		return 0, false, false
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, true, false
	}
	return n, true, true
}

func (s *Shell) printf(format string, args ...interface{}) {
	fmt.Fprintf(s.out, format, args...)
}

func (s *Shell) println(msg string) {
	fmt.Fprintln(s.out, msg)
}
