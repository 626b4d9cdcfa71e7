package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kumanofoo/tako/internal/domain"
	"github.com/kumanofoo/tako/internal/takotime"
)

// ─── Command Interpreter ────────────────────────────────────────────────────

var dowJA = []string{"日曜日", "月曜日", "火曜日", "水曜日", "木曜日", "金曜日", "土曜日"}

// Interpreter turns owner-typed commands into response lines. Every front
// end shares this: the console reads stdin, the chat adapters feed it
// messages. An empty command shows the full status; a bare number places
// an order; numbers the balance cannot cover are dropped without comment.
type Interpreter struct {
	client *Client
}

func NewInterpreter(c *Client) *Interpreter {
	return &Interpreter{client: c}
}

// Client returns the underlying facade.
func (i *Interpreter) Client() *Client { return i.client }

// Interpret handles one command and reports whether the session continues.
func (i *Interpreter) Interpret(ctx context.Context, cmd string) ([]string, bool) {
	var lines []string
	switch {
	case cmd == "":
		lines = i.status(ctx)
	case isDecimal(cmd):
		quantity, err := strconv.ParseInt(cmd, 10, 64)
		if err != nil {
			break
		}
		maxQuantity, _, err := i.client.MaxOrderQuantity(ctx)
		if err != nil {
			log.Printf("[client] max order quantity: %v", err)
			break
		}
		if quantity <= maxQuantity {
			ok, err := i.client.Order(ctx, quantity)
			if err != nil {
				log.Printf("[client] order: %v", err)
				break
			}
			if ok {
				lines = append(lines, fmt.Sprintf("Ordered %d tako", quantity))
			}
		}
	case cmd == "history":
		lines = i.historyLines(ctx)
	case cmd == "help" || cmd == "?":
		lines = helpLines()
	case cmd == "quit":
		return nil, false
	}
	return lines, true
}

func isDecimal(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func formatJST(t time.Time) string {
	return t.In(takotime.JST).Format("2006-01-02 15:04") + " JST"
}

// status is the response to an empty command: identity, balance, latest
// transaction, standings and the next market.
func (i *Interpreter) status(ctx context.Context) []string {
	var lines []string
	if header, err := i.client.NameWithBadge(ctx); err == nil {
		lines = append(lines, header)
	}
	lines = append(lines, i.balanceLines(ctx)...)
	lines = append(lines, i.transactionLines(ctx)...)
	lines = append(lines, "")
	lines = append(lines, i.top3(ctx)...)
	lines = append(lines, i.marketLines(ctx)...)
	return lines
}

func (i *Interpreter) balanceLines(ctx context.Context) []string {
	cond, err := i.client.db.Condition(ctx, i.client.ownerID)
	if errors.Is(err, domain.ErrNoAccount) {
		return []string{
			fmt.Sprintf("your account '%s' is not found.", i.client.ownerID),
			"open new account.",
		}
	}
	if err != nil {
		log.Printf("[client] balance: %v", err)
		return nil
	}
	return []string{fmt.Sprintf("Balance: %d JPY at %s", cond.Balance, formatJST(cond.Timestamp))}
}

func (i *Interpreter) transactionLines(ctx context.Context) []string {
	tx, err := i.client.LatestTransaction(ctx)
	if err != nil {
		log.Printf("[client] latest transaction: %v", err)
		return nil
	}
	if tx == nil {
		return nil
	}
	ts := formatJST(tx.Timestamp)
	var lines []string
	switch tx.Status {
	case domain.OrderOrdered:
		lines = append(lines, fmt.Sprintf("Status: ordered %d tako at %s", tx.QuantityOrdered, ts))
	case domain.OrderInStock:
		lines = append(lines, fmt.Sprintf("Status: %d tako in stock at %s", tx.QuantityInStock, ts))
	case domain.OrderClosed, domain.OrderRestarted:
		if tx.Status == domain.OrderRestarted {
			lines = append(lines, i.restartLines(ctx, tx.Date)...)
		}
		lines = append(lines, i.closedLines(ctx, tx)...)
	case domain.OrderCanceled:
		lines = append(lines, fmt.Sprintf("Status: canceled '%s' at %s", tx.Date, ts))
	}
	return lines
}

func (i *Interpreter) closedLines(ctx context.Context, tx *domain.Transaction) []string {
	lines := []string{fmt.Sprintf("Status: closed '%s' with %d JPY sales at %s",
		tx.Date, tx.Sales, formatJST(tx.Timestamp))}
	m, err := i.client.db.Market(ctx, tx.Date)
	if err != nil {
		log.Printf("[client] market %s: %v", tx.Date, err)
		return lines
	}
	soldQuantity := tx.Sales / m.SellingPrice
	lines = append(lines, fmt.Sprintf(
		"        You sold %d tako. (Ordered: %d, In stock: %d, Max: %d)",
		soldQuantity, tx.QuantityOrdered, tx.QuantityInStock, m.Sales))
	return lines
}

// restartLines shows the season result: every winner, then the group
// closest to the target.
func (i *Interpreter) restartLines(ctx context.Context, date string) []string {
	lines := []string{"This season is over. And next season has begun."}
	records, err := i.client.db.Records(ctx, date, 0, false)
	if err != nil {
		log.Printf("[client] records %s: %v", date, err)
		return lines
	}
	var belowSeen bool
	var closeBalance int64
	for _, r := range records[date] {
		if r.Balance < r.Target {
			if belowSeen && closeBalance > r.Balance {
				break
			}
			if !belowSeen {
				lines = append(lines, "", "The following is the close to the target.")
				belowSeen = true
			}
			closeBalance = r.Balance
		}
		lines = append(lines, fmt.Sprintf("%s : %d JPY", r.Name, r.Balance))
		if emoji := BadgeEmoji(r.Badge); emoji != "" {
			lines = append(lines, emoji)
		}
	}
	lines = append(lines, "")
	return lines
}

func (i *Interpreter) top3(ctx context.Context) []string {
	lines := []string{"Top 3 owners"}
	ranking, err := i.client.Ranking(ctx)
	if err != nil {
		log.Printf("[client] ranking: %v", err)
		return lines
	}
	for n, owner := range ranking {
		if n == 3 {
			break
		}
		lines = append(lines, fmt.Sprintf("%s: %d JPY", owner.Name, owner.Balance))
	}
	return lines
}

func (i *Interpreter) marketLines(ctx context.Context) []string {
	next, err := i.client.NextMarket(ctx)
	if errors.Is(err, domain.ErrNoMarket) {
		return nil
	}
	if err != nil {
		log.Printf("[client] next market: %v", err)
		return nil
	}
	lines := []string{
		"",
		fmt.Sprintf("Next: %s", next.Area),
		fmt.Sprintf("Open: %s", formatJST(next.Opening)),
		fmt.Sprintf("Close: %s", formatJST(next.Closing)),
		"",
	}
	lines = append(lines, i.forecastLines(ctx, next.Area)...)
	return lines
}

func (i *Interpreter) forecastLines(ctx context.Context, area string) []string {
	f, err := i.client.NextForecast(ctx)
	if err != nil {
		log.Printf("[client] weather forecast: %v", err)
		return nil
	}
	if f == nil || f.WeatherText == "" {
		return nil
	}
	day := f.WeatherAt.In(takotime.JST)
	lines := []string{
		fmt.Sprintf("%d日 %s %s", day.Day(), dowJA[int(day.Weekday())], area),
		strings.Join(strings.Fields(f.WeatherText), ""),
	}
	var times, pops strings.Builder
	for _, pop := range f.Pops {
		t := pop.Time.In(takotime.JST)
		if t.Hour() < 6 {
			continue
		}
		fmt.Fprintf(&times, "%2s  ", t.Format("15"))
		fmt.Fprintf(&pops, "%2s%% ", pop.Percent)
	}
	lines = append(lines, times.String(), pops.String())
	return lines
}

func (i *Interpreter) historyLines(ctx context.Context) []string {
	txs, err := i.client.History(ctx)
	if err != nil {
		log.Printf("[client] history: %v", err)
		return nil
	}
	sellingPrice := i.client.db.Params().SellingPrice
	lines := []string{
		"Date       Area     weather Ordered In stock Sales/max   Status  ",
		strings.Repeat("-", 66),
	}
	for _, tx := range txs {
		area := tx.Area
		if pad := 4 - utf8.RuneCountInString(area); pad > 0 {
			area += strings.Repeat("　", pad)
		}
		lines = append(lines, fmt.Sprintf("%s %4s %-7s %7d %8d %5d/%-5d %-8s",
			tx.Date, area, tx.Weather,
			tx.QuantityOrdered, tx.QuantityInStock,
			tx.Sales/sellingPrice, tx.MaxSales, tx.Status))
	}
	lines = append(lines, strings.Repeat("-", 66))
	return lines
}

func helpLines() []string {
	return []string{
		"  <Enter> : Show Tako Market Information.",
		"  <Number> : Order tako.",
		"  history : Show History of Transactions.",
		"  quit : Quit this command.",
		"  help : Show this message.",
	}
}
