package report

import (
	"html"
	"math/big"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"farmScope/internal/model"
)

// Formatter renders pool stats as Telegram HTML.
type Formatter struct {
	printer *message.Printer
}

func NewFormatter() *Formatter {
	return &Formatter{printer: message.NewPrinter(language.English)}
}

// Render writes one block per stat, in input order.
func (f *Formatter) Render(stats []model.PairStat) string {
	var b strings.Builder
	for _, stat := range stats {
		f.writeBlock(&b, stat)
	}
	return b.String()
}

func (f *Formatter) writeBlock(b *strings.Builder, stat model.PairStat) {
	network := html.EscapeString(strings.ToUpper(stat.Network))
	if stat.Degraded() {
		b.WriteString(f.printer.Sprintf("<b>Network: %s, Pool: %s</b>\n", network, stat.Pool.Hex()))
		b.WriteString("Stats unavailable\n\n")
		return
	}

	pair := html.EscapeString(stat.StakingToken0) + "/" + html.EscapeString(stat.StakingToken1)
	b.WriteString(f.printer.Sprintf("<b>Network: %s, Pair: %s</b>\n", network, pair))
	b.WriteString("Pair TVL       : USD " + f.integer(stat.PairTVL) + "\n")
	b.WriteString("Farm Staked TVL: USD " + f.integer(stat.StakedValue) + "\n")
	b.WriteString("Farm APY       : " + f.percent(stat.PoolAPR) + "%\n")
	b.WriteString("\n")
}

func (f *Formatter) integer(v *big.Int) string {
	if v == nil {
		return "0"
	}
	if !v.IsInt64() {
		return v.String()
	}
	return f.printer.Sprint(number.Decimal(v.Int64()))
}

// percent converts an APR with 2 implied decimals into a percentage string.
func (f *Formatter) percent(apr *big.Int) string {
	if apr == nil {
		return "0"
	}
	pct, _ := new(big.Rat).SetFrac(apr, big.NewInt(100)).Float64()
	return f.printer.Sprint(number.Decimal(pct, number.MaxFractionDigits(2)))
}
