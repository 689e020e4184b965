package billing

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const receiptWidth = 40

// Renderer produces the plain-text receipt snapshot stored with the
// sale. The stored copy is what reprints return, so later price or
// promotion edits never change an issued receipt.
type Renderer struct {
	repo      *Repository
	storeName string
	printer   *message.Printer
}

func NewRenderer(repo *Repository, storeName string) *Renderer {
	return &Renderer{
		repo:      repo,
		storeName: storeName,
		printer:   message.NewPrinter(language.MustParse("en-IN")),
	}
}

// RenderAndStore loads the sale, renders its receipt and persists the
// snapshot.
func (r *Renderer) RenderAndStore(ctx context.Context, saleID int64) error {
	sale, err := r.repo.GetSale(ctx, saleID)
	if err != nil {
		return fmt.Errorf("billing: load sale %d for receipt: %w", saleID, err)
	}
	return r.repo.SetReceipt(ctx, saleID, r.Render(sale))
}

// Render lays out the receipt. Amounts use Indian digit grouping.
func (r *Renderer) Render(sale *Sale) string {
	var b strings.Builder
	line := strings.Repeat("-", receiptWidth)

	center := func(s string) {
		pad := (receiptWidth - len(s)) / 2
		if pad < 0 {
			pad = 0
		}
		b.WriteString(strings.Repeat(" ", pad) + s + "\n")
	}
	row := func(left, right string) {
		gap := receiptWidth - len(left) - len(right)
		if gap < 1 {
			gap = 1
		}
		b.WriteString(left + strings.Repeat(" ", gap) + right + "\n")
	}

	center(r.storeName)
	b.WriteString(line + "\n")
	row("Invoice: "+sale.InvoiceNo, sale.CreatedAt.Format("02-01-2006 15:04"))
	b.WriteString(line + "\n")

	for _, it := range sale.Items {
		b.WriteString(it.Name + "\n")
		var qty string
		if it.Weight != nil {
			qty = fmt.Sprintf("  %s kg x %s", it.Weight.StringFixed(3), r.amount(it.UnitPrice))
		} else {
			qty = fmt.Sprintf("  %d x %s", it.Quantity, r.amount(it.UnitPrice))
		}
		row(qty, r.amount(it.Total))
	}

	b.WriteString(line + "\n")
	row("Subtotal", r.amount(sale.Subtotal))
	if sale.Discount.Sign() > 0 {
		row("Discount", "-"+r.amount(sale.Discount))
		for _, p := range sale.Promotions {
			row("  "+p.Name, "-"+r.amount(p.Discount))
		}
	}
	row("GST", r.amount(sale.GSTAmount))
	row("TOTAL", r.amount(sale.GrandTotal))
	b.WriteString(line + "\n")

	for _, p := range sale.Payments {
		label := strings.ToUpper(p.Method)
		if p.GiftCardCode != "" {
			label += " (" + p.GiftCardCode + ")"
		}
		row(label, r.amount(p.Amount))
	}

	if sale.PointsEarned > 0 {
		b.WriteString(line + "\n")
		row("Points earned", fmt.Sprintf("%d", sale.PointsEarned))
	}

	b.WriteString(line + "\n")
	center("Thank you, visit again!")
	return b.String()
}

func (r *Renderer) amount(d decimal.Decimal) string {
	f, _ := d.Round(2).Float64()
	return r.printer.Sprintf("%.2f", f)
}
