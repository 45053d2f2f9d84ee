// Package render holds every user-facing chat message.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/Armin-kho/price-drop-bot/internal/db"
	"github.com/Armin-kho/price-drop-bot/internal/extract"
	"github.com/Armin-kho/price-drop-bot/internal/utils"
)

// Signature closes most bot messages.
const Signature = "╔══════════════════════╗\n" +
	"║   Price Drop Bot     ║\n" +
	"╚══════════════════════╝"

// MaxListedCandidates caps the "All Detected Prices" section of /list.
const MaxListedCandidates = 5

// Product names are clipped to this many display cells.
const nameWidth = 80

const (
	AddUsage        = "❌ Invalid format. Usage: /add <URL> <Target Price>"
	InvalidPrice    = "❌ Please enter a valid price!"
	InvalidURL      = "❌ Please enter a valid http(s) URL!"
	InvalidIndex    = "❌ Invalid product number."
	InvalidInput    = "❌ Invalid input."
	RemoveTimedOut  = "⏰ Timeout. Please try again."
	TemporaryFailed = "⚠️ Something went wrong. Please try again later."
)

func withSignature(s string) string {
	return s + "\n\n" + Signature
}

func Help() string {
	return withSignature("Welcome to Price Tracker Bot!\n\n" +
		"Commands:\n" +
		"/add <URL> <Target Price> - Add new product\n" +
		"/list - List all products\n" +
		"/remove - Remove product")
}

func Added() string {
	return withSignature("✅ Product added successfully!")
}

func NoProducts() string {
	return withSignature("📝 No products being tracked.")
}

func NothingToRemove() string {
	return withSignature("❌ No products to remove.")
}

func Removed(idx int) string {
	return withSignature(fmt.Sprintf("✅ Product %d removed successfully.", idx))
}

// RemovePrompt lists products with 1-based indices.
func RemovePrompt(products []db.Product) string {
	var b strings.Builder
	b.WriteString("🗑 Enter the number of the product to remove:\n\n")
	for i, p := range products {
		fmt.Fprintf(&b, "%d. %s - %s\n", i+1, p.URL, utils.Money(p.TargetPrice))
	}
	return withSignature(strings.TrimRight(b.String(), "\n"))
}

// ListEntry reports one product of /list with a live price.
func ListEntry(idx int, name, url string, target, current float64, cands []extract.Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔍 Product %d:\n", idx)
	fmt.Fprintf(&b, "📌 %s\n", displayName(name))
	fmt.Fprintf(&b, "🔗 %s\n", url)
	fmt.Fprintf(&b, "🎯 Target: %s\n", utils.Money(target))
	fmt.Fprintf(&b, "💰 Current: %s\n\n", utils.Money(current))
	b.WriteString("📊 All Detected Prices:")
	if len(cands) > MaxListedCandidates {
		cands = cands[:MaxListedCandidates]
	}
	for _, c := range cands {
		fmt.Fprintf(&b, "\n- %s (%s)", utils.Money(c.Price), c.Context)
	}
	return withSignature(b.String())
}

func ListFailure(idx int, url string) string {
	return withSignature(fmt.Sprintf("❌ Product %d:\n🔗 %s\nUnable to fetch price information.", idx, url))
}

type Alert struct {
	Name        string
	URL         string
	Target      float64
	Current     float64
	Description string
	CheckedAt   time.Time
	Calendar    string
}

// PriceDropAlert is sent when the detected price reaches the target.
func PriceDropAlert(a Alert) string {
	desc := a.Description
	if strings.TrimSpace(desc) == "" {
		desc = "Not found"
	}
	var b strings.Builder
	b.WriteString("🎉 Price Drop Alert!\n\n")
	fmt.Fprintf(&b, "Product: %s\n", displayName(a.Name))
	fmt.Fprintf(&b, "URL: %s\n", a.URL)
	fmt.Fprintf(&b, "Target Price: %s\n", utils.Money(a.Target))
	fmt.Fprintf(&b, "Current Price: %s\n", utils.Money(a.Current))
	fmt.Fprintf(&b, "Description: %s", desc)
	if !a.CheckedAt.IsZero() {
		fmt.Fprintf(&b, "\nChecked: %s", utils.FormatTimestamp(a.CheckedAt, a.Calendar))
	}
	return withSignature(b.String())
}

func displayName(name string) string {
	return utils.Truncate(utils.OneLine(name), nameWidth)
}
