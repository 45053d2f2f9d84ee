package render

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Armin-kho/price-drop-bot/internal/db"
	"github.com/Armin-kho/price-drop-bot/internal/extract"
	"github.com/Armin-kho/price-drop-bot/internal/utils"
)

func TestPriceDropAlert(t *testing.T) {
	msg := PriceDropAlert(Alert{
		Name:    "Widget",
		URL:     "https://shop.example/w",
		Target:  20,
		Current: 18.5,
	})
	want := "🎉 Price Drop Alert!\n\n" +
		"Product: Widget\n" +
		"URL: https://shop.example/w\n" +
		"Target Price: $20.00\n" +
		"Current Price: $18.50\n" +
		"Description: Not found\n\n" +
		Signature
	assert.Equal(t, want, msg)
}

func TestPriceDropAlertWithDescriptionAndTime(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 0, 0, time.UTC)
	msg := PriceDropAlert(Alert{
		Name:        "Widget\n  Pro",
		URL:         "u",
		Target:      1,
		Current:     1,
		Description: "Shiny",
		CheckedAt:   at,
		Calendar:    utils.CalendarGregorian,
	})
	assert.Contains(t, msg, "Product: Widget Pro\n")
	assert.Contains(t, msg, "Description: Shiny\nChecked: 2025/01/02 - 03:04 UTC\n\n")
	assert.True(t, strings.HasSuffix(msg, Signature))
}

func TestListEntryCapsCandidates(t *testing.T) {
	var cands []extract.Candidate
	for i := 1; i <= 7; i++ {
		cands = append(cands, extract.Candidate{Price: float64(i), Context: "ctx"})
	}
	msg := ListEntry(2, "Widget", "https://shop.example/w", 12, 10, cands)

	assert.True(t, strings.HasPrefix(msg, "🔍 Product 2:\n📌 Widget\n🔗 https://shop.example/w\n🎯 Target: $12.00\n💰 Current: $10.00\n\n📊 All Detected Prices:\n"))
	assert.Equal(t, MaxListedCandidates, strings.Count(msg, "\n- $"))
	assert.Contains(t, msg, "- $5.00 (ctx)")
	assert.NotContains(t, msg, "- $6.00")
}

func TestListFailure(t *testing.T) {
	assert.Equal(t, "❌ Product 3:\n🔗 https://x\nUnable to fetch price information.\n\n"+Signature, ListFailure(3, "https://x"))
}

func TestRemovePrompt(t *testing.T) {
	msg := RemovePrompt([]db.Product{
		{ID: 7, URL: "https://a", TargetPrice: 10},
		{ID: 9, URL: "https://b", TargetPrice: 2.5},
	})
	assert.Equal(t, "🗑 Enter the number of the product to remove:\n\n1. https://a - $10.00\n2. https://b - $2.50\n\n"+Signature, msg)
}

func TestStaticMessages(t *testing.T) {
	assert.Contains(t, Help(), "/add <URL> <Target Price> - Add new product")
	assert.Contains(t, Help(), "/remove - Remove product")
	assert.True(t, strings.HasPrefix(Added(), "✅ Product added successfully!"))
	assert.True(t, strings.HasPrefix(NoProducts(), "📝 No products being tracked."))
	assert.True(t, strings.HasPrefix(NothingToRemove(), "❌ No products to remove."))
	assert.True(t, strings.HasPrefix(Removed(4), "✅ Product 4 removed successfully."))
}
