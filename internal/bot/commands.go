package bot

import (
	"context"
	"errors"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/Armin-kho/price-drop-bot/internal/db"
	"github.com/Armin-kho/price-drop-bot/internal/render"
)

func (d *Dispatcher) handleCommand(ctx context.Context, chatID int64, cmd string, args []string) {
	switch cmd {
	case "/start", "/help":
		d.reply(ctx, chatID, render.Help())
	case "/add":
		d.handleAdd(ctx, chatID, args)
	case "/list":
		d.handleList(ctx, chatID)
	case "/remove":
		d.handleRemove(ctx, chatID)
	default:
		d.log.Debug("unknown command", "chat", chatID, "command", cmd)
	}
}

func (d *Dispatcher) handleAdd(ctx context.Context, chatID int64, args []string) {
	if len(args) != 2 {
		d.reply(ctx, chatID, render.AddUsage)
		return
	}
	rawURL, rawPrice := args[0], args[1]

	target, ok := parseTargetPrice(rawPrice)
	if !ok {
		d.reply(ctx, chatID, render.InvalidPrice)
		return
	}
	if !validProductURL(rawURL) {
		d.reply(ctx, chatID, render.InvalidURL)
		return
	}

	p, err := d.store.AddProduct(ctx, rawURL, target, chatID)
	if err != nil {
		d.log.Error("add product", "chat", chatID, "err", err)
		d.reply(ctx, chatID, render.TemporaryFailed)
		return
	}
	d.log.Info("product added", "chat", chatID, "product", p.ID, "target", target)
	d.reply(ctx, chatID, render.Added())
}

// parseTargetPrice accepts finite positive numbers only.
func parseTargetPrice(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, false
	}
	return v, true
}

func validProductURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}

// handleList fetches every product of the chat live and sends one message
// per product. A failed fetch only affects its own entry.
func (d *Dispatcher) handleList(ctx context.Context, chatID int64) {
	products, err := d.store.ListProductsByUser(ctx, chatID)
	if err != nil {
		d.log.Error("list products", "chat", chatID, "err", err)
		d.reply(ctx, chatID, render.TemporaryFailed)
		return
	}
	if len(products) == 0 {
		d.reply(ctx, chatID, render.NoProducts())
		return
	}
	for i, p := range products {
		if ctx.Err() != nil {
			return
		}
		res := d.fetch.FetchPriceAndDetails(ctx, p.URL, p.TargetPrice)
		if !res.HasPrice() {
			d.reply(ctx, chatID, render.ListFailure(i+1, p.URL))
			continue
		}
		d.reply(ctx, chatID, render.ListEntry(i+1, res.ProductName, p.URL, p.TargetPrice, *res.BestPrice, res.Candidates))
	}
}

func (d *Dispatcher) handleRemove(ctx context.Context, chatID int64) {
	products, err := d.store.ListProductsByUser(ctx, chatID)
	if err != nil {
		d.log.Error("list products", "chat", chatID, "err", err)
		d.reply(ctx, chatID, render.TemporaryFailed)
		return
	}
	if len(products) == 0 {
		d.reply(ctx, chatID, render.NothingToRemove())
		return
	}
	ids := make([]int64, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}
	d.setAwait(chatID, AwaitRemoveIndex, ids)
	d.reply(ctx, chatID, render.RemovePrompt(products))
}

// resolveRemove handles the reply to a /remove prompt. The session has
// already been cleared by the caller.
func (d *Dispatcher) resolveRemove(ctx context.Context, chatID int64, text string, sess Session) {
	if d.now().After(sess.Deadline) {
		d.reply(ctx, chatID, render.RemoveTimedOut)
		return
	}
	idx, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		d.reply(ctx, chatID, render.InvalidInput)
		return
	}
	if idx < 1 || idx > len(sess.ProductIDs) {
		d.reply(ctx, chatID, render.InvalidIndex)
		return
	}

	id := sess.ProductIDs[idx-1]
	if err := d.store.DeleteProduct(ctx, id, chatID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			d.reply(ctx, chatID, render.InvalidIndex)
			return
		}
		d.log.Error("delete product", "chat", chatID, "product", id, "err", err)
		d.reply(ctx, chatID, render.TemporaryFailed)
		return
	}
	d.log.Info("product removed", "chat", chatID, "product", id)
	d.reply(ctx, chatID, render.Removed(idx))
}
