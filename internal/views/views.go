// Package views derives display collections from fetched data. Every
// function is pure: same inputs, same output, no shared state.
package views

import (
	"strings"

	"github.com/cardtrader/cardtrader/internal/api"
)

// FilterBySearch keeps the cards whose name, set, or rarity contains term,
// case-insensitively. An empty term keeps everything.
func FilterBySearch(cards []api.Card, term string) []api.Card {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return cards
	}
	out := make([]api.Card, 0, len(cards))
	for _, card := range cards {
		if strings.Contains(strings.ToLower(card.Name), term) ||
			strings.Contains(strings.ToLower(card.Set), term) ||
			strings.Contains(strings.ToLower(card.Rarity), term) {
			out = append(out, card)
		}
	}
	return out
}

// FilterByCategory keeps the cards whose category equals category exactly.
// An empty category or "all" keeps everything.
func FilterByCategory(cards []api.Card, category string) []api.Card {
	if category == "" || category == "all" {
		return cards
	}
	out := make([]api.Card, 0, len(cards))
	for _, card := range cards {
		if card.Category == category {
			out = append(out, card)
		}
	}
	return out
}

// ExcludeOwned removes from cards every card whose id appears in owned.
func ExcludeOwned(cards, owned []api.Card) []api.Card {
	if len(owned) == 0 {
		return cards
	}
	ownedIDs := make(map[string]struct{}, len(owned))
	for _, card := range owned {
		ownedIDs[card.ID] = struct{}{}
	}
	out := make([]api.Card, 0, len(cards))
	for _, card := range cards {
		if _, ok := ownedIDs[card.ID]; !ok {
			out = append(out, card)
		}
	}
	return out
}

// TradeGroups partitions trades by lifecycle state.
type TradeGroups struct {
	Active    []api.Trade
	Completed []api.Trade
	Cancelled []api.Trade
}

// PartitionTrades splits trades by status. The partition is exhaustive and
// disjoint: an absent or unrecognized status counts as active.
func PartitionTrades(trades []api.Trade) TradeGroups {
	var groups TradeGroups
	for _, trade := range trades {
		switch trade.Status {
		case api.TradeCompleted:
			groups.Completed = append(groups.Completed, trade)
		case api.TradeCancelled:
			groups.Cancelled = append(groups.Cancelled, trade)
		default:
			groups.Active = append(groups.Active, trade)
		}
	}
	return groups
}

// TradesByUser keeps the trades owned by userID.
func TradesByUser(trades []api.Trade, userID string) []api.Trade {
	out := make([]api.Trade, 0, len(trades))
	for _, trade := range trades {
		if trade.UserID == userID {
			out = append(out, trade)
		}
	}
	return out
}
