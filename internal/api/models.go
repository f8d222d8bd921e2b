// Package api implements the typed client for the remote marketplace API.
// All entities here are ephemeral copies of server-owned data; the client
// never mutates them in place, it re-fetches.
package api

// User is a marketplace account as returned by /me and embedded in trades.
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// Card is immutable reference data owned by the server.
type Card struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Set       string `json:"set"`
	Rarity    string `json:"rarity,omitempty"`
	Condition string `json:"condition,omitempty"`
	ImageURL  string `json:"imageUrl,omitempty"`
	Category  string `json:"category,omitempty"`
}

// TradeCardType tags the direction of a card within a trade.
type TradeCardType string

const (
	// Offering marks a card the trade creator gives away.
	Offering TradeCardType = "OFFERING"
	// Receiving marks a card the trade creator wants in return.
	Receiving TradeCardType = "RECEIVING"
)

// TradeCard is one entry of a trade's ordered card list.
type TradeCard struct {
	ID      string        `json:"id"`
	CardID  string        `json:"cardId"`
	TradeID string        `json:"tradeId"`
	Type    TradeCardType `json:"type"`
	Card    *Card         `json:"card,omitempty"`
}

// TradeStatus is the lifecycle state of a trade. The server omits the field
// for trades that are still open, so the zero value reads as active.
type TradeStatus string

const (
	TradeActive    TradeStatus = "ACTIVE"
	TradeCompleted TradeStatus = "COMPLETED"
	TradeCancelled TradeStatus = "CANCELLED"
)

// Trade is a proposal by one user to exchange offered cards for requested ones.
type Trade struct {
	ID        string      `json:"id"`
	UserID    string      `json:"userId"`
	Status    TradeStatus `json:"status,omitempty"`
	CreatedAt string      `json:"createdAt,omitempty"`
	User      *User       `json:"user,omitempty"`
	Cards     []TradeCard `json:"cards,omitempty"`
}

// AuthResponse is the payload of /login and /register.
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Page is the envelope returned by paginated list endpoints.
type Page[T any] struct {
	List []T  `json:"list"`
	RPP  int  `json:"rpp"`
	Page int  `json:"page"`
	More bool `json:"more"`
}
