// Package lookup matches free-text queries against orders and lots.
package lookup

import (
	"regexp"
	"sort"
	"strings"

	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/store"
)

var (
	orderTokenRe = regexp.MustCompile(`[A-Z]\d{8,}`)
	lotTokenRe   = regexp.MustCompile(`\d{10,20}`)
)

// Kind tells what a Record was built from.
type Kind string

const (
	KindOrder   Kind = "order"
	KindProduct Kind = "product"
)

// Record is one searchable candidate.
type Record struct {
	Kind        Kind     `json:"kind"`
	ID          string   `json:"id"`
	OrderID     string   `json:"orderId"`
	LotNumbers  []string `json:"lotNumbers,omitempty"`
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	SKU         string   `json:"sku,omitempty"`
	ItemCode    string   `json:"itemCode,omitempty"`
	Machine     string   `json:"machine,omitempty"`
	Status      string   `json:"status,omitempty"`
}

// Tier ranks how a record matched; lower is better.
type Tier int

const (
	TierExactOrder Tier = iota
	TierOrderSubstring
	TierLot
	TierField
	tierNone
)

func (t Tier) String() string {
	switch t {
	case TierExactOrder:
		return "exact_order"
	case TierOrderSubstring:
		return "order_substring"
	case TierLot:
		return "lot"
	case TierField:
		return "field"
	}
	return "none"
}

// Tokens are the order-number and lot-number shaped substrings of a query.
// Either may be empty.
type Tokens struct {
	Order string `json:"order,omitempty"`
	Lot   string `json:"lot,omitempty"`
}

// ExtractTokens finds the first order-number token (a letter followed by at
// least eight digits, matched case-insensitively) and the first lot-number
// token (10 to 20 digits) in query.
func ExtractTokens(query string) Tokens {
	return Tokens{
		Order: orderTokenRe.FindString(strings.ToUpper(query)),
		Lot:   lotTokenRe.FindString(query),
	}
}

// Match classifies a single record against a query.
func Match(query string, tok Tokens, r Record) Tier {
	if tok.Order != "" {
		id := strings.ToUpper(strings.TrimSpace(r.OrderID))
		if id == tok.Order {
			return TierExactOrder
		}
		if strings.Contains(id, tok.Order) {
			return TierOrderSubstring
		}
	}
	if tok.Lot != "" {
		for _, lot := range r.LotNumbers {
			if strings.Contains(lot, tok.Lot) {
				return TierLot
			}
		}
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return tierNone
	}
	for _, f := range []string{r.Name, r.Description, r.SKU, r.ItemCode} {
		if f != "" && strings.Contains(strings.ToLower(f), q) {
			return TierField
		}
	}
	return tierNone
}

// Result is a matched record with its tier.
type Result struct {
	Record
	Tier Tier `json:"-"`
}

// SearchRanked returns every matching candidate ordered by tier, keeping
// candidate order within a tier. No match yields an empty slice.
func SearchRanked(query string, candidates []Record) []Result {
	tok := ExtractTokens(query)
	results := make([]Result, 0)
	for _, c := range candidates {
		if t := Match(query, tok, c); t != tierNone {
			results = append(results, Result{Record: c, Tier: t})
		}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Tier < results[j].Tier })
	return results
}

// Search is SearchRanked without the tiers.
func Search(query string, candidates []Record) []Record {
	ranked := SearchRanked(query, candidates)
	out := make([]Record, len(ranked))
	for i, r := range ranked {
		out[i] = r.Record
	}
	return out
}

// FromOrders builds order records, collecting the lot numbers of tracked
// products that reference the same order number.
func FromOrders(orders []store.Order, products []store.TrackedProduct) []Record {
	lots := make(map[string][]string)
	for _, p := range products {
		if p.OrderID != "" && p.LotNumber != "" {
			lots[p.OrderID] = append(lots[p.OrderID], p.LotNumber)
		}
	}
	out := make([]Record, 0, len(orders))
	for _, o := range orders {
		out = append(out, Record{
			Kind:        KindOrder,
			ID:          o.ID,
			OrderID:     o.OrderID,
			LotNumbers:  lots[o.OrderID],
			Name:        o.ManufacturedItem,
			Description: o.ItemDesc,
			SKU:         o.Code,
			ItemCode:    o.ItemCode,
			Machine:     o.Machine,
			Status:      o.Status,
		})
	}
	return out
}

// FromProducts builds one record per tracked product.
func FromProducts(products []store.TrackedProduct) []Record {
	out := make([]Record, 0, len(products))
	for _, p := range products {
		var lots []string
		if p.LotNumber != "" {
			lots = []string{p.LotNumber}
		}
		out = append(out, Record{
			Kind:       KindProduct,
			ID:         p.ID,
			OrderID:    p.OrderID,
			LotNumbers: lots,
			Machine:    p.Machine,
			Status:     p.Status,
		})
	}
	return out
}
