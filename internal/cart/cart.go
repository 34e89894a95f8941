// Package cart keeps the single-pharmacy reservation cart of a device.
package cart

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"pharmfinder/m/domain"
)

// Change says what Add did to the cart.
type Change string

const (
	ChangeAdded       Change = "added"
	ChangeIncremented Change = "incremented"
	ChangeReset       Change = "reset"
	ChangeNone        Change = "none"
)

// Notice is the toast the shells show after a cart change.
type Notice struct {
	Change      Change `json:"change"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Cart is an ordered list of lines that all belong to one pharmacy.
type Cart struct {
	Items []domain.CartItem
}

// PharmacyID returns the pharmacy of the cart, false when it is empty.
func (c *Cart) PharmacyID() (int64, bool) {
	if len(c.Items) == 0 {
		return 0, false
	}
	return c.Items[0].PharmacyID, true
}

// Add puts one unit of item in the cart. An item from another pharmacy
// replaces the whole cart.
func (c *Cart) Add(item domain.CartItem) Notice {
	item.Quantity = 1
	if id, ok := c.PharmacyID(); ok && id != item.PharmacyID {
		c.Items = []domain.CartItem{item}
		return Notice{
			Change:      ChangeReset,
			Title:       "Panier réinitialisé",
			Description: "Vous ne pouvez commander que d'une seule pharmacie à la fois.",
		}
	}
	for i := range c.Items {
		if c.Items[i].MedicationID == item.MedicationID {
			c.Items[i].Quantity++
			return Notice{
				Change:      ChangeIncremented,
				Title:       "Quantité mise à jour",
				Description: item.MedicationName + " (x" + strconv.FormatInt(c.Items[i].Quantity, 10) + ")",
			}
		}
	}
	c.Items = append(c.Items, item)
	return Notice{Change: ChangeAdded, Title: "Ajouté au panier", Description: item.MedicationName}
}

// AddAll adds every item not already in the cart, at quantity 1. Items must
// share one pharmacy; a different pharmacy than the cart's resets it first.
func (c *Cart) AddAll(items []domain.CartItem) Notice {
	if len(items) == 0 {
		return Notice{Change: ChangeNone}
	}
	notice := Notice{Change: ChangeAdded, Title: "Ajouté au panier"}
	if id, ok := c.PharmacyID(); ok && id != items[0].PharmacyID {
		c.Items = nil
		notice = Notice{
			Change:      ChangeReset,
			Title:       "Panier réinitialisé",
			Description: "Vous ne pouvez commander que d'une seule pharmacie à la fois.",
		}
	}

	present := make(map[int64]bool, len(c.Items))
	for _, it := range c.Items {
		present[it.MedicationID] = true
	}
	var added []string
	for _, it := range items {
		if present[it.MedicationID] || it.PharmacyID != items[0].PharmacyID {
			continue
		}
		present[it.MedicationID] = true
		it.Quantity = 1
		c.Items = append(c.Items, it)
		added = append(added, it.MedicationName)
	}
	if notice.Change == ChangeReset {
		return notice
	}
	if len(added) == 0 {
		return Notice{Change: ChangeNone}
	}
	notice.Description = strings.Join(added, ", ")
	return notice
}

// UpdateQuantity sets the quantity of a line; qty <= 0 removes it. It
// reports whether the line existed.
func (c *Cart) UpdateQuantity(medicationID, qty int64) bool {
	if qty <= 0 {
		return c.Remove(medicationID)
	}
	for i := range c.Items {
		if c.Items[i].MedicationID == medicationID {
			c.Items[i].Quantity = qty
			return true
		}
	}
	return false
}

// Remove drops a line and reports whether it existed.
func (c *Cart) Remove(medicationID int64) bool {
	for i := range c.Items {
		if c.Items[i].MedicationID == medicationID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Cart) Clear() {
	c.Items = nil
}

// Total sums price × quantity. A price that is not a decimal number counts
// as zero.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(UnitPrice(it).Mul(decimal.NewFromInt(it.Quantity)))
	}
	return total
}

// Count sums quantities.
func (c *Cart) Count() int64 {
	var n int64
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// UnitPrice parses the price string of a line, zero when unparsable.
func UnitPrice(it domain.CartItem) decimal.Decimal {
	price, err := decimal.NewFromString(strings.TrimSpace(it.Price))
	if err != nil {
		return decimal.Zero
	}
	return price
}
