package core

// Line-item editing. Each function returns a new slice and never mutates its input,
// keeping sequence numbers contiguous from 1 and line totals equal to quantity x price.

// NewLineItem is the blank row appended by AddItem.
func NewLineItem(seq int) LineItem {
	return LineItem{
		Seq:      seq,
		Unit:     DefaultUnit,
		Quantity: AmountFromInt(1),
	}
}

// AddItem appends a blank item numbered len(items)+1.
func AddItem(items []LineItem) []LineItem {
	out := make([]LineItem, len(items), len(items)+1)
	copy(out, items)
	return append(out, NewLineItem(len(items)+1))
}

// RemoveItem drops the item at index and renumbers the rest.
// Removing the only remaining item is a no-op reported as ErrLastItem.
func RemoveItem(items []LineItem, index int) ([]LineItem, error) {
	if index < 0 || index >= len(items) {
		return cloneItems(items), ErrItemIndex
	}
	if len(items) <= 1 {
		return cloneItems(items), ErrLastItem
	}
	out := make([]LineItem, 0, len(items)-1)
	out = append(out, items[:index]...)
	out = append(out, items[index+1:]...)
	return Renumber(out), nil
}

// Renumber assigns sequence numbers 1..N in slice order.
func Renumber(items []LineItem) []LineItem {
	out := cloneItems(items)
	for i := range out {
		out[i].Seq = i + 1
	}
	return out
}

// SetQuantity parses raw as the quantity of item index and recomputes its total.
func SetQuantity(items []LineItem, index int, raw string) ([]LineItem, error) {
	return editItem(items, index, func(it *LineItem) {
		it.Quantity = ParseAmount(raw)
	})
}

// SetUnitPrice parses raw as the unit price of item index and recomputes its total.
func SetUnitPrice(items []LineItem, index int, raw string) ([]LineItem, error) {
	return editItem(items, index, func(it *LineItem) {
		it.UnitPrice = ParseAmount(raw)
	})
}

// SetDescription replaces the product description of item index.
func SetDescription(items []LineItem, index int, desc string) ([]LineItem, error) {
	return editItem(items, index, func(it *LineItem) {
		it.Description = desc
	})
}

// SetUnit replaces the unit of measure of item index.
func SetUnit(items []LineItem, index int, unit Unit) ([]LineItem, error) {
	return editItem(items, index, func(it *LineItem) {
		if unit == "" {
			unit = DefaultUnit
		}
		it.Unit = unit
	})
}

func editItem(items []LineItem, index int, fn func(*LineItem)) ([]LineItem, error) {
	out := cloneItems(items)
	if index < 0 || index >= len(out) {
		return out, ErrItemIndex
	}
	fn(&out[index])
	out[index].LineTotal = LineTotal(out[index].Quantity, out[index].UnitPrice)
	return out, nil
}

func cloneItems(items []LineItem) []LineItem {
	return append([]LineItem(nil), items...)
}
