package domain

// Currency is a resolved currency identity.
type Currency struct {
	Code  string
	Fiat  bool
	Quote bool // may appear as the quote side of a trading pair
}

// IsZero reports whether the currency is unset.
func (c Currency) IsZero() bool {
	return c.Code == ""
}

func (c Currency) String() string {
	return c.Code
}
