package risk

import (
	"encoding/json"
	"strconv"

	"github.com/shopspring/decimal"
)

func decimalFromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func unmarshalJSON(text []byte, v *PolicyConfig) error {
	return json.Unmarshal(text, v)
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
