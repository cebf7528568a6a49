package extract

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/IshaanNene/SeedGoat/internal/types"
)

// currencySymbols are stripped from the front of a price string.
const currencySymbols = "¥￥"

// ParsePrice converts a listing price such as "¥12,340" into the
// catalogue's price unit: the yen amount divided by 10, truncated.
func ParsePrice(text string) (int, error) {
	s := strings.TrimSpace(text)
	s = strings.TrimLeft(s, currencySymbols)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	yen, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", types.ErrBadPrice, text)
	}
	if yen < 0 {
		return 0, fmt.Errorf("%w: negative amount %q", types.ErrBadPrice, text)
	}
	return yen / 10, nil
}
