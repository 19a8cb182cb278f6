package billing

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// unlimitedWire is how the backend represents an unlimited balance or purchase.
const unlimitedWire = -1

// Credits is a non-negative credit count or the Unlimited sentinel.
type Credits struct {
	count     int
	unlimited bool
}

// Unlimited is the sentinel for subscription plans.
var Unlimited = Credits{unlimited: true}

// Count returns a finite credit amount. Negative values read as Unlimited,
// matching the backend representation.
func Count(n int) Credits {
	if n < 0 {
		return Unlimited
	}
	return Credits{count: n}
}

// IsUnlimited reports whether c is the Unlimited sentinel.
func (c Credits) IsUnlimited() bool { return c.unlimited }

// Int returns the backend representation: the count, or -1 for Unlimited.
func (c Credits) Int() int {
	if c.unlimited {
		return unlimitedWire
	}
	return c.count
}

func (c Credits) String() string {
	if c.unlimited {
		return "Unlimited"
	}
	return strconv.Itoa(c.count)
}

// ParseCredits accepts a decimal count or the word "unlimited".
func ParseCredits(raw string) (Credits, error) {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, "unlimited") {
		return Unlimited, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return Credits{}, fmt.Errorf("invalid credits %q", raw)
	}
	return Count(n), nil
}

func (c Credits) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Int())
}

func (c *Credits) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*c = Count(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("credits must be a number or \"unlimited\": %w", err)
	}
	parsed, err := ParseCredits(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c *Credits) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := ParseCredits(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*c = parsed
	return nil
}
