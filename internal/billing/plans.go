package billing

import (
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed plans.yaml
var defaultPlans []byte

// PlanKind distinguishes one-time packs from subscriptions.
type PlanKind string

const (
	PlanOneTime      PlanKind = "one-time"
	PlanSubscription PlanKind = "subscription"
)

// Selection is what a buyer picked: the amount to charge and the credits granted.
type Selection struct {
	PlanID  string
	Name    string
	Amount  int
	Credits Credits
	Kind    PlanKind
}

// Plan is a price list entry.
type Plan struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Amount      int      `yaml:"amount"`
	Credits     Credits  `yaml:"credits"`
	Kind        PlanKind `yaml:"kind"`
	Popular     bool     `yaml:"popular"`
	Button      string   `yaml:"button"`
	Features    []string `yaml:"features"`
}

// Selection returns the checkout selection for the plan.
func (p Plan) Selection() Selection {
	return Selection{PlanID: p.ID, Name: p.Name, Amount: p.Amount, Credits: p.Credits, Kind: p.Kind}
}

// Catalog is the fixed price list.
type Catalog struct {
	plans []Plan
	byID  map[string]Plan
}

// DefaultCatalog loads the embedded price list.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultPlans)
}

// ParseCatalog decodes a YAML price list.
func ParseCatalog(data []byte) (*Catalog, error) {
	var doc struct {
		Plans []Plan `yaml:"plans"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode plans: %w", err)
	}
	if len(doc.Plans) == 0 {
		return nil, errors.New("decode plans: no plans defined")
	}

	c := &Catalog{plans: doc.Plans, byID: make(map[string]Plan, len(doc.Plans))}
	for _, p := range doc.Plans {
		if p.ID == "" || p.Amount <= 0 {
			return nil, fmt.Errorf("decode plans: plan %q needs an id and a positive amount", p.ID)
		}
		switch p.Kind {
		case PlanOneTime, PlanSubscription:
		default:
			return nil, fmt.Errorf("decode plans: plan %q has unknown kind %q", p.ID, p.Kind)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("decode plans: duplicate plan %q", p.ID)
		}
		c.byID[p.ID] = p
	}
	return c, nil
}

// Plans returns the plans in display order.
func (c *Catalog) Plans() []Plan {
	out := make([]Plan, len(c.plans))
	copy(out, c.plans)
	return out
}

// Lookup finds a plan by ID.
func (c *Catalog) Lookup(id string) (Plan, error) {
	p, ok := c.byID[id]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %q", ErrUnknownPlan, id)
	}
	return p, nil
}
