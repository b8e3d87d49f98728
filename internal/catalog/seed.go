package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/pos/internal/clock"
	"github.com/roach88/pos/internal/inventory"
	"github.com/roach88/pos/internal/store"
)

//go:embed schema.cue
var schemaSource string

//go:embed default_seed.yaml
var defaultSeed []byte

// Seed is a menu catalog with opening stock.
type Seed struct {
	Items []SeedItem `json:"items"`
}

// SeedItem is one menu item of a Seed.
type SeedItem struct {
	Name       string      `json:"name"`
	Category   string      `json:"category"`
	PriceCents int64       `json:"price_cents"`
	SKU        string      `json:"sku"`
	Active     bool        `json:"active"`
	Batches    []SeedBatch `json:"batches"`
}

// SeedBatch is opening stock for a SeedItem. ExpiresInDays is relative to
// the day the seed is applied; nil means the batch never expires.
type SeedBatch struct {
	Quantity      int   `json:"quantity"`
	UnitCostCents int64 `json:"unit_cost_cents"`
	ExpiresInDays *int  `json:"expires_in_days,omitempty"`
}

// DefaultSeed returns the embedded sample menu.
func DefaultSeed() (*Seed, error) {
	return ParseSeed(defaultSeed)
}

// LoadSeed reads and validates a YAML seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	seed, err := ParseSeed(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return seed, nil
}

// ParseSeed decodes YAML, unifies it with the #Catalog schema so defaults
// apply, and rejects anything that is not concrete and valid.
func ParseSeed(data []byte) (*Seed, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("seed is empty")
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile catalog schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Catalog"))

	value := def.Unify(ctx.Encode(raw))
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("invalid seed: %s", formatCUEError(err))
	}

	var seed Seed
	if err := value.Decode(&seed); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	for i := range seed.Items {
		seed.Items[i].Name = NormalizeName(seed.Items[i].Name)
	}
	return &seed, nil
}

// formatCUEError joins the individual CUE errors with their paths.
func formatCUEError(err error) string {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err.Error()
	}
	msg := ""
	for i, e := range errs {
		if i > 0 {
			msg += "; "
		}
		msg += e.Error()
	}
	return msg
}

// Apply inserts the seed's items and opening batches in one transaction,
// but only when the menu is empty. It reports whether anything was written.
// Every batch gets its "receive" ledger entry.
func Apply(ctx context.Context, s *store.Store, seed *Seed, clk clock.Clock) (bool, error) {
	applied := false
	err := s.WithTx(ctx, func(tx *store.Tx) error {
		n, err := Count(ctx, tx)
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}

		now := clk.Now().UTC()
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		for _, si := range seed.Items {
			item, err := Create(ctx, tx, NewItem{
				Name:       si.Name,
				Category:   si.Category,
				PriceCents: si.PriceCents,
				SKU:        si.SKU,
				Active:     si.Active,
			})
			if err != nil {
				return err
			}
			for _, sb := range si.Batches {
				var expiry *time.Time
				if sb.ExpiresInDays != nil {
					d := today.AddDate(0, 0, *sb.ExpiresInDays)
					expiry = &d
				}
				if _, err := inventory.Receive(ctx, tx, now, inventory.NewBatch{
					MenuItemID:    item.ID,
					Quantity:      sb.Quantity,
					UnitCostCents: sb.UnitCostCents,
					ExpiryDate:    expiry,
				}); err != nil {
					return err
				}
			}
		}
		applied = true
		return nil
	})
	return applied, err
}
