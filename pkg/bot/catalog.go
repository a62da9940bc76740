package bot

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"

	"dollhouse/pkg/room"
)

//go:embed data/*.json
var dataFS embed.FS

var ErrEmptyCatalog = errors.New("asset catalog is empty")

// Family is a set of bodies and hair styles that fit together.
type Family struct {
	Bodies  []string `json:"bodies"`
	Hair    []string `json:"hair"`
	Outfits bool     `json:"outfits"`
}

// Catalog lists every avatar asset id, partitioned by body-type family.
type Catalog struct {
	Families map[string]Family `json:"families"`
	Outfits  []string          `json:"outfits"`
}

// Quotes holds the two tonal pools bots talk from, plus the adjectives used
// for bot names.
type Quotes struct {
	Ambient    []string `json:"ambient"`
	Escalating []string `json:"escalating"`
	Adjectives []string `json:"adjectives"`
}

// DefaultCatalog returns the built-in asset catalog.
func DefaultCatalog() (Catalog, error) {
	var catalog Catalog
	if err := readData("data/assets.json", &catalog); err != nil {
		return Catalog{}, err
	}
	return catalog, nil
}

// DefaultQuotes returns the built-in quote pools.
func DefaultQuotes() (Quotes, error) {
	var quotes Quotes
	if err := readData("data/quotes.json", &quotes); err != nil {
		return Quotes{}, err
	}
	return quotes, nil
}

func readData(path string, target any) error {
	content, err := dataFS.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(content, target); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// Validate reports catalogs the generator cannot sample from.
func (c Catalog) Validate() error {
	if len(c.Families) == 0 {
		return ErrEmptyCatalog
	}
	for name, family := range c.Families {
		if len(family.Bodies) == 0 || len(family.Hair) == 0 {
			return fmt.Errorf("%w: family %q has no bodies or hair", ErrEmptyCatalog, name)
		}
		if family.Outfits && len(c.Outfits) == 0 {
			return fmt.Errorf("%w: family %q wears outfits but none are listed", ErrEmptyCatalog, name)
		}
	}
	return nil
}

// FamilyNames returns the family names in a stable order.
func (c Catalog) FamilyNames() []string {
	names := lo.Keys(c.Families)
	slices.Sort(names)
	return names
}

// FamilyOf returns the family a body id belongs to.
func (c Catalog) FamilyOf(body string) (string, bool) {
	for _, name := range c.FamilyNames() {
		if slices.Contains(c.Families[name].Bodies, body) {
			return name, true
		}
	}
	return "", false
}

// Check verifies that an avatar only uses ids from this catalog, with body
// and hair from the same family and an outfit only where the family allows.
func (c Catalog) Check(avatar room.AvatarConfig) error {
	familyName, ok := c.FamilyOf(strings.TrimSpace(avatar.Body))
	if !ok {
		return fmt.Errorf("unknown body %q", avatar.Body)
	}
	family := c.Families[familyName]
	if !slices.Contains(family.Hair, avatar.Hair) {
		return fmt.Errorf("hair %q does not belong to family %q", avatar.Hair, familyName)
	}
	if avatar.Outfit == "" {
		return nil
	}
	if !family.Outfits {
		return fmt.Errorf("family %q has no outfit slot", familyName)
	}
	if !slices.Contains(c.Outfits, avatar.Outfit) {
		return fmt.Errorf("unknown outfit %q", avatar.Outfit)
	}
	return nil
}
