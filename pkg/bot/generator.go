// Package bot synthesizes the throwaway characters that populate the room
// during a chaos event: identity, avatar, placement and what they say.
package bot

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"dollhouse/pkg/room"
)

// Placement bands, in percent of the room, that keep sprites on screen.
const (
	minLeft   = 5
	maxLeft   = 90
	minBottom = 5
	maxBottom = 75
	maxZ      = 100
)

var fallbackAdjectives = []string{"Bot"}

// Generator creates bots by sampling only from its catalog, so every id it
// hands out resolves to a real asset.
type Generator struct {
	catalog    Catalog
	families   []string
	adjectives []string

	mu  sync.Mutex
	rnd *rand.Rand
}

// GeneratorOption customises a Generator.
type GeneratorOption func(*Generator)

// WithRand makes generation reproducible.
func WithRand(rnd *rand.Rand) GeneratorOption {
	return func(g *Generator) {
		if rnd != nil {
			g.rnd = rnd
		}
	}
}

// WithAdjectives sets the words used in front of bot names.
func WithAdjectives(adjectives []string) GeneratorOption {
	return func(g *Generator) {
		if len(adjectives) > 0 {
			g.adjectives = adjectives
		}
	}
}

// NewGenerator fails when the catalog cannot produce a complete avatar.
func NewGenerator(catalog Catalog, opts ...GeneratorOption) (*Generator, error) {
	if err := catalog.Validate(); err != nil {
		return nil, err
	}

	g := &Generator{
		catalog:    catalog,
		families:   catalog.FamilyNames(),
		adjectives: fallbackAdjectives,
		rnd:        rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Catalog returns the catalog the generator samples from.
func (g *Generator) Catalog() Catalog {
	return g.catalog
}

// CreateBot returns a new bot created at now.
func (g *Generator) CreateBot(now time.Time) room.BotActor {
	g.mu.Lock()
	defer g.mu.Unlock()

	familyName := pick(g.rnd, g.families)
	family := g.catalog.Families[familyName]

	avatar := room.AvatarConfig{
		Body: pick(g.rnd, family.Bodies),
		Hair: pick(g.rnd, family.Hair),
	}
	if family.Outfits {
		avatar.Outfit = pick(g.rnd, g.catalog.Outfits)
	}

	return room.BotActor{
		ID:     fmt.Sprintf("%s%d_%08x", room.BotIDPrefix, now.UnixMilli(), g.rnd.Uint32()),
		Name:   fmt.Sprintf("%sBot%d", pick(g.rnd, g.adjectives), g.rnd.IntN(10000)),
		Avatar: avatar,
		Position: room.Position{
			Left:   minLeft + g.rnd.IntN(maxLeft-minLeft),
			Bottom: minBottom + g.rnd.IntN(maxBottom-minBottom),
			Z:      1 + g.rnd.IntN(maxZ),
		},
	}
}

// RandomQuote picks one line from pool, or "" when the pool is empty.
func (g *Generator) RandomQuote(pool []string) string {
	if len(pool) == 0 {
		return ""
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return pick(g.rnd, pool)
}

// Shuffle returns a shuffled copy of ids.
func (g *Generator) Shuffle(ids []string) []string {
	out := append([]string(nil), ids...)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rnd.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// Float64 exposes the generator's random source for decorative values.
func (g *Generator) Float64() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rnd.Float64()
}

// IntN exposes the generator's random source for decorative values.
func (g *Generator) IntN(n int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rnd.IntN(n)
}

func pick(rnd *rand.Rand, values []string) string {
	return values[rnd.IntN(len(values))]
}

// PositionFor places a stored character deterministically, so every viewer
// sees it standing in the same spot.
func PositionFor(seed string) room.Position {
	h := xxhash.Sum64String(seed)
	return room.Position{
		Left:   minLeft + int(h%uint64(maxLeft-minLeft)),
		Bottom: minBottom + int((h>>16)%uint64(maxBottom-minBottom)),
		Z:      1 + int((h>>32)%maxZ),
	}
}

// AvatarFor picks a catalog avatar deterministically from seed, so a
// bridged sender looks the same every time they are seen.
func AvatarFor(catalog Catalog, seed string) room.AvatarConfig {
	h := xxhash.Sum64String(seed)
	families := catalog.FamilyNames()
	if len(families) == 0 {
		return room.AvatarConfig{}
	}
	family := catalog.Families[families[h%uint64(len(families))]]

	avatar := room.AvatarConfig{
		Body: family.Bodies[(h>>8)%uint64(len(family.Bodies))],
		Hair: family.Hair[(h>>24)%uint64(len(family.Hair))],
	}
	if family.Outfits && len(catalog.Outfits) > 0 {
		avatar.Outfit = catalog.Outfits[(h>>40)%uint64(len(catalog.Outfits))]
	}
	return avatar
}
