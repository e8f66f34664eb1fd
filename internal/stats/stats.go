package stats

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/obsidianstack/minecraft-exporter/internal/exposition"
)

var (
	// ErrDecodeFailed is returned when a record is not valid JSON or holds
	// values that are not non-negative integers.
	ErrDecodeFailed = errors.New("stats: decode failed")

	// ErrSchemaMismatch is returned when the record envelope lacks a "stats" object.
	ErrSchemaMismatch = errors.New("stats: schema mismatch")
)

// Category is one of the fixed per-player statistic groupings.
type Category int

const (
	Dropped Category = iota
	Crafted
	Killed
	Broken
	Used
	Mined
	Custom
	PickedUp
	KilledBy
)

// CategoryInfo maps a category to its record key and exposition shape.
type CategoryInfo struct {
	Category Category
	Key      string // JSON key inside the "stats" object
	Family   string
	Help     string
	Label    string // label naming the item, entity or block
	Kind     exposition.Kind
}

// Categories lists every category in output order.
var Categories = []CategoryInfo{
	{Dropped, "minecraft:dropped", "minecraft_items_dropped", "Items dropped by a player.", "item", exposition.Counter},
	{Crafted, "minecraft:crafted", "minecraft_items_crafted", "Items crafted by a player.", "item", exposition.Counter},
	{Killed, "minecraft:killed", "minecraft_entities_killed", "Entities killed by a player.", "entity", exposition.Counter},
	{Broken, "minecraft:broken", "minecraft_blocks_broken", "Items broken by a player.", "block", exposition.Counter},
	{Used, "minecraft:used", "minecraft_items_used", "Items used by a player.", "item", exposition.Counter},
	{Mined, "minecraft:mined", "minecraft_blocks_mined", "Blocks mined by a player.", "block", exposition.Counter},
	// Custom mixes monotonic counts with values that reset (time since death,
	// time since rest), so it is exported as a gauge.
	{Custom, "minecraft:custom", "minecraft_custom", "Custom statistics of a player.", "item", exposition.Gauge},
	{PickedUp, "minecraft:picked_up", "minecraft_items_picked_up", "Items picked up by a player.", "item", exposition.Counter},
	{KilledBy, "minecraft:killed_by", "minecraft_entities_killed_by", "Entities that killed a player.", "entity", exposition.Counter},
}

func (c Category) String() string {
	if int(c) < 0 || int(c) >= len(Categories) {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return Categories[c].Key
}

// Info returns the metadata for c.
func (c Category) Info() CategoryInfo { return Categories[c] }

// Record is the decoded content of one player's statistics file.
type Record struct {
	// DataVersion is the game data version that wrote the record. It is
	// carried through but not interpreted; zero when absent.
	DataVersion int64

	// Counts holds only the categories present in the source record.
	// Values are exported as float64, so counts above 2^53 lose precision.
	Counts map[Category]map[string]uint64
}

// Has reports whether category c was present in the record.
func (r *Record) Has(c Category) bool {
	_, ok := r.Counts[c]
	return ok
}

// Keys returns the keys of category c in sorted order.
func (r *Record) Keys(c Category) []string {
	m := r.Counts[c]
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type envelope struct {
	Stats       json.RawMessage `json:"stats"`
	DataVersion int64           `json:"DataVersion"`
}

// Decode parses a player statistics record. Any subset of the categories may
// be absent; unknown categories are ignored.
func Decode(data []byte) (*Record, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	raw := bytes.TrimSpace(env.Stats)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("%w: missing \"stats\" object", ErrSchemaMismatch)
	}
	if raw[0] != '{' {
		return nil, fmt.Errorf("%w: \"stats\" is not an object", ErrSchemaMismatch)
	}

	var groups map[string]json.RawMessage
	if err := json.Unmarshal(raw, &groups); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}

	rec := &Record{DataVersion: env.DataVersion, Counts: make(map[Category]map[string]uint64)}
	for _, info := range Categories {
		body, ok := groups[info.Key]
		if !ok {
			continue
		}
		var counts map[string]uint64
		if err := json.Unmarshal(body, &counts); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrDecodeFailed, info.Key, err)
		}
		if counts == nil {
			// "minecraft:mined": null behaves like an absent category.
			continue
		}
		if _, empty := counts[""]; empty {
			return nil, fmt.Errorf("%w: %s: empty key", ErrDecodeFailed, info.Key)
		}
		rec.Counts[info.Category] = counts
	}
	return rec, nil
}
