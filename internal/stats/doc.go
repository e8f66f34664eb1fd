// Package stats decodes per-player statistics records.
//
// A record is the JSON file the game keeps for each player under
// <world>/stats/<uuid>.json:
//
//	{"stats": {"minecraft:mined": {"minecraft:stone": 5}, ...}, "DataVersion": 3465}
//
// Categories lists the nine groupings the exporter understands, in output
// order, together with the metric family, label name and kind each one maps
// to. Decode keeps only the categories present in the file; an absent
// category means no data, not zero. Unknown categories are ignored.
package stats
