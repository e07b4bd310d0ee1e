package grid

import (
	"encoding/json"
	"fmt"
)

type tileSetJSON struct {
	TileSize    int      `json:"tile_size"`
	Coordinates [][2]int `json:"coordinates"`
}

// ToJSON returns the tile set as a JSON document containing the tile size and
// the anchor sequence. The round trip through FromJSON is lossless, anchor
// order included.
func (s *TileSet) ToJSON() ([]byte, error) {
	coordinates := make([][2]int, len(s.anchors))
	for i, anchor := range s.anchors {
		coordinates[i] = [2]int{anchor.X, anchor.Y}
	}
	return json.Marshal(tileSetJSON{TileSize: s.tileSize, Coordinates: coordinates})
}

// FromJSON creates a tile set from a document produced by ToJSON.
func FromJSON(data []byte) (*TileSet, error) {
	var document tileSetJSON
	if err := json.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("tileproc: invalid tile set document: %w", err)
	}

	anchors := make([]Anchor, len(document.Coordinates))
	for i, coordinates := range document.Coordinates {
		anchors[i] = Anchor{X: coordinates[0], Y: coordinates[1]}
	}
	return New(document.TileSize, anchors...)
}
