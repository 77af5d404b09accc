package tilestore

import (
	"bytes"
	"encoding/gob"

	"go.tiledarray.dev/core/go/skerr"
	"go.tiledarray.dev/core/go/tile"
	"go.tiledarray.dev/core/go/tiledrange"
)

// wireTile is the REPLY_TILE payload: a tile's range and row-major data,
// the minimal fields gob needs to reconstruct it on the requesting side.
type wireTile[T any] struct {
	Range tiledrange.ElementRange
	Data  []T
}

// encodeTile serializes t for transport across the simulated wire.
func encodeTile[T any](t tile.Tile[T]) ([]byte, error) {
	var buf bytes.Buffer
	w := wireTile[T]{Range: t.Range(), Data: t.Data()}
	if err := gob.NewEncoder(&buf).Encode(&w); err != nil {
		return nil, skerr.Wrapf(err, "tilestore: encoding tile for wire transport")
	}
	return buf.Bytes(), nil
}

// decodeTile reconstructs a tile from bytes produced by encodeTile. An
// empty payload, or a payload with no range (which is what encodeTile
// produces for the empty tile of an absent ordinal), decodes to the empty
// tile.
func decodeTile[T any](b []byte) (tile.Tile[T], error) {
	if len(b) == 0 {
		return tile.Empty[T](), nil
	}
	var w wireTile[T]
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&w); err != nil {
		return tile.Tile[T]{}, skerr.Wrapf(err, "tilestore: decoding tile from wire transport")
	}
	if w.Range == nil {
		return tile.Empty[T](), nil
	}
	return tile.FromSlice[T](w.Range, w.Data)
}
