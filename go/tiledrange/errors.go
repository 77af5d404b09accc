package tiledrange

import "errors"

// ErrOutOfRange is returned when a tile or element index falls outside the
// range it is being queried against.
var ErrOutOfRange = errors.New("tiledrange: index out of range")

// ErrInvalidRange1 is returned when a Range1's offsets do not form a valid
// strictly increasing partition.
var ErrInvalidRange1 = errors.New("tiledrange: invalid Range1 offsets")
