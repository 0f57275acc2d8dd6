// Package mapper converts between geometric coordinates and H3 cells.
package mapper

import (
	"github.com/mohammed-shakir/wfs-clickmap/internal/core/model"
)

type Interface interface {
	CellForPoint(lon, lat float64, res int) (string, error)
	CellsForBBox(bb model.BBox, res int) ([]string, error)
}
