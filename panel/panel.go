// Package panel models CubeSat body and deployable solar panels: their
// geometry, body-to-inertial attitude transform, and the power contract
// that drives them through a solarcell.Cell (spec.md §4.6).
package panel

import (
	"math"

	"github.com/arobi/cubesat-eps/simerr"
	"github.com/arobi/cubesat-eps/solarcell"
	"github.com/arobi/cubesat-eps/vector"
)

// FormFactor is a tagged CubeSat body size.
type FormFactor int

const (
	OneU FormFactor = iota
	ThreeU
	SixU
)

func (f FormFactor) String() string {
	switch f {
	case OneU:
		return "1U"
	case ThreeU:
		return "3U"
	case SixU:
		return "6U"
	default:
		return "unknown"
	}
}

// Face identifies a body axis direction.
type Face int

const (
	PlusX Face = iota
	MinusX
	PlusY
	MinusY
	PlusZ
	MinusZ
)

func (f Face) String() string {
	switch f {
	case PlusX:
		return "+X"
	case MinusX:
		return "-X"
	case PlusY:
		return "+Y"
	case MinusY:
		return "-Y"
	case PlusZ:
		return "+Z"
	case MinusZ:
		return "-Z"
	default:
		return "unknown"
	}
}

func (f Face) normal() vector.Vec3 {
	switch f {
	case PlusX:
		return vector.Vec3{X: 1}
	case MinusX:
		return vector.Vec3{X: -1}
	case PlusY:
		return vector.Vec3{Y: 1}
	case MinusY:
		return vector.Vec3{Y: -1}
	case PlusZ:
		return vector.Vec3{Z: 1}
	case MinusZ:
		return vector.Vec3{Z: -1}
	default:
		return vector.Vec3{}
	}
}

// Panel is a flat solar panel: area, outward body-frame normal, and the
// cell model covering it.
type Panel struct {
	Name          string
	AreaM2        float64
	Normal        vector.Vec3
	Cell          *solarcell.Cell
	PackingFactor float64
	nCells        int
}

// New builds a panel, deriving the integer cell count from area, packing
// factor and the cell's own area.
func New(name string, areaM2 float64, normal vector.Vec3, cell *solarcell.Cell, packingFactor float64) (*Panel, error) {
	if areaM2 <= 0 {
		return nil, simerr.NewConfigError("panel", "AreaM2", "must be positive")
	}
	if cell == nil {
		return nil, simerr.NewConfigError("panel", "Cell", "must not be nil")
	}
	if packingFactor <= 0 {
		return nil, simerr.NewConfigError("panel", "PackingFactor", "must be positive")
	}
	n := normal.Normalize()
	cellArea := cell.Params().AreaM2
	nCells := int(math.Floor(areaM2 * packingFactor / cellArea))
	return &Panel{
		Name:          name,
		AreaM2:        areaM2,
		Normal:        n,
		Cell:          cell,
		PackingFactor: packingFactor,
		nCells:        nCells,
	}, nil
}

// NCells returns the derived integer cell count.
func (p *Panel) NCells() int { return p.nCells }

// Power evaluates the panel power contract (spec.md §4.6):
// max(0, s.n) * G * n_cells * p_cell(G_eff, T_cell) * eta_mppt
func (p *Panel) Power(sunDirBody vector.Vec3, irradiance, tCellK, etaMPPT float64) float64 {
	cosFactor := sunDirBody.Dot(p.Normal)
	if cosFactor <= 0 {
		return 0
	}
	gEff := irradiance * cosFactor
	if gEff <= 0 {
		return 0
	}
	perCell := p.Cell.PowerAtMPP(gEff, tCellK)
	return cosFactor * irradiance * float64(p.nCells) * perCell * etaMPPT
}

// deployed builds a single deployed (wing) panel.
func deployed(name string, areaM2 float64, cell *solarcell.Cell, normal vector.Vec3, packingFactor float64) (*Panel, error) {
	return New(name, areaM2, normal, cell, packingFactor)
}

// Deployed is the exported factory for a single deployed panel of
// arbitrary area, cell and normal (spec.md §4.6 `deployed(...)`).
func Deployed(areaM2 float64, cell *solarcell.Cell, normal vector.Vec3, name string, packingFactor float64) (*Panel, error) {
	return deployed(name, areaM2, cell, normal, packingFactor)
}

// faceAreas returns the six body-face areas for a form factor.
func faceAreas(form FormFactor) map[Face]float64 {
	switch form {
	case ThreeU:
		return map[Face]float64{
			PlusX: 0.03, MinusX: 0.03,
			PlusY: 0.03, MinusY: 0.03,
			PlusZ: 0.01, MinusZ: 0.01,
		}
	case SixU:
		return map[Face]float64{
			PlusX: 0.02, MinusX: 0.02,
			PlusY: 0.06, MinusY: 0.06,
			PlusZ: 0.02, MinusZ: 0.02,
		}
	default: // OneU
		return map[Face]float64{
			PlusX: 0.01, MinusX: 0.01,
			PlusY: 0.01, MinusY: 0.01,
			PlusZ: 0.01, MinusZ: 0.01,
		}
	}
}

// CubesatBody builds the six body-face panels for a form factor, skipping
// any face named in excludeFaces.
func CubesatBody(form FormFactor, cell *solarcell.Cell, packingFactor float64, excludeFaces []Face) ([]*Panel, error) {
	excluded := make(map[Face]bool, len(excludeFaces))
	for _, f := range excludeFaces {
		excluded[f] = true
	}

	areas := faceAreas(form)
	order := []Face{PlusX, MinusX, PlusY, MinusY, PlusZ, MinusZ}

	var panels []*Panel
	for _, f := range order {
		if excluded[f] {
			continue
		}
		pn, err := New(f.String(), areas[f], f.normal(), cell, packingFactor)
		if err != nil {
			return nil, err
		}
		panels = append(panels, pn)
	}
	return panels, nil
}

// longFaceArea returns the larger of the +/-X and +/-Y face areas, used to
// derive the automatic wing area.
func longFaceArea(form FormFactor) float64 {
	areas := faceAreas(form)
	x, y := areas[PlusX], areas[PlusY]
	if y > x {
		return y
	}
	return x
}

// CubesatWithWings builds body panels plus wingCount (2 or 4) deployed
// wings. wingAreaM2 <= 0 selects the automatic area (2x the long-face
// area).
func CubesatWithWings(form FormFactor, cell *solarcell.Cell, packingFactor float64, wingCount int, wingAreaM2 float64, excludeFaces []Face) ([]*Panel, error) {
	if wingCount != 2 && wingCount != 4 {
		return nil, simerr.NewConfigError("panel", "wingCount", "must be 2 or 4")
	}

	body, err := CubesatBody(form, cell, packingFactor, excludeFaces)
	if err != nil {
		return nil, err
	}

	area := wingAreaM2
	if area <= 0 {
		area = 2 * longFaceArea(form)
	}

	var wingNormals []Face
	if wingCount == 2 {
		wingNormals = []Face{PlusY, MinusY}
	} else {
		wingNormals = []Face{PlusX, MinusX, PlusY, MinusY}
	}

	panels := body
	for _, f := range wingNormals {
		wing, err := Deployed(area, cell, f.normal(), "wing"+f.String(), packingFactor)
		if err != nil {
			return nil, err
		}
		panels = append(panels, wing)
	}
	return panels, nil
}

// BodyToInertial returns the nadir-pointing body-frame basis vectors
// expressed in the inertial frame: +Z_body = -r_hat, +X_body = v_hat,
// +Y_body = +Z_body x +X_body.
func BodyToInertial(posECI, velECI vector.Vec3) (xBody, yBody, zBody vector.Vec3) {
	zBody = posECI.Normalize().Neg()
	xBody = velECI.Normalize()
	yBody = zBody.Cross(xBody)
	return xBody, yBody, zBody
}

// InertialToBody rotates an inertial-frame vector into the nadir-pointing
// body frame defined by the given attitude basis.
func InertialToBody(v, xBody, yBody, zBody vector.Vec3) vector.Vec3 {
	return vector.Vec3{
		X: v.Dot(xBody),
		Y: v.Dot(yBody),
		Z: v.Dot(zBody),
	}
}
