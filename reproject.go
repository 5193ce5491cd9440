package dem

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-proj/v10"
)

const epsgWGS84 = 4326

// A Reprojector converts between a raster's model coordinates and WGS84
// longitude and latitude.
type Reprojector interface {
	ToLonLat(x, y float64) (lon, lat float64, err error)
	FromLonLat(lon, lat float64) (x, y float64, err error)
}

// A ProjReprojector is a Reprojector backed by PROJ.
type ProjReprojector struct {
	pj *proj.PJ
}

// NewProjReprojector returns a ProjReprojector from the coordinate reference
// system with the given EPSG code to WGS84. Axes are always in x, y (i.e.
// easting, northing or longitude, latitude) order.
func NewProjReprojector(epsg int) (*ProjReprojector, error) {
	pj, err := proj.NewCRSToCRS("epsg:"+strconv.Itoa(epsg), "epsg:4326", nil)
	if err != nil {
		return nil, eris.Wrapf(err, "reproject: epsg:%d", epsg)
	}
	normalizedPJ, err := pj.NormalizeForVisualization()
	if err != nil {
		return nil, eris.Wrapf(err, "reproject: normalize epsg:%d", epsg)
	}
	return &ProjReprojector{
		pj: normalizedPJ,
	}, nil
}

func (r *ProjReprojector) ToLonLat(x, y float64) (float64, float64, error) {
	coord, err := r.pj.Forward(proj.NewCoord(x, y, 0, 0))
	if err != nil {
		return 0, 0, eris.Wrap(err, "reproject: forward")
	}
	return coord.X(), coord.Y(), nil
}

func (r *ProjReprojector) FromLonLat(lon, lat float64) (float64, float64, error) {
	coord, err := r.pj.Inverse(proj.NewCoord(lon, lat, 0, 0))
	if err != nil {
		return 0, 0, eris.Wrap(err, "reproject: inverse")
	}
	return coord.X(), coord.Y(), nil
}

// An EPSGer is a Raster that knows its coordinate reference system.
type EPSGer interface {
	EPSG() (int, bool)
}

// ReprojectorFor returns a Reprojector for raster, or nil if raster is
// already in WGS84 or its coordinate reference system is unknown.
func ReprojectorFor(raster Raster) (Reprojector, error) {
	epsger, ok := raster.(EPSGer)
	if !ok {
		return nil, nil
	}
	epsg, ok := epsger.EPSG()
	if !ok || epsg == epsgWGS84 {
		return nil, nil
	}
	return NewProjReprojector(epsg)
}
