package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/airquality-fusion/internal/domain"
)

var fusedHeader = []string{
	"datetime_utc", "city", "station_id", "station_name", "lat", "lon",
	"pm25", "n_obs",
	"u_wind", "v_wind", "wind_speed", "wind_direction",
	"temperature_c", "relative_humidity", "boundary_layer_height", "surface_pressure_hpa",
}

// WriteFused writes fused records as CSV to path, creating parent
// directories as needed. Row order is preserved from the input.
func WriteFused(path string, recs []domain.FusedRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := writeFused(f, recs); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func writeFused(w io.Writer, recs []domain.FusedRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(fusedHeader); err != nil {
		return err
	}
	for _, r := range recs {
		row := []string{
			r.Timestamp.UTC().Format(time.RFC3339),
			r.City,
			r.StationID,
			r.StationName,
			formatFloat(r.Lat),
			formatFloat(r.Lon),
			formatFloat(r.PM25),
			strconv.Itoa(r.NObs),
			formatFloat(r.UWind),
			formatFloat(r.VWind),
			formatFloat(r.WindSpeed),
			formatFloat(r.WindDirection),
			formatFloat(r.TemperatureC),
			formatFloat(r.RelativeHumidity),
			formatFloat(r.BoundaryLayerHeight),
			formatFloat(r.SurfacePressureHPa),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteReport writes the rendered similarity report text to path.
func WriteReport(path, report string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(report), 0o644)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
