// Package kafka publishes fused records to a Kafka topic for downstream
// consumers. The sink is optional; when disabled the pipeline only writes
// CSV artifacts.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/airquality-fusion/internal/config"
	"github.com/couchcryptid/airquality-fusion/internal/domain"
)

// Writer produces fused records to a Kafka topic.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishFused serializes and publishes fused records in a single
// WriteMessages call.
func (w *Writer) PublishFused(ctx context.Context, recs []domain.FusedRecord) error {
	if len(recs) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(recs))
	for i := range recs {
		msg, err := serializeToMessage(recs[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish fused records: %w", err)
	}
	w.logger.Info("published fused records", "count", len(recs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// fusedPayload is the wire form of a fused record.
type fusedPayload struct {
	Timestamp           string  `json:"datetime_utc"`
	City                string  `json:"city"`
	StationID           string  `json:"station_id"`
	StationName         string  `json:"station_name,omitempty"`
	Lat                 float64 `json:"lat"`
	Lon                 float64 `json:"lon"`
	PM25                float64 `json:"pm25"`
	NObs                int     `json:"n_obs"`
	UWind               float64 `json:"u_wind"`
	VWind               float64 `json:"v_wind"`
	WindSpeed           float64 `json:"wind_speed"`
	WindDirection       float64 `json:"wind_direction"`
	TemperatureC        float64 `json:"temperature_c"`
	RelativeHumidity    float64 `json:"relative_humidity"`
	BoundaryLayerHeight float64 `json:"boundary_layer_height"`
	SurfacePressureHPa  float64 `json:"surface_pressure_hpa"`
}

// serializeToMessage marshals a fused record into a Kafka message keyed by
// city, station, and hour so partitioning keeps a station's series ordered.
func serializeToMessage(r domain.FusedRecord) (kafkago.Message, error) {
	data, err := json.Marshal(fusedPayload{
		Timestamp:           r.Timestamp.UTC().Format(time.RFC3339),
		City:                r.City,
		StationID:           r.StationID,
		StationName:         r.StationName,
		Lat:                 r.Lat,
		Lon:                 r.Lon,
		PM25:                r.PM25,
		NObs:                r.NObs,
		UWind:               r.UWind,
		VWind:               r.VWind,
		WindSpeed:           r.WindSpeed,
		WindDirection:       r.WindDirection,
		TemperatureC:        r.TemperatureC,
		RelativeHumidity:    r.RelativeHumidity,
		BoundaryLayerHeight: r.BoundaryLayerHeight,
		SurfacePressureHPa:  r.SurfacePressureHPa,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize fused record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(r.Key()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "city", Value: []byte(r.City)},
			{Key: "produced_at", Value: []byte(domain.Now().Format(time.RFC3339))},
		},
	}, nil
}
