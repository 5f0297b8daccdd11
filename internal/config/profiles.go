package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/airquality-fusion/internal/domain"
)

// profilesFile is the on-disk YAML schema. Durations are strings ("1h", "3h")
// and converted during load; everything else maps straight onto domain types.
type profilesFile struct {
	QC     *domain.QCParams `yaml:"qc"`
	Cities []rawProfile     `yaml:"cities"`
}

type rawProfile struct {
	ID              string            `yaml:"id"`
	CenterLat       float64           `yaml:"center_lat"`
	CenterLon       float64           `yaml:"center_lon"`
	RadiusKm        float64           `yaml:"radius_km"`
	Resolution      string            `yaml:"resolution"`
	Pollutant       domain.ValueRange `yaml:"pollutant_range"`
	Source          string            `yaml:"source"`
	GroundTruthMean float64           `yaml:"ground_truth_mean"`
	BiasFactor      float64           `yaml:"bias_factor"`
}

// LoadProfiles reads and validates the city profile file. The comparison is
// strictly pairwise, so the file must declare exactly two cities.
func LoadProfiles(path string) (domain.QCParams, []domain.CityProfile, error) {
	qc := domain.DefaultQCParams()

	data, err := os.ReadFile(path)
	if err != nil {
		return qc, nil, fmt.Errorf("read profiles: %w", err)
	}

	var file profilesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return qc, nil, fmt.Errorf("parse profiles %s: %w", path, err)
	}

	if file.QC != nil {
		qc = *file.QC
	}
	if err := qc.Validate(); err != nil {
		return qc, nil, err
	}

	if len(file.Cities) != 2 {
		return qc, nil, fmt.Errorf("profiles %s: expected exactly 2 cities, got %d", path, len(file.Cities))
	}

	profiles := make([]domain.CityProfile, 0, len(file.Cities))
	for _, raw := range file.Cities {
		p, err := raw.toProfile()
		if err != nil {
			return qc, nil, err
		}
		if err := p.Validate(); err != nil {
			return qc, nil, err
		}
		profiles = append(profiles, p)
	}
	if profiles[0].City == profiles[1].City {
		return qc, nil, fmt.Errorf("profiles %s: city ids must be distinct, both are %q", path, profiles[0].City)
	}

	return qc, profiles, nil
}

func (r rawProfile) toProfile() (domain.CityProfile, error) {
	resolution, err := time.ParseDuration(r.Resolution)
	if err != nil {
		return domain.CityProfile{}, fmt.Errorf("city profile %s: invalid resolution %q: %w", r.ID, r.Resolution, err)
	}
	return domain.CityProfile{
		City:            r.ID,
		CenterLat:       r.CenterLat,
		CenterLon:       r.CenterLon,
		RadiusKm:        r.RadiusKm,
		Resolution:      resolution,
		Pollutant:       r.Pollutant,
		Source:          domain.PollutantSource(r.Source),
		GroundTruthMean: r.GroundTruthMean,
		BiasFactor:      r.BiasFactor,
	}, nil
}
