package metricspush

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

// Inventory tracks point-in-time totals read from the database before each
// push.
type Inventory struct {
	registry  *prometheus.Registry
	teams     prometheus.Gauge
	licenses  prometheus.Gauge
	suspended prometheus.Gauge
}

func NewInventory() *Inventory {
	inv := &Inventory{
		registry: prometheus.NewRegistry(),
		teams: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "licensehub_teams",
			Help: "Teams currently registered.",
		}),
		licenses: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "licensehub_licenses",
			Help: "Licenses currently issued.",
		}),
		suspended: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "licensehub_licenses_suspended",
			Help: "Licenses currently suspended.",
		}),
	}
	inv.registry.MustRegister(inv.teams, inv.licenses, inv.suspended)
	return inv
}

func (i *Inventory) Gatherer() prometheus.Gatherer {
	return i.registry
}

// Refresh recounts the totals. A failed count leaves the previous value.
func (i *Inventory) Refresh(ctx context.Context, db *gorm.DB) error {
	var teams, licenses, suspended int64
	if err := db.WithContext(ctx).Table("teams").Count(&teams).Error; err != nil {
		return err
	}
	if err := db.WithContext(ctx).Table("licenses").Count(&licenses).Error; err != nil {
		return err
	}
	if err := db.WithContext(ctx).Table("licenses").Where("suspended = ?", true).Count(&suspended).Error; err != nil {
		return err
	}

	i.teams.Set(float64(teams))
	i.licenses.Set(float64(licenses))
	i.suspended.Set(float64(suspended))
	return nil
}
