package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StockAdditions counts successful stock additions per blood type.
	StockAdditions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bloodbank_stock_additions_total",
		Help: "Number of successful stock additions.",
	}, []string{"blood_type"})

	// StockIssuances counts successful stock issuances per blood type.
	StockIssuances = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bloodbank_stock_issuances_total",
		Help: "Number of successful stock issuances.",
	}, []string{"blood_type"})

	// IssuanceConflicts counts issuances aborted by a concurrent deduction.
	IssuanceConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bloodbank_issuance_conflicts_total",
		Help: "Number of issuances aborted due to concurrent stock updates.",
	}, []string{"blood_type"})

	// StockUnits tracks the current aggregate quantity per blood type.
	StockUnits = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bloodbank_stock_units",
		Help: "Current stock level in units per blood type.",
	}, []string{"blood_type"})

	// LowStockAlerts counts dispatched low-stock notifications.
	LowStockAlerts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bloodbank_low_stock_alerts_total",
		Help: "Number of low-stock alert notifications dispatched.",
	}, []string{"blood_type"})
)
