package connection_repository

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type tokenStoreMetrics struct {
	sqlConnectionLookupDuration prometheus.Histogram
	sqlConnectionUpsertDuration prometheus.Histogram
	sqlConnectionDeleteDuration prometheus.Histogram
}

var metrics = initializeTokenStoreMetrics()

func initializeTokenStoreMetrics() *tokenStoreMetrics {
	m := new(tokenStoreMetrics)

	m.sqlConnectionLookupDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "quickbooks_connector_sql_connection_lookup_duration",
		Help: "The amount of time it took to look up a connection in the db",
	})

	m.sqlConnectionUpsertDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "quickbooks_connector_sql_connection_upsert_duration",
		Help: "The amount of time it took to store a connection in the db",
	})

	m.sqlConnectionDeleteDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "quickbooks_connector_sql_connection_delete_duration",
		Help: "The amount of time it took to delete a connection from the db",
	})

	return m
}
