package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ResultSuccess = "success"
	ResultInvalid = "invalid"
	ResultError   = "error"
)

var (
	// PackagingOperations は包装単位の操作回数を操作種別・結果ごとに数えます。
	PackagingOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pharmunit_packaging_operations_total",
			Help: "Total number of package unit operations by operation and result",
		},
		[]string{"operation", "result"},
	)

	// ParseAdvisories は数量入力の解析で記録されたエラー件数です。
	ParseAdvisories = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pharmunit_quantity_parse_advisories_total",
			Help: "Total number of advisories reported while parsing package quantity input",
		},
	)

	// StoreFailures はストア呼び出しの失敗回数です。読み取りはフェイルオープンのため、ここでしか見えません。
	StoreFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pharmunit_store_failures_total",
			Help: "Total number of failed package unit store calls",
		},
		[]string{"call"},
	)
)

func ObserveOperation(operation, result string) {
	PackagingOperations.WithLabelValues(operation, result).Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}
