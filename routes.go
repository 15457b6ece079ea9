package main

import (
	"net/http"

	"pharmunit/loader"
	"pharmunit/metrics"
	"pharmunit/packaging"
)

func SetupRoutes(mux *http.ServeMux, svc *packaging.Service) {
	mux.HandleFunc("/api/units/current", packaging.GetCurrentHandler(svc))
	mux.HandleFunc("/api/units/as_of", packaging.GetAsOfHandler(svc))
	mux.HandleFunc("/api/units/history", packaging.GetHistoryHandler(svc))

	mux.HandleFunc("/api/units/replace", packaging.ReplaceHandler(svc))
	mux.HandleFunc("/api/units/delete", packaging.DeleteHandler(svc))

	mux.HandleFunc("/api/units/validate", packaging.ValidateHandler(svc))
	mux.HandleFunc("/api/units/to_display", packaging.ToDisplayHandler(svc))
	mux.HandleFunc("/api/units/to_base", packaging.ToBaseHandler(svc))

	mux.HandleFunc("/api/units/import", packaging.ImportUnitsHandler(svc))
	mux.HandleFunc("/api/units/reload", loader.ReloadUnitsHandler(svc))

	mux.HandleFunc("/api/config", ConfigHandler())

	mux.Handle("/metrics", metrics.Handler())
}
