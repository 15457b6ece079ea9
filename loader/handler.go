package loader

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"pharmunit/config"
	"pharmunit/packaging"
)

// ReloadUnitsHandler は設定された取込フォルダの包装単位CSVを再読み込みします。
func ReloadUnitsHandler(svc *packaging.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Info().Msg("HTTP request received: Reloading unit csv folder...")

		cfg := config.GetConfig()
		if cfg.UnitImportFolderPath == "" {
			writeError(w, "unitImportFolderPath is not configured", http.StatusBadRequest)
			return
		}

		results, err := ImportFolder(r.Context(), svc, cfg.UnitImportFolderPath)
		if err != nil {
			log.Error().Err(err).Msg("failed to reload unit csv folder")
			writeError(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"message": fmt.Sprintf("Processed %d unit csv file(s).", len(results)),
			"results": results,
		})
	}
}

func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}
