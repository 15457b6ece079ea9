package packaging

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"pharmunit/mappers"
	"pharmunit/model"
	"pharmunit/parsers"
)

// unitInput は画面から送られる単位1件です。unitValue は小数も受け取り、整数でなければ弾きます。
type unitInput struct {
	UnitName   string  `json:"unitName"`
	UnitValue  float64 `json:"unitValue"`
	IsBaseUnit bool    `json:"isBaseUnit"`
}

type replaceRequest struct {
	ProductCode string      `json:"productCode"`
	Units       []unitInput `json:"units"`
}

type deleteRequest struct {
	ProductCode string `json:"productCode"`
}

type validateRequest struct {
	Units []unitInput `json:"units"`
}

type toDisplayRequest struct {
	ProductCode  string      `json:"productCode"`
	Units        []unitInput `json:"units"`
	BaseQuantity float64     `json:"baseQuantity"`
	AsOf         string      `json:"asOf"`
}

type toBaseRequest struct {
	ProductCode string      `json:"productCode"`
	Units       []unitInput `json:"units"`
	Input       string      `json:"input"`
}

type asOfResponse struct {
	ProductCode string                 `json:"productCode"`
	AsOf        time.Time              `json:"asOf"`
	Units       []model.UnitDefinition `json:"units"`
}

type importFileResult struct {
	Filename string               `json:"filename"`
	Summary  *model.ImportSummary `json:"summary,omitempty"`
	Error    string               `json:"error,omitempty"`
}

// GetCurrentHandler は有効な単位構成を包装仕様付きで返します。
func GetCurrentHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := strings.TrimSpace(r.URL.Query().Get("product_code"))
		if code == "" {
			respondJSONError(w, ErrProductCodeRequired.Error(), http.StatusBadRequest)
			return
		}
		respondJSON(w, http.StatusOK, mappers.ToUnitSetView(code, svc.GetCurrent(r.Context(), code)))
	}
}

// GetAsOfHandler は date (YYYYMMDD, YYYY-MM-DD, RFC3339) 時点の単位構成を返します。
func GetAsOfHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		code := strings.TrimSpace(q.Get("product_code"))
		if code == "" {
			respondJSONError(w, ErrProductCodeRequired.Error(), http.StatusBadRequest)
			return
		}
		at, err := ParseAsOf(q.Get("date"))
		if err != nil {
			respondJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		respondJSON(w, http.StatusOK, asOfResponse{
			ProductCode: code,
			AsOf:        at,
			Units:       svc.GetAsOf(r.Context(), code, at),
		})
	}
}

func GetHistoryHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := strings.TrimSpace(r.URL.Query().Get("product_code"))
		if code == "" {
			respondJSONError(w, ErrProductCodeRequired.Error(), http.StatusBadRequest)
			return
		}
		respondJSON(w, http.StatusOK, svc.GetHistory(r.Context(), code))
	}
}

// ReplaceHandler は製品の単位構成を新しい世代で置き換えます。
func ReplaceHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePost(w, r) {
			return
		}
		var req replaceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondJSONError(w, "invalid request body", http.StatusBadRequest)
			return
		}

		defs, errs := toDefinitions(req.Units)
		if len(errs) > 0 {
			respondJSON(w, http.StatusBadRequest, model.ReplaceResult{Error: strings.Join(errs, "; ")})
			return
		}

		res := svc.Replace(r.Context(), req.ProductCode, defs)
		respondJSON(w, statusFor(res.Err), res)
	}
}

// DeleteHandler は有効な世代を論理削除します。
func DeleteHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePost(w, r) {
			return
		}
		var req deleteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondJSONError(w, "invalid request body", http.StatusBadRequest)
			return
		}
		res := svc.Delete(r.Context(), req.ProductCode)
		respondJSON(w, statusFor(res.Err), res)
	}
}

// ValidateHandler は保存せずに単位構成を検証します。検証結果は常に 200 で返します。
func ValidateHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePost(w, r) {
			return
		}
		var req validateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondJSONError(w, "invalid request body", http.StatusBadRequest)
			return
		}

		defs, errs := toDefinitions(req.Units)
		if len(errs) > 0 {
			respondJSON(w, http.StatusOK, model.ValidationResult{IsValid: false, Errors: errs, Warnings: []string{}})
			return
		}
		respondJSON(w, http.StatusOK, svc.Validate(defs))
	}
}

// ToDisplayHandler は基本単位数量を包装表記にします。
// units が指定されていれば (空配列を含む) それを、なければ製品の単位構成 (asOf 指定時はその時点) を使います。
func ToDisplayHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePost(w, r) {
			return
		}
		var req toDisplayRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondJSONError(w, "invalid request body", http.StatusBadRequest)
			return
		}

		if req.Units != nil {
			defs, errs := toDefinitions(req.Units)
			if len(errs) > 0 {
				respondJSONError(w, strings.Join(errs, "; "), http.StatusBadRequest)
				return
			}
			respondJSON(w, http.StatusOK, svc.ToDisplay(req.BaseQuantity, defs))
			return
		}

		if strings.TrimSpace(req.ProductCode) == "" {
			respondJSONError(w, "productCode or units is required", http.StatusBadRequest)
			return
		}
		if req.AsOf != "" {
			at, err := ParseAsOf(req.AsOf)
			if err != nil {
				respondJSONError(w, err.Error(), http.StatusBadRequest)
				return
			}
			respondJSON(w, http.StatusOK, svc.DisplayAsOf(r.Context(), req.ProductCode, at, req.BaseQuantity))
			return
		}
		respondJSON(w, http.StatusOK, svc.DisplayForProduct(r.Context(), req.ProductCode, req.BaseQuantity))
	}
}

// ToBaseHandler は "1箱 5シート" のような入力を基本単位数量に変換します。
// 解釈できないトークンは errors に入り、ステータスは 200 のままです。
func ToBaseHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePost(w, r) {
			return
		}
		var req toBaseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondJSONError(w, "invalid request body", http.StatusBadRequest)
			return
		}

		if req.Units != nil {
			defs, errs := toDefinitions(req.Units)
			if len(errs) > 0 {
				respondJSONError(w, strings.Join(errs, "; "), http.StatusBadRequest)
				return
			}
			respondJSON(w, http.StatusOK, svc.ToBaseQuantity(req.Input, defs))
			return
		}

		if strings.TrimSpace(req.ProductCode) == "" {
			respondJSONError(w, "productCode or units is required", http.StatusBadRequest)
			return
		}
		respondJSON(w, http.StatusOK, svc.ParseForProduct(r.Context(), req.ProductCode, req.Input))
	}
}

// ImportUnitsHandler はアップロードされた包装単位CSV (複数可) を取り込みます。
func ImportUnitsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePost(w, r) {
			return
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			respondJSONError(w, "File upload error: "+err.Error(), http.StatusBadRequest)
			return
		}
		defer r.MultipartForm.RemoveAll()

		enc, err := parsers.ParseEncoding(r.FormValue("encoding"))
		if err != nil {
			respondJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}

		files := r.MultipartForm.File["file"]
		if len(files) == 0 {
			respondJSONError(w, "no file uploaded", http.StatusBadRequest)
			return
		}

		results := make([]importFileResult, 0, len(files))
		for _, fh := range files {
			log.Info().Str("filename", fh.Filename).Msg("importing unit csv")
			result := importFileResult{Filename: fh.Filename}

			f, err := fh.Open()
			if err != nil {
				result.Error = fmt.Sprintf("failed to open file: %v", err)
				results = append(results, result)
				continue
			}
			summary, err := svc.ImportCSV(r.Context(), f, enc)
			f.Close()
			if err != nil {
				log.Warn().Err(err).Str("filename", fh.Filename).Msg("unit csv import failed")
				result.Error = err.Error()
			} else {
				result.Summary = &summary
			}
			results = append(results, result)
		}

		respondJSON(w, http.StatusOK, map[string]interface{}{"results": results})
	}
}

// ParseAsOf は日付文字列を解釈します。日付のみの場合はその日の終わり (ローカル時刻) とします。
// 空文字は現在時刻です。
func ParseAsOf(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Now(), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{"20060102", "2006-01-02"} {
		if d, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return d.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date: %s", s)
}

// toDefinitions はリクエストの単位を model に変換します。整数でない値はエラーとして返します。
func toDefinitions(in []unitInput) ([]model.UnitDefinition, []string) {
	defs := make([]model.UnitDefinition, 0, len(in))
	var errs []string
	for _, u := range in {
		v := u.UnitValue
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.Abs(v) > math.MaxInt32 {
			errs = append(errs, fmt.Sprintf("unit %q: unit value must be a positive integer (got %g)", u.UnitName, v))
			continue
		}
		defs = append(defs, model.UnitDefinition{
			UnitName:   u.UnitName,
			UnitValue:  int(v),
			IsBaseUnit: u.IsBaseUnit,
			IsActive:   true,
		})
	}
	return defs, errs
}

func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidConfiguration), errors.Is(err, ErrProductCodeRequired):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		respondJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func respondJSONError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, status, map[string]string{"message": message})
}
