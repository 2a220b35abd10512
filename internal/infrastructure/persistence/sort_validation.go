package persistence

import (
	"strings"

	"github.com/clinic/pharmacy/internal/domain/shared"
	"gorm.io/gorm"
)

// ValidateSortOrder normalizes the sort order to ASC or DESC, defaulting to DESC
func ValidateSortOrder(orderDir string) string {
	if strings.ToUpper(strings.TrimSpace(orderDir)) == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField returns sortField when it is whitelisted, defaultField otherwise
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed != "" && allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// MedicationSortFields contains allowed sort fields for medications
var MedicationSortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
	"code":       true,
	"name":       true,
	"category":   true,
}

// LotSortFields contains allowed sort fields for lots
var LotSortFields = map[string]bool{
	"id":                 true,
	"created_at":         true,
	"lot_number":         true,
	"expiry_date":        true,
	"reception_date":     true,
	"quantity_available": true,
}

// MovementSortFields contains allowed sort fields for the ledger
var MovementSortFields = map[string]bool{
	"recorded_at": true,
	"quantity":    true,
	"type":        true,
	"status":      true,
}

// SupplierOrderSortFields contains allowed sort fields for supplier orders
var SupplierOrderSortFields = map[string]bool{
	"id":           true,
	"created_at":   true,
	"updated_at":   true,
	"order_number": true,
	"status":       true,
	"sent_at":      true,
	"received_at":  true,
}

// StockCountSortFields contains allowed sort fields for stock counts
var StockCountSortFields = map[string]bool{
	"id":           true,
	"created_at":   true,
	"count_number": true,
	"status":       true,
	"validated_at": true,
}

// applyOrder orders by a whitelisted field with id as the stable tie-breaker
func applyOrder(query *gorm.DB, filter shared.Filter, allowed map[string]bool, defaultField string) *gorm.DB {
	field := ValidateSortField(filter.OrderBy, allowed, defaultField)
	dir := ValidateSortOrder(filter.OrderDir)
	query = query.Order(field + " " + dir)
	if field != "id" {
		query = query.Order("id " + dir)
	}
	return query
}

// applyPage limits the query to the filter's page
func applyPage(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}
	return query
}

// likePattern escapes LIKE wildcards in a user search term
func likePattern(search string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + strings.ToLower(r.Replace(strings.TrimSpace(search))) + "%"
}
