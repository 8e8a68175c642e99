package billing

import (
	"strings"

	"medflow-service/internal/app/models"
)

type AppliedPackage struct {
	Name         string
	Price        float64
	ConsumedActs []string
	Savings      float64
}

type BundleResult struct {
	// Items holds packages first, unmatched originals after.
	Items   []models.LineItem
	Applied []AppliedPackage
	// Originals is an untouched copy of the input for audit display.
	Originals []models.LineItem
}

// actCodesMatch implements family matching: exact, or one code is a prefix of
// the other up to a '-' or '_' separator (CONSULT matches CONSULT-OPHTA).
func actCodesMatch(a, b string) bool {
	if a == b {
		return true
	}
	for _, sep := range []string{"-", "_"} {
		if strings.HasPrefix(b, a+sep) || strings.HasPrefix(a, b+sep) {
			return true
		}
	}
	return false
}

// BundlePackages folds raw items into the payer's package deals, processed in
// payer-defined order. A package applies only when every required act code
// finds one unmatched candidate item; partial matches leave all involved
// items unbundled. Each item can be consumed by at most one package.
func BundlePackages(items []models.LineItem, packages []models.PackageDeal) BundleResult {
	result := BundleResult{
		Originals: append([]models.LineItem(nil), items...),
	}

	pool := make([]models.LineItem, len(items))
	copy(pool, items)
	consumed := make([]bool, len(pool))

	var packageItems []models.LineItem
	for _, deal := range packages {
		if !deal.Active || len(deal.ActCodes) == 0 {
			continue
		}

		matched := make([]int, 0, len(deal.ActCodes))
		matchedSet := make(map[int]bool)
		complete := true
		for _, code := range deal.ActCodes {
			found := -1
			for i := range pool {
				if consumed[i] || matchedSet[i] {
					continue
				}
				if actCodesMatch(code, pool[i].Code) {
					found = i
					break
				}
			}
			if found < 0 {
				complete = false
				break
			}
			matched = append(matched, found)
			matchedSet[found] = true
		}
		if !complete {
			continue
		}

		var matchedTotal float64
		var consumedActs []models.ActLine
		var consumedCodes []string
		for _, i := range matched {
			consumed[i] = true
			matchedTotal += pool[i].Total
			consumedActs = append(consumedActs, models.ActLine{Code: pool[i].Code, Price: pool[i].Total})
			consumedCodes = append(consumedCodes, pool[i].Code)
		}

		savings := matchedTotal - deal.Price
		packageItem := models.LineItem{
			Code:        deal.Name,
			Description: deal.Name,
			Category:    pool[matched[0]].Category,
			Quantity:    1,
			UnitPrice:   deal.Price,
			IsPackage:   true,
			Package: &models.PackageDetail{
				PackageName:  deal.Name,
				ConsumedActs: consumedActs,
				Savings:      savings,
			},
		}
		packageItem.ComputeTotal()
		packageItems = append(packageItems, packageItem)
		result.Applied = append(result.Applied, AppliedPackage{
			Name:         deal.Name,
			Price:        deal.Price,
			ConsumedActs: consumedCodes,
			Savings:      savings,
		})
	}

	result.Items = packageItems
	for i := range pool {
		if !consumed[i] {
			result.Items = append(result.Items, pool[i])
		}
	}
	return result
}
