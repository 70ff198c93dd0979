package dataprocessing

import (
	"ecomeda/pkg/contracts/domain"
)

// Probe reports which cleaning and aggregation stages the column set can
// satisfy. It only looks at names; a recognized column holding garbage still
// enables its stages and the bad cells become missing during cleaning.
//
// Views keyed on sales are gated on sales being derivable. A sales column
// already present in the input is overwritten when derivable and otherwise
// left alone without enabling anything.
func Probe(names []string) domain.Capabilities {
	present := make(map[string]bool, len(names))
	for _, n := range names {
		present[n] = true
	}

	sales := present[domain.ColumnPrice] && present[domain.ColumnQuantity] && present[domain.ColumnDiscount]

	return domain.Capabilities{
		PriceCoercion:        present[domain.ColumnPrice],
		SalesDerivable:       sales,
		DateParsing:          present[domain.ColumnOrderDate],
		CategoryDistribution: present[domain.ColumnCategory],
		CategorySales:        present[domain.ColumnCategory] && sales,
		RegionalShare:        present[domain.ColumnRegion] && sales,
		ProductRanking:       present[domain.ColumnProductID] && sales,
		CustomerRanking:      present[domain.ColumnCustomerID] && sales,
		WeekdaySales:         present[domain.ColumnOrderDate] && sales,
	}
}

// Enabled lists the capability names that are true, in declaration order.
// Used for logs and span attributes.
func Enabled(c domain.Capabilities) []string {
	flags := []struct {
		name string
		on   bool
	}{
		{"price_coercion", c.PriceCoercion},
		{"sales_derivable", c.SalesDerivable},
		{"date_parsing", c.DateParsing},
		{"category_distribution", c.CategoryDistribution},
		{"category_sales", c.CategorySales},
		{"regional_share", c.RegionalShare},
		{"product_ranking", c.ProductRanking},
		{"customer_ranking", c.CustomerRanking},
		{"weekday_sales", c.WeekdaySales},
	}
	out := make([]string, 0, len(flags))
	for _, f := range flags {
		if f.on {
			out = append(out, f.name)
		}
	}
	return out
}
