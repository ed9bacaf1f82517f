// Package advisory holds the domain vocabulary shared by the store, the
// application service and the exporters: advisory categories, question
// status, registration numbers and list filters.
package advisory

import (
	"sort"
	"strings"
)

type Category struct {
	Code  string `json:"id"`
	Label string `json:"label"`
}

var categories = []Category{
	{Code: "01", Label: "Penapisan/S.Arahan/PIL"},
	{Code: "02", Label: "KA ANDAL"},
	{Code: "03", Label: "ANDAL, RKL-RPL"},
	{Code: "04", Label: "Addendum ANDAL, RKL-RPL"},
	{Code: "05", Label: "UKL-UPL/DPLH/DELH/RKL Rinci"},
	{Code: "06", Label: "Pertek BMAL Sungai / BAP"},
	{Code: "07", Label: "Pertek BMAL Laut"},
	{Code: "08", Label: "Pertek / Clearance Emisi"},
	{Code: "09", Label: "Rintek LB3"},
	{Code: "10", Label: "Rintek Non B3"},
	{Code: "11", Label: "Andalalin"},
	{Code: "12", Label: "SLO (Air, Emisi, LB3)"},
	{Code: "13", Label: "Regulasi Lingkungan"},
	{Code: "14", Label: "Sharing Knowledge"},
	{Code: "15", Label: "Kemenhut (PPKH, RURH, R.DAS)"},
	{Code: "16", Label: "ESDM (RR, RPT)"},
	{Code: "17", Label: "Tata Ruang (KKPR, PKKPRL)"},
	{Code: "18", Label: "Amdalnet/SIMPEL"},
	{Code: "19", Label: "Lain - Lain"},
}

var categoryLabels = func() map[string]string {
	labels := make(map[string]string, len(categories))
	for _, c := range categories {
		labels[c.Code] = c.Label
	}
	return labels
}()

// Categories returns the fixed category list in code order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

func IsCategory(code string) bool {
	_, ok := categoryLabels[code]
	return ok
}

// CategoryLabel returns the display label, or the code itself when unknown.
func CategoryLabel(code string) string {
	if label, ok := categoryLabels[code]; ok {
		return label
	}
	return code
}

// NormalizeCategories trims, de-duplicates and sorts codes. Blank entries are dropped.
func NormalizeCategories(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

func ContainsCategory(codes []string, code string) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

// JoinCategories is the wire and history representation of a category set.
func JoinCategories(codes []string) string {
	return strings.Join(codes, ",")
}

func SplitCategories(joined string) []string {
	if strings.TrimSpace(joined) == "" {
		return []string{}
	}
	return strings.Split(joined, ",")
}

// DescribeCategories renders "01. Label; 02. Label" for exports.
func DescribeCategories(codes []string) string {
	parts := make([]string, 0, len(codes))
	for _, code := range codes {
		parts = append(parts, code+". "+CategoryLabel(code))
	}
	return strings.Join(parts, "; ")
}
