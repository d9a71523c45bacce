package core

import "strings"

// Category classifies a transaction. The eight known categories are stored by
// their display label; anything else is a custom category carried verbatim.
type Category string

const (
	CategoryFood          Category = "餐饮"
	CategoryTransport     Category = "交通"
	CategoryShopping      Category = "购物"
	CategoryHousing       Category = "居住"
	CategoryEntertainment Category = "娱乐"
	CategoryHealth        Category = "医疗"
	CategorySalary        Category = "薪资"
	CategoryOthers        Category = "其他"
)

// CategoryInfo pairs a known category with its stable key.
type CategoryInfo struct {
	Key   string   `json:"key"`
	Label Category `json:"label"`
}

var knownCategories = []CategoryInfo{
	{"FOOD", CategoryFood},
	{"TRANSPORT", CategoryTransport},
	{"SHOPPING", CategoryShopping},
	{"HOUSING", CategoryHousing},
	{"ENTERTAINMENT", CategoryEntertainment},
	{"HEALTH", CategoryHealth},
	{"SALARY", CategorySalary},
	{"OTHERS", CategoryOthers},
}

// KnownCategories returns the closed category set in display order.
func KnownCategories() []CategoryInfo {
	out := make([]CategoryInfo, len(knownCategories))
	copy(out, knownCategories)
	return out
}

// CategoryLabels returns the labels of the known categories.
func CategoryLabels() []string {
	out := make([]string, 0, len(knownCategories))
	for _, c := range knownCategories {
		out = append(out, string(c.Label))
	}
	return out
}

// ParseCategory maps a label or key to a known category. Empty input is
// OTHERS; any other unrecognized text becomes a custom category.
func ParseCategory(s string) Category {
	s = strings.TrimSpace(s)
	if s == "" {
		return CategoryOthers
	}
	for _, c := range knownCategories {
		if s == string(c.Label) || strings.EqualFold(s, c.Key) {
			return c.Label
		}
	}
	return Category(s)
}

// Key returns the stable key of a known category, or "" for custom ones.
func (c Category) Key() string {
	for _, k := range knownCategories {
		if k.Label == c {
			return k.Key
		}
	}
	return ""
}

func (c Category) IsKnown() bool {
	return c.Key() != ""
}

func (c Category) IsCustom() bool {
	return c != "" && !c.IsKnown()
}

func (c Category) String() string {
	return string(c)
}
