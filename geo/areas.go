package geo

import "sort"

// Reference data is partitioned into quarters of France, each one a group of
// ISO 3166-2 regions. A constraint only loads the quarters its postal codes
// fall into.
var departmentsByRegion = map[string][]string{
	"FR-ARA": {"01", "03", "07", "15", "26", "38", "42", "43", "63", "69", "73", "74"},
	"FR-BFC": {"21", "25", "39", "58", "70", "71", "89", "90"},
	"FR-BRE": {"22", "29", "35", "56"},
	"FR-CVL": {"18", "28", "36", "37", "41", "45"},
	"FR-COR": {"20"},
	"FR-GES": {"08", "10", "51", "52", "54", "55", "57", "67", "68", "88"},
	"FR-HDF": {"02", "59", "60", "62", "80"},
	"FR-IDF": {"75", "77", "78", "91", "92", "93", "94", "95"},
	"FR-NOR": {"14", "27", "50", "61", "76"},
	"FR-NAQ": {"16", "17", "19", "23", "24", "33", "40", "47", "64", "79", "86", "87"},
	"FR-OCC": {"09", "11", "12", "30", "31", "32", "34", "46", "48", "65", "66", "81", "82"},
	"FR-PDL": {"44", "49", "53", "72", "85"},
	"FR-PAC": {"04", "05", "06", "13", "83", "84"},
}

var regionsByQuarter = map[string][]string{
	"FR-IDF": {"FR-IDF"},
	"FR-NW":  {"FR-BRE", "FR-CVL", "FR-NOR", "FR-PDL"},
	"FR-NE":  {"FR-BFC", "FR-GES", "FR-HDF"},
	"FR-SE":  {"FR-ARA", "FR-COR", "FR-PAC", "FR-OCC"},
	"FR-SW":  {"FR-NAQ"},
}

var quarterByDepartment = func() map[string]string {
	out := make(map[string]string)
	for quarter, regions := range regionsByQuarter {
		for _, region := range regions {
			for _, dep := range departmentsByRegion[region] {
				out[dep] = quarter
			}
		}
	}
	return out
}()

// Quarters lists every known area code
func Quarters() []string {
	out := make([]string, 0, len(regionsByQuarter))
	for q := range regionsByQuarter {
		out = append(out, q)
	}
	sort.Strings(out)
	return out
}

// AreaForPostalCode returns the area a French postal code belongs to, or ""
func AreaForPostalCode(postalCode string) string {
	if len(postalCode) < 2 {
		return ""
	}
	return quarterByDepartment[postalCode[:2]]
}

// AreasForPostalCodes returns the distinct areas covering the given codes
func AreasForPostalCodes(postalCodes []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, pc := range postalCodes {
		area := AreaForPostalCode(pc)
		if area == "" || seen[area] {
			continue
		}
		seen[area] = true
		out = append(out, area)
	}
	sort.Strings(out)
	return out
}
