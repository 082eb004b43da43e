package domain

import (
	"maps"
	"slices"
)

// CodeTable converts State Department jurisdiction codes to ISO 3166-1
// alpha-2. A CodeTable is immutable once built; use [CodeTable.Merge] to derive
// a variant.
type CodeTable struct {
	codes      map[string]string
	redirects  map[string]string
	aggregates map[string][]string
}

// NewCodeTable builds a table from copies of the given maps.
//
// Redirects are applied before the lookup to route colliding codes to a
// dedicated key. Aggregates name pseudo-codes that stand for several
// territories; they are never reported as mapping gaps.
func NewCodeTable(codes, redirects map[string]string, aggregates map[string][]string) CodeTable {
	t := CodeTable{
		codes:      maps.Clone(codes),
		redirects:  maps.Clone(redirects),
		aggregates: make(map[string][]string, len(aggregates)),
	}
	if t.codes == nil {
		t.codes = map[string]string{}
	}
	if t.redirects == nil {
		t.redirects = map[string]string{}
	}
	for k, v := range aggregates {
		t.aggregates[k] = slices.Clone(v)
	}
	return t
}

// DefaultCodeTable returns the built-in State Department conversion table.
func DefaultCodeTable() CodeTable {
	return NewCodeTable(defaultCodes, defaultRedirects, defaultAggregates)
}

// Merge returns a new table with the given entries layered over t.
func (t CodeTable) Merge(codes, redirects map[string]string, aggregates map[string][]string) CodeTable {
	merged := NewCodeTable(t.codes, t.redirects, t.aggregates)
	maps.Copy(merged.codes, codes)
	maps.Copy(merged.redirects, redirects)
	for k, v := range aggregates {
		merged.aggregates[k] = slices.Clone(v)
	}
	return merged
}

// Resolve maps a jurisdiction code to ISO. Unknown codes are returned
// unchanged with mapped=false.
func (t CodeTable) Resolve(code string) (iso string, mapped bool) {
	key := code
	if r, ok := t.redirects[code]; ok {
		key = r
	}
	if v, ok := t.codes[key]; ok {
		return v, true
	}
	if _, ok := t.aggregates[code]; ok {
		return code, true
	}
	return code, false
}

// Constituents returns the territory codes an aggregate code expands to.
func (t CodeTable) Constituents(code string) ([]string, bool) {
	v, ok := t.aggregates[code]
	return slices.Clone(v), ok
}

// AggregateCodes returns the aggregate pseudo-codes in sorted order.
func (t CodeTable) AggregateCodes() []string {
	return slices.Sorted(maps.Keys(t.aggregates))
}

// IsAggregate reports whether code is an aggregate pseudo-code.
func (t CodeTable) IsAggregate(code string) bool {
	_, ok := t.aggregates[code]
	return ok
}

// ISOCodes returns every ISO code the table can produce, sorted and unique.
func (t CodeTable) ISOCodes() []string {
	seen := make(map[string]struct{}, len(t.codes))
	for _, v := range t.codes {
		seen[v] = struct{}{}
	}
	for _, parts := range t.aggregates {
		for _, v := range parts {
			seen[v] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen))
}

var defaultRedirects = map[string]string{
	// Bolivia's "BL" collides with Saint Barthélemy.
	"BL": "BOLIV",
}

var defaultAggregates = map[string][]string{
	// French overseas territories: Guadeloupe, Martinique, Saint Martin, Saint Barthélemy.
	"A3": {"GP", "MQ", "MF", "BL"},
}

var defaultCodes = map[string]string{
	"AG": "DZ", "AN": "AD", "AV": "AI", "AY": "AQ", "AC": "AG", "AA": "AW",
	"AS": "AU", "AU": "AT", "AJ": "AZ", "BA": "BH", "BG": "BD", "BO": "BY",
	"BH": "BZ", "BN": "BJ", "BD": "BM", "BOLIV": "BO", "A1": "BQ", "BK": "BA",
	"BC": "BW", "VI": "VG", "BX": "BN", "BU": "BG", "UV": "BF", "BM": "MM",
	"BY": "BI", "CB": "KH", "CJ": "KY", "CT": "CF", "CD": "TD", "CI": "CL",
	"CH": "CN", "CN": "KM", "CS": "CR", "IV": "CI", "UC": "CW", "EZ": "CZ",
	"CG": "CD", "DO": "DM", "DR": "DO", "ES": "SV", "EK": "GQ", "EN": "EE",
	"WZ": "SZ", "A2": "GF", "FP": "PF", "GB": "GA", "GG": "GE", "GM": "DE",
	"GJ": "GD", "GV": "GN", "HA": "HT", "HO": "HN", "IC": "IS", "IZ": "IQ",
	"EI": "IE", "JA": "JP", "DA": "DK", "KR": "KI", "KV": "XK", "KU": "KW",
	"LG": "LV", "LE": "LB", "LT": "LS", "LI": "LR", "LS": "LI", "LH": "LT",
	"MA": "MG", "MI": "MW", "RM": "MH", "MP": "MU", "MG": "MN", "MJ": "ME",
	"MH": "MS", "MO": "MA", "WA": "NA", "NU": "NI", "NG": "NE", "NI": "NG",
	"KN": "KP", "MU": "OM", "PS": "PW", "PM": "PA", "PP": "PG", "PA": "PY",
	"RP": "PH", "PO": "PT", "CF": "CG", "RS": "RU", "SC": "KN", "ST": "LC",
	"TP": "ST", "IS": "IL", "SG": "SN", "RI": "RS", "SE": "SC", "SN": "SG",
	"NN": "SX", "LO": "SK", "BP": "SB", "SF": "ZA", "KS": "KR", "OD": "SS",
	"SP": "ES", "CE": "LK", "SU": "SD", "NS": "SR", "SW": "SE", "SR": "CH",
	"TI": "TJ", "BF": "BS", "GA": "GM", "TT": "TL", "TO": "TG", "TN": "TO",
	"TD": "TT", "TS": "TN", "TU": "TR", "TX": "TM", "TK": "TC", "UP": "UA",
	"UK": "GB", "NH": "VU", "VM": "VN", "YM": "YE", "ZA": "ZM", "ZI": "ZW",
	"KO": "KR",
}
