package service

import (
	"strings"
)

// Region is a code/label pair used for countries and their subdivisions
type Region struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// SubdivisionTable is the closed list of subdivisions of one country
type SubdivisionTable struct {
	entries []Region
}

// NoSubdivisions marks a country that has no subdivision list
var NoSubdivisions = SubdivisionTable{}

func subdivisions(pairs ...string) SubdivisionTable {
	entries := make([]Region, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		entries = append(entries, Region{Code: pairs[i], Label: pairs[i+1]})
	}
	return SubdivisionTable{entries: entries}
}

// Defined reports whether the country has a subdivision list
func (t SubdivisionTable) Defined() bool {
	return len(t.entries) > 0
}

// Entries returns a copy of the table
func (t SubdivisionTable) Entries() []Region {
	return append([]Region(nil), t.entries...)
}

// Lookup finds a subdivision by code
func (t SubdivisionTable) Lookup(code string) (Region, bool) {
	for _, r := range t.entries {
		if r.Code == code {
			return r, true
		}
	}
	return Region{}, false
}

// Country is a selectable country and its subdivision table
type Country struct {
	Region
	Subdivisions SubdivisionTable
}

var countries = []Country{
	{Region{"us", "United States"}, subdivisions(
		"al", "Alabama", "ak", "Alaska", "az", "Arizona", "ar", "Arkansas",
		"ca", "California", "co", "Colorado", "ct", "Connecticut", "de", "Delaware",
		"dc", "District of Columbia", "fl", "Florida", "ga", "Georgia", "hi", "Hawaii",
		"id", "Idaho", "il", "Illinois", "in", "Indiana", "ia", "Iowa",
		"ks", "Kansas", "ky", "Kentucky", "la", "Louisiana", "me", "Maine",
		"md", "Maryland", "ma", "Massachusetts", "mi", "Michigan", "mn", "Minnesota",
		"ms", "Mississippi", "mo", "Missouri", "mt", "Montana", "ne", "Nebraska",
		"nv", "Nevada", "nh", "New Hampshire", "nj", "New Jersey", "nm", "New Mexico",
		"ny", "New York", "nc", "North Carolina", "nd", "North Dakota", "oh", "Ohio",
		"ok", "Oklahoma", "or", "Oregon", "pa", "Pennsylvania", "ri", "Rhode Island",
		"sc", "South Carolina", "sd", "South Dakota", "tn", "Tennessee", "tx", "Texas",
		"ut", "Utah", "vt", "Vermont", "va", "Virginia", "wa", "Washington",
		"wv", "West Virginia", "wi", "Wisconsin", "wy", "Wyoming",
	)},
	{Region{"ca", "Canada"}, subdivisions(
		"ab", "Alberta", "bc", "British Columbia", "mb", "Manitoba",
		"nb", "New Brunswick", "nl", "Newfoundland and Labrador",
		"ns", "Nova Scotia", "nt", "Northwest Territories", "nu", "Nunavut",
		"on", "Ontario", "pe", "Prince Edward Island", "qc", "Quebec",
		"sk", "Saskatchewan", "yt", "Yukon",
	)},
	{Region{"uk", "United Kingdom"}, subdivisions(
		"eng", "England", "sct", "Scotland", "wls", "Wales", "nir", "Northern Ireland",
	)},
	{Region{"au", "Australia"}, subdivisions(
		"act", "Australian Capital Territory", "nsw", "New South Wales",
		"nt", "Northern Territory", "qld", "Queensland", "sa", "South Australia",
		"tas", "Tasmania", "vic", "Victoria", "wa", "Western Australia",
	)},
	{Region{"in", "India"}, subdivisions(
		"ap", "Andhra Pradesh", "ar", "Arunachal Pradesh", "as", "Assam", "br", "Bihar",
		"cg", "Chhattisgarh", "dl", "Delhi", "ga", "Goa", "gj", "Gujarat",
		"hr", "Haryana", "hp", "Himachal Pradesh", "jk", "Jammu and Kashmir",
		"jh", "Jharkhand", "ka", "Karnataka", "kl", "Kerala", "mp", "Madhya Pradesh",
		"mh", "Maharashtra", "mn", "Manipur", "ml", "Meghalaya", "mz", "Mizoram",
		"nl", "Nagaland", "od", "Odisha", "pb", "Punjab", "rj", "Rajasthan",
		"sk", "Sikkim", "tn", "Tamil Nadu", "ts", "Telangana", "tr", "Tripura",
		"up", "Uttar Pradesh", "uk", "Uttarakhand", "wb", "West Bengal",
	)},
	{Region{"de", "Germany"}, NoSubdivisions},
	{Region{"fr", "France"}, NoSubdivisions},
	{Region{"sg", "Singapore"}, NoSubdivisions},
	{Region{"ae", "United Arab Emirates"}, NoSubdivisions},
	{Region{"jp", "Japan"}, NoSubdivisions},
	{Region{"nz", "New Zealand"}, NoSubdivisions},
	{Region{"za", "South Africa"}, NoSubdivisions},
}

var countryIndex = func() map[string]int {
	idx := make(map[string]int, len(countries))
	for i, c := range countries {
		idx[c.Code] = i
	}
	return idx
}()

// Countries returns the selectable countries in display order
func Countries() []Country {
	return append([]Country(nil), countries...)
}

// LookupCountry finds a country by code
func LookupCountry(code string) (Country, bool) {
	i, ok := countryIndex[code]
	if !ok {
		return Country{}, false
	}
	return countries[i], true
}

// Subdivisions returns the subdivision table of a country.
// ok is false for unknown countries; known countries without a list return NoSubdivisions.
func Subdivisions(countryCode string) (SubdivisionTable, bool) {
	c, ok := LookupCountry(countryCode)
	if !ok {
		return NoSubdivisions, false
	}
	return c.Subdivisions, true
}

// ValidSubdivision reports whether code belongs to the country's table
func ValidSubdivision(countryCode, code string) bool {
	table, ok := Subdivisions(countryCode)
	if !ok {
		return false
	}
	_, found := table.Lookup(code)
	return found
}

// Resolve builds the jurisdiction string from most to least specific part:
// "[location, ][subdivision, ]country". It returns "" when the country is unset or unknown.
// A subdivision that is not in the country's table is dropped.
func Resolve(country, subdivision, projectLocation string) string {
	c, ok := LookupCountry(country)
	if !ok {
		return ""
	}

	parts := make([]string, 0, 3)
	if location := strings.TrimSpace(projectLocation); location != "" {
		parts = append(parts, location)
	}
	if subdivision != "" && c.Subdivisions.Defined() {
		if r, found := c.Subdivisions.Lookup(subdivision); found {
			parts = append(parts, r.Label)
		}
	}
	parts = append(parts, c.Label)
	return strings.Join(parts, ", ")
}
