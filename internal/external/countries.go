package external

import "strings"

// Country pairs a display name with its ISO alpha-2 code and dialing prefix.
// Records store the display name; the remote contact schema wants the code.
type Country struct {
	Name        string
	Code        string
	PhonePrefix string
}

// Countries supported by the onboarding form, in display order.
var Countries = []Country{
	{Name: "Australia", Code: "AU", PhonePrefix: "+61"},
	{Name: "New Zealand", Code: "NZ", PhonePrefix: "+64"},
	{Name: "United Kingdom", Code: "GB", PhonePrefix: "+44"},
	{Name: "United States", Code: "US", PhonePrefix: "+1"},
	{Name: "Canada", Code: "CA", PhonePrefix: "+1"},
	{Name: "Singapore", Code: "SG", PhonePrefix: "+65"},
	{Name: "Hong Kong", Code: "HK", PhonePrefix: "+852"},
	{Name: "India", Code: "IN", PhonePrefix: "+91"},
	{Name: "Philippines", Code: "PH", PhonePrefix: "+63"},
	{Name: "South Africa", Code: "ZA", PhonePrefix: "+27"},
	{Name: "Ireland", Code: "IE", PhonePrefix: "+353"},
	{Name: "Germany", Code: "DE", PhonePrefix: "+49"},
	{Name: "France", Code: "FR", PhonePrefix: "+33"},
	{Name: "Netherlands", Code: "NL", PhonePrefix: "+31"},
	{Name: "Japan", Code: "JP", PhonePrefix: "+81"},
	{Name: "UAE", Code: "AE", PhonePrefix: "+971"},
	{Name: "Malaysia", Code: "MY", PhonePrefix: "+60"},
	{Name: "Indonesia", Code: "ID", PhonePrefix: "+62"},
	{Name: "Thailand", Code: "TH", PhonePrefix: "+66"},
	{Name: "Brazil", Code: "BR", PhonePrefix: "+55"},
}

// CountryToCode resolves a display name to its ISO code. Unknown names fall
// back to AU, matching the form's default country.
func CountryToCode(name string) string {
	for _, c := range Countries {
		if c.Name == name {
			return c.Code
		}
	}
	return "AU"
}

// CountryFromCode resolves an ISO code to its display name, or "" if unknown.
func CountryFromCode(code string) string {
	code = strings.ToUpper(code)
	for _, c := range Countries {
		if c.Code == code {
			return c.Name
		}
	}
	return ""
}
