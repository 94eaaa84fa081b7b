package lookup

import "strings"

const (
	UnknownCarrier      = "Unknown Carrier"
	LocationUnavailable = "Location not available"
	mobileNetworkSuffix = " (Mobile Network)"
	mvnoSuffix          = " (MVNO)"
)

type carrierRule struct {
	label    string
	patterns []string
	mvno     bool
}

// carrierRules is evaluated in order; the first rule with a pattern contained in the
// lower-cased carrier wins. MVNOs come first because several carry a host network's name.
var carrierRules = []carrierRule{
	{label: "Mint Mobile", patterns: []string{"mint mobile", "mint"}, mvno: true},
	{label: "Cricket Wireless", patterns: []string{"cricket"}, mvno: true},
	{label: "Metro by T-Mobile", patterns: []string{"metro by t-mobile", "metropcs", "metro pcs"}, mvno: true},
	{label: "Boost Mobile", patterns: []string{"boost"}, mvno: true},
	{label: "Visible", patterns: []string{"visible"}, mvno: true},
	{label: "Tracfone", patterns: []string{"tracfone"}, mvno: true},
	{label: "Straight Talk", patterns: []string{"straight talk", "straighttalk"}, mvno: true},
	{label: "Google Fi", patterns: []string{"google fi", "project fi"}, mvno: true},
	{label: "US Mobile", patterns: []string{"us mobile"}, mvno: true},
	{label: "Consumer Cellular", patterns: []string{"consumer cellular"}, mvno: true},
	{label: "Lycamobile", patterns: []string{"lycamobile", "lyca mobile"}, mvno: true},
	{label: "Lebara", patterns: []string{"lebara"}, mvno: true},
	{label: "giffgaff", patterns: []string{"giffgaff"}, mvno: true},
	{label: "Tesco Mobile", patterns: []string{"tesco"}, mvno: true},
	{label: "Virgin Mobile", patterns: []string{"virgin"}, mvno: true},
	{label: "Republic Wireless", patterns: []string{"republic wireless"}, mvno: true},
	{label: "Ultra Mobile", patterns: []string{"ultra mobile"}, mvno: true},
	{label: "Total Wireless", patterns: []string{"total wireless", "total by verizon"}, mvno: true},
	{label: "Simple Mobile", patterns: []string{"simple mobile"}, mvno: true},
	{label: "H2O Wireless", patterns: []string{"h2o"}, mvno: true},
	{label: "Red Pocket", patterns: []string{"red pocket"}, mvno: true},
	{label: "Xfinity Mobile", patterns: []string{"xfinity", "comcast"}, mvno: true},
	{label: "Spectrum Mobile", patterns: []string{"spectrum mobile", "charter"}, mvno: true},

	{label: "Verizon Wireless", patterns: []string{"verizon", "cellco"}},
	{label: "AT&T", patterns: []string{"at&t", "at&amp;t", "cingular", "new cingular"}},
	{label: "T-Mobile", patterns: []string{"t-mobile", "tmobile"}},
	{label: "Sprint", patterns: []string{"sprint"}},
	{label: "UScellular", patterns: []string{"uscellular", "us cellular", "united states cellular"}},
	{label: "Vodafone", patterns: []string{"vodafone"}},
	{label: "Orange", patterns: []string{"orange"}},
	{label: "Telstra", patterns: []string{"telstra"}},
	{label: "Rogers", patterns: []string{"rogers"}},
	{label: "Bell Mobility", patterns: []string{"bell mobility", "bell canada"}},
	{label: "TELUS", patterns: []string{"telus"}},
	{label: "Singtel", patterns: []string{"singtel"}},
	{label: "StarHub", patterns: []string{"starhub"}},
}

var placeholders = map[string]struct{}{
	"":        {},
	"-":       {},
	"unknown": {},
	"n/a":     {},
	"na":      {},
	"null":    {},
	"none":    {},
}

// clean trims s and returns "" for placeholder values.
func clean(s string) string {
	trimmed := strings.TrimSpace(s)
	if _, ok := placeholders[strings.ToLower(trimmed)]; ok {
		return ""
	}
	return trimmed
}

// classifyCarrier returns the matching rule, or nil for carriers outside the table.
func classifyCarrier(carrier string) *carrierRule {
	lower := strings.ToLower(carrier)
	for i := range carrierRules {
		for _, pattern := range carrierRules[i].patterns {
			if strings.Contains(lower, pattern) {
				return &carrierRules[i]
			}
		}
	}
	return nil
}
