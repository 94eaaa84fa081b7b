package lookup

import "github.com/Proton-105/phonelookup/internal/domain"

// Normalize maps an upstream answer to the stable result shape. It is pure and defined for every
// input, nil included: CarrierLabel and LocationLabel are never empty.
func Normalize(raw *RawResponse) domain.LookupData {
	if raw == nil {
		raw = &RawResponse{}
	}

	country := clean(raw.CountryName)
	carrier, mvno := carrierLabel(raw.Carrier)

	international := clean(raw.InternationalFormat)
	if international == "" {
		international = clean(raw.Number)
	}

	lineType := clean(raw.LineType)
	if lineType == "" {
		lineType = "unknown"
	}

	return domain.LookupData{
		InternationalNumber: international,
		LocalNumber:         clean(raw.LocalFormat),
		CountryName:         country,
		CountryCode:         clean(raw.CountryCode),
		CarrierLabel:        carrier,
		LineType:            lineType,
		LocationLabel:       locationLabel(clean(raw.Location), country, mvno),
		IsValid:             raw.Valid,
	}
}

func carrierLabel(raw string) (string, bool) {
	carrier := clean(raw)
	if carrier == "" {
		return UnknownCarrier, false
	}

	rule := classifyCarrier(carrier)
	switch {
	case rule == nil:
		return carrier, false
	case rule.mvno:
		return rule.label + mvnoSuffix, true
	default:
		return rule.label, false
	}
}

func locationLabel(location, country string, mvno bool) string {
	switch {
	case location != "":
		return location
	case country != "" && mvno:
		return country + mobileNetworkSuffix
	case country != "":
		return country
	default:
		return LocationUnavailable
	}
}
