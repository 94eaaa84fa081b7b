package lookup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_CarrierLabels(t *testing.T) {
	cases := []struct {
		name    string
		carrier string
		want    string
	}{
		{name: "missing", carrier: "", want: UnknownCarrier},
		{name: "placeholder", carrier: " N/A ", want: UnknownCarrier},
		{name: "mvno", carrier: "Mint Mobile LLC", want: "Mint Mobile (MVNO)"},
		{name: "mvno before host network", carrier: "Metro by T-Mobile", want: "Metro by T-Mobile (MVNO)"},
		{name: "mvno case insensitive", carrier: "CRICKET WIRELESS", want: "Cricket Wireless (MVNO)"},
		{name: "facility carrier", carrier: "Cellco Partnership (Verizon Wireless)", want: "Verizon Wireless"},
		{name: "legacy name", carrier: "New Cingular Wireless PCS, LLC", want: "AT&T"},
		{name: "t-mobile spelling", carrier: "TMobile USA", want: "T-Mobile"},
		{name: "passthrough", carrier: "  Digicel Jamaica ", want: "Digicel Jamaica"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Normalize(&RawResponse{Carrier: tc.carrier, CountryName: "United States"})
			assert.Equal(t, tc.want, got.CarrierLabel)
		})
	}
}

func TestNormalize_LocationFallbacks(t *testing.T) {
	cases := []struct {
		name     string
		raw      RawResponse
		location string
	}{
		{name: "location present", raw: RawResponse{Location: "Novato", CountryName: "United States", Carrier: "Visible"}, location: "Novato"},
		{name: "mvno falls back to mobile network", raw: RawResponse{Location: "", CountryName: "United States", Carrier: "Visible"}, location: "United States (Mobile Network)"},
		{name: "mvno placeholder location", raw: RawResponse{Location: "unknown", CountryName: "United Kingdom", Carrier: "giffgaff"}, location: "United Kingdom (Mobile Network)"},
		{name: "facility falls back to country", raw: RawResponse{CountryName: "Australia", Carrier: "Telstra"}, location: "Australia"},
		{name: "nothing known", raw: RawResponse{Location: "-", CountryName: "null"}, location: LocationUnavailable},
		{name: "mvno without country", raw: RawResponse{Carrier: "Lebara"}, location: LocationUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := tc.raw
			assert.Equal(t, tc.location, Normalize(&raw).LocationLabel)
		})
	}
}

func TestNormalize_TotalOverPlaceholderCombinations(t *testing.T) {
	values := []string{"", "null", "unknown", "-", "Vodafone", "Boost Mobile", "Some Local Telco"}
	locations := []string{"", "n/a", "Berlin"}
	countries := []string{"", "none", "Germany"}

	for _, carrier := range values {
		for _, location := range locations {
			for _, country := range countries {
				raw := &RawResponse{Carrier: carrier, Location: location, CountryName: country}
				first := Normalize(raw)
				second := Normalize(raw)

				assert.Equal(t, first, second)
				assert.NotEmpty(t, first.CarrierLabel)
				assert.NotEmpty(t, first.LocationLabel)

				if carrier == "Boost Mobile" && clean(location) == "" && country == "Germany" {
					assert.Equal(t, "Germany (Mobile Network)", first.LocationLabel)
				}
			}
		}
	}
}

func TestNormalize_NilAndNumbers(t *testing.T) {
	empty := Normalize(nil)
	assert.Equal(t, UnknownCarrier, empty.CarrierLabel)
	assert.Equal(t, LocationUnavailable, empty.LocationLabel)
	assert.Equal(t, "unknown", empty.LineType)

	got := Normalize(&RawResponse{
		Valid:               true,
		Number:              "14158586273",
		LocalFormat:         "4158586273",
		InternationalFormat: "+14158586273",
		CountryCode:         "US",
		CountryName:         "United States of America",
		Location:            "Novato",
		Carrier:             "AT&T Mobility LLC",
		LineType:            "mobile",
	})
	assert.True(t, got.IsValid)
	assert.Equal(t, "+14158586273", got.InternationalNumber)
	assert.Equal(t, "4158586273", got.LocalNumber)
	assert.Equal(t, "US", got.CountryCode)
	assert.Equal(t, "AT&T", got.CarrierLabel)
	assert.Equal(t, "mobile", got.LineType)

	fallback := Normalize(&RawResponse{Number: "14158586273"})
	assert.Equal(t, "14158586273", fallback.InternationalNumber)
}

func TestCarrierRules_MVNOsPrecedeFacilityCarriers(t *testing.T) {
	seenFacility := false
	for _, rule := range carrierRules {
		if !rule.mvno {
			seenFacility = true
			continue
		}
		assert.False(t, seenFacility, "mvno rule %q listed after a facility carrier", rule.label)
	}
}
