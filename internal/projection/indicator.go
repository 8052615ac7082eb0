package projection

import "sort"

// Indicator is an enumerated flag shown on a projection and offered as a facet.
type Indicator string

// Case indicators.
const (
	IndicatorExtended  Indicator = "VERLENGD"
	IndicatorSuspended Indicator = "OPSCHORTING"
	IndicatorSubCase   Indicator = "DEELZAAK"
	IndicatorMainCase  Indicator = "HOOFDZAAK"
	IndicatorReopened  Indicator = "HEROPEND"
)

// Document indicators.
const (
	IndicatorLocked      Indicator = "VERGRENDELD"
	IndicatorSigned      Indicator = "ONDERTEKEND"
	IndicatorDecision    Indicator = "BESLUIT"
	IndicatorUsageRights Indicator = "GEBRUIKSRECHT"
	IndicatorSent        Indicator = "VERZONDEN"
)

// Indicators is a set of indicator flags, kept sorted for stable encoding.
type Indicators []Indicator

// Set turns ind on or off.
func (is *Indicators) Set(ind Indicator, on bool) {
	out := (*is)[:0:0]
	for _, existing := range *is {
		if existing != ind {
			out = append(out, existing)
		}
	}
	if on {
		out = append(out, ind)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	*is = out
}

// Has reports whether ind is set.
func (is Indicators) Has(ind Indicator) bool {
	for _, existing := range is {
		if existing == ind {
			return true
		}
	}
	return false
}

// Strings returns the indicators as plain strings.
func (is Indicators) Strings() []string {
	out := make([]string, len(is))
	for i, ind := range is {
		out[i] = string(ind)
	}
	return out
}
