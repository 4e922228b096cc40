package filter

// Preset is a saved set of filter floors for a particular flow style
type Preset struct {
	Description string
	Params      Params
}

// Presets are the named filter configurations selectable via config.
// They mirror the query presets traders run against the flow feed.
var Presets = map[string]Preset{
	"clean_ask_side_opening_flow": {
		Description: "Ask-side opening transactions, institutional size",
		Params: Params{
			MinPremium: 100_000,
			MinDTE:     7,
			MinAskPct:  0.7,
		},
	},
	"general_flow_feed": {
		Description: "Smaller to mid-sized orders with opening bias",
		Params: Params{
			MinPremium: 50_000,
			MinDTE:     7,
			MinAskPct:  0.5,
		},
	},
	"otm_call_buyers_500k": {
		Description: "Single name $500K+ OTM call buyers for swing ideas",
		Params: Params{
			MinPremium: 500_000,
			MinDTE:     6,
			MinAskPct:  0.6,
		},
	},
	"single_leg_high_volume": {
		Description: "Single leg OTM options with significant volume",
		Params: Params{
			MinPremium: 50_000,
			MinDTE:     7,
			MinAskPct:  0.55,
		},
	},
	"repeated_hits_otm_calls": {
		Description: "High-probability OTM call alerts from repeated hits",
		Params: Params{
			MinPremium: 500_000,
			MinDTE:     1,
			MinAskPct:  0.65,
		},
	},
}

// ParamsFor resolves a preset name, falling back to the provided params
// when the name is unknown or empty
func ParamsFor(name string, fallback Params) Params {
	if p, ok := Presets[name]; ok {
		return p.Params
	}
	return fallback
}
