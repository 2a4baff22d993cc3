// Package cost prices discovery runs: telephony minutes for each placed
// call and Claude tokens for the enrichment pass.
package cost

// Rates holds per-provider pricing configuration.
type Rates struct {
	Call      CallRate             `yaml:"call" mapstructure:"call"`
	Anthropic map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
}

// CallRate prices outbound calls.
type CallRate struct {
	PerMinute  float64 `yaml:"per_minute" mapstructure:"per_minute"`
	Connection float64 `yaml:"connection" mapstructure:"connection"`
}

// ModelRate holds per-model token pricing (USD per million tokens).
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// Calculator computes costs for provider usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// CallEstimate prices a call of the given length in minutes. It is the
// fallback for providers that omit the billed price on the call record.
func (c *Calculator) CallEstimate(minutes float64) float64 {
	if minutes < 0 {
		minutes = 0
	}
	return c.rates.Call.Connection + minutes*c.rates.Call.PerMinute
}

// Claude computes the cost of one enrichment message. Unknown models
// price at zero.
func (c *Calculator) Claude(model string, input, output int64) float64 {
	rate, ok := c.rates.Anthropic[model]
	if !ok {
		return 0
	}
	return (float64(input)/1e6)*rate.Input + (float64(output)/1e6)*rate.Output
}

// DefaultRates returns the default pricing table.
func DefaultRates() Rates {
	return Rates{
		Call: CallRate{PerMinute: 0.09},
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001":  {Input: 0.80, Output: 4.00},
			"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
			"claude-opus-4-6":            {Input: 15.00, Output: 75.00},
		},
	}
}
