package scanner

import (
	"strings"

	"TrendSpotter/internal/model"
)

// Stablecoins never qualify: a pegged price has no gain trajectory
// worth scoring.
var stablecoins = map[string]bool{
	"USDT":  true,
	"USDC":  true,
	"BUSD":  true,
	"DAI":   true,
	"TUSD":  true,
	"USDP":  true,
	"USDD":  true,
	"GUSD":  true,
	"FRAX":  true,
	"LUSD":  true,
	"FDUSD": true,
	"PYUSD": true,
	"USDE":  true,
	"EURC":  true,
	"EURT":  true,
	"USTC":  true,
}

// IsStablecoin reports whether the symbol is a known stablecoin.
func IsStablecoin(symbol string) bool {
	return stablecoins[strings.ToUpper(symbol)]
}

// CheckVolume reports whether the coin clears the 24h volume floor.
func CheckVolume(q model.CoinQuote, minVolume float64) bool {
	return q.Volume24h >= minVolume
}

// CheckGains applies the gain thresholds. A source that serves no 30d
// change reports it as exactly 0; such quotes pass provisionally with
// deferred=true and the 30d check runs later against price history.
func CheckGains(g model.Gains, minGain7d, minGain30d float64) (pass, deferred bool) {
	if g.D7 <= minGain7d {
		return false, false
	}
	if g.D30 == 0 {
		return true, true
	}
	return g.D30 > minGain30d, false
}
