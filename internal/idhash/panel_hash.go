package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"price-signal-lab/internal/domain"
)

// ComputePanelHash computes a SHA256 fingerprint of a price panel.
// Formula: SHA256 over "symbol|market|date|open|high|low|close|volume\n"
// per bar, in the order given. Callers pass bars in canonical
// (symbol, date) order so equal panels hash equally.
// Returns hex-encoded hash (64 characters).
func ComputePanelHash(bars []domain.PriceBar) string {
	h := sha256.New()
	for _, b := range bars {
		fmt.Fprintf(h, "%s|%s|%s|%s|%s|%s|%s|%d\n",
			b.Symbol,
			b.Market,
			b.Date.UTC().Format(time.DateOnly),
			formatFloat(b.Open),
			formatFloat(b.High),
			formatFloat(b.Low),
			formatFloat(b.Close),
			b.Volume,
		)
	}
	return hex.EncodeToString(h.Sum(nil))
}
