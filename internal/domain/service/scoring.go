package service

import "WalletScore/internal/domain/models"

// WalletScorer maps one profile to a raw score. Implementations must not
// look at any other wallet.
type WalletScorer interface {
	Score(p models.WalletProfile) (float64, models.Breakdown)
}

// Normalizer maps a population of raw scores onto the bounded output scale.
// The returned slice is index-aligned with raw.
type Normalizer interface {
	Name() string
	Normalize(raw []float64) []int
}
