package forecast

import "math/rand"

// Config holds the boosting hyperparameters. They are fixed by convention
// rather than tuned per run, so every batch retrains the same model shape.
type Config struct {
	NumTrees       int
	LearningRate   float64
	MaxDepth       int
	MinSamplesLeaf int
	// Subsample is the fraction of rows drawn (without replacement) per
	// boosting round. 1.0 disables sampling.
	Subsample float64
	Seed      int64
}

// DefaultConfig mirrors the production hyperparameters: 100 trees, depth 6,
// learning rate 0.1, seeded for reproducibility.
func DefaultConfig() Config {
	return Config{
		NumTrees:       100,
		LearningRate:   0.1,
		MaxDepth:       6,
		MinSamplesLeaf: 20,
		Subsample:      1.0,
		Seed:           42,
	}
}

// GBT is a gradient-boosted ensemble of regression trees with a squared
// error objective. Immutable after FitGBT returns.
type GBT struct {
	cfg   Config
	base  float64
	trees []*regressionTree
}

// FitGBT trains the ensemble on the given feature rows and targets.
func FitGBT(features [][]float64, targets []float64, cfg Config) *GBT {
	model := &GBT{cfg: cfg}
	n := len(targets)
	if n == 0 {
		return model
	}

	sum := 0.0
	for _, y := range targets {
		sum += y
	}
	model.base = sum / float64(n)

	predictions := make([]float64, n)
	for i := range predictions {
		predictions[i] = model.base
	}

	residuals := make([]float64, n)
	allIndices := make([]int, n)
	for i := range allIndices {
		allIndices[i] = i
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	sampleSize := n
	if cfg.Subsample > 0 && cfg.Subsample < 1 {
		sampleSize = int(float64(n) * cfg.Subsample)
		if sampleSize < 1 {
			sampleSize = 1
		}
	}

	for round := 0; round < cfg.NumTrees; round++ {
		for i := range residuals {
			residuals[i] = targets[i] - predictions[i]
		}

		indices := allIndices
		if sampleSize < n {
			perm := rng.Perm(n)[:sampleSize]
			indices = perm
		}

		tree := newRegressionTree(cfg.MaxDepth, cfg.MinSamplesLeaf)
		tree.fit(features, residuals, indices)
		model.trees = append(model.trees, tree)

		for i := range predictions {
			predictions[i] += cfg.LearningRate * tree.predict(features[i])
		}
	}

	return model
}

// Predict returns the ensemble prediction for a single feature vector.
func (m *GBT) Predict(features []float64) float64 {
	pred := m.base
	for _, tree := range m.trees {
		pred += m.cfg.LearningRate * tree.predict(features)
	}
	return pred
}
