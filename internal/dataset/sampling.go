package dataset

import "math/rand"

// Sampler reduces an oversized dataset to a bounded working view. Both
// implementations are deterministic so repeated runs over the same data
// select the same rows.
type Sampler interface {
	Name() string
	Sample(d *Dataset, targetSize int) *Dataset
}

// SystematicSampler takes every k-th row at a fixed stride
// (k = floor(n / targetSize)), preserving chronological structure.
type SystematicSampler struct{}

func (SystematicSampler) Name() string { return "systematic" }

func (SystematicSampler) Sample(d *Dataset, targetSize int) *Dataset {
	if targetSize <= 0 || d.Len() <= targetSize {
		return d
	}

	stride := d.Len() / targetSize
	if stride < 1 {
		stride = 1
	}

	sampled := &Dataset{Columns: d.Columns}
	for i := 0; i < d.Len() && len(sampled.Rows) < targetSize; i += stride {
		sampled.Rows = append(sampled.Rows, d.Rows[i])
	}
	return sampled
}

// ReservoirSampler keeps a uniform random subset using a fixed seed, so the
// selection is reproducible for a given dataset size.
type ReservoirSampler struct {
	Seed int64
}

func (ReservoirSampler) Name() string { return "reservoir" }

func (r ReservoirSampler) Sample(d *Dataset, targetSize int) *Dataset {
	if targetSize <= 0 || d.Len() <= targetSize {
		return d
	}

	rng := rand.New(rand.NewSource(r.Seed))
	reservoir := make([]Row, targetSize)
	copy(reservoir, d.Rows[:targetSize])

	for i := targetSize; i < d.Len(); i++ {
		j := rng.Intn(i + 1)
		if j < targetSize {
			reservoir[j] = d.Rows[i]
		}
	}

	return &Dataset{Columns: d.Columns, Rows: reservoir}
}
