// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sweatpool

// hmpMaxClusters is the maximum number of heterogeneous clusters spec.md §3
// allows (e.g. big/medium/little on a mobile SoC).
const hmpMaxClusters = 3

// hmpPowerUnit is the fixed sum the normalized power vector must total,
// per spec.md §3's HMP config invariant.
const hmpPowerUnit = 1.0

// HMPInfo describes a heterogeneous multi-processing cluster layout:
// up to [hmpMaxClusters] clusters, each with a core count and a relative
// power weight. Passed to [Shop.ConfigureHMP] and [WithHMP].
type HMPInfo struct {
	Cores [hmpMaxClusters]int
	Power [hmpMaxClusters]float64
}

// numClusters returns the number of clusters with a positive core count.
func (info HMPInfo) numClusters() int {
	n := 0
	for _, c := range info.Cores {
		if c > 0 {
			n++
		}
	}
	return n
}

func (info HMPInfo) totalCores() int {
	total := 0
	for _, c := range info.Cores {
		total += c
	}
	return total
}

func (info HMPInfo) validate() error {
	if info.numClusters() == 0 || info.totalCores() <= 0 {
		return ErrInvalidHMPConfig
	}
	for i, c := range info.Cores {
		if c < 0 {
			return ErrInvalidHMPConfig
		}
		if c == 0 && info.Power[i] != 0 {
			return ErrInvalidHMPConfig
		}
	}
	return nil
}

// hmpConfig is the normalized, shop-resident form of [HMPInfo]: power is
// rescaled so it sums to exactly [hmpPowerUnit], distributing rounding
// error so the last cluster absorbs any overflow and the first cluster
// absorbs any underflow (spec.md §9).
type hmpConfig struct {
	cores [hmpMaxClusters]int
	power [hmpMaxClusters]float64
}

func newHMPConfig(info HMPInfo) hmpConfig {
	cfg := hmpConfig{cores: info.Cores}

	var sum float64
	for _, p := range info.Power {
		sum += p
	}
	if sum <= 0 {
		// No power weighting supplied: distribute proportionally to cores.
		for _, c := range info.Cores {
			if c > 0 {
				sum += float64(c)
			}
		}
		for i, c := range info.Cores {
			if c > 0 {
				cfg.power[i] = float64(c) / sum
			}
		}
	} else {
		for i, p := range info.Power {
			cfg.power[i] = p / sum * hmpPowerUnit
		}
	}

	// Redistribute rounding error: recompute the exact remainder and push
	// underflow onto the first populated cluster, overflow onto the last.
	var total float64
	for _, p := range cfg.power {
		total += p
	}
	diff := hmpPowerUnit - total
	if diff > 0 {
		if first := firstPositiveCoreIndex(cfg.cores); first >= 0 {
			cfg.power[first] += diff
		}
	} else if diff < 0 {
		if last := lastPositiveCoreIndex(cfg.cores); last >= 0 {
			cfg.power[last] += diff
		}
	}

	return cfg
}

func firstPositiveCoreIndex(cores [hmpMaxClusters]int) int {
	for i, c := range cores {
		if c > 0 {
			return i
		}
	}
	return -1
}

func lastPositiveCoreIndex(cores [hmpMaxClusters]int) int {
	for i := hmpMaxClusters - 1; i >= 0; i-- {
		if cores[i] > 0 {
			return i
		}
	}
	return -1
}

// workerCount returns the number of worker threads required to service
// this cluster layout, reserving one slot for the caller if callerSlot.
func (cfg hmpConfig) workerCount(callerSlot bool) int {
	total := 0
	for _, c := range cfg.cores {
		total += c
	}
	if callerSlot && total > 0 {
		total--
	}
	return total
}

// hmpClusterChunk describes one cluster's share of an HMP spread: the
// [start, stop) range of iterations it owns, and how many of its cores
// participate.
type hmpClusterChunk struct {
	start, stop uint32
	cores       int
}

// planHMP partitions iterations across clusters proportionally to
// cfg.power, floored to parallelizableIterationsCount*cores[c], with any
// leftover iterations round-robined onto the strongest cluster (spec.md
// §4.5 step 4).
func planHMP(cfg hmpConfig, iterations uint32, parallelizableIterationsCount uint32) []hmpClusterChunk {
	if parallelizableIterationsCount == 0 {
		parallelizableIterationsCount = 1
	}

	out := make([]hmpClusterChunk, 0, hmpMaxClusters)
	strongest := 0
	for i := 1; i < hmpMaxClusters; i++ {
		if cfg.power[i] > cfg.power[strongest] {
			strongest = i
		}
	}

	var assigned uint32
	shares := make([]uint32, hmpMaxClusters)
	for i, cores := range cfg.cores {
		if cores <= 0 {
			continue
		}
		share := uint32(float64(iterations) * cfg.power[i])
		min := parallelizableIterationsCount * uint32(cores)
		if share < min && iterations >= min {
			share = min
		}
		if assigned+share > iterations {
			share = iterations - assigned
		}
		shares[i] = share
		assigned += share
	}

	if leftover := iterations - assigned; leftover > 0 && cfg.cores[strongest] > 0 {
		shares[strongest] += leftover
		assigned += leftover
	}

	var cursor uint32
	for i, cores := range cfg.cores {
		if cores <= 0 || shares[i] == 0 {
			continue
		}
		out = append(out, hmpClusterChunk{start: cursor, stop: cursor + shares[i], cores: cores})
		cursor += shares[i]
	}
	return out
}
