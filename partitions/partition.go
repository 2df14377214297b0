package partitions

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrNoWork            = errors.New("no elements to partition")
	ErrInvalidPartitions = errors.New("number of partitions must be positive")
	ErrNegativeCost      = errors.New("element cost must be finite and non-negative")
	ErrUnknownStrategy   = errors.New("unknown partition strategy")
)

// Partition is a set of elements sampled together by one worker. Elements
// are work indices, ascending within the partition.
type Partition struct {
	ID int

	Elements    []int
	NumElements int
	Cost        float64 // sum of the element costs
}

// PartitionLayout is the complete decomposition of the work list.
type PartitionLayout struct {
	Partitions []Partition

	KpartMax      int // max(NumElements) across all partitions
	TotalElements int
	NumPartitions int

	// EToP[k] is the partition holding element k.
	EToP []int
}

// GetPartition returns the partition containing element k, or -1.
func (pl *PartitionLayout) GetPartition(elementID int) int {
	if elementID < 0 || elementID >= len(pl.EToP) {
		return -1
	}
	return pl.EToP[elementID]
}

// ValidateLayout checks that every element belongs to exactly the partition
// EToP names and that the cached sizes agree with the partitions.
func (pl *PartitionLayout) ValidateLayout() error {
	if len(pl.Partitions) != pl.NumPartitions {
		return fmt.Errorf("%d partitions stored, NumPartitions is %d", len(pl.Partitions), pl.NumPartitions)
	}
	seen := make([]bool, pl.TotalElements)
	actualMax, total := 0, 0
	for i, p := range pl.Partitions {
		if p.ID != i {
			return fmt.Errorf("partition at %d has ID %d", i, p.ID)
		}
		if p.NumElements != len(p.Elements) {
			return fmt.Errorf("partition %d: NumElements %d != %d elements", p.ID, p.NumElements, len(p.Elements))
		}
		for _, k := range p.Elements {
			if k < 0 || k >= pl.TotalElements {
				return fmt.Errorf("partition %d: element %d out of range", p.ID, k)
			}
			if seen[k] {
				return fmt.Errorf("partition %d: element %d assigned twice", p.ID, k)
			}
			seen[k] = true
			if pl.EToP[k] != p.ID {
				return fmt.Errorf("element %d: EToP %d != partition %d", k, pl.EToP[k], p.ID)
			}
		}
		actualMax = max(actualMax, p.NumElements)
		total += p.NumElements
	}
	if total != pl.TotalElements {
		return fmt.Errorf("%d elements assigned, expected %d", total, pl.TotalElements)
	}
	if actualMax != pl.KpartMax {
		return fmt.Errorf("computed KpartMax %d != stored KpartMax %d", actualMax, pl.KpartMax)
	}
	return nil
}

// PartitionStatistics computes load balance metrics over element counts and
// costs.
func (pl *PartitionLayout) PartitionStatistics() PartitionStats {
	stats := PartitionStats{
		NumPartitions: pl.NumPartitions,
		MinElements:   math.MaxInt32,
		AvgElements:   float64(pl.TotalElements) / float64(pl.NumPartitions),
	}

	var total float64
	for _, p := range pl.Partitions {
		stats.MinElements = min(stats.MinElements, p.NumElements)
		stats.MaxElements = max(stats.MaxElements, p.NumElements)
		stats.MaxCost = math.Max(stats.MaxCost, p.Cost)
		total += p.Cost
	}
	stats.Imbalance = float64(stats.MaxElements) / stats.AvgElements
	if total > 0 {
		stats.CostImbalance = stats.MaxCost / (total / float64(pl.NumPartitions))
	} else {
		stats.CostImbalance = 1
	}
	return stats
}

type PartitionStats struct {
	NumPartitions int
	MinElements   int
	MaxElements   int
	AvgElements   float64
	Imbalance     float64 // MaxElements / AvgElements
	MaxCost       float64
	CostImbalance float64 // MaxCost / mean cost
}
