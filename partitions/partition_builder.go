package partitions

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"
)

// PartitionStrategy defines how elements are grouped.
type PartitionStrategy int

const (
	BlockPartition PartitionStrategy = iota // consecutive elements
	RoundRobin                              // distribute cyclically
	CostBalanced                            // greedy largest-cost-first
)

func (s PartitionStrategy) String() string {
	switch s {
	case BlockPartition:
		return "block"
	case RoundRobin:
		return "round_robin"
	case CostBalanced:
		return "cost_balanced"
	}
	return fmt.Sprintf("PartitionStrategy(%d)", int(s))
}

// ParseStrategy reads the name printed by String. The empty string selects
// CostBalanced.
func ParseStrategy(s string) (PartitionStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cost_balanced":
		return CostBalanced, nil
	case "block":
		return BlockPartition, nil
	case "round_robin":
		return RoundRobin, nil
	}
	return 0, fmt.Errorf("%q: %w", s, ErrUnknownStrategy)
}

// PartitionBuilder splits a list of elements with per-element costs into
// work partitions.
type PartitionBuilder struct {
	// Costs holds the estimated sampling work of each element; its length is
	// the number of elements.
	Costs []float64

	NumPartitions int
	Strategy      PartitionStrategy
}

// BuildPartitions creates a partition layout. Fewer partitions than
// requested are built when there are fewer elements than partitions.
func (pb *PartitionBuilder) BuildPartitions() (*PartitionLayout, error) {
	n := len(pb.Costs)
	if n == 0 {
		return nil, ErrNoWork
	}
	if pb.NumPartitions < 1 {
		return nil, fmt.Errorf("%d: %w", pb.NumPartitions, ErrInvalidPartitions)
	}
	for k, c := range pb.Costs {
		if c < 0 || math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, fmt.Errorf("element %d cost %v: %w", k, c, ErrNegativeCost)
		}
	}
	numPartitions := min(pb.NumPartitions, n)

	var eToP []int
	switch pb.Strategy {
	case BlockPartition:
		eToP = pb.block(numPartitions)
	case RoundRobin:
		eToP = pb.roundRobin(numPartitions)
	case CostBalanced:
		eToP = pb.costBalanced(numPartitions)
	default:
		return nil, fmt.Errorf("%v: %w", pb.Strategy, ErrUnknownStrategy)
	}

	partitions := pb.createPartitions(eToP, numPartitions)
	kpartMax := 0
	for _, p := range partitions {
		kpartMax = max(kpartMax, p.NumElements)
	}

	layout := &PartitionLayout{
		Partitions:    partitions,
		KpartMax:      kpartMax,
		TotalElements: n,
		NumPartitions: numPartitions,
		EToP:          eToP,
	}
	if err := layout.ValidateLayout(); err != nil {
		return nil, fmt.Errorf("invalid partition layout: %w", err)
	}
	return layout, nil
}

func (pb *PartitionBuilder) block(numPartitions int) []int {
	n := len(pb.Costs)
	eToP := make([]int, n)
	for i := range eToP {
		eToP[i] = i * numPartitions / n
	}
	return eToP
}

func (pb *PartitionBuilder) roundRobin(numPartitions int) []int {
	eToP := make([]int, len(pb.Costs))
	for i := range eToP {
		eToP[i] = i % numPartitions
	}
	return eToP
}

// costBalanced hands each element, most expensive first, to the partition
// with the least accumulated cost. Ties go to the lower element and
// partition index so the layout is deterministic.
func (pb *PartitionBuilder) costBalanced(numPartitions int) []int {
	order := make([]int, len(pb.Costs))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(pb.Costs[b], pb.Costs[a])
	})

	load := make([]float64, numPartitions)
	count := make([]int, numPartitions)
	eToP := make([]int, len(pb.Costs))
	for _, k := range order {
		best := 0
		for p := 1; p < numPartitions; p++ {
			if load[p] < load[best] || (load[p] == load[best] && count[p] < count[best]) {
				best = p
			}
		}
		eToP[k] = best
		load[best] += pb.Costs[k]
		count[best]++
	}
	return eToP
}

func (pb *PartitionBuilder) createPartitions(eToP []int, numPartitions int) []Partition {
	partitions := make([]Partition, numPartitions)
	for i := range partitions {
		partitions[i].ID = i
	}
	for elem, part := range eToP {
		partitions[part].Elements = append(partitions[part].Elements, elem)
		partitions[part].NumElements++
		partitions[part].Cost += pb.Costs[elem]
	}
	return partitions
}
