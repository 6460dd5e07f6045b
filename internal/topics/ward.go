package topics

import "math"

// merge records one step of the agglomeration.
type merge struct {
	a, b     int // merged nodes: original documents or earlier merges
	distance float64
	size     int
}

// pairwiseDistances computes squared euclidean distances in condensed
// upper-triangle order (n*(n-1)/2 entries).
func pairwiseDistances(vectors [][]float64) []float64 {
	n := len(vectors)
	dist := make([]float64, n*(n-1)/2)

	idx := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			var d float64
			for k := range vectors[i] {
				diff := vectors[i][k] - vectors[j][k]
				d += diff * diff
			}
			dist[idx] = d
			idx++
		}
	}
	return dist
}

// condensedIndex maps pair (i, j), i < j, into the condensed array.
func condensedIndex(n, i, j int) int {
	if i > j {
		i, j = j, i
	}
	return n*i - i*(i+1)/2 + j - i - 1
}

// wardLinkage builds the full merge history for Ward's method using the
// Lance-Williams recurrence over the condensed squared-distance matrix.
// The scan order makes ties resolve identically on every run.
func wardLinkage(dist []float64, n int) []merge {
	active := make([]bool, 2*n-1)
	size := make([]int, 2*n-1)
	for i := 0; i < n; i++ {
		active[i] = true
		size[i] = 1
	}

	d := make([]float64, len(dist))
	copy(d, dist)

	merges := make([]merge, 0, n-1)

	for step := 0; step < n-1; step++ {
		minDist := math.MaxFloat64
		var minI, minJ int
		for i := 0; i < n+step; i++ {
			if !active[i] {
				continue
			}
			for j := i + 1; j < n+step; j++ {
				if !active[j] {
					continue
				}
				if dij := getDist(d, n, i, j); dij < minDist {
					minDist = dij
					minI = i
					minJ = j
				}
			}
		}

		newCluster := n + step
		newSize := size[minI] + size[minJ]
		active[minI] = false
		active[minJ] = false
		active[newCluster] = true
		size[newCluster] = newSize

		merges = append(merges, merge{
			a:        minI,
			b:        minJ,
			distance: math.Sqrt(minDist),
			size:     newSize,
		})

		// d(new, k) = ((n_k+n_i)d(i,k) + (n_k+n_j)d(j,k) - n_k*d(i,j)) / (n_k+n_i+n_j)
		for k := 0; k < newCluster; k++ {
			if !active[k] {
				continue
			}
			ni := float64(size[minI])
			nj := float64(size[minJ])
			nk := float64(size[k])

			dik := getDist(d, n, minI, k)
			djk := getDist(d, n, minJ, k)

			newDist := ((nk+ni)*dik + (nk+nj)*djk - nk*minDist) / (nk + ni + nj)
			setDist(&d, n, newCluster, k, newDist)
		}
	}

	return merges
}

// cutTree assigns each of the n documents to one of k clusters by applying
// the first n-k merges. Labels are remapped to 0..k-1 in order of first
// appearance.
func cutTree(merges []merge, n, k int) []int {
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}

	labels := make([]int, 2*n-1)
	for i := range labels {
		labels[i] = i
	}

	for step := 0; step < n-k; step++ {
		m := merges[step]
		newCluster := n + step
		root := find(labels, m.a)
		labels[newCluster] = root
		setLabel(labels, m.b, root)
	}

	finalLabels := make([]int, n)
	labelMap := make(map[int]int)
	nextID := 0
	for i := 0; i < n; i++ {
		root := find(labels, i)
		id, ok := labelMap[root]
		if !ok {
			id = nextID
			labelMap[root] = id
			nextID++
		}
		finalLabels[i] = id
	}
	return finalLabels
}

// find resolves the root label for a node with path compression.
func find(labels []int, i int) int {
	for labels[i] != i {
		labels[i] = labels[labels[i]]
		i = labels[i]
	}
	return i
}

// setLabel points every node on b's chain at label.
func setLabel(labels []int, b, label int) {
	for labels[b] != b {
		next := labels[b]
		labels[b] = label
		b = next
	}
	labels[b] = label
}

// getDist reads a distance between any two nodes, original or merged.
func getDist(d []float64, n, i, j int) float64 {
	if i == j {
		return 0
	}
	if i > j {
		i, j = j, i
	}
	if i < n && j < n {
		if idx := condensedIndex(n, i, j); idx < len(d) {
			return d[idx]
		}
	}
	if key := extendedKey(n, i, j); key < len(d) {
		return d[key]
	}
	return 0
}

// setDist writes a distance, growing the backing array for merged nodes.
func setDist(d *[]float64, n, i, j int, val float64) {
	if i > j {
		i, j = j, i
	}
	if i < n && j < n {
		(*d)[condensedIndex(n, i, j)] = val
		return
	}
	key := extendedKey(n, i, j)
	for len(*d) <= key {
		*d = append(*d, 0)
	}
	(*d)[key] = val
}

// extendedKey maps pairs involving merged nodes past the condensed block.
func extendedKey(n, i, j int) int {
	if i > j {
		i, j = j, i
	}
	return n*(n-1)/2 + i*(2*n-1) + j
}
