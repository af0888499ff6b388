package optimize

import (
	"math"
)

// hrp implements hierarchical risk parity: single-linkage clustering on
// correlation distance, quasi-diagonalization, then recursive bisection with
// inverse-variance allocation. No matrix inversion is involved, which keeps
// it stable on near-singular covariance matrices.
func (e *Engine) hrp(mom *momentSet) ([]float64, error) {
	n := len(mom.tickers)

	// Correlation distance d_ij = sqrt((1 - rho_ij) / 2).
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			si := math.Sqrt(mom.sigma.At(i, i))
			sj := math.Sqrt(mom.sigma.At(j, j))
			rho := 0.0
			if si > 0 && sj > 0 {
				rho = mom.sigma.At(i, j) / (si * sj)
			}
			d := math.Sqrt(math.Max(0, (1-rho)/2))
			dist[i][j] = d
			dist[j][i] = d
		}
	}

	order := quasiDiagonalize(singleLinkage(dist))

	weights := make([]float64, n)
	for _, i := range order {
		weights[i] = 1
	}
	bisect(weights, order, mom)

	return finish(weights, mom.maxWeight), nil
}

// cluster is a node of the linkage tree; leaves have left == right == nil.
type cluster struct {
	leaf        int
	left, right *cluster
	members     []int
}

// singleLinkage agglomerates items by minimum pairwise distance.
func singleLinkage(dist [][]float64) *cluster {
	n := len(dist)
	clusters := make([]*cluster, n)
	for i := range clusters {
		clusters[i] = &cluster{leaf: i, members: []int{i}}
	}

	linkDist := func(a, b *cluster) float64 {
		min := math.Inf(1)
		for _, i := range a.members {
			for _, j := range b.members {
				if dist[i][j] < min {
					min = dist[i][j]
				}
			}
		}
		return min
	}

	for len(clusters) > 1 {
		bi, bj := 0, 1
		best := math.Inf(1)
		for i := 0; i < len(clusters); i++ {
			for j := i + 1; j < len(clusters); j++ {
				if d := linkDist(clusters[i], clusters[j]); d < best {
					best = d
					bi, bj = i, j
				}
			}
		}
		merged := &cluster{
			left:    clusters[bi],
			right:   clusters[bj],
			members: append(append([]int(nil), clusters[bi].members...), clusters[bj].members...),
		}
		next := make([]*cluster, 0, len(clusters)-1)
		for k, c := range clusters {
			if k != bi && k != bj {
				next = append(next, c)
			}
		}
		clusters = append(next, merged)
	}
	return clusters[0]
}

// quasiDiagonalize reads the leaf order off the linkage tree, which places
// correlated assets next to each other.
func quasiDiagonalize(root *cluster) []int {
	var order []int
	var walk func(*cluster)
	walk = func(c *cluster) {
		if c.left == nil && c.right == nil {
			order = append(order, c.leaf)
			return
		}
		walk(c.left)
		walk(c.right)
	}
	walk(root)
	return order
}

// bisect recursively splits the ordered asset list and allocates between the
// halves inversely to their cluster variances.
func bisect(weights []float64, order []int, mom *momentSet) {
	if len(order) < 2 {
		return
	}
	mid := len(order) / 2
	left, right := order[:mid], order[mid:]

	vLeft := clusterVariance(left, mom)
	vRight := clusterVariance(right, mom)

	alpha := 0.5
	if vLeft+vRight > 0 {
		alpha = 1 - vLeft/(vLeft+vRight)
	}
	for _, i := range left {
		weights[i] *= alpha
	}
	for _, i := range right {
		weights[i] *= 1 - alpha
	}

	bisect(weights, left, mom)
	bisect(weights, right, mom)
}

// clusterVariance is the variance of the inverse-variance-weighted
// sub-portfolio over the given members.
func clusterVariance(members []int, mom *momentSet) float64 {
	inv := make([]float64, len(members))
	total := 0.0
	for k, i := range members {
		v := mom.sigma.At(i, i)
		if v <= 0 {
			v = 1e-12
		}
		inv[k] = 1 / v
		total += inv[k]
	}
	for k := range inv {
		inv[k] /= total
	}

	var out float64
	for a, i := range members {
		for b, j := range members {
			out += inv[a] * inv[b] * mom.sigma.At(i, j)
		}
	}
	return out
}
