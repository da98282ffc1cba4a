package graph

import "math"

const (
	rankDamping    = 0.85
	rankIterations = 50
	rankTolerance  = 1e-9
)

// pageRank computes weighted PageRank over the collapsed links. A node follows
// its out-links in proportion to their weight, or uniformly when all of them
// weigh zero; dangling mass is spread over every node.
func pageRank(keys []string, links map[string]map[string]*link) map[string]float64 {
	n := len(keys)
	scores := make(map[string]float64, n)
	if n == 0 {
		return scores
	}

	for _, k := range keys {
		scores[k] = 1 / float64(n)
	}

	for iter := 0; iter < rankIterations; iter++ {
		next := make(map[string]float64, n)
		dangling := 0.0

		for _, k := range keys {
			out := links[k]
			if len(out) == 0 {
				dangling += scores[k]
				continue
			}
			total := 0.0
			for _, l := range out {
				total += l.weight
			}
			for to, l := range out {
				share := 1 / float64(len(out))
				if total > 0 {
					share = l.weight / total
				}
				next[to] += rankDamping * scores[k] * share
			}
		}

		base := (1-rankDamping)/float64(n) + rankDamping*dangling/float64(n)
		delta := 0.0
		for _, k := range keys {
			next[k] += base
			delta += math.Abs(next[k] - scores[k])
		}
		scores = next
		if delta < rankTolerance {
			break
		}
	}
	return scores
}
