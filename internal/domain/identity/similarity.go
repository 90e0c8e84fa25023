package identity

// Ratio returns a normalized similarity measure in [0,1] for two strings
// using the Ratcliff–Obershelp algorithm: twice the number of matching
// characters (found via recursively locating longest matching blocks)
// divided by the total number of characters.
func Ratio(a, b string) float64 {
	ar, br := []rune(a), []rune(b)
	total := len(ar) + len(br)
	if total == 0 {
		return 1.0
	}
	m := &matcher{a: ar, b: br, b2j: indexRunes(br)}
	return 2.0 * float64(m.matchingTotal(0, len(ar), 0, len(br))) / float64(total)
}

type matcher struct {
	a, b []rune
	b2j  map[rune][]int
}

func indexRunes(b []rune) map[rune][]int {
	idx := make(map[rune][]int)
	for j, r := range b {
		idx[r] = append(idx[r], j)
	}
	return idx
}

// matchingTotal sums the sizes of all matching blocks in the given ranges.
func (m *matcher) matchingTotal(alo, ahi, blo, bhi int) int {
	i, j, size := m.longestMatch(alo, ahi, blo, bhi)
	if size == 0 {
		return 0
	}
	return size +
		m.matchingTotal(alo, i, blo, j) +
		m.matchingTotal(i+size, ahi, j+size, bhi)
}

// longestMatch finds the longest matching block within a[alo:ahi] and
// b[blo:bhi]. Ties resolve to the earliest position in a, then in b.
func (m *matcher) longestMatch(alo, ahi, blo, bhi int) (besti, bestj, bestsize int) {
	besti, bestj = alo, blo
	j2len := make(map[int]int)
	for i := alo; i < ahi; i++ {
		newj2len := make(map[int]int)
		for _, j := range m.b2j[m.a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := j2len[j-1] + 1
			newj2len[j] = k
			if k > bestsize {
				besti, bestj, bestsize = i-k+1, j-k+1, k
			}
		}
		j2len = newj2len
	}
	return besti, bestj, bestsize
}
