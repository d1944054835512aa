package datatype

// LCSMatch is one contiguous run of the longest common subsequence, with
// inclusive byte ranges in both inputs
type LCSMatch struct {
	AStart, AEnd int
	BStart, BEnd int
}

// Len returns the length of the run
func (m LCSMatch) Len() int {
	return m.AEnd - m.AStart + 1
}

// LCS returns the longest common subsequence of a and b and its contiguous runs,
// last run first. Runs shorter than minLen are left out of the list
func LCS(a, b []byte, minLen int) ([]byte, []LCSMatch) {
	alen, blen := len(a), len(b)
	width := blen + 1
	dp := make([]uint32, (alen+1)*width)
	for i := 1; i <= alen; i++ {
		for j := 1; j <= blen; j++ {
			switch {
			case a[i-1] == b[j-1]:
				dp[i*width+j] = dp[(i-1)*width+j-1] + 1
			case dp[(i-1)*width+j] > dp[i*width+j-1]:
				dp[i*width+j] = dp[(i-1)*width+j]
			default:
				dp[i*width+j] = dp[i*width+j-1]
			}
		}
	}

	idx := int(dp[alen*width+blen])
	result := make([]byte, idx)
	var matches []LCSMatch

	var (
		cur     LCSMatch
		inRange bool
	)
	i, j := alen, blen
	for i > 0 && j > 0 {
		emit := false
		if a[i-1] == b[j-1] {
			result[idx-1] = a[i-1]
			idx--
			switch {
			case !inRange:
				cur = LCSMatch{AStart: i - 1, AEnd: i - 1, BStart: j - 1, BEnd: j - 1}
				inRange = true
			case cur.AStart == i && cur.BStart == j:
				cur.AStart--
				cur.BStart--
			default:
				emit = true
			}
			if cur.AStart == 0 || cur.BStart == 0 {
				emit = true
			}
			i--
			j--
		} else {
			if dp[(i-1)*width+j] > dp[i*width+j-1] {
				i--
			} else {
				j--
			}
			if inRange {
				emit = true
			}
		}

		if emit {
			if cur.Len() >= minLen {
				matches = append(matches, cur)
			}
			inRange = false
		}
	}
	return result, matches
}
