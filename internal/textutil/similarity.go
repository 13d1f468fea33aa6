package textutil

// DiceSimilarity computes the Sørensen–Dice coefficient over character
// bigrams of the normalized forms of a and b. The result is in [0, 1],
// symmetric, and 1 for identical strings. Strings that normalize to fewer
// than two characters score 0 unless they are identical.
func DiceSimilarity(a, b string) float64 {
	na := Normalize(a)
	nb := Normalize(b)
	if na == nb {
		if na == "" {
			return 0
		}
		return 1
	}
	if len(na) < 2 || len(nb) < 2 {
		return 0
	}
	bigrams := make(map[string]int, len(na)-1)
	for i := 0; i+2 <= len(na); i++ {
		bigrams[na[i:i+2]]++
	}
	overlap := 0
	for i := 0; i+2 <= len(nb); i++ {
		pair := nb[i : i+2]
		if bigrams[pair] > 0 {
			bigrams[pair]--
			overlap++
		}
	}
	return 2 * float64(overlap) / float64(len(na)-1+len(nb)-1)
}
