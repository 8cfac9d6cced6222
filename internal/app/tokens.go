package app

// EstimateTokens returns an approximate token count for a piece of text.
//
// This is not a tokenizer; it only needs to be accurate enough for context
// budgeting. Counting a flat chars-per-token ratio under-counts logographic
// scripts by roughly 2.5x, so CJK ideographs are costed separately: a CJK
// character is roughly 1 token per 1.5 chars, everything else roughly 1 token
// per 4 chars. The total is rounded up.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}

	cjk := 0
	other := 0
	for _, r := range text {
		if r >= 0x4E00 && r <= 0x9FFF {
			cjk++
		} else {
			other++
		}
	}

	// ceil(cjk/1.5 + other/4) without float math: both terms share
	// a denominator of 12 (cjk/1.5 == 8*cjk/12, other/4 == 3*other/12).
	return (8*cjk + 3*other + 11) / 12
}
