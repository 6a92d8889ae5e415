package format

import "github.com/dgryski/go-metro"

// Hash64 is the word hash shared by the encoders and the matchers. Changing
// it invalidates every blob ever written.
func Hash64(word []byte) uint64 {
	return metro.Hash64(word, 0)
}

func Hash64String(word string) uint64 {
	return metro.Hash64Str(word, 0)
}

// HashWords hashes a query key set once so it can be matched against many
// blobs.
func HashWords(words []string) []uint64 {
	hashes := make([]uint64, len(words))
	for i, w := range words {
		hashes[i] = Hash64String(w)
	}
	return hashes
}
