package domain

// Hasher derives deterministic lookup tokens under the server secret.
type Hasher interface {
	LookupHash(input string) string
}

const hashScope = "api-key:"

// HashAPIKey returns the stored form of a raw API key. The scope prefix keeps
// API key tokens disjoint from license lookup tokens under the same secret.
func HashAPIKey(h Hasher, raw string) string {
	return h.LookupHash(hashScope + raw)
}
