package testutil

// ConstantIDGenerator returns the same correlation ID every time.
//
// Golden outputs embed result IDs, so scenario runs use a constant one
// to stay byte-identical across runs.
//
// Implements result.IDGenerator. Stateless and safe for concurrent use.
type ConstantIDGenerator struct {
	id string
}

// NewConstantIDGenerator creates a generator for id.
// If id is empty, Generate returns "test-id-default".
func NewConstantIDGenerator(id string) *ConstantIDGenerator {
	if id == "" {
		id = "test-id-default"
	}
	return &ConstantIDGenerator{id: id}
}

// Generate returns the constant ID.
func (g *ConstantIDGenerator) Generate() string {
	return g.id
}
