package strategy

import "hybridrag/internal/domain"

// Builtins are the strategies registered when configuration defines none,
// in priority order.
func Builtins() []domain.ChunkingStrategy {
	return []domain.ChunkingStrategy{
		{
			Name:         "pdf",
			ChunkSize:    1000,
			ChunkOverlap: 150,
			DetectionRules: domain.DetectionRules{
				SourcePatterns: []string{"*.pdf"},
			},
			Performance: domain.PerformanceSettings{EmbedBatchSize: 16},
		},
		{
			Name:         "markdown",
			ChunkSize:    800,
			ChunkOverlap: 100,
			DetectionRules: domain.DetectionRules{
				SourcePatterns: []string{"*.md", "*.markdown"},
			},
		},
		{
			Name:         "code",
			ChunkSize:    600,
			ChunkOverlap: 60,
			DetectionRules: domain.DetectionRules{
				SourcePatterns: []string{"*.go", "*.py", "*.ts", "*.js", "*.java", "*.rs"},
			},
		},
		{
			Name:         "korean",
			ChunkSize:    300,
			ChunkOverlap: 50,
			DetectionRules: domain.DetectionRules{
				ContainsHangul: true,
			},
		},
	}
}

// NewDefaultRegistry returns a registry preloaded with Builtins.
func NewDefaultRegistry() *Registry {
	r := NewRegistry(nil)
	for _, s := range Builtins() {
		// builtins are statically valid and uniquely named
		_ = r.Register(s)
	}
	return r
}
