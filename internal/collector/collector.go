package collector

import (
	"context"

	"github.com/zombar/socialpulse/internal/models"
)

// Source names recorded on collected posts.
const (
	SourceSample = "sample"
	SourceFeed   = "feed"
)

// Collector gathers posts about a company from somewhere. Implementations
// must be safe for concurrent use; queue workers share them.
type Collector interface {
	Collect(ctx context.Context, company string, n int) ([]models.Post, error)
}
