package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jinzhu/copier"
	"github.com/pscprep/examengine/internal/dto"
	"github.com/pscprep/examengine/internal/model"
	"github.com/rs/zerolog/log"
)

// CatalogAPI is the slice of the API client the catalog needs.
type CatalogAPI interface {
	ListMockTests(ctx context.Context, page int) (*dto.PaginatedResponse[model.MockTest], bool, error)
}

// CatalogService serves the test listing screen: paginated test
// summaries with stale-cache fallback, filter tabs, and relevance
// ordering for the learner's service branch.
type CatalogService interface {
	ListTests(ctx context.Context, page int, filter string, branch int64, subBranch *int64) ([]dto.TestSummaryDTO, *dto.PaginatedResponse[model.MockTest], error)
	Counts(ctx context.Context, branch int64) (*dto.CatalogCountsDTO, error)
}

type catalogService struct {
	api CatalogAPI
}

func NewCatalogService(catalogAPI CatalogAPI) CatalogService {
	return &catalogService{api: catalogAPI}
}

// ListTests fetches one page of the catalog and returns summaries sorted
// by branch relevance: a test matching the learner's branch scores 2, a
// matching sub-branch adds 1, and higher scores sort first. The sort is
// stable so equally relevant tests keep their server order.
func (s *catalogService) ListTests(ctx context.Context, page int, filter string, branch int64, subBranch *int64) ([]dto.TestSummaryDTO, *dto.PaginatedResponse[model.MockTest], error) {
	resp, fromCache, err := s.api.ListMockTests(ctx, page)
	if err != nil {
		return nil, nil, fmt.Errorf("list tests page %d: %w", page, err)
	}
	if fromCache {
		log.Debug().Int("page", page).Msg("Serving test catalog from cache")
	}

	tests := filterTests(resp.Results, filter, branch)

	summaries := make([]dto.TestSummaryDTO, 0, len(tests))
	for _, t := range tests {
		var summary dto.TestSummaryDTO
		if err := copier.Copy(&summary, &t); err != nil {
			return nil, nil, fmt.Errorf("map test %d: %w", t.ID, err)
		}
		summary.FromCache = fromCache
		summaries = append(summaries, summary)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return relevance(summaries[i], branch, subBranch) > relevance(summaries[j], branch, subBranch)
	})
	return summaries, resp, nil
}

// Counts tallies the filter tabs from the first catalog page.
func (s *catalogService) Counts(ctx context.Context, branch int64) (*dto.CatalogCountsDTO, error) {
	resp, _, err := s.api.ListMockTests(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("catalog counts: %w", err)
	}

	counts := &dto.CatalogCountsDTO{All: resp.Count}
	for _, t := range resp.Results {
		if t.Branch == branch {
			counts.MyBranch++
		}
		switch t.TestType {
		case "OFFICIAL":
			counts.Official++
		case "COMMUNITY":
			counts.Community++
		case "CUSTOM":
			counts.Custom++
		}
	}
	return counts, nil
}

func filterTests(tests []model.MockTest, filter string, branch int64) []model.MockTest {
	if filter == "" || strings.EqualFold(filter, "all") {
		return tests
	}
	out := make([]model.MockTest, 0, len(tests))
	for _, t := range tests {
		switch {
		case strings.EqualFold(filter, "my_branch"):
			if t.Branch == branch {
				out = append(out, t)
			}
		default:
			if strings.EqualFold(t.TestType, filter) {
				out = append(out, t)
			}
		}
	}
	return out
}

func relevance(t dto.TestSummaryDTO, branch int64, subBranch *int64) int {
	score := 0
	if t.Branch == branch {
		score += 2
	}
	if subBranch != nil && t.SubBranch != nil && *t.SubBranch == *subBranch {
		score++
	}
	return score
}
