// Package resolver answers whether a page with a given unix name exists
// on a branch's site.
package resolver

import (
	"context"

	"github.com/wikidot-tools/reservebot/internal/logger"
	"github.com/wikidot-tools/reservebot/internal/sources/branches"
	"github.com/wikidot-tools/reservebot/internal/wikidot"
)

// Searcher is the lookup surface of the wikidot client.
type Searcher interface {
	SearchPages(ctx context.Context, siteID int64, query string) ([]wikidot.PageHit, error)
}

// Match describes the page found on the origin site.
type Match struct {
	UnixName string
	Title    string
	URL      string // public URL on the branch site, "" when the branch has no site name
}

type Resolver struct {
	wiki     Searcher
	branches *branches.Registry
	log      logger.Logger
}

func New(wiki Searcher, reg *branches.Registry, log logger.Logger) *Resolver {
	return &Resolver{
		wiki:     wiki,
		branches: reg,
		log:      log,
	}
}

// Lookup searches the branch site for unixName. The search returns fuzzy
// hits, so only an exact unix-name match counts; zero results or no exact
// hit is a valid not-found answer, not an error. An unknown branch code
// resolves to not-found as well.
func (r *Resolver) Lookup(ctx context.Context, branchCode, unixName string) (*Match, error) {
	site, ok := r.branches.Site(branchCode)
	if !ok || site.ID == 0 {
		r.log.Debug("branch has no site, treating as not found",
			logger.String("branch", branchCode),
			logger.String("page", unixName))
		return nil, nil
	}

	hits, err := r.wiki.SearchPages(ctx, site.ID, unixName)
	if err != nil {
		return nil, err
	}

	for _, hit := range hits {
		if hit.UnixName == unixName {
			return &Match{
				UnixName: hit.UnixName,
				Title:    hit.Title,
				URL:      r.branches.PageURL(branchCode, unixName),
			}, nil
		}
	}
	return nil, nil
}

// Exists reports whether a page of that unix name exists on the branch.
func (r *Resolver) Exists(ctx context.Context, branchCode, unixName string) (bool, error) {
	match, err := r.Lookup(ctx, branchCode, unixName)
	if err != nil {
		return false, err
	}
	return match != nil, nil
}
