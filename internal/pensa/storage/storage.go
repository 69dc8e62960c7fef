// Package storage defines the Tracker Engine's interface: the set of
// operations the HTTP daemon and the direct-mode CLI both drive.
package storage

import (
	"context"

	"github.com/fieldnotes/springfield/internal/pensa/types"
)

// Store is the full set of engine operations. The sqlite package is
// the only implementation; the interface exists so the daemon and the
// CLI's direct-mode path share one contract and so tests can swap in
// a fake when exercising HTTP handlers in isolation.
type Store interface {
	CreateIssue(ctx context.Context, params types.CreateIssueParams) (*types.Issue, error)
	GetIssue(ctx context.Context, id string) (*types.IssueDetail, error)
	UpdateIssue(ctx context.Context, id string, fields types.UpdateFields, actor string) (*types.Issue, error)
	DeleteIssue(ctx context.Context, id string, force bool) error

	ClaimIssue(ctx context.Context, id, actor string) (*types.Issue, error)
	ReleaseIssue(ctx context.Context, id, actor string) (*types.Issue, error)
	CloseIssue(ctx context.Context, id, actor string, reason *string, force bool) (*types.Issue, error)
	ReopenIssue(ctx context.Context, id, actor string) (*types.Issue, error)

	ListIssues(ctx context.Context, filters types.ListFilters) ([]types.Issue, error)
	ReadyIssues(ctx context.Context, filters types.ListFilters) ([]types.Issue, error)
	BlockedIssues(ctx context.Context) ([]types.Issue, error)
	SearchIssues(ctx context.Context, query string, filters types.ListFilters) ([]types.Issue, error)
	CountIssues(ctx context.Context, filters types.ListFilters, groupBy string) (*types.CountResult, *types.GroupedCountResult, error)
	ProjectStatus(ctx context.Context) ([]types.StatusEntry, error)
	IssueHistory(ctx context.Context, id string) ([]types.Event, error)

	AddDep(ctx context.Context, issueID, dependsOnID, actor string) error
	RemoveDep(ctx context.Context, issueID, dependsOnID, actor string) error
	ListDeps(ctx context.Context, issueID string) ([]types.Issue, error)
	DepTree(ctx context.Context, issueID string) ([]types.DepTreeNode, error)
	DepTreeDirection(ctx context.Context, issueID, direction string) ([]types.DepTreeNode, error)
	DetectCycles(ctx context.Context) ([][]string, error)

	AddComment(ctx context.Context, issueID, actor, text string) (*types.Comment, error)
	ListComments(ctx context.Context, issueID string) ([]types.Comment, error)

	ExportJSONL(ctx context.Context, dir string) (*types.ExportCounts, error)
	ImportJSONL(ctx context.Context, dir string) error

	Doctor(ctx context.Context, fix bool) ([]types.Finding, error)

	Close() error
}
