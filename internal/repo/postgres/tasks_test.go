package postgres

import (
	"strings"
	"testing"

	"github.com/dkoller/taskhub/internal/domain/task"
)

func TestBuildListQuery(t *testing.T) {
	boolPtr := func(b bool) *bool { return &b }

	tests := []struct {
		name      string
		filter    task.ListFilter
		wantFrag  []string
		wantArgs  int
		wantLimit int
	}{
		{
			name:      "defaults",
			filter:    task.ListFilter{},
			wantFrag:  []string{"ORDER BY created_at ASC, id ASC", "LIMIT $2 OFFSET $3"},
			wantArgs:  3,
			wantLimit: 100,
		},
		{
			name:      "completed filter shifts placeholders",
			filter:    task.ListFilter{Completed: boolPtr(true)},
			wantFrag:  []string{"AND completed = $2", "LIMIT $3 OFFSET $4"},
			wantArgs:  4,
			wantLimit: 100,
		},
		{
			name:      "explicit limit and skip",
			filter:    task.ListFilter{Limit: 10, Skip: 20},
			wantFrag:  []string{"LIMIT $2 OFFSET $3"},
			wantArgs:  3,
			wantLimit: 10,
		},
		{
			name:      "limit clamped to 100",
			filter:    task.ListFilter{Limit: 5000},
			wantArgs:  3,
			wantLimit: 100,
		},
		{
			name:      "descending sort",
			filter:    task.ListFilter{SortDesc: true},
			wantFrag:  []string{"ORDER BY created_at DESC, id DESC"},
			wantArgs:  3,
			wantLimit: 100,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			query, args, limit := buildListQuery("owner-1", tc.filter)

			for _, frag := range tc.wantFrag {
				if !strings.Contains(query, frag) {
					t.Fatalf("query missing %q:\n%s", frag, query)
				}
			}
			if len(args) != tc.wantArgs {
				t.Fatalf("got %d args, want %d: %v", len(args), tc.wantArgs, args)
			}
			if limit != tc.wantLimit {
				t.Fatalf("got limit %d, want %d", limit, tc.wantLimit)
			}
			if args[0] != "owner-1" {
				t.Fatalf("first arg must be the owner, got %v", args[0])
			}
			// limit and skip ride in the last two args
			if args[len(args)-2] != limit {
				t.Fatalf("limit arg mismatch: %v", args[len(args)-2])
			}
			if args[len(args)-1] != tc.filter.Skip {
				t.Fatalf("skip arg mismatch: %v", args[len(args)-1])
			}
		})
	}
}
