package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"ghtrace/src/source"
)

func TestSource_RunPaginationCursors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")

		var resp WorkflowRunsResponse
		switch page {
		case "1":
			// A full page: a next cursor must be offered.
			resp.TotalCount = PerPage + 1
			for i := 0; i < PerPage; i++ {
				resp.WorkflowRuns = append(resp.WorkflowRuns, WorkflowRun{ID: int64(i), Name: "ci"})
			}
		case "2":
			// A short page: the listing is exhausted.
			resp.TotalCount = PerPage + 1
			resp.WorkflowRuns = []WorkflowRun{{ID: 1000, Name: "ci"}}
		default:
			t.Errorf("unexpected page %q", page)
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient("test-token")
	client.baseURL = server.URL
	src := NewSource(client)

	first, err := src.ListRuns(context.Background(), "owner", "repo", 1, "")
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(first.Runs) != PerPage {
		t.Fatalf("first page runs = %d, want %d", len(first.Runs), PerPage)
	}
	if first.Next == "" {
		t.Fatal("full page should carry a next cursor")
	}

	second, err := src.ListRuns(context.Background(), "owner", "repo", 1, first.Next)
	if err != nil {
		t.Fatalf("ListRuns(next) error = %v", err)
	}
	if len(second.Runs) != 1 {
		t.Fatalf("second page runs = %d, want 1", len(second.Runs))
	}
	if second.Next != "" {
		t.Errorf("short page next cursor = %q, want empty", second.Next)
	}
}

func TestSource_ListSteps(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/owner/repo/actions/jobs/5" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{
			"id": 5, "run_id": 1, "name": "build",
			"steps": [
				{"name": "checkout", "number": 1, "conclusion": "success"},
				{"name": "compile", "number": 2, "conclusion": "failure"}
			]
		}`)
	}))
	defer server.Close()

	client := NewClient("test-token")
	client.baseURL = server.URL
	src := NewSource(client)

	steps, err := src.ListSteps(context.Background(), "owner", "repo", 5)
	if err != nil {
		t.Fatalf("ListSteps() error = %v", err)
	}
	want := []source.Step{
		{Name: "checkout", Number: 1, Conclusion: "success"},
		{Name: "compile", Number: 2, Conclusion: "failure"},
	}
	if len(steps) != len(want) {
		t.Fatalf("steps = %d, want %d", len(steps), len(want))
	}
	for i := range want {
		if steps[i].Name != want[i].Name || steps[i].Number != want[i].Number || steps[i].Conclusion != want[i].Conclusion {
			t.Errorf("step[%d] = %+v, want %+v", i, steps[i], want[i])
		}
	}
}

func TestSource_ListJobsCarriesNoSteps(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"total_count": 1,
			"jobs": [
				{"id": 5, "run_id": 1, "name": "build", "conclusion": "success",
				 "steps": [{"name": "checkout", "number": 1}]}
			]
		}`)
	}))
	defer server.Close()

	client := NewClient("test-token")
	client.baseURL = server.URL
	src := NewSource(client)

	page, err := src.ListJobs(context.Background(), "owner", "repo", 1, "")
	if err != nil {
		t.Fatalf("ListJobs() error = %v", err)
	}
	if len(page.Jobs) != 1 {
		t.Fatalf("jobs = %d, want 1", len(page.Jobs))
	}
	// Step hydration is the fetcher's job, via ListSteps.
	if page.Jobs[0].Steps != nil {
		t.Errorf("jobs from the listing should carry no steps, got %v", page.Jobs[0].Steps)
	}
}

func TestSource_BadCursor(t *testing.T) {
	client := NewClient("test-token")
	src := NewSource(client)

	if _, err := src.ListRuns(context.Background(), "owner", "repo", 1, "not-a-page"); err == nil {
		t.Error("a foreign cursor should be rejected")
	}
}
