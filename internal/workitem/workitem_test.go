package workitem

import (
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	for _, in := range []string{"spec", "specs", " SPEC "} {
		k, err := ParseKind(in)
		require.NoError(t, err)
		assert.Equal(t, KindSpec, k)
	}
	k, err := ParseKind("bugs")
	require.NoError(t, err)
	assert.Equal(t, KindBug, k)

	_, err = ParseKind("steering")
	assert.Error(t, err)
}

func TestKind_Valid(t *testing.T) {
	assert.True(t, KindSpec.Valid())
	assert.True(t, KindBug.Valid())
	assert.False(t, Kind("specs").Valid())
	assert.False(t, Kind("").Valid())
}

func TestKindDirRoundTrip(t *testing.T) {
	for _, kind := range Kinds {
		got, ok := KindForDir(kind.Dir())
		require.True(t, ok)
		assert.Equal(t, kind, got)
	}
	_, ok := KindForDir("steering")
	assert.False(t, ok)
}

func TestDocuments(t *testing.T) {
	assert.Equal(t, []string{"requirements.md", "design.md", "tasks.md"}, KindSpec.Documents())
	assert.Equal(t, []string{"report.md", "analysis.md", "fix.md", "verification.md"}, KindBug.Documents())
	assert.True(t, KindBug.IsDocument("fix.md"))
	assert.False(t, KindSpec.IsDocument("fix.md"))
	assert.Equal(t, DocReport, KindBug.TitleDocument())
	assert.Equal(t, DocRequirements, KindSpec.TitleDocument())
}

func TestPriorityTable(t *testing.T) {
	bug := []Status{StatusReported, StatusAnalyzing, StatusFixing, StatusVerifying, StatusResolved}
	for i, s := range bug {
		assert.Equal(t, i+1, Priority(KindBug, s), s)
	}
	spec := []Status{StatusNotStarted, StatusRequirements, StatusDesign, StatusTasks, StatusInProgress, StatusCompleted}
	for i, s := range spec {
		assert.Equal(t, i+1, Priority(KindSpec, s), s)
	}
	assert.Equal(t, spec, Statuses(KindSpec))
	assert.Equal(t, bug, Statuses(KindBug))

	// A bug status looked up in the spec table is unknown and sorts last.
	assert.Greater(t, Priority(KindSpec, StatusResolved), Priority(KindSpec, StatusCompleted))
}

func TestFormatSlug(t *testing.T) {
	tests := map[string]string{
		"user-authentication":    "User Authentication",
		"fix_login__timeout":     "Fix Login Timeout",
		"api":                    "Api",
		"-leading-and-trailing-": "Leading And Trailing",
		"":                       "",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatSlug(in), in)
	}
}

func item(slug string, status Status, mod time.Time) WorkItem {
	return WorkItem{Kind: KindBug, Slug: slug, Status: status, LastModified: mod}
}

func slugs(items []WorkItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Slug
	}
	return out
}

func TestSort_CanonicalOrder(t *testing.T) {
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	items := []WorkItem{
		item("resolved-one", StatusResolved, base.Add(5*time.Hour)),
		item("old-report", StatusReported, base),
		item("new-report", StatusReported, base.Add(time.Hour)),
		item("fixing", StatusFixing, base),
		item("b-tie", StatusReported, base),
		item("a-tie", StatusReported, base),
	}

	Sort(items)

	assert.Equal(t, []string{"new-report", "a-tie", "b-tie", "old-report", "fixing", "resolved-one"}, slugs(items))
}

func TestSort_IndependentOfInputOrder(t *testing.T) {
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	var items []WorkItem
	statuses := Statuses(KindBug)
	for i := 0; i < 40; i++ {
		items = append(items, item(
			string(rune('a'+i%26))+string(rune('a'+i/26)),
			statuses[i%len(statuses)],
			base.Add(time.Duration(i%4)*time.Minute),
		))
	}
	want := slugs(Sorted(items))

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := append([]WorkItem(nil), items...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		Sort(shuffled)
		assert.Equal(t, want, slugs(shuffled))
	}
}

func TestSorted_DoesNotMutate(t *testing.T) {
	now := time.Now()
	in := []WorkItem{item("b", StatusReported, now), item("a", StatusReported, now)}
	out := Sorted(in)
	assert.Equal(t, []string{"b", "a"}, slugs(in))
	assert.Equal(t, []string{"a", "b"}, slugs(out))
}

func TestLayout(t *testing.T) {
	l := Layout{WorkflowDir: ".claude"}
	root := filepath.FromSlash("/work/proj")
	assert.Equal(t, filepath.FromSlash("/work/proj/.claude"), l.WorkflowPath(root))
	assert.Equal(t, filepath.FromSlash("/work/proj/.claude/bugs"), l.KindPath(root, KindBug))
	assert.Equal(t, filepath.FromSlash("/work/proj/.claude/specs/auth"), l.ItemPath(root, KindSpec, "auth"))
}

func TestChangeType_Validate(t *testing.T) {
	for _, c := range []ChangeType{ChangeAdded, ChangeChanged, ChangeRemoved} {
		assert.NoError(t, c.Validate())
	}
	assert.Error(t, ChangeType("renamed").Validate())
}

func TestWorkItem_Document(t *testing.T) {
	w := WorkItem{Documents: []DocumentInfo{{Name: DocReport, Exists: true}}}
	d, ok := w.Document(DocReport)
	require.True(t, ok)
	assert.True(t, d.Exists)
	_, ok = w.Document(DocFix)
	assert.False(t, ok)
	assert.Equal(t, 3, TaskSummary{Total: 5, Completed: 2}.Remaining())
}
