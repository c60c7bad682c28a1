package folder

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_KeyOrder(t *testing.T) {
	t.Parallel()

	data, err := Encode(Config{Enabled: true, Jira: JiraQuery{JQL: "project = ABC"}})
	require.NoError(t, err)

	text := string(data)
	keys := []string{"enabled:", "persistent:", "jira:", "jql:", "github:", "repo:", "query:", "bugzilla:"}
	last := -1
	for _, k := range keys {
		idx := strings.Index(text, k)
		require.GreaterOrEqual(t, idx, 0, "missing key %s in\n%s", k, text)
		assert.Greater(t, idx, last, "key %s out of order in\n%s", k, text)
		last = idx
	}
	assert.Contains(t, text, "enabled: true")
	assert.Contains(t, text, "\n  jql: project = ABC\n", "must use 2-space indent")
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero", Config{}},
		{"jira only", Config{Enabled: true, Jira: JiraQuery{JQL: "assignee = me", IDs: []string{"ABC-1"}}}},
		{"all backends", Config{
			Enabled:    true,
			Persistent: true,
			Jira:       JiraQuery{JQL: "project = X"},
			GitHub:     GitHubQuery{Repo: "owner/repo", Query: "is:open label:bug", IDs: []string{"12", "7"}},
			Bugzilla:   BugzillaQuery{Query: "kernel", IDs: []string{"1001"}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			data, err := Encode(tt.cfg)
			require.NoError(t, err)

			got, err := Decode(data)
			require.NoError(t, err)
			assert.True(t, tt.cfg.Equal(got), "round trip changed config:\n%s", data)
		})
	}
}

func TestDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want Config
	}{
		{
			name: "empty document",
			in:   "",
			want: Config{},
		},
		{
			name: "null document",
			in:   "~\n",
			want: Config{},
		},
		{
			name: "missing blocks",
			in:   "enabled: true\n",
			want: Config{Enabled: true},
		},
		{
			name: "trims values and repo slashes",
			in:   "enabled: true\ngithub:\n  repo: ' /owner/repo/ '\n  query: '  is:open '\n  ids: [' 3 ', '', '4']\n",
			want: Config{Enabled: true, GitHub: GitHubQuery{Repo: "owner/repo", Query: "is:open", IDs: []string{"3", "4"}}},
		},
		{
			name: "legacy list block uses first element",
			in:   "enabled: true\njira:\n  - jql: project = A\n  - jql: project = B\n",
			want: Config{Enabled: true, Jira: JiraQuery{JQL: "project = A"}},
		},
		{
			name: "empty legacy list",
			in:   "jira: []\n",
			want: Config{},
		},
		{
			name: "scalar block is empty",
			in:   "enabled: true\njira: nonsense\nbugzilla:\n  query: kernel\n",
			want: Config{Enabled: true, Bugzilla: BugzillaQuery{Query: "kernel"}},
		},
		{
			name: "mistyped block field resets only that block",
			in:   "jira:\n  jql: [a, b]\ngithub:\n  repo: o/r\n  query: q\n",
			want: Config{GitHub: GitHubQuery{Repo: "o/r", Query: "q"}},
		},
		{
			name: "null block",
			in:   "persistent: true\ngithub: null\n",
			want: Config{Persistent: true},
		},
		{
			name: "unknown keys ignored",
			in:   "enabled: true\ncolour: blue\n",
			want: Config{Enabled: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Decode([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_ParseError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
	}{
		{"syntax error", "enabled: [true\n"},
		{"list document", "- enabled: true\n"},
		{"scalar document", "just words\n"},
		{"mistyped enabled", "enabled: maybe\n"},
		{"mistyped persistent", "persistent: {a: 1}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Decode([]byte(tt.in))
			require.Error(t, err)
			var perr *ParseError
			assert.ErrorAs(t, err, &perr)
		})
	}
}

func TestConfig_Equal(t *testing.T) {
	t.Parallel()

	base := Config{Enabled: true, GitHub: GitHubQuery{Repo: "o/r", IDs: []string{"1"}}}

	assert.True(t, base.Equal(base))
	assert.True(t, Config{}.Equal(Config{Jira: JiraQuery{IDs: []string{}}}), "nil and empty ids are equal")

	changed := base
	changed.GitHub.IDs = []string{"1", "2"}
	assert.False(t, base.Equal(changed))

	changed = base
	changed.Persistent = true
	assert.False(t, base.Equal(changed))
}

func TestConfig_HasQueries(t *testing.T) {
	t.Parallel()

	assert.False(t, Config{Enabled: true}.HasQueries())
	assert.False(t, Config{GitHub: GitHubQuery{Repo: "o/r"}}.HasQueries(), "repo alone is not a query")
	assert.True(t, Config{Bugzilla: BugzillaQuery{IDs: []string{"1"}}}.HasQueries())
	assert.True(t, Config{Jira: JiraQuery{JQL: "x"}}.HasQueries())
}
