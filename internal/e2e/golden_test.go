//go:build e2e

package e2e

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var update = flag.Bool("update", false, "update golden files")

// goldenDir returns the path to the testdata/golden directory.
func goldenDir() string {
	return filepath.Join("..", "..", "testdata", "golden")
}

// promptGoldenFiles maps each persona to the golden file holding the user
// prompt it receives for the news fixture.
var promptGoldenFiles = []struct {
	role   string
	golden string
}{
	{researchRole, "research_prompt.txt"},
	{summarizeRole, "summarize_prompt.txt"},
	{editorRole, "editorial_prompt.txt"},
}

// runForGolden runs one editorial and returns the fake LLM with the prompts
// it received.
func runForGolden(t *testing.T) *fakeLLM {
	t.Helper()

	s := newStack(t, nil)
	_, err := s.pipeline.Run(context.Background(), nil)
	require.NoError(t, err)
	return s.llm
}

// TestGolden compares the rendered stage prompts against golden files. If
// golden files do not exist, the test is skipped with a message to run with
// -update.
func TestGolden(t *testing.T) {
	llm := runForGolden(t)
	gDir := goldenDir()

	for _, pg := range promptGoldenFiles {
		t.Run(pg.golden, func(t *testing.T) {
			golden, err := os.ReadFile(filepath.Join(gDir, pg.golden))
			if os.IsNotExist(err) {
				t.Skipf("golden file %s not found; run with -update to generate", pg.golden)
				return
			}
			require.NoError(t, err)

			assert.Equal(t, string(golden), llm.prompt(pg.role),
				"prompt for %s does not match golden file", pg.role)
		})
	}
}

// TestUpdateGolden regenerates golden files from the current prompts.
// Run with: go test -tags e2e -run TestUpdateGolden ./internal/e2e/ -update
func TestUpdateGolden(t *testing.T) {
	if !*update {
		t.Skip("skipping golden file update; run with -update flag")
	}

	llm := runForGolden(t)
	gDir := goldenDir()
	require.NoError(t, os.MkdirAll(gDir, 0o755))

	for _, pg := range promptGoldenFiles {
		require.NoError(t, os.WriteFile(filepath.Join(gDir, pg.golden), []byte(llm.prompt(pg.role)), 0o644))
		t.Logf("updated %s", pg.golden)
	}
}
