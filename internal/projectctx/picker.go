// ABOUTME: Ad hoc multi-file selection driven by an interactive single-choice picker
// ABOUTME: Chosen paths leave the candidate list; an empty choice ends selection

package projectctx

import (
	"context"
	"fmt"
	"slices"
)

// Picker asks the user to choose one of candidates. An empty choice means done.
type Picker interface {
	PickOne(ctx context.Context, prompt string, candidates []string) (string, error)
}

// SelectAdHoc repeatedly prompts until the user picks nothing or candidates
// run out, returning the chosen paths in the order they were picked.
func SelectAdHoc(ctx context.Context, provider FileProvider, picker Picker) ([]string, error) {
	files, err := provider.ListProjectFiles(ctx)
	if err != nil {
		return nil, err
	}
	return SelectFrom(ctx, files, picker)
}

// SelectFrom runs the ad hoc selection loop over a fixed candidate list.
func SelectFrom(ctx context.Context, candidates []string, picker Picker) ([]string, error) {
	remaining := slices.Clone(candidates)
	var chosen []string
	for len(remaining) > 0 {
		if err := ctx.Err(); err != nil {
			return chosen, err
		}
		prompt := fmt.Sprintf("Add file (%d selected, empty to finish): ", len(chosen))
		choice, err := picker.PickOne(ctx, prompt, remaining)
		if err != nil {
			return chosen, fmt.Errorf("pick file: %w", err)
		}
		if choice == "" {
			break
		}
		i := slices.Index(remaining, choice)
		if i < 0 {
			continue
		}
		remaining = slices.Delete(remaining, i, i+1)
		chosen = append(chosen, choice)
	}
	return chosen, nil
}
