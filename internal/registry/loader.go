// Package registry holds the catalog of model variants the service can load.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"musicd/internal/common/fsutil"
	"musicd/pkg/types"
)

// DefaultVariant is used when a request does not name a variant.
const DefaultVariant = "small"

// Defaults returns the built-in variants.
func Defaults() []types.Variant {
	return []types.Variant{
		{Name: "small", ModelID: "facebook/musicgen-small", DefaultMaxTokens: 256, Description: "300M parameters, fast"},
		{Name: "medium", ModelID: "facebook/musicgen-medium", DefaultMaxTokens: 512, Description: "1.5B parameters, higher quality"},
	}
}

// Build merges configured variants over the defaults. An entry whose name
// matches a default replaces it; other entries are appended in order.
func Build(extra []types.Variant) ([]types.Variant, error) {
	out := Defaults()
	index := make(map[string]int, len(out))
	for i, v := range out {
		index[v.Name] = i
	}
	for _, v := range extra {
		v.Name = normalize(v.Name)
		v.ModelID = strings.TrimSpace(v.ModelID)
		if err := Validate(v); err != nil {
			return nil, err
		}
		if i, ok := index[v.Name]; ok {
			out[i] = v
			continue
		}
		index[v.Name] = len(out)
		out = append(out, v)
	}
	return out, nil
}

// Validate checks a single variant definition.
func Validate(v types.Variant) error {
	if normalize(v.Name) == "" {
		return fmt.Errorf("variant name is required")
	}
	if strings.TrimSpace(v.ModelID) == "" {
		return fmt.Errorf("variant %q: model_id is required", v.Name)
	}
	if v.DefaultMaxTokens <= 0 {
		return fmt.Errorf("variant %q: default_max_tokens must be positive, got %d", v.Name, v.DefaultMaxTokens)
	}
	return nil
}

// Find looks up a variant by name (case-insensitive).
func Find(variants []types.Variant, name string) (types.Variant, bool) {
	n := normalize(name)
	for _, v := range variants {
		if v.Name == n {
			return v, true
		}
	}
	return types.Variant{}, false
}

// Names lists variant names in catalog order.
func Names(variants []types.Variant) []string {
	out := make([]string, 0, len(variants))
	for _, v := range variants {
		out = append(out, v.Name)
	}
	return out
}

func normalize(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

// CachedModels scans a Hugging Face hub cache directory and returns the model
// IDs whose weights are already present (directories named models--org--name).
func CachedModels(dir string) (map[string]bool, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	out := make(map[string]bool)
	if !fsutil.PathExists(abs) {
		return out, nil
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, "models--") {
			continue
		}
		// models--facebook--musicgen-small -> facebook/musicgen-small
		id := strings.ReplaceAll(strings.TrimPrefix(name, "models--"), "--", "/")
		out[id] = true
	}
	return out, nil
}
