package blocklib

import (
	"context"
	"fmt"
	pathpkg "path"
	"strings"

	pfs "github.com/AnishMulay/blockfs/internal/file_service"
	ms "github.com/AnishMulay/blockfs/internal/metadata_service"
)

// NormalizePath cleans an absolute path. Relative paths are rejected.
func NormalizePath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("invalid path: empty path")
	}

	cleanPath := pathpkg.Clean(trimmed)
	if !strings.HasPrefix(cleanPath, "/") {
		return "", fmt.Errorf("invalid path %q: expected absolute path", path)
	}
	return cleanPath, nil
}

// SplitParentAndName splits a clean absolute path into its parent directory and
// final component.
func SplitParentAndName(path string) (string, string, error) {
	if path == "/" {
		return "", "", fmt.Errorf("the root has no parent")
	}

	parent := pathpkg.Dir(path)
	if parent == "." || parent == "" {
		parent = "/"
	}

	name := pathpkg.Base(path)
	if name == "" || name == "." || name == "/" {
		return "", "", fmt.Errorf("invalid path %q", path)
	}
	return parent, name, nil
}

// ResolveInode returns the inode id a path names.
func ResolveInode(ctx context.Context, svc pfs.FileService, path string) (int, error) {
	cleanPath, err := NormalizePath(path)
	if err != nil {
		return 0, err
	}
	steps, err := svc.ResolvePath(ctx, cleanPath)
	if err != nil {
		return 0, fmt.Errorf("resolve %q: %w", cleanPath, err)
	}
	return steps[len(steps)-1].InodeID, nil
}

// ResolveParent returns the directory that holds path and the entry name
// within it. The entry itself does not need to exist.
func ResolveParent(ctx context.Context, svc pfs.FileService, path string) (int, string, error) {
	cleanPath, err := NormalizePath(path)
	if err != nil {
		return 0, "", err
	}
	parent, name, err := SplitParentAndName(cleanPath)
	if err != nil {
		return 0, "", err
	}
	if parent == "/" {
		return ms.RootInodeID, name, nil
	}
	parentID, err := ResolveInode(ctx, svc, parent)
	if err != nil {
		return 0, "", err
	}
	return parentID, name, nil
}
