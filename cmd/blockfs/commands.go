package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	blocklib "github.com/AnishMulay/blockfs/clients/library"
	"github.com/AnishMulay/blockfs/internal/allocator"
	pfs "github.com/AnishMulay/blockfs/internal/file_service"
	ms "github.com/AnishMulay/blockfs/internal/metadata_service"
)

func touch(ctx context.Context, svc pfs.FileService, c *cli.Context) error {
	size, err := parseKB(c.Args().Get(1))
	if err != nil {
		return err
	}
	parent, name, err := blocklib.ResolveParent(ctx, svc, c.Args().Get(0))
	if err != nil {
		return err
	}
	n, err := svc.CreateFile(ctx, parent, name, size)
	if err != nil {
		return blocklib.ExplainCreateFailure(ctx, svc, size, err)
	}
	fmt.Fprintf(c.App.Writer, "created %s: inode %d, %s, blocks %v\n", name, n.ID, n.Strategy, n.BlockList)
	return nil
}

func mkdir(ctx context.Context, svc pfs.FileService, c *cli.Context) error {
	parent, name, err := blocklib.ResolveParent(ctx, svc, c.Args().Get(0))
	if err != nil {
		return err
	}
	n, err := svc.CreateDirectory(ctx, parent, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "created directory %s: inode %d\n", name, n.ID)
	return nil
}

func rename(ctx context.Context, svc pfs.FileService, c *cli.Context) error {
	parent, name, err := blocklib.ResolveParent(ctx, svc, c.Args().Get(0))
	if err != nil {
		return err
	}
	return svc.RenameEntry(ctx, parent, name, c.Args().Get(1))
}

func remove(ctx context.Context, svc pfs.FileService, c *cli.Context) error {
	parent, name, err := blocklib.ResolveParent(ctx, svc, c.Args().Get(0))
	if err != nil {
		return err
	}
	return svc.DeleteEntry(ctx, parent, name)
}

func chmod(ctx context.Context, svc pfs.FileService, c *cli.Context) error {
	perms, err := ms.ParsePermissions(c.Args().Get(1))
	if err != nil {
		return err
	}
	id, err := blocklib.ResolveInode(ctx, svc, c.Args().Get(0))
	if err != nil {
		return err
	}
	return svc.UpdatePermissions(ctx, id, perms)
}

func strategy(ctx context.Context, svc pfs.FileService, c *cli.Context) error {
	if c.NArg() > 0 {
		s, err := allocator.ParseStrategy(c.Args().First())
		if err != nil {
			return err
		}
		if err := svc.SwitchAllocationStrategy(ctx, s); err != nil {
			return err
		}
	}
	s, err := svc.Strategy(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s: %s\n", s, s.Describe())
	return nil
}

func pathArg(c *cli.Context) string {
	if c.NArg() == 0 {
		return "/"
	}
	return c.Args().First()
}

func list(ctx context.Context, svc pfs.FileService, c *cli.Context) error {
	id, err := blocklib.ResolveInode(ctx, svc, pathArg(c))
	if err != nil {
		return err
	}
	entries, err := svc.ListDirectory(ctx, id)
	if err != nil {
		return err
	}
	writeEntries(c.App.Writer, entries)
	return nil
}

func writeEntries(w io.Writer, entries []pfs.DirEntry) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PERMS\tINODE\tSIZE\tBLOCKS\tSTRATEGY\tNAME")
	for _, e := range entries {
		kind := "-"
		name := e.Name
		if e.Kind == ms.KindDirectory {
			kind = "d"
			name += "/"
		}
		strategy := string(e.Strategy)
		if strategy == "" {
			strategy = "-"
		}
		fmt.Fprintf(tw, "%s%s\t%d\t%d\t%d\t%s\t%s\n", kind, e.Permissions, e.InodeID, e.SizeBytes, e.Blocks, strategy, name)
	}
	tw.Flush()
}

func tree(ctx context.Context, svc pfs.FileService, c *cli.Context) error {
	root := pathArg(c)
	id, err := blocklib.ResolveInode(ctx, svc, root)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, root)
	return writeTree(ctx, c.App.Writer, svc, id, "")
}

func writeTree(ctx context.Context, w io.Writer, svc pfs.FileService, dirID int, indent string) error {
	entries, err := svc.ListDirectory(ctx, dirID)
	if err != nil {
		return err
	}
	for i, e := range entries {
		branch, next := "├── ", "│   "
		if i == len(entries)-1 {
			branch, next = "└── ", "    "
		}
		if e.Kind == ms.KindDirectory {
			fmt.Fprintf(w, "%s%s%s/\n", indent, branch, e.Name)
			if err := writeTree(ctx, w, svc, e.InodeID, indent+next); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintf(w, "%s%s%s (%d bytes, %s)\n", indent, branch, e.Name, e.SizeBytes, e.Strategy)
	}
	return nil
}

func stat(ctx context.Context, svc pfs.FileService, c *cli.Context) error {
	id, err := blocklib.ResolveInode(ctx, svc, c.Args().First())
	if err != nil {
		return err
	}
	n, err := svc.GetInode(ctx, id)
	if err != nil {
		return err
	}
	w := c.App.Writer
	fmt.Fprintf(w, "Inode:       %d\n", n.ID)
	fmt.Fprintf(w, "Type:        %s\n", n.Kind)
	fmt.Fprintf(w, "Size:        %d bytes\n", n.SizeBytes)
	fmt.Fprintf(w, "Permissions: %s\n", n.Permissions)
	fmt.Fprintf(w, "Created:     %s\n", n.CreatedAt.Format("2006-01-02 15:04:05"))
	if n.IsDir() {
		return nil
	}
	fmt.Fprintf(w, "Strategy:    %s\n", n.Strategy)
	fmt.Fprintf(w, "Blocks:      %v\n", n.BlockList)
	writePointers(w, n.Pointers)

	chain, err := svc.BlockChain(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Chain:       %s\n", joinInts(chain, " -> "))
	return nil
}

func writePointers(w io.Writer, p allocator.Pointers) {
	switch p := p.(type) {
	case allocator.ContiguousPointers:
		fmt.Fprintf(w, "Start:       %d (length %d)\n", p.Start, p.Length)
	case allocator.LinkedPointers:
		fmt.Fprintf(w, "Head/Tail:   %d / %d\n", p.Head, p.Tail)
	case allocator.IndexedPointers:
		fmt.Fprintf(w, "Index block: %d -> %v\n", p.IndexBlockID, p.Entries)
	case allocator.UnixPointers:
		fmt.Fprintf(w, "Direct:      %v\n", p.Direct)
		if p.SingleIndirect != nil {
			fmt.Fprintf(w, "Single:      %d -> %v\n", p.SingleIndirect.ID, p.SingleIndirect.Entries)
		}
		if p.DoubleIndirect != nil {
			fmt.Fprintf(w, "Double:      %d\n", p.DoubleIndirect.ID)
			for _, child := range p.DoubleIndirect.Children {
				fmt.Fprintf(w, "  %d -> %v\n", child.ID, child.Entries)
			}
		}
	}
}

func joinInts(ids []int, sep string) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, sep)
}

func resolve(ctx context.Context, svc pfs.FileService, c *cli.Context) error {
	steps, err := svc.ResolvePath(ctx, c.Args().First())
	for _, s := range steps {
		marker := ""
		if s.Target {
			marker = " (target)"
		}
		fmt.Fprintf(c.App.Writer, "%-12s inode %-4d %s%s\n", s.Name, s.InodeID, s.Kind, marker)
	}
	return err
}

func stats(ctx context.Context, svc pfs.FileService, c *cli.Context) error {
	s, err := svc.Stats(ctx)
	if err != nil {
		return err
	}
	current, err := svc.Strategy(ctx)
	if err != nil {
		return err
	}
	w := c.App.Writer
	fmt.Fprintf(w, "Strategy:         %s\n", current)
	fmt.Fprintf(w, "Total:            %d blocks (%.0f KB)\n", s.TotalBlocks, s.TotalSizeKB)
	fmt.Fprintf(w, "Used:             %d blocks (%.0f KB)\n", s.UsedBlocks, s.UsedSizeKB)
	fmt.Fprintf(w, "Free:             %d blocks (%.0f KB)\n", s.FreeBlocks, s.FreeSizeKB)
	fmt.Fprintf(w, "Largest free run: %d blocks\n", s.LargestFreeRun)
	fmt.Fprintf(w, "Fragmentation:    %d%%\n", s.Fragmentation)
	return nil
}

func layout(ctx context.Context, svc pfs.FileService, c *cli.Context) error {
	blocks, err := svc.BlockMap(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, pfs.RenderBlockMap(blocks, c.Int("width")))
	return nil
}

func reset(ctx context.Context, svc pfs.FileService, c *cli.Context) error {
	if err := svc.Reset(ctx); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "filesystem reset")
	return nil
}
