package metadata_service

import (
	"fmt"

	"golang.org/x/exp/slices"
)

func (d *Directory) indexOf(name string) int {
	return slices.IndexFunc(d.Entries, func(e DirectoryEntry) bool { return e.Name == name })
}

func (d *Directory) Lookup(name string) (DirectoryEntry, bool) {
	i := d.indexOf(name)
	if i < 0 {
		return DirectoryEntry{}, false
	}
	return d.Entries[i], true
}

func (d *Directory) Has(name string) bool { return d.indexOf(name) >= 0 }

// EntryFor returns the entry that references inodeID.
func (d *Directory) EntryFor(inodeID int) (DirectoryEntry, bool) {
	i := slices.IndexFunc(d.Entries, func(e DirectoryEntry) bool { return e.InodeID == inodeID })
	if i < 0 {
		return DirectoryEntry{}, false
	}
	return d.Entries[i], true
}

func (d *Directory) Add(name string, inodeID int) error {
	if d.Has(name) {
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	d.Entries = append(d.Entries, DirectoryEntry{Name: name, InodeID: inodeID})
	return nil
}

func (d *Directory) Remove(name string) (DirectoryEntry, error) {
	i := d.indexOf(name)
	if i < 0 {
		return DirectoryEntry{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	e := d.Entries[i]
	d.Entries = slices.Delete(d.Entries, i, i+1)
	return e, nil
}

// Rename changes an entry's name in place, keeping its position.
func (d *Directory) Rename(oldName, newName string) error {
	if d.Has(newName) {
		return fmt.Errorf("%w: %q", ErrDuplicateName, newName)
	}
	i := d.indexOf(oldName)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, oldName)
	}
	d.Entries[i].Name = newName
	return nil
}
