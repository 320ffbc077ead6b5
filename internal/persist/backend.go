package persist

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Meta describes a save for listings. Only slot storage records it.
type Meta struct {
	Tick     uint64
	Entities int
}

// Backend stores and fetches one session document.
type Backend interface {
	Store(ctx context.Context, body *yaml.Node, meta Meta) error
	// Fetch returns the stored document, or found=false when nothing has
	// been saved yet.
	Fetch(ctx context.Context) (body *yaml.Node, found bool, err error)
}

// FileBackend keeps the save in a single file on disk.
type FileBackend struct {
	Path string
}

func (b FileBackend) Store(_ context.Context, body *yaml.Node, _ Meta) error {
	return WriteSave(b.Path, body)
}

func (b FileBackend) Fetch(context.Context) (*yaml.Node, bool, error) {
	doc, err := ReadSave(b.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

// SlotStore is the subset of SaveRepo a SlotBackend needs.
type SlotStore interface {
	Put(ctx context.Context, row *SlotRow) error
	Get(ctx context.Context, slot string) (*SlotRow, error)
}

// SlotBackend keeps the save in a named database slot.
type SlotBackend struct {
	Slots SlotStore
	Slot  string
}

func (b SlotBackend) Store(ctx context.Context, body *yaml.Node, meta Meta) error {
	data, err := Encode(body)
	if err != nil {
		return err
	}
	return b.Slots.Put(ctx, &SlotRow{
		Slot:     b.Slot,
		Version:  SaveVersion,
		Tick:     meta.Tick,
		Entities: meta.Entities,
		Data:     data,
	})
}

func (b SlotBackend) Fetch(ctx context.Context) (*yaml.Node, bool, error) {
	row, err := b.Slots.Get(ctx, b.Slot)
	if errors.Is(err, ErrSlotNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if row.Version != SaveVersion {
		return nil, false, fmt.Errorf("%w: slot %s has version %d", ErrIncompatibleSave, b.Slot, row.Version)
	}
	doc, err := Decode(row.Data)
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}
