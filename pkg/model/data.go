package model

import (
	"sync"
)

// DataElement is one named unit of data. Value is an opaque payload the
// engine never interprets; Metadata carries string key/value annotations
// (sample name, experiment group, ...) used by downstream steps to group
// or filter elements.
type DataElement struct {
	Name     string
	Value    any
	Metadata map[string]string
}

// MetadataValue returns the metadata value for key, or "" when absent.
func (e *DataElement) MetadataValue(key string) string {
	if e.Metadata == nil {
		return ""
	}
	return e.Metadata[key]
}

// Data is a concrete value flowing through a port: an ordered list of
// named elements sharing one format. Data is produced by exactly one
// step/port pair and becomes immutable once finalized; consumers read it
// without mutating it.
//
// AddElement is safe for concurrent use, so the tasks of a fanned-out step
// may append to their step's shared output Data in parallel.
type Data struct {
	mu        sync.Mutex
	name      string
	format    *DataFormat
	elements  []*DataElement
	finalized bool
}

// NewData creates an empty, unfinalized Data for the given format.
func NewData(name string, format *DataFormat) *Data {
	return &Data{name: name, format: format}
}

// Name returns the data name (conventionally "step/port").
func (d *Data) Name() string { return d.name }

// Format returns the data format.
func (d *Data) Format() *DataFormat { return d.format }

// AddElement appends an element. It fails with an IllegalStateError after
// Finalize, and with an InvalidArgumentError for a nil element.
func (d *Data) AddElement(e *DataElement) error {
	if e == nil {
		return NewInvalidArgumentError("data element cannot be nil")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.finalized {
		return NewIllegalStateError("data %q is finalized", d.name)
	}
	d.elements = append(d.elements, e)
	return nil
}

// Finalize freezes the data. Finalizing twice is a no-op.
func (d *Data) Finalize() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.finalized = true
}

// Finalized reports whether the data has been frozen.
func (d *Data) Finalized() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.finalized
}

// Elements returns a snapshot of the element list.
func (d *Data) Elements() []*DataElement {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*DataElement, len(d.elements))
	copy(out, d.elements)
	return out
}

// Len returns the current element count.
func (d *Data) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.elements)
}

// SingleElementView returns a finalized single-element Data sharing d's
// name and format. The executor uses it to hand one element of a list to
// each fanned-out task.
func (d *Data) SingleElementView(e *DataElement) *Data {
	return &Data{
		name:      d.name,
		format:    d.format,
		elements:  []*DataElement{e},
		finalized: true,
	}
}
