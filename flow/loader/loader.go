// Package loader reads compiled storyflow programs from disk.
//
// A program is a list of blocks plus optional waypoint ids. Three encodings
// are accepted, chosen by file extension: JSON (.json), YAML (.yaml, .yml)
// and HCL (.hcl). The loader does not parse narrative script syntax; it
// expects blocks and commands that a compiler has already produced.
package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dshills/storyflow/flow"
)

// ErrInvalidProgram is returned when a program fails validation.
var ErrInvalidProgram = errors.New("invalid program")

// ErrUnsupportedFormat is returned for an unknown file extension.
var ErrUnsupportedFormat = errors.New("unsupported program format")

// Format names an encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatHCL  Format = "hcl"
)

// Program is a validated, compiled program.
type Program struct {
	Blocks    []*flow.Block `json:"blocks" yaml:"blocks"`
	Waypoints []string      `json:"waypoints,omitempty" yaml:"waypoints,omitempty"`
}

// Graph builds the flow graph of the program.
func (p *Program) Graph() *flow.Graph {
	return flow.Build(p.Blocks)
}

// FormatOf picks the format from a file name.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".hcl":
		return FormatHCL, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// LoadFile reads and validates the program at path.
func LoadFile(path string) (*Program, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read program: %w", err)
	}
	return Load(data, format, path)
}

// Load decodes and validates a program. filename is used for source spans
// and diagnostics and may be empty.
func Load(data []byte, format Format, filename string) (*Program, error) {
	var (
		p   *Program
		err error
	)
	switch format {
	case FormatJSON:
		p, err = decodeJSON(data)
	case FormatYAML:
		p, err = decodeYAML(data)
	case FormatHCL:
		p, err = decodeHCL(data, filename)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}

	p.fill(filename)
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// fill assigns default command ids and source file names.
func (p *Program) fill(filename string) {
	for _, b := range p.Blocks {
		if b == nil {
			continue
		}
		if b.Source.File == "" {
			b.Source.File = filename
		}
		for n, c := range b.Commands {
			if c == nil {
				continue
			}
			if c.ID == "" {
				c.ID = b.ID + "." + strconv.Itoa(n)
			}
			if c.Source.File == "" {
				c.Source.File = filename
			}
		}
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidProgram, fmt.Sprintf(format, args...))
}

func (p *Program) validate() error {
	if len(p.Blocks) == 0 {
		return invalid("no blocks")
	}

	blocks := make(map[string]*flow.Block, len(p.Blocks))
	for _, b := range p.Blocks {
		if b == nil {
			return invalid("nil block")
		}
		if b.ID == "" {
			return invalid("block without id")
		}
		if _, dup := blocks[b.ID]; dup {
			return invalid("duplicate block id %q", b.ID)
		}
		blocks[b.ID] = b
	}

	commands := make(map[string]string)
	for _, b := range p.Blocks {
		if b.Parent != "" {
			if _, ok := blocks[b.Parent]; !ok {
				return invalid("block %q has unknown parent %q", b.ID, b.Parent)
			}
		}
		for n, c := range b.Commands {
			if c == nil {
				return invalid("block %q: nil command at %d", b.ID, n)
			}
			if c.Kind == "" {
				return invalid("command %q has no kind", c.ID)
			}
			if c.Kind == flow.FinishKind {
				return invalid("command %q uses reserved kind %q", c.ID, flow.FinishKind)
			}
			if owner, dup := commands[c.ID]; dup {
				return invalid("duplicate command id %q in blocks %q and %q", c.ID, owner, b.ID)
			}
			if _, clash := blocks[c.ID]; clash {
				return invalid("command id %q collides with a block id", c.ID)
			}
			commands[c.ID] = b.ID
		}
	}

	for id := range blocks {
		if owner, clash := commands[flow.TerminalID(id)]; clash {
			return invalid("command id %q in block %q is reserved", flow.TerminalID(id), owner)
		}
	}

	for _, b := range p.Blocks {
		seen := map[string]bool{b.ID: true}
		for parent := b.Parent; parent != ""; parent = blocks[parent].Parent {
			if seen[parent] {
				return invalid("parent cycle through block %q", b.ID)
			}
			seen[parent] = true
		}
	}

	for _, w := range p.Waypoints {
		_, isBlock := blocks[w]
		_, isCommand := commands[w]
		if !isBlock && !isCommand {
			return invalid("unknown waypoint %q", w)
		}
	}
	return nil
}
