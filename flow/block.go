// Package flow provides the narrative flow-control interpreter for storyflow.
package flow

// FinishKind is the kind tag of the synthetic terminal command that Build
// appends to every block. Reaching it means the block ran past its last
// real command.
const FinishKind = "finish"

// Span locates a block or command in its original source file.
type Span struct {
	File        string `json:"file,omitempty" yaml:"file,omitempty"`
	StartLine   int    `json:"startLine,omitempty" yaml:"startLine,omitempty"`
	StartColumn int    `json:"startColumn,omitempty" yaml:"startColumn,omitempty"`
	EndLine     int    `json:"endLine,omitempty" yaml:"endLine,omitempty"`
	EndColumn   int    `json:"endColumn,omitempty" yaml:"endColumn,omitempty"`
}

// end collapses the span to its end position.
func (s Span) end() Span {
	return Span{
		File:        s.File,
		StartLine:   s.EndLine,
		StartColumn: s.EndColumn,
		EndLine:     s.EndLine,
		EndColumn:   s.EndColumn,
	}
}

// Command is one statement inside a block.
//
// Kind selects the Runner that executes the command. Params are opaque to the
// interpreter and only interpreted by that runner.
type Command struct {
	// ID uniquely identifies the command across the whole program.
	ID string `json:"id" yaml:"id"`

	// Block is the owning block ID. Filled in by Build.
	Block string `json:"block,omitempty" yaml:"block,omitempty"`

	// Index is the position of the command inside its block. Filled in by Build.
	Index int `json:"index" yaml:"index"`

	// Kind is the runner tag, e.g. "text", "choice", "jump".
	Kind string `json:"kind" yaml:"kind"`

	// Params holds kind-specific parameters.
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`

	// Source is the command's location in source.
	Source Span `json:"source,omitempty" yaml:"source,omitempty"`
}

// Param returns a parameter as a string, or "" when missing or not a string.
func (c *Command) Param(name string) string {
	if c == nil || c.Params == nil {
		return ""
	}
	s, _ := c.Params[name].(string)
	return s
}

// Block is a named, ordered sequence of commands, nested in a parent/child
// hierarchy. Blocks are immutable once passed to Build.
type Block struct {
	ID       string     `json:"id" yaml:"id"`
	Parent   string     `json:"parent,omitempty" yaml:"parent,omitempty"`
	Children []string   `json:"children,omitempty" yaml:"children,omitempty"`
	Path     []string   `json:"path,omitempty" yaml:"path,omitempty"` // ancestor chain, root first
	Commands []*Command `json:"commands,omitempty" yaml:"commands,omitempty"`
	Source   Span       `json:"source,omitempty" yaml:"source,omitempty"`
}

// Terminal returns the synthetic finish command of a built block.
func (b *Block) Terminal() *Command {
	if len(b.Commands) == 0 {
		return nil
	}
	return b.Commands[len(b.Commands)-1]
}

// hasAncestor reports whether id appears in the block's ancestor path.
func (b *Block) hasAncestor(id string) bool {
	for _, p := range b.Path {
		if p == id {
			return true
		}
	}
	return false
}

// Location addresses a block (Command = -1) or a command inside a block.
// Position is the dense global story-order index assigned by Build.
type Location struct {
	Block    string `json:"block"`
	Command  int    `json:"command"`
	Position int    `json:"position"`
}

// Before reports whether l comes strictly earlier than other in story order.
func (l Location) Before(other Location) bool {
	return l.Position < other.Position
}
