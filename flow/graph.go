package flow

// Graph is the static, indexed program the interpreter walks.
//
// Build appends a terminal finish command to every block and assigns every
// block and command a strictly increasing position in declaration order.
// Positions are stable for the same input, which keeps checkpoints valid
// across saves.
type Graph struct {
	blocks   map[string]*Block
	order    []string
	commands map[string]*Command

	blockLocations   map[string]Location
	commandLocations map[string]Location
}

// Build indexes the compiled blocks in the order given.
//
// Build copies each block and its commands, so the caller's values are not
// modified. Missing Path entries are derived from Parent links and missing
// Children lists are derived from the other blocks' Parent fields.
func Build(blocks []*Block) *Graph {
	g := &Graph{
		blocks:           make(map[string]*Block, len(blocks)),
		order:            make([]string, 0, len(blocks)),
		commands:         make(map[string]*Command),
		blockLocations:   make(map[string]Location, len(blocks)),
		commandLocations: make(map[string]Location),
	}

	for _, src := range blocks {
		if src == nil {
			continue
		}
		b := &Block{
			ID:       src.ID,
			Parent:   src.Parent,
			Children: append([]string(nil), src.Children...),
			Path:     append([]string(nil), src.Path...),
			Commands: make([]*Command, 0, len(src.Commands)+1),
			Source:   src.Source,
		}
		for _, c := range src.Commands {
			if c == nil {
				continue
			}
			cmd := *c
			b.Commands = append(b.Commands, &cmd)
		}

		span := b.Source.end()
		if n := len(b.Commands); n > 0 {
			span = b.Commands[n-1].Source.end()
		}
		b.Commands = append(b.Commands, &Command{
			ID:     TerminalID(b.ID),
			Kind:   FinishKind,
			Source: span,
		})

		if _, dup := g.blocks[b.ID]; !dup {
			g.order = append(g.order, b.ID)
		}
		g.blocks[b.ID] = b
	}

	g.link()

	pos := 0
	for _, id := range g.order {
		b := g.blocks[id]
		g.blockLocations[id] = Location{Block: id, Command: -1, Position: pos}
		pos++
		for i, c := range b.Commands {
			c.Block = id
			c.Index = i
			g.commands[c.ID] = c
			g.commandLocations[c.ID] = Location{Block: id, Command: i, Position: pos}
			pos++
		}
	}

	return g
}

// TerminalID returns the id of the synthetic finish command of blockID.
func TerminalID(blockID string) string {
	return blockID + "." + FinishKind
}

// link fills derived parent/child/path data.
func (g *Graph) link() {
	derived := make(map[string][]string)
	for _, id := range g.order {
		b := g.blocks[id]
		if b.Parent != "" {
			derived[b.Parent] = append(derived[b.Parent], id)
		}
	}
	for _, id := range g.order {
		b := g.blocks[id]
		if len(b.Children) == 0 {
			b.Children = derived[id]
		}
		if len(b.Path) == 0 && b.Parent != "" {
			b.Path = g.ancestors(b)
		}
	}
}

func (g *Graph) ancestors(b *Block) []string {
	var chain []string
	seen := map[string]bool{b.ID: true}
	for p := b.Parent; p != ""; {
		if seen[p] {
			break
		}
		seen[p] = true
		chain = append([]string{p}, chain...)
		parent, ok := g.blocks[p]
		if !ok {
			break
		}
		p = parent.Parent
	}
	return chain
}

// Block returns the block with the given id.
func (g *Graph) Block(id string) (*Block, bool) {
	b, ok := g.blocks[id]
	return b, ok
}

// Command returns the command with the given id.
func (g *Graph) Command(id string) (*Command, bool) {
	c, ok := g.commands[id]
	return c, ok
}

// Blocks returns block ids in declaration order.
func (g *Graph) Blocks() []string {
	return append([]string(nil), g.order...)
}

// BlockLocation returns the location of a block's entry.
func (g *Graph) BlockLocation(id string) (Location, bool) {
	l, ok := g.blockLocations[id]
	return l, ok
}

// CommandLocation returns the location of a command.
func (g *Graph) CommandLocation(id string) (Location, bool) {
	l, ok := g.commandLocations[id]
	return l, ok
}

// LocationAt returns the location of the command at index in blockID. A
// negative index addresses the block itself.
func (g *Graph) LocationAt(blockID string, index int) (Location, bool) {
	b, ok := g.blocks[blockID]
	if !ok {
		return Location{}, false
	}
	if index < 0 {
		return g.blockLocations[blockID], true
	}
	if index >= len(b.Commands) {
		return Location{}, false
	}
	return g.commandLocations[b.Commands[index].ID], true
}

// Lookup resolves a checkpoint id, which may name either a command or a block.
func (g *Graph) Lookup(id string) (Location, bool) {
	if l, ok := g.commandLocations[id]; ok {
		return l, true
	}
	if l, ok := g.blockLocations[id]; ok {
		return l, true
	}
	return Location{}, false
}

// Next returns the block declared after id.
func (g *Graph) Next(id string) (string, bool) {
	for i, bid := range g.order {
		if bid == id && i+1 < len(g.order) {
			return g.order[i+1], true
		}
	}
	return "", false
}

// First returns the first declared block.
func (g *Graph) First() (string, bool) {
	if len(g.order) == 0 {
		return "", false
	}
	return g.order[0], true
}

// Len returns the number of blocks.
func (g *Graph) Len() int {
	return len(g.order)
}
