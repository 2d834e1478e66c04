package capability

// Ports selects a Port per flow node, falling back to Default.
type Ports struct {
	Default Port
	Nodes   map[string]Port
}

// For returns the port configured for node, or Default.
func (p Ports) For(node string) Port {
	if port, ok := p.Nodes[node]; ok && port != nil {
		return port
	}
	return p.Default
}

// Set assigns a port to node.
func (p *Ports) Set(node string, port Port) {
	if p.Nodes == nil {
		p.Nodes = make(map[string]Port)
	}
	p.Nodes[node] = port
}
