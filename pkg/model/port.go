package model

// Port is a typed attachment point on a step. Ports are the sole mechanism
// for declaring data dependencies between steps: an edge exists from step A
// to step B iff an output port of A carries the same DataFormat as an input
// port of B.
type Port struct {
	name   string
	format *DataFormat
	list   bool
}

// Name returns the port name, unique within its step.
func (p Port) Name() string { return p.name }

// Format returns the port's data format.
func (p Port) Format() *DataFormat { return p.format }

// IsList reports whether the port consumes the entire element list in one
// task. Single-cardinality ports are processed one element per task.
func (p Port) IsList() bool { return p.list }

// InputPorts is the ordered set of input ports of a step.
type InputPorts struct {
	ports []Port
}

// Ports returns the ports in declaration order.
func (ip InputPorts) Ports() []Port { return ip.ports }

// Len returns the number of ports.
func (ip InputPorts) Len() int { return len(ip.ports) }

// PortByName returns the named port.
func (ip InputPorts) PortByName(name string) (Port, bool) {
	for _, p := range ip.ports {
		if p.name == name {
			return p, true
		}
	}
	return Port{}, false
}

// Primary returns the first declared input port. The executor decomposes a
// step into tasks based on its primary port.
func (ip InputPorts) Primary() (Port, bool) {
	if len(ip.ports) == 0 {
		return Port{}, false
	}
	return ip.ports[0], true
}

// OutputPorts is the ordered set of output ports of a step.
type OutputPorts struct {
	ports []Port
}

// Ports returns the ports in declaration order.
func (op OutputPorts) Ports() []Port { return op.ports }

// Len returns the number of ports.
func (op OutputPorts) Len() int { return len(op.ports) }

// PortByName returns the named port.
func (op OutputPorts) PortByName(name string) (Port, bool) {
	for _, p := range op.ports {
		if p.name == name {
			return p, true
		}
	}
	return Port{}, false
}

// InputPortsBuilder assembles the input ports of a step.
type InputPortsBuilder struct {
	step  string
	ports []Port
}

// NewInputPortsBuilder creates a builder for the named step.
func NewInputPortsBuilder(step string) *InputPortsBuilder {
	return &InputPortsBuilder{step: step}
}

// AddPort declares an input port. list selects whether the port consumes
// the whole element list in one task.
func (b *InputPortsBuilder) AddPort(name string, format *DataFormat, list bool) error {
	if name == "" {
		return NewConfigurationError(b.step, "input port name cannot be empty")
	}
	if !isRegistered(format) {
		return NewConfigurationError(b.step, "input port %q uses an unregistered data format", name)
	}
	for _, p := range b.ports {
		if p.name == name {
			return NewConfigurationError(b.step, "duplicate input port name %q", name)
		}
	}
	b.ports = append(b.ports, Port{name: name, format: format, list: list})
	return nil
}

// Build returns the assembled port set.
func (b *InputPortsBuilder) Build() InputPorts {
	return InputPorts{ports: b.ports}
}

// OutputPortsBuilder assembles the output ports of a step.
type OutputPortsBuilder struct {
	step  string
	ports []Port
}

// NewOutputPortsBuilder creates a builder for the named step.
func NewOutputPortsBuilder(step string) *OutputPortsBuilder {
	return &OutputPortsBuilder{step: step}
}

// AddPort declares an output port. A step may not declare two output ports
// with the same format: the producer of a format must be unambiguous.
func (b *OutputPortsBuilder) AddPort(name string, format *DataFormat) error {
	if name == "" {
		return NewConfigurationError(b.step, "output port name cannot be empty")
	}
	if !isRegistered(format) {
		return NewConfigurationError(b.step, "output port %q uses an unregistered data format", name)
	}
	for _, p := range b.ports {
		if p.name == name {
			return NewConfigurationError(b.step, "duplicate output port name %q", name)
		}
		if p.format == format {
			return NewConfigurationError(b.step,
				"output ports %q and %q share format %q (ambiguous producer)", p.name, name, format.Name())
		}
	}
	b.ports = append(b.ports, Port{name: name, format: format})
	return nil
}

// Build returns the assembled port set.
func (b *OutputPortsBuilder) Build() OutputPorts {
	return OutputPorts{ports: b.ports}
}
