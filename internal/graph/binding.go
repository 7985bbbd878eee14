package graph

// BindPublicVariables points public variable slots at host memory. The
// natural host is matched by interface name and variable count, all or
// nothing. Each explicit host is then matched slot by slot on exact variable
// name; slots it lacks keep their current cell. Mismatched types are logged
// and skipped.
func (inst *Instance) BindPublicVariables(hosts ...DataInterfaceHost) {
	if inst.Binding() == BindingNone || inst.isReleased() {
		return
	}
	mapped := false

	if inst.host != nil {
		for _, iface := range inst.graph.interfaces {
			cells, ok := inst.host.InterfaceCells(iface.Name)
			if !ok {
				continue
			}
			if inst.mapInterface(iface, cells) {
				mapped = true
			}
		}
	}

	for _, h := range hosts {
		if h == nil {
			continue
		}
		for _, iface := range inst.graph.interfaces {
			if inst.mapExplicit(iface, h) {
				mapped = true
			}
		}
	}

	if mapped {
		inst.stateMu.Lock()
		inst.binding = BindingBound
		inst.stateMu.Unlock()
	}
}

func (inst *Instance) mapInterface(iface DataInterface, cells []*Cell) bool {
	if len(cells) != len(iface.Variables) {
		inst.logger.Warn("Data interface variable count mismatch, binding skipped.",
			"interface", iface.Name, "host", "owner", "graph_count", len(iface.Variables), "host_count", len(cells))
		return false
	}
	for i, name := range iface.Variables {
		if !inst.slotAccepts(iface, name, cells[i], "owner") {
			return false
		}
	}
	for i, name := range iface.Variables {
		inst.slots[inst.graph.varIndex[name]] = cells[i]
	}
	inst.logger.Debug("Data interface bound.", "interface", iface.Name, "host", "owner")
	return true
}

func (inst *Instance) mapExplicit(iface DataInterface, h DataInterfaceHost) bool {
	bound := 0
	for _, name := range iface.Variables {
		c, ok := h.LookupCell(name)
		if !ok || !inst.slotAccepts(iface, name, c, "explicit") {
			continue
		}
		inst.slots[inst.graph.varIndex[name]] = c
		bound++
	}
	if bound > 0 {
		inst.logger.Debug("Data interface bound.", "interface", iface.Name, "host", "explicit",
			"bound", bound, "variables", len(iface.Variables))
	}
	return bound > 0
}

func (inst *Instance) slotAccepts(iface DataInterface, name string, c *Cell, source string) bool {
	v, _ := inst.graph.Variable(name)
	if c.Type().Equals(v.Type) {
		return true
	}
	inst.logger.Warn("Data interface variable type mismatch, binding skipped.",
		"interface", iface.Name, "host", source, "variable", name,
		"graph_type", v.Type.FriendlyName(), "host_type", c.Type().FriendlyName())
	return false
}

// UnbindPublicVariables points every slot back at the instance's own cells.
func (inst *Instance) UnbindPublicVariables() {
	inst.stateMu.Lock()
	defer inst.stateMu.Unlock()
	if inst.binding != BindingBound {
		return
	}
	copy(inst.slots, inst.own)
	inst.binding = BindingUnbound
}
