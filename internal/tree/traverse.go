package tree

import "github.com/shotline/shotline/internal/ir"

// DescendantDevices returns the devices below root in depth-first
// pre-order, excluding root itself.
//
// By default traversal stops at nested pseudoclock subtrees: a
// pseudoclock and everything under it belong to a different clock domain
// and are excluded. With recurseIntoPseudoclocks true the full tree is
// returned, every node exactly once.
func (s *Shot) DescendantDevices(root DeviceID, recurseIntoPseudoclocks bool) []DeviceID {
	var out []DeviceID
	s.walkDevices(root, recurseIntoPseudoclocks, &out)
	return out
}

func (s *Shot) walkDevices(id DeviceID, recurse bool, out *[]DeviceID) {
	for _, childID := range s.devices[id].Children {
		child := s.devices[childID]
		if child.Kind == ir.KindPseudoclock && !recurse {
			continue
		}
		*out = append(*out, childID)
		s.walkDevices(childID, recurse, out)
	}
}

// DescendantInstructions returns the instructions owned by root and by
// its descendants, in depth-first pre-order, with the same
// pseudoclock-boundary behaviour as DescendantDevices.
func (s *Shot) DescendantInstructions(root DeviceID, recurseIntoPseudoclocks bool) []InstructionID {
	out := append([]InstructionID(nil), s.devices[root].Instructions...)
	for _, id := range s.DescendantDevices(root, recurseIntoPseudoclocks) {
		out = append(out, s.devices[id].Instructions...)
	}
	return out
}

// DomainDevices returns the non-pseudoclock devices of the clock domain
// rooted at the given pseudoclock or clock line: its descendants, stopping
// at (exclusive of) any nested pseudoclock.
func (s *Shot) DomainDevices(root DeviceID) []DeviceID {
	return s.DescendantDevices(root, false)
}
