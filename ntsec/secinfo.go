package ntsec

// FileSecurity is the identity and permission image exchanged with
// QUERY_SECURITY and SET_SECURITY.
type FileSecurity struct {
	UID  uint32
	GID  uint32
	Mode uint32

	HasUID  bool
	HasGID  bool
	HasMode bool
}

// BuildDescriptor renders the sections selected by secinfo from the host
// identity. Owner and group SIDs come from the mapper; the DACL expresses
// the POSIX mode as three ALLOWED entries.
func BuildDescriptor(m *Mapper, uid, gid, mode uint32, secinfo uint32) (*Descriptor, error) {
	d := &Descriptor{}
	var owner, group *SID
	if secinfo&(OwnerSecInfo|DACLSecInfo) != 0 {
		var err error
		if owner, err = m.SIDFromID(uid, KindOwner); err != nil {
			return nil, err
		}
	}
	if secinfo&(GroupSecInfo|DACLSecInfo) != 0 {
		var err error
		if group, err = m.SIDFromID(gid, KindGroup); err != nil {
			return nil, err
		}
	}
	if secinfo&OwnerSecInfo != 0 {
		d.Owner = owner
		d.Control |= ControlOwnerDefaulted
	}
	if secinfo&GroupSecInfo != 0 {
		d.Group = group
		d.Control |= ControlGroupDefaulted
	}
	if secinfo&DACLSecInfo != 0 {
		d.Control |= ControlDACLPresent
		d.DACL = ChmodDACL(owner, group, mode)
	}
	return d, nil
}

// ParseDescriptor extracts the host identity from an incoming descriptor.
// Owner and group mappings that the oracle cannot resolve are left unset
// so the caller keeps the current values; the mode is derived from the
// DACL when one is present.
func ParseDescriptor(m *Mapper, d *Descriptor) FileSecurity {
	var sec FileSecurity
	if d.Owner != nil {
		if uid, err := m.IDFromSID(d.Owner, KindOwner); err == nil {
			sec.UID, sec.HasUID = uid, true
		}
	}
	if d.Group != nil {
		if gid, err := m.IDFromSID(d.Group, KindGroup); err == nil {
			sec.GID, sec.HasGID = gid, true
		}
	}
	if d.Control&ControlDACLPresent != 0 {
		sec.Mode = DACLToMode(d.DACL, d.Owner, d.Group)
		sec.HasMode = true
	}
	return sec
}
