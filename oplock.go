package main

import (
	"github.com/dmarenin/smb1d/fid"
	"github.com/dmarenin/smb1d/smb1"
)

// Oplock is the delegation collaborator consulted when handles are
// granted and before conflicting operations. Break machinery is not
// implemented; the wired implementation never grants anything, so no
// break can become due.
type Oplock interface {
	Grant(f *fid.File, requested uint8) uint8
	BreakToLevel(f *fid.File, level uint8)
	BreakAllLevel2(in *fid.Inode)
}

type noOplocks struct{}

func (noOplocks) Grant(*fid.File, uint8) uint8 { return smb1.OplockNone }

func (noOplocks) BreakToLevel(*fid.File, uint8) {}

func (noOplocks) BreakAllLevel2(*fid.Inode) {}
