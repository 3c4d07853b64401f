package main

import (
	"sort"
	"time"

	"github.com/dmarenin/smb1d/api"
	"github.com/dmarenin/smb1d/stores"
)

// serverAPI adapts the live server state to the management API.
type serverAPI struct {
	s *server
}

func (a *serverAPI) Status() api.Status {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()
	return api.Status{
		Version:       version,
		ServerName:    s.serverName,
		Workgroup:     s.workgroup,
		StartTime:     s.stats.start,
		Connections:   len(s.connectionList),
		Sessions:      len(s.globalSessionTable),
		OpenFiles:     s.fids.Len(),
		FileOpens:     s.stats.fOpens,
		SessionOpens:  s.stats.sOpens,
		SessionsTimed: s.stats.sTimedOut,
		LoginFailures: s.stats.pwErrors,
		AccessDenials: s.stats.permErrors,
		BytesSent:     s.stats.bytesSent,
		BytesReceived: s.stats.bytesRcvd,
	}
}

func (a *serverAPI) Shares() []api.Share {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()
	shares := make([]api.Share, 0, len(s.shareList))
	for _, sh := range s.shareList {
		if sh.shareType != shareTypeDisk {
			continue
		}
		shares = append(shares, api.Share{
			Name:      sh.name,
			Remark:    sh.remark,
			Writeable: sh.writeable,
			GuestOK:   sh.guestOK,
		})
	}
	sort.Slice(shares, func(i, j int) bool { return shares[i].Name < shares[j].Name })
	return shares
}

func (a *serverAPI) Sessions() []api.Session {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()
	sessions := make([]api.Session, 0, len(s.globalSessionTable))
	for ss := range s.globalSessionTable {
		sessions = append(sessions, api.Session{
			Client:      ss.connection.clientName,
			User:        ss.userName,
			Workstation: ss.workstation,
			Guest:       ss.isGuest,
			ConnectedAt: ss.creationTime,
		})
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].ConnectedAt.Before(sessions[j].ConnectedAt)
	})
	return sessions
}

func (a *serverAPI) Bans() []api.Ban {
	bs := a.s.bs
	bs.Mu.Lock()
	defer bs.Mu.Unlock()
	bans := make([]api.Ban, 0, len(bs.Bans))
	for host, b := range bs.Bans {
		bans = append(bans, api.Ban{Host: host, At: b.At, Reason: b.Reason})
	}
	sort.Slice(bans, func(i, j int) bool { return bans[i].Host < bans[j].Host })
	return bans
}

func (a *serverAPI) Ban(host, reason string) error {
	ban := stores.Ban{At: time.Now(), Reason: reason}
	bs := a.s.bs
	bs.Mu.Lock()
	bs.Bans[host] = ban
	err := bs.Save()
	bs.Mu.Unlock()
	if err != nil {
		return err
	}
	if a.s.db != nil {
		return a.s.db.SaveBan(host, ban)
	}
	return nil
}

func (a *serverAPI) Unban(host string) error {
	bs := a.s.bs
	bs.Mu.Lock()
	delete(bs.Bans, host)
	err := bs.Save()
	bs.Mu.Unlock()
	if err != nil {
		return err
	}
	if a.s.db != nil {
		return a.s.db.RemoveBan(host)
	}
	return nil
}
