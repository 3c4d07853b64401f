package main

import (
	"crypto/rand"
	"time"

	"github.com/dmarenin/smb1d/internal/logger"
	"github.com/dmarenin/smb1d/smb1"
)

// serverCapabilities is what NEGOTIATE announces: NT semantics, 32-bit
// status codes, large I/O and the CIFS UNIX extensions.
const serverCapabilities = smb1.CapUnicode | smb1.CapLargeFiles | smb1.CapNTSMBs |
	smb1.CapStatus32 | smb1.CapNTFind | smb1.CapLevelIIOplocks |
	smb1.CapLargeReadX | smb1.CapLargeWriteX | smb1.CapRPCRemoteAPIs |
	smb1.CapInfoLevelPassthru | smb1.CapUnix

// maxLoginFailures is how many bad passwords a connection gets before
// its host lands on the ban list.
const maxLoginFailures = 3

func handleNegotiate(c *connection, req smb1.Request, rsp *smb1.Composer) uint32 {
	c.mu.Lock()
	negotiated := c.negotiated
	c.mu.Unlock()
	if negotiated {
		return smb1.StatusInvalidSMB
	}

	nr, err := smb1.ParseNegotiate(req)
	if err != nil {
		return smb1.StatusInvalidSMB
	}

	// A client offering SMB2 is handed off; this server does not speak
	// it beyond the negotiate shape.
	if nr.Index(smb1.DialectSMB2Wild) >= 0 || nr.Index(smb1.DialectSMB2002) >= 0 {
		dialect := uint16(0x0202)
		if nr.Index(smb1.DialectSMB2Wild) >= 0 {
			dialect = 0x02ff
		}
		c.mu.Lock()
		c.smb2 = true
		c.mu.Unlock()
		guid := c.server.serverGuid
		c.send(smb1.EncodeSMB2Handoff(dialect, guid[:], time.Now()))
		logger.Info("smb2 client handed off", "client", c.clientName)
		return statusDropResponse
	}

	index := nr.Index(smb1.DialectNTLM012)
	if index < 0 {
		// No dialect in common.
		nrsp := smb1.NegotiateResponse{DialectIndex: 0xffff}
		nrsp.Encode(rsp)
		return smb1.StatusOK
	}

	challenge := make([]byte, 8)
	if _, err := rand.Read(challenge); err != nil {
		return smb1.StatusInternalError
	}

	securityMode := uint8(smb1.NegSecurityUser | smb1.NegSecurityChallengeResponse |
		smb1.NegSecuritySignaturesEnabled)
	if c.server.requireSigning {
		securityMode |= smb1.NegSecuritySignaturesRequired
	}

	_, tzOff := time.Now().Zone()

	c.mu.Lock()
	c.negotiated = true
	c.challenge = challenge
	c.mu.Unlock()

	nrsp := smb1.NegotiateResponse{
		DialectIndex:  uint16(index),
		SecurityMode:  securityMode,
		MaxMpxCount:   maxMpxCount,
		MaxNumberVcs:  1,
		MaxBufferSize: defaultMaxBufferSize,
		MaxRawSize:    maxRawSize,
		Capabilities:  serverCapabilities,
		SystemTime:    time.Now(),
		TimeZone:      int16(-tzOff / 60),
		Challenge:     challenge,
		DomainName:    c.server.workgroup,
	}
	nrsp.Encode(rsp)
	return smb1.StatusOK
}

func handleSessionSetup(c *connection, req smb1.Request, rsp *smb1.Composer) uint32 {
	ss, err := smb1.ParseSessionSetup(req)
	if err != nil {
		return smb1.StatusInvalidSMB
	}

	c.mu.Lock()
	if ss.MaxBufferSize >= 1024 {
		c.maxBufferSize = uint32(ss.MaxBufferSize)
	}
	c.capabilities = ss.Capabilities
	challenge := c.challenge
	c.mu.Unlock()

	s := c.server
	user := ss.AccountName
	var sessionKey []byte
	guest := false

	switch {
	case user == "" && len(ss.CaseSensitive) <= 1:
		// Anonymous setup; admit as guest when the server allows it.
		if !s.guestOK {
			return smb1.StatusLogonFailure
		}
		guest = true
	case !s.ntlmServer.HasAccount(user):
		// Unknown accounts map to guest rather than erroring out.
		if !s.guestOK {
			s.mu.Lock()
			s.stats.pwErrors++
			s.mu.Unlock()
			return smb1.StatusLogonFailure
		}
		guest = true
	default:
		sessionKey, err = s.ntlmServer.Authenticate(user, ss.PrimaryDomain, challenge, ss.CaseSensitive)
		if err != nil {
			logger.Warn("login failure", "client", c.clientName, "user", user)
			s.mu.Lock()
			s.stats.pwErrors++
			s.mu.Unlock()
			c.mu.Lock()
			c.loginFail++
			fails := c.loginFail
			c.mu.Unlock()
			if fails >= maxLoginFailures {
				s.blockHost(hostOf(c.conn.RemoteAddr()), "repeated login failures")
			}
			return smb1.StatusLogonFailure
		}
	}

	sess, err := s.registerSession(c, user, guest)
	if err != nil {
		return smb1.StatusSmbTooManyUids
	}
	sess.domain = ss.PrimaryDomain
	sess.workstation = ss.NativeOS
	sess.sessionKey = sessionKey
	sess.state = sessionValid

	if !guest && sessionKey != nil &&
		(s.requireSigning || req.Header().IsFlag2Set(smb1.Flags2SecuritySignature)) {
		sess.signingRequired = true
		c.activateSigning(sessionKey)
	}

	logger.Info("session setup", "client", c.clientName, "user", user, "guest", guest)

	rsp.Header().SetUid(sess.uid)
	var action uint16
	if guest {
		action = smb1.ActionGuest
	}
	srsp := smb1.SessionSetupResponse{
		Action:        action,
		NativeOS:      "Unix",
		NativeLanMan:  "smb1d",
		PrimaryDomain: s.workgroup,
	}
	srsp.Encode(rsp)
	return smb1.StatusOK
}

func handleLogoff(c *connection, req smb1.Request, rsp *smb1.Composer) uint32 {
	ss, status := c.sessionFor(req)
	if status != smb1.StatusOK {
		return status
	}
	c.server.deregisterSession(c, ss)
	logger.Info("logoff", "client", c.clientName, "user", ss.userName)
	rsp.PutAndXBlock(smb1.SMB_COM_LOGOFF_ANDX, nil, nil)
	return smb1.StatusOK
}

func handleTreeConnect(c *connection, req smb1.Request, rsp *smb1.Composer) uint32 {
	ss, status := c.sessionFor(req)
	if status != smb1.StatusOK {
		return status
	}
	treq, err := smb1.ParseTreeConnect(req)
	if err != nil {
		return smb1.StatusInvalidSMB
	}
	if treq.Flags&smb1.TreeDisconnectTid != 0 {
		c.server.disconnectTree(ss, req.Header().Tid())
	}

	switch treq.Service {
	case smb1.ServiceAny, smb1.ServiceDisk, smb1.ServicePipe:
	default:
		return smb1.StatusBadNetworkName
	}

	name := treq.ShareName()
	sh, writeable, status := c.server.resolveShare(c.conn.RemoteAddr(), ss.userName, name)
	if status != smb1.StatusOK {
		logger.Warn("tree connect refused", "client", c.clientName, "share", name, "status", status)
		if status == smb1.StatusAccessDenied {
			c.server.mu.Lock()
			c.server.stats.permErrors++
			c.server.mu.Unlock()
		}
		return status
	}
	if sh.shareType == shareTypePipe && treq.Service == smb1.ServiceDisk {
		c.server.releaseShare(sh)
		return smb1.StatusBadNetworkName
	}

	tc := ss.newTreeConnect(sh, writeable)
	logger.Info("tree connect", "client", c.clientName, "share", sh.name, "writeable", writeable)

	service := smb1.ServiceDisk
	filesystem := "NTFS"
	if sh.shareType == shareTypePipe {
		service = smb1.ServicePipe
		filesystem = ""
	}
	rsp.Header().SetTid(tc.tid)
	trsp := smb1.TreeConnectResponse{
		OptionalSupport:  smb1.SupportSearchBits,
		Service:          service,
		NativeFileSystem: filesystem,
	}
	trsp.Encode(rsp)
	return smb1.StatusOK
}

func handleTreeDisconnect(c *connection, req smb1.Request, rsp *smb1.Composer) uint32 {
	ss, status := c.sessionFor(req)
	if status != smb1.StatusOK {
		return status
	}
	if err := c.server.disconnectTree(ss, req.Header().Tid()); err != nil {
		return smb1.StatusSMBBadTid
	}
	rsp.PutEmptyBlock()
	return smb1.StatusOK
}

func handleEcho(c *connection, req smb1.Request, rsp *smb1.Composer) uint32 {
	er, err := smb1.ParseEcho(req)
	if err != nil {
		return smb1.StatusInvalidSMB
	}
	if er.EchoCount == 0 {
		return statusDropResponse
	}
	smb1.EncodeEcho(rsp, 1, er.Data)
	return smb1.StatusOK
}

// handleProcessExit closes every open made by the exiting client process.
func handleProcessExit(c *connection, req smb1.Request, rsp *smb1.Composer) uint32 {
	ss, status := c.sessionFor(req)
	if status != smb1.StatusOK {
		return status
	}
	pid := req.Header().PidLow()
	closeMatchingOpens(c.server, ss, func(tid, fileID uint16, filePID uint16) bool {
		return filePID == pid
	})
	rsp.PutEmptyBlock()
	return smb1.StatusOK
}
