package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dmarenin/smb1d/api"
	"github.com/dmarenin/smb1d/internal/logger"
	"github.com/dmarenin/smb1d/ntlm"
	"github.com/dmarenin/smb1d/stores"
)

const version = "1.2.0"

var storesDir = flag.String("dir", ".", "directory for storing persistent data")

func main() {
	flag.Parse()
	dir, err := filepath.Abs(*storesDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Read the config file.
	cfg, err := stores.ReadConfig(dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "couldn't read config:", err)
		os.Exit(1)
	}
	if err := logger.Init(logger.Config{Level: cfg.LogLevel}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger.Info("starting smb1d", "version", version, "dir", dir)

	// Initialize stores. Accounts and shares come from PostgreSQL when a
	// database is configured; the ban list always has a JSON copy so bans
	// survive a database outage.
	bs, err := stores.NewJSONBansStore(dir)
	if err != nil {
		logger.Error("couldn't load ban list", "err", err)
		os.Exit(1)
	}

	var db *stores.Database
	var accounts *stores.AccountStore
	var shareDefs []stores.Share
	if cfg.Database != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		db, err = stores.NewStore(ctx, *cfg.Database)
		cancel()
		if err != nil {
			logger.Error("couldn't connect to database", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		if accounts, err = db.LoadAccounts(); err != nil {
			logger.Error("couldn't load accounts", "err", err)
			os.Exit(1)
		}
		ss, err := db.LoadShares()
		if err != nil {
			logger.Error("couldn't load shares", "err", err)
			os.Exit(1)
		}
		shareDefs = ss.Shares
		bans, err := db.LoadBans()
		if err != nil {
			logger.Error("couldn't load bans", "err", err)
			os.Exit(1)
		}
		for host, ban := range bans {
			bs.Bans[host] = ban
		}
	} else {
		if accounts, err = stores.NewJSONAccountStore(dir); err != nil {
			logger.Error("couldn't load accounts", "err", err)
			os.Exit(1)
		}
		ss, err := stores.NewSharesStore(dir)
		if err != nil {
			logger.Error("couldn't load shares", "err", err)
			os.Exit(1)
		}
		shareDefs = ss.Shares
	}

	// Start listening on the SMB port.
	l, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		logger.Error("couldn't listen", "address", cfg.Address, "err", err)
		os.Exit(1)
	}
	defer l.Close()
	logger.Info("listening", "address", l.Addr().String())

	// Start the SMB server.
	s := newServer(l, bs, &cfg)
	s.db = db
	s.ntlmServer = ntlm.NewServer(cfg.ServerName, cfg.Workgroup, accounts)
	for _, sh := range shareDefs {
		if err := s.registerShare(sh); err != nil {
			logger.Error("couldn't register share", "share", sh.Name, "err", err)
		}
	}
	s.registerIPC()

	// Start the management API.
	if cfg.APIPort != 0 {
		var h http.Handler = api.NewAPI(&serverAPI{s: s})
		if cfg.APIPassword != "" {
			h = api.BasicAuth(cfg.APIPassword)(h)
		}
		apiSrv := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.APIPort),
			Handler: h,
		}
		go func() {
			if err := apiSrv.ListenAndServe(); err != http.ErrServerClosed {
				logger.Error("api server failed", "err", err)
			}
		}()
		logger.Info("api listening", "port", cfg.APIPort)
	}

	// Start a thread to watch for the stop signal.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		for {
			select {
			case <-sig:
				logger.Info("received interrupt signal, shutting down")
				s.mu.Lock()
				s.enabled = false
				for addr, c := range s.connectionList {
					logger.Info("closing connection", "client", addr)
					c.conn.Close()
				}
				s.mu.Unlock()
				saveBans(s)
				l.Close()
				os.Exit(0)
			case <-time.After(10 * time.Minute):
				// Reset the abuse protection.
				s.mu.Lock()
				s.connectionCount = make(map[string]int)
				stale := make([]*connection, 0)
				for _, c := range s.connectionList {
					if c.isStale() {
						stale = append(stale, c)
					}
				}
				s.mu.Unlock()

				saveBans(s)

				for _, c := range stale {
					logger.Info("dropping idle connection", "client", c.clientName)
					s.mu.Lock()
					s.stats.sTimedOut++
					s.mu.Unlock()
					s.closeConnection(c)
				}
			}
		}
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			s.mu.Lock()
			enabled := s.enabled
			s.mu.Unlock()
			if !enabled {
				return
			}
			logger.Error("accept failed", "err", err)
			continue
		}

		// Check if the remote host is on the ban list.
		host := hostOf(conn.RemoteAddr())
		bs.Mu.Lock()
		_, banned := bs.Bans[host]
		bs.Mu.Unlock()
		if banned {
			conn.Close()
			continue
		}

		// Ban the remote host if it forms too many connections.
		s.mu.Lock()
		num := s.connectionCount[host]
		s.connectionCount[host] = num + 1
		s.mu.Unlock()
		if num >= cfg.MaxConnections {
			s.blockHost(host, "too many connections")
			logger.Warn("blocked host for too many connections", "host", host, "count", num)
			conn.Close()
			continue
		}

		logger.Info("incoming connection", "client", conn.RemoteAddr().String())
		c := s.newConnection(conn)
		go c.serve()
	}
}

func saveBans(s *server) {
	s.bs.Mu.Lock()
	defer s.bs.Mu.Unlock()
	if err := s.bs.Save(); err != nil {
		logger.Error("couldn't save ban list", "err", err)
	}
}
