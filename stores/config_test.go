package stores

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "smb1d.yml", `
serverName: FILESERVER
workgroup: OFFICE
address: ":1445"
requireSigning: true
guestOk: true
maxConnections: 10
apiPort: 8080
apiPassword: hunter2
logLevel: debug
`)

	cfg, err := ReadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "FILESERVER", cfg.ServerName)
	assert.Equal(t, "OFFICE", cfg.Workgroup)
	assert.Equal(t, ":1445", cfg.Address)
	assert.True(t, cfg.RequireSigning)
	assert.True(t, cfg.GuestOK)
	assert.Equal(t, 10, cfg.MaxConnections)
	assert.Equal(t, 8080, cfg.APIPort)
	assert.Equal(t, "hunter2", cfg.APIPassword)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Nil(t, cfg.Database)
}

func TestReadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "smb1d.yml", "serverName: SRV\n")

	cfg, err := ReadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "WORKGROUP", cfg.Workgroup)
	assert.Equal(t, ":445", cfg.Address)
	assert.Equal(t, 64, cfg.MaxConnections)
	assert.False(t, cfg.RequireSigning)
}

func TestReadConfigRejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "smb1d.yml", "serverName: SRV\nnoSuchOption: true\n")

	_, err := ReadConfig(dir)
	assert.Error(t, err)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig(t.TempDir())
	assert.Error(t, err)
}

func TestReadConfigDatabase(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "smb1d.yml", `
serverName: SRV
database:
  host: localhost
  port: 5432
  user: smb1d
  password: pw
  database: smb1d
  sslMode: disable
`)

	cfg, err := ReadConfig(dir)
	require.NoError(t, err)
	require.NotNil(t, cfg.Database)
	assert.Equal(t,
		"host=localhost port=5432 user=smb1d password=pw dbname=smb1d sslmode=disable",
		cfg.Database.String())
}

func TestBansSaveReload(t *testing.T) {
	dir := t.TempDir()
	bs, err := NewJSONBansStore(dir)
	require.NoError(t, err)
	assert.Empty(t, bs.Bans)

	at := time.Now().Truncate(time.Second)
	bs.Mu.Lock()
	bs.Bans["10.0.0.9"] = Ban{At: at, Reason: "too many connections"}
	err = bs.Save()
	bs.Mu.Unlock()
	require.NoError(t, err)

	bs2, err := NewJSONBansStore(dir)
	require.NoError(t, err)
	require.Contains(t, bs2.Bans, "10.0.0.9")
	assert.Equal(t, "too many connections", bs2.Bans["10.0.0.9"].Reason)
	assert.True(t, at.Equal(bs2.Bans["10.0.0.9"].At))
}

func TestBansCorruptFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bans.json", "{not json")
	_, err := NewJSONBansStore(dir)
	assert.Error(t, err)
}

func TestAccountStore(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "accounts.json", `{
	"accounts": [
		{"username": "alice", "password": "s3cret"},
		{"username": "guest", "password": ""}
	]
}`)

	as, err := NewJSONAccountStore(dir)
	require.NoError(t, err)

	pw, ok := as.Password("alice")
	assert.True(t, ok)
	assert.Equal(t, "s3cret", pw)

	pw, ok = as.Password("guest")
	assert.True(t, ok)
	assert.Empty(t, pw)

	_, ok = as.Password("mallory")
	assert.False(t, ok)
}

func TestAccountStoreMissingFile(t *testing.T) {
	as, err := NewJSONAccountStore(t.TempDir())
	require.NoError(t, err)
	_, ok := as.Password("anyone")
	assert.False(t, ok)
}

func TestSharesStore(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "shares.yml", `
shares:
  - name: public
    path: /srv/public
    remark: Public files
    writeable: true
    guestOk: true
    browsable: true
  - name: finance
    path: /srv/finance
    validUsers: [alice, bob]
    writeList: [alice]
    vetoFiles: "/*.exe/Thumbs.db/"
    createMask: 0o644
`)

	ss, err := NewSharesStore(dir)
	require.NoError(t, err)
	require.Len(t, ss.Shares, 2)

	assert.Equal(t, "public", ss.Shares[0].Name)
	assert.True(t, ss.Shares[0].Writeable)
	assert.True(t, ss.Shares[0].GuestOK)

	fin := ss.Shares[1]
	assert.Equal(t, []string{"alice", "bob"}, fin.ValidUsers)
	assert.Equal(t, []string{"alice"}, fin.WriteList)
	assert.Equal(t, "/*.exe/Thumbs.db/", fin.VetoFiles)
	assert.Equal(t, uint32(0o644), fin.CreateMask)
}

func TestSharesStoreRejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "shares.yml", "shares:\n  - name: x\n    path: /x\n    bogus: 1\n")
	_, err := NewSharesStore(dir)
	assert.Error(t, err)
}
