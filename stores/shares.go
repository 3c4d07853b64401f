package stores

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Share struct {
	Name      string `yaml:"name"`
	Path      string `yaml:"path"`
	Remark    string `yaml:"remark,omitempty"`
	Writeable bool   `yaml:"writeable,omitempty"`
	GuestOK   bool   `yaml:"guestOk,omitempty"`
	Browsable bool   `yaml:"browsable,omitempty"`

	AllowHosts []string `yaml:"allowHosts,omitempty"`
	DenyHosts  []string `yaml:"denyHosts,omitempty"`

	ValidUsers   []string `yaml:"validUsers,omitempty"`
	InvalidUsers []string `yaml:"invalidUsers,omitempty"`
	ReadList     []string `yaml:"readList,omitempty"`
	WriteList    []string `yaml:"writeList,omitempty"`

	MaxConnections int `yaml:"maxConnections,omitempty"`

	StoreDosAttributes bool   `yaml:"storeDosAttributes,omitempty"`
	VetoFiles          string `yaml:"vetoFiles,omitempty"`
	CreateMask         uint32 `yaml:"createMask,omitempty"`
	DirectoryMask      uint32 `yaml:"directoryMask,omitempty"`
}

type SharesStore struct {
	Shares []Share `yaml:"shares,omitempty"`
}

func NewSharesStore(dir string) (*SharesStore, error) {
	path := filepath.Join(dir, "shares.yml")
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	ss := &SharesStore{}
	if err := dec.Decode(ss); err != nil {
		return nil, err
	}

	return ss, nil
}
