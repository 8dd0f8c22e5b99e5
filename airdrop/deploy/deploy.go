// Package deploy hands a prepared airdrop over to contract deployment.
//
// Talking to the chain is left to dedicated deployment tooling: the deployers in
// this package describe what has to be deployed, they never submit transactions.
package deploy

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"

	"github.com/jettonkit/airdrop/airdrop/common/hash"
	"github.com/jettonkit/airdrop/airdrop/common/keycodec"
	utilsio "github.com/jettonkit/airdrop/utils/io"
)

const (
	NetworkMainnet = "mainnet"
	NetworkTestnet = "testnet"
)

// Params are the inputs of a minter deployment.
type Params struct {
	Network string `yaml:"network" validate:"required,oneof=mainnet testnet"`
	// Codec names the address format of Admin and of all grant keys.
	Codec       string `yaml:"codec" validate:"required"`
	Admin       string `yaml:"admin" validate:"required"`
	MetadataURI string `yaml:"metadata_uri" validate:"required,url"`
	// MerkleRoot is the hex encoded root hash of the grant trie.
	MerkleRoot  string `yaml:"merkle_root" validate:"required,len=64,hexadecimal"`
	TotalSupply string `yaml:"total_supply" validate:"required,number"`
	BuildID     string `yaml:"build_id" validate:"required,uuid"`
	// Blob is the location of the serialized grant trie claimants fetch their proofs from.
	Blob       string `yaml:"blob" validate:"required"`
	MinterCode string `yaml:"minter_code,omitempty"`
	WalletCode string `yaml:"wallet_code,omitempty"`
}

// NewParams fills the trie derived parameters.
func NewParams(network, codec, admin, metadataURI string, root hash.Hash, totalSupply string, buildID string, blob string) Params {
	return Params{
		Network:     network,
		Codec:       codec,
		Admin:       admin,
		MetadataURI: metadataURI,
		MerkleRoot:  root.String(),
		TotalSupply: totalSupply,
		BuildID:     buildID,
		Blob:        blob,
	}
}

var validate = func() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(validateAdmin, Params{})
	return v
}()

// validateAdmin checks that the admin address is valid in the airdrop's
// address format.
func validateAdmin(sl validator.StructLevel) {
	p := sl.Current().Interface().(Params)
	codec, err := keycodec.ByName(p.Codec)
	if err != nil {
		sl.ReportError(p.Codec, "Codec", "Codec", "codec", "")
		return
	}
	if p.Admin == "" {
		return
	}
	if _, err := codec.Encode(p.Admin); err != nil {
		sl.ReportError(p.Admin, "Admin", "Admin", "address", p.Codec)
	}
}

// Validate checks that all parameters are present and well-formed.
func (p Params) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid deployment parameters: %w", err)
	}
	return nil
}

// Result describes a performed deployment step.
type Result struct {
	// Manifest is the path of the written deployment manifest, if any.
	Manifest string
}

// Deployer deploys the minter contract committing to an airdrop.
type Deployer interface {
	Deploy(ctx context.Context, params Params) (*Result, error)
}

// Manifest is the document handed to the contract deployment tool.
type Manifest struct {
	Params `yaml:",inline"`
	// MerkleRootInt is the root hash as decimal integer, the form the minter's
	// init data expects.
	MerkleRootInt string `yaml:"merkle_root_int"`
	GeneratedAt   string `yaml:"generated_at"`
}

// ManifestDeployer writes a YAML deployment manifest instead of deploying.
type ManifestDeployer struct {
	path   string
	logger zerolog.Logger
	now    func() time.Time
}

var _ Deployer = (*ManifestDeployer)(nil)

func NewManifestDeployer(path string, logger zerolog.Logger) *ManifestDeployer {
	return &ManifestDeployer{
		path:   path,
		logger: logger.With().Str("component", "manifest_deployer").Logger(),
		now:    time.Now,
	}
}

func (d *ManifestDeployer) Deploy(ctx context.Context, params Params) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("deployment aborted: %w", err)
	}

	root, err := parseRoot(params.MerkleRoot)
	if err != nil {
		return nil, err
	}
	manifest := Manifest{
		Params:        params,
		MerkleRootInt: root.BigInt().String(),
		GeneratedAt:   d.now().UTC().Format(time.RFC3339),
	}
	encoded, err := yaml.Marshal(&manifest)
	if err != nil {
		return nil, fmt.Errorf("cannot encode deployment manifest: %w", err)
	}

	writer, err := utilsio.NewSyncOnCloseRenameFile(d.path, d.logger)
	if err != nil {
		return nil, fmt.Errorf("could not create writer for manifest: %w", err)
	}
	if _, err := writer.Write(encoded); err != nil {
		writer.Abort()
		return nil, fmt.Errorf("could not write manifest: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("could not store manifest: %w", err)
	}

	d.logger.Info().
		Str("manifest", d.path).
		Str("network", params.Network).
		Str("merkle_root", params.MerkleRoot).
		Msg("deployment manifest written")
	return &Result{Manifest: d.path}, nil
}

// ReadManifest reads a manifest written by ManifestDeployer.
func ReadManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.UnmarshalStrict(data, &m); err != nil {
		return nil, fmt.Errorf("cannot decode deployment manifest: %w", err)
	}
	if err := m.Params.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func parseRoot(s string) (hash.Hash, error) {
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return hash.DummyHash, fmt.Errorf("invalid merkle root %q: %w", s, err)
	}
	return hash.ToHash(decoded)
}
