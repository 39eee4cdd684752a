package ingest

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"bridgewatch/internal/domain"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// ErrInvalidDocument is returned when a snapshot document fails schema validation.
var ErrInvalidDocument = errors.New("invalid snapshot document")

//go:embed schema.json
var snapshotSchema []byte

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

// Snapshot is an inbound document holding one bridge's claims and transfers.
type Snapshot struct {
	Bridge    string        `json:"bridge,omitempty" yaml:"bridge,omitempty"`
	Claims    []RawClaim    `json:"claims" yaml:"claims"`
	Transfers []RawTransfer `json:"transfers" yaml:"transfers"`
}

// Decoded is a canonicalized snapshot.
type Decoded struct {
	Bridge    string
	Claims    []domain.Claim
	Transfers []domain.Transfer
	Errors    []ConversionError
}

// DecodeSnapshot canonicalizes every record, preserving input order.
func DecodeSnapshot(s Snapshot) Decoded {
	out := Decoded{
		Bridge:    s.Bridge,
		Claims:    make([]domain.Claim, 0, len(s.Claims)),
		Transfers: make([]domain.Transfer, 0, len(s.Transfers)),
	}
	for _, raw := range s.Claims {
		claim, errs := DecodeClaim(raw)
		out.Claims = append(out.Claims, claim)
		out.Errors = append(out.Errors, errs...)
	}
	for _, raw := range s.Transfers {
		transfer, errs := DecodeTransfer(raw)
		out.Transfers = append(out.Transfers, transfer)
		out.Errors = append(out.Errors, errs...)
	}
	return out
}

// ValidateDocument checks a JSON snapshot document against the embedded schema.
func ValidateDocument(doc []byte) error {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(snapshotSchema))
	})
	if schemaErr != nil {
		return fmt.Errorf("load snapshot schema: %w", schemaErr)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if result.Valid() {
		return nil
	}
	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(problems, "; "))
}

// ParseSnapshot validates and unmarshals a JSON snapshot document.
func ParseSnapshot(doc []byte) (Snapshot, error) {
	if err := ValidateDocument(doc); err != nil {
		return Snapshot{}, err
	}
	var s Snapshot
	if err := json.Unmarshal(doc, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}

// ReadClaims parses a claims file. Both YAML and JSON are accepted; the file
// may hold a bare list or an object with a "claims" key.
func ReadClaims(data []byte) ([]RawClaim, error) {
	var list []RawClaim
	if err := yaml.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Claims []RawClaim `yaml:"claims"`
	}
	if err := yaml.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("read claims: %w", err)
	}
	return wrapped.Claims, nil
}

// ReadTransfers parses a transfers file, in the same shapes as ReadClaims.
func ReadTransfers(data []byte) ([]RawTransfer, error) {
	var list []RawTransfer
	if err := yaml.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Transfers []RawTransfer `yaml:"transfers"`
	}
	if err := yaml.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("read transfers: %w", err)
	}
	return wrapped.Transfers, nil
}
