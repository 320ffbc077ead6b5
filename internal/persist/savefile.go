package persist

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/blake2b"
	"gopkg.in/yaml.v3"
)

const (
	saveFormat  = "tetrarogue-save"
	SaveVersion = 1
)

// ErrIncompatibleSave rejects a save written in another format or version,
// or whose body no longer matches its checksum. Nothing is loaded.
var ErrIncompatibleSave = errors.New("incompatible save")

var separator = []byte("\n---\n")

type saveHeader struct {
	Format   string `yaml:"format"`
	Version  int    `yaml:"version"`
	Checksum string `yaml:"checksum"`
}

// Encode renders a session document as a header followed by the YAML body.
// The header carries a BLAKE2b-256 digest of the body bytes.
func Encode(body *yaml.Node) ([]byte, error) {
	text, err := yaml.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode save body: %w", err)
	}
	sum := blake2b.Sum256(text)
	head, err := yaml.Marshal(saveHeader{
		Format:   saveFormat,
		Version:  SaveVersion,
		Checksum: hex.EncodeToString(sum[:]),
	})
	if err != nil {
		return nil, fmt.Errorf("encode save header: %w", err)
	}
	var buf bytes.Buffer
	buf.Grow(len(head) + len(separator) + len(text))
	buf.Write(bytes.TrimRight(head, "\n"))
	buf.Write(separator)
	buf.Write(text)
	return buf.Bytes(), nil
}

// Decode checks the header and returns the body document. Any mismatch is
// reported as ErrIncompatibleSave.
func Decode(data []byte) (*yaml.Node, error) {
	head, text, ok := bytes.Cut(data, separator)
	if !ok {
		return nil, fmt.Errorf("%w: missing header", ErrIncompatibleSave)
	}
	var h saveHeader
	if err := yaml.Unmarshal(head, &h); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrIncompatibleSave, err)
	}
	if h.Format != saveFormat {
		return nil, fmt.Errorf("%w: format %q", ErrIncompatibleSave, h.Format)
	}
	if h.Version != SaveVersion {
		return nil, fmt.Errorf("%w: version %d, want %d", ErrIncompatibleSave, h.Version, SaveVersion)
	}
	sum := blake2b.Sum256(text)
	if h.Checksum != hex.EncodeToString(sum[:]) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrIncompatibleSave)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(text, &doc); err != nil {
		return nil, fmt.Errorf("decode save body: %w", err)
	}
	return &doc, nil
}

// WriteSave encodes body to path through a temporary file and a rename, so a
// crash never leaves a half-written save behind.
func WriteSave(path string, body *yaml.Node) error {
	data, err := Encode(body)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create save dir: %w", err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp save: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write save: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close save: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace save: %w", err)
	}
	return nil
}

func ReadSave(path string) (*yaml.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read save: %w", err)
	}
	return Decode(data)
}
