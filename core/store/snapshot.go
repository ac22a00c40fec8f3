package store

import (
	"bytes"
	"encoding/hex"
	"io"
	"os"

	"github.com/ulikunitz/xz"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/JuniperTag/core/document"
	jerrors "github.com/FocuswithJustin/JuniperTag/core/errors"
	xmlpkg "github.com/FocuswithJustin/JuniperTag/core/xml"
)

// Snapshot format identifiers.
const (
	SnapshotFormat  = "juniper-tag-snapshot"
	SnapshotVersion = 1
)

// envelope is the msgpack record inside the xz stream. Checksum is the
// hex BLAKE3-256 of State, the msgpack-encoded document.State.
type envelope struct {
	Format   string `msgpack:"format"`
	Version  int    `msgpack:"version"`
	Checksum string `msgpack:"checksum"`
	State    []byte `msgpack:"state"`
}

// WriteSnapshot writes state to w as an xz-compressed msgpack archive.
func WriteSnapshot(w io.Writer, state *document.State) error {
	if state == nil {
		return jerrors.NewValidation("state", "nil state")
	}
	payload, err := msgpack.Marshal(state)
	if err != nil {
		return jerrors.Wrap(err, "encode state")
	}
	sum := blake3.Sum256(payload)

	return writeEnvelope(w, envelope{
		Format:   SnapshotFormat,
		Version:  SnapshotVersion,
		Checksum: hex.EncodeToString(sum[:]),
		State:    payload,
	})
}

func writeEnvelope(w io.Writer, env envelope) error {
	zw, err := xz.NewWriter(w)
	if err != nil {
		return jerrors.Wrap(err, "create xz writer")
	}
	if err := msgpack.NewEncoder(zw).Encode(env); err != nil {
		zw.Close()
		return jerrors.Wrap(err, "encode snapshot")
	}
	if err := zw.Close(); err != nil {
		return jerrors.Wrap(err, "finish xz stream")
	}
	return nil
}

// ReadSnapshot reads an archive written by WriteSnapshot. A checksum
// mismatch fails with a *errors.ValidationError on field "checksum".
// The source tree is re-parsed from State.XML when present.
func ReadSnapshot(r io.Reader) (*document.State, error) {
	zr, err := xz.NewReader(r)
	if err != nil {
		return nil, jerrors.Wrap(err, "open xz stream")
	}
	var env envelope
	if err := msgpack.NewDecoder(zr).Decode(&env); err != nil {
		return nil, jerrors.Wrap(err, "decode snapshot")
	}
	if env.Format != SnapshotFormat {
		return nil, jerrors.NewValidation("format", "not a snapshot: "+env.Format)
	}
	if env.Version != SnapshotVersion {
		return nil, jerrors.NewUnsupported("snapshot version", "expected 1")
	}
	sum := blake3.Sum256(env.State)
	if got := hex.EncodeToString(sum[:]); got != env.Checksum {
		return nil, jerrors.NewValidation("checksum", "snapshot checksum mismatch: "+got)
	}

	var state document.State
	if err := msgpack.Unmarshal(env.State, &state); err != nil {
		return nil, jerrors.Wrap(err, "decode state")
	}
	if state.XML != "" {
		if parsed, err := xmlpkg.ParseString(state.XML); err == nil {
			state.Parsed = parsed
		}
	}
	return &state, nil
}

// SaveSnapshot writes a snapshot of state to path.
func SaveSnapshot(path string, state *document.State) error {
	var buf bytes.Buffer
	if err := WriteSnapshot(&buf, state); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return jerrors.NewIO("write snapshot", path, err)
	}
	return nil
}

// LoadSnapshot reads the snapshot at path.
func LoadSnapshot(path string) (*document.State, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, jerrors.NewIO("open snapshot", path, err)
	}
	defer f.Close()
	state, err := ReadSnapshot(f)
	if err != nil {
		return nil, jerrors.Wrapf(err, "snapshot %s", path)
	}
	return state, nil
}
