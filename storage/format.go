package storage

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/alanwang67/activation_registry/cdr"
	"github.com/alanwang67/activation_registry/registry"
)

// File layout, all header integers big-endian:
//
//	magic "ORBDREPO" | version | flags | 2 reserved | payload length | payload | crc32(payload)
//
// The payload is CDR in the order flagged by flagLittleEndian:
//
//	ulong nextId
//	sequence<{long id; ServerDef def; boolean installed}>
//
// When flagSealed is set the payload is salt | nonce | ciphertext of the
// CDR bytes, authenticated together with the header.
const (
	fileMagic     = "ORBDREPO"
	formatVersion = 1
	headerSize    = len(fileMagic) + 8
	trailerSize   = 4

	flagLittleEndian byte = 0x01
	flagSealed       byte = 0x02

	// long id + five strings + boolean
	minEntrySize = 4 + 5*4 + 1
)

func encodePayload(s *registry.Snapshot, order binary.ByteOrder) []byte {
	e := cdr.NewEncoder(order)
	e.WriteULong(s.NextID)
	cdr.WriteSequence(e, s.Servers, func(e *cdr.Encoder, srv registry.RegisteredServer) {
		e.WriteLong(int32(srv.ID))
		srv.Def.MarshalCDR(e)
		e.WriteBoolean(srv.Installed)
	})
	return e.Bytes()
}

func decodePayload(payload []byte, order binary.ByteOrder) (*registry.Snapshot, error) {
	d := cdr.NewDecoder(payload, order)
	next, err := d.ReadULong()
	if err != nil {
		return nil, err
	}
	servers, err := cdr.ReadSequence(d, minEntrySize, func(d *cdr.Decoder) (registry.RegisteredServer, error) {
		var srv registry.RegisteredServer
		id, err := d.ReadLong()
		if err != nil {
			return srv, err
		}
		srv.ID = registry.ServerID(id)
		if err := srv.Def.UnmarshalCDR(d); err != nil {
			return srv, err
		}
		srv.Installed, err = d.ReadBoolean()
		return srv, err
	})
	if err != nil {
		return nil, err
	}
	if d.Remaining() != 0 {
		return nil, fmt.Errorf("%d bytes after the last entry", d.Remaining())
	}
	return &registry.Snapshot{NextID: next, Servers: servers}, nil
}

func fileHeader(flags byte, payloadLen int) []byte {
	h := make([]byte, headerSize)
	copy(h, fileMagic)
	h[8] = formatVersion
	h[9] = flags
	binary.BigEndian.PutUint32(h[12:16], uint32(payloadLen))
	return h
}

// encodeFile frames a snapshot. seal is nil for a plain file.
func encodeFile(s *registry.Snapshot, order binary.ByteOrder, seal *sealer) ([]byte, error) {
	var flags byte
	if cdr.IsLittleEndian(order) {
		flags |= flagLittleEndian
	}
	payload := encodePayload(s, order)
	if seal != nil {
		flags |= flagSealed
		sealedLen := seal.sealedLen(len(payload))
		sealed, err := seal.seal(payload, fileHeader(flags, sealedLen))
		if err != nil {
			return nil, err
		}
		payload = sealed
	}

	out := fileHeader(flags, len(payload))
	out = append(out, payload...)
	out = binary.BigEndian.AppendUint32(out, crc32.ChecksumIEEE(payload))
	return out, nil
}

func decodeFile(data []byte, seal *sealer) (*registry.Snapshot, error) {
	if len(data) < headerSize+trailerSize {
		return nil, fmt.Errorf("%w: %d bytes is too short", ErrCorrupt, len(data))
	}
	if string(data[:len(fileMagic)]) != fileMagic {
		return nil, fmt.Errorf("%w: not a registry file", ErrCorrupt)
	}
	if data[8] != formatVersion {
		return nil, fmt.Errorf("%w: unknown format version %d", ErrCorrupt, data[8])
	}
	flags := data[9]
	if flags&^(flagLittleEndian|flagSealed) != 0 || data[10] != 0 || data[11] != 0 {
		return nil, fmt.Errorf("%w: unknown flags %#x", ErrCorrupt, flags)
	}
	n := binary.BigEndian.Uint32(data[12:16])
	if uint64(n) != uint64(len(data)-headerSize-trailerSize) {
		return nil, fmt.Errorf("%w: payload length %d does not match file size", ErrCorrupt, n)
	}
	payload := data[headerSize : headerSize+int(n)]
	sum := binary.BigEndian.Uint32(data[headerSize+int(n):])
	if crc32.ChecksumIEEE(payload) != sum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	if flags&flagSealed != 0 {
		if seal == nil {
			return nil, fmt.Errorf("%w: no passphrase configured", ErrSealed)
		}
		plain, err := seal.open(payload, data[:headerSize])
		if err != nil {
			return nil, err
		}
		payload = plain
	}

	var order binary.ByteOrder = binary.BigEndian
	if flags&flagLittleEndian != 0 {
		order = binary.LittleEndian
	}
	s, err := decodePayload(payload, order)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return s, nil
}
