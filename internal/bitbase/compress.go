package bitbase

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// Mode selects the payload encoding, stored as the first byte of a
// compressed bitbase block.
type Mode byte

const (
	ModeStoredRaw Mode = iota
	ModeDeflate
	ModeHuffmanDeflate
)

// control-byte tag bits: TT in "C NNNNN TT".
const (
	tagCopyLiteral = 0
	tagBackRef     = 2
	continueFlag   = 1 << 7
	countShift     = 2
)

// Compress encodes raw into a mode-tagged block. mode selects the
// encoding; ModeStoredRaw is used for blocks too small to benefit from
// compression.
func Compress(raw []byte, mode Mode) ([]byte, error) {
	var out bytes.Buffer
	out.WriteByte(byte(mode))

	switch mode {
	case ModeStoredRaw:
		out.Write(raw)
	case ModeDeflate:
		w, err := flate.NewWriter(&out, flate.BestCompression)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(raw); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	case ModeHuffmanDeflate:
		tree := buildHuffmanTree(raw)
		var treeBuf bitWriter
		tree.serialize(&treeBuf)

		codes := tree.codeTable()
		lz := lzEncode(raw)
		var payload bitWriter
		for _, tok := range lz {
			encodeToken(&payload, tok, codes)
		}

		out.Write(treeBuf.bytes())
		out.WriteByte(0) // separator aligns tree/payload on a byte boundary
		out.Write(payload.bytes())
	default:
		return nil, fmt.Errorf("bitbase: unknown compression mode %d", mode)
	}

	return out.Bytes(), nil
}

// Decompress reverses Compress, given the decompressed size expected
// (rawSize), used to size the output buffer and validate completeness.
func Decompress(data []byte, rawSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("bitbase: empty block")
	}
	mode := Mode(data[0])
	body := data[1:]

	switch mode {
	case ModeStoredRaw:
		if len(body) != rawSize {
			return nil, fmt.Errorf("bitbase: stored-raw size mismatch: got %d want %d", len(body), rawSize)
		}
		out := make([]byte, rawSize)
		copy(out, body)
		return out, nil

	case ModeDeflate:
		r := flate.NewReader(bytes.NewReader(body))
		defer r.Close()
		out := make([]byte, rawSize)
		if _, err := io.ReadFull(r, out); err != nil {
			return nil, fmt.Errorf("bitbase: deflate decode: %w", err)
		}
		return out, nil

	case ModeHuffmanDeflate:
		reader := bitReader{data: body}
		tree, err := deserializeHuffmanTree(&reader)
		if err != nil {
			return nil, err
		}
		reader.alignByte()
		if reader.bytePos() < len(body) && body[reader.bytePos()] == 0 {
			reader.skipByte()
		}

		out := make([]byte, 0, rawSize)
		for len(out) < rawSize {
			tok, err := decodeToken(&reader, tree)
			if err != nil {
				return nil, err
			}
			out = appendToken(out, tok)
		}
		if len(out) != rawSize {
			return nil, fmt.Errorf("bitbase: huffman decode size mismatch: got %d want %d", len(out), rawSize)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("bitbase: unknown compression mode %d", mode)
	}
}

// lzToken is either a literal run (copy from the source itself) or a
// back-reference run, matching spec.md's control-byte scheme.
type lzToken struct {
	isRef bool
	count int
	// for literal runs: the raw bytes; for refs: the back distance.
	literal  []byte
	distance int
}

const (
	minMatch   = 4
	searchBack = 4096
)

// lzEncode performs a simple greedy LZ77 pass: at each position, find the
// longest match within the last searchBack bytes (min length minMatch);
// otherwise extend the current literal run.
func lzEncode(data []byte) []lzToken {
	var tokens []lzToken
	i := 0
	for i < len(data) {
		bestLen, bestDist := findMatch(data, i)
		if bestLen >= minMatch {
			tokens = append(tokens, lzToken{isRef: true, count: bestLen, distance: bestDist})
			i += bestLen
			continue
		}

		// Extend (or start) a literal run.
		if len(tokens) > 0 && !tokens[len(tokens)-1].isRef {
			tokens[len(tokens)-1].literal = append(tokens[len(tokens)-1].literal, data[i])
			tokens[len(tokens)-1].count++
		} else {
			tokens = append(tokens, lzToken{isRef: false, count: 1, literal: []byte{data[i]}})
		}
		i++
	}
	return tokens
}

func findMatch(data []byte, pos int) (length, distance int) {
	start := pos - searchBack
	if start < 0 {
		start = 0
	}
	for cand := start; cand < pos; cand++ {
		l := matchLength(data, cand, pos)
		if l > length {
			length = l
			distance = pos - cand
		}
	}
	return length, distance
}

// matchLength measures how far data[cand:] equals data[pos:], allowing
// overlap (cand < pos but the match runs past pos), which is exactly the
// "overlapping refs copy byte-by-byte" case spec.md describes.
func matchLength(data []byte, cand, pos int) int {
	n := 0
	for pos+n < len(data) && data[cand+n] == data[pos+n] {
		n++
		if n > 65535 {
			break
		}
	}
	return n
}

func appendToken(out []byte, tok lzToken) []byte {
	if !tok.isRef {
		return append(out, tok.literal...)
	}
	start := len(out) - tok.distance
	for i := 0; i < tok.count; i++ {
		out = append(out, out[start+i])
	}
	return out
}

// encodeToken writes one control byte "C NNNNN TT" (extended with further
// "C NNNNNNN" bytes for counts/distances above 31) followed by the
// token's payload: Huffman-coded literal bytes for a copy-literal run, or
// a similarly-encoded back distance for a back-reference.
func encodeToken(w *bitWriter, tok lzToken, codes map[byte]huffCode) {
	tag := byte(tagCopyLiteral)
	if tok.isRef {
		tag = tagBackRef
	}
	writeVarint(w, tok.count, &tag)

	if !tok.isRef {
		for _, b := range tok.literal {
			c := codes[b]
			w.writeBits(c.bits, c.length)
		}
		return
	}
	noTag := byte(0)
	writeVarint(w, tok.distance, &noTag)
}

// writeVarint encodes v as a 5-bit-then-7-bit-chunked little-endian
// sequence, each byte's top bit signalling "more chunks follow". tag (if
// non-nil) occupies the low 2 bits of the first byte only.
func writeVarint(w *bitWriter, v int, tag *byte) {
	chunk := byte(v) & 0x1F
	rest := v >> 5
	var more byte
	if rest != 0 {
		more = continueFlag
	}
	t := byte(0)
	if tag != nil {
		t = *tag
	}
	w.writeByte(more | (chunk << countShift) | t)

	for rest != 0 {
		chunk = byte(rest) & 0x7F
		rest >>= 7
		more = 0
		if rest != 0 {
			more = continueFlag
		}
		w.writeByte(more | chunk)
	}
}

func readVarint(r *bitReader) (v int, tag byte, err error) {
	b, err := r.readByte()
	if err != nil {
		return 0, 0, err
	}
	tag = b & 0x3
	v = int((b >> countShift) & 0x1F)
	shift := 5
	more := b&continueFlag != 0
	for more {
		b2, err := r.readByte()
		if err != nil {
			return 0, 0, err
		}
		v |= int(b2&0x7F) << shift
		shift += 7
		more = b2&continueFlag != 0
	}
	return v, tag, nil
}

func decodeToken(r *bitReader, tree *huffTree) (lzToken, error) {
	count, tag, err := readVarint(r)
	if err != nil {
		return lzToken{}, err
	}

	if tag == tagBackRef {
		dist, _, err := readVarint(r)
		if err != nil {
			return lzToken{}, err
		}
		return lzToken{isRef: true, count: count, distance: dist}, nil
	}

	lit := make([]byte, count)
	for i := range lit {
		sym, err := tree.decodeSymbol(r)
		if err != nil {
			return lzToken{}, err
		}
		lit[i] = sym
	}
	return lzToken{isRef: false, count: count, literal: lit}, nil
}
