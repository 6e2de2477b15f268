package persistence

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/x448/float16"

	"github.com/sanonone/trackgraph/pkg/graph"
)

// snapshotMeta is the JSON payload of the leading meta frame.
type snapshotMeta struct {
	ID        string      `json:"id"`
	BuiltAt   time.Time   `json:"built_at"`
	ItemCount int         `json:"item_count"`
	EdgeCount int         `json:"edge_count"`
	Stats     graph.Stats `json:"stats"`
}

// SaveSnapshot writes a snapshot as a frame stream: one meta frame followed
// by one frame per item and per edge. Normalized vectors are packed as half
// precision floats; their values are standardized into a narrow range and
// serve navigation and export only. Raw feature values stay at full
// precision: features like duration_ms run into the hundreds of thousands,
// far past the float16 range. Embedding coordinates and edge scores are
// full precision as well.
func SaveSnapshot(w io.Writer, snap *graph.Snapshot) error {
	bw := bufio.NewWriter(w)
	fw := NewFrameWriter(bw)

	meta := snapshotMeta{
		ID:        snap.ID,
		BuiltAt:   snap.BuiltAt,
		ItemCount: snap.Len(),
		EdgeCount: snap.EdgeCount(),
		Stats:     snap.Stats(),
	}
	payload, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	if err := fw.WriteFrame(OpCodeMeta, payload); err != nil {
		return err
	}

	var werr error
	snap.Ascend(func(it *graph.Item) bool {
		if werr = fw.WriteFrame(OpCodeItem, encodeItem(it)); werr != nil {
			return false
		}
		return true
	})
	if werr != nil {
		return werr
	}

	for _, e := range snap.Edges() {
		if err := fw.WriteFrame(OpCodeEdge, encodeEdge(e)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// LoadSnapshot reads a frame stream written by SaveSnapshot and rebuilds
// the snapshot, re-running the structural invariant checks.
func LoadSnapshot(r io.Reader) (*graph.Snapshot, error) {
	br := bufio.NewReader(r)

	opCode, payload, err := ReadFrame(br)
	if err != nil {
		return nil, fmt.Errorf("snapshot meta frame: %w", err)
	}
	if opCode != OpCodeMeta {
		return nil, fmt.Errorf("snapshot: expected meta frame, got opcode 0x%02x", opCode)
	}
	var meta snapshotMeta
	if err := json.Unmarshal(payload, &meta); err != nil {
		return nil, fmt.Errorf("snapshot meta: %w", err)
	}

	items := make([]*graph.Item, 0, meta.ItemCount)
	edges := make([]graph.Edge, 0, meta.EdgeCount)
	for {
		opCode, payload, err := ReadFrame(br)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("snapshot frame: %w", err)
		}
		switch opCode {
		case OpCodeItem:
			it, err := decodeItem(payload)
			if err != nil {
				return nil, err
			}
			items = append(items, it)
		case OpCodeEdge:
			e, err := decodeEdge(payload)
			if err != nil {
				return nil, err
			}
			edges = append(edges, e)
		default:
			return nil, fmt.Errorf("snapshot: unexpected opcode 0x%02x", opCode)
		}
	}

	if len(items) != meta.ItemCount || len(edges) != meta.EdgeCount {
		return nil, fmt.Errorf("snapshot: truncated file: %d/%d items, %d/%d edges",
			len(items), meta.ItemCount, len(edges), meta.EdgeCount)
	}
	return graph.NewSnapshot(meta.ID, meta.BuiltAt, items, edges, meta.Stats)
}

// SaveSnapshotFile writes the snapshot to path via a temp file + rename so
// a crash mid-write never leaves a half-written snapshot behind.
func SaveSnapshotFile(path string, snap *graph.Snapshot) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := SaveSnapshot(f, snap); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// LoadSnapshotFile reads a snapshot from path.
func LoadSnapshotFile(path string) (*graph.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadSnapshot(f)
}

// --- record encoding ---

func appendString(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

func readString(buf []byte) (string, []byte, error) {
	n, used := binary.Uvarint(buf)
	if used <= 0 || uint64(len(buf)-used) < n {
		return "", nil, fmt.Errorf("snapshot: malformed string field")
	}
	return string(buf[used : used+int(n)]), buf[used+int(n):], nil
}

func appendFullVector(buf []byte, v []float64) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(v)))
	for _, x := range v {
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(x))
	}
	return buf
}

func readFullVector(buf []byte) ([]float64, []byte, error) {
	n, used := binary.Uvarint(buf)
	if used <= 0 || uint64(len(buf)-used) < n*8 {
		return nil, nil, fmt.Errorf("snapshot: malformed vector field")
	}
	buf = buf[used:]
	if n == 0 {
		return nil, buf, nil
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return out, buf[n*8:], nil
}

func appendHalfVector(buf []byte, v []float64) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(v)))
	for _, x := range v {
		buf = binary.LittleEndian.AppendUint16(buf, float16.Fromfloat32(float32(x)).Bits())
	}
	return buf
}

func readHalfVector(buf []byte) ([]float64, []byte, error) {
	n, used := binary.Uvarint(buf)
	if used <= 0 || uint64(len(buf)-used) < n*2 {
		return nil, nil, fmt.Errorf("snapshot: malformed vector field")
	}
	buf = buf[used:]
	if n == 0 {
		return nil, buf, nil
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(float16.Frombits(binary.LittleEndian.Uint16(buf[i*2:])).Float32())
	}
	return out, buf[n*2:], nil
}

func encodeItem(it *graph.Item) []byte {
	buf := make([]byte, 0, 64+8*len(it.Features)+2*len(it.Normalized))
	buf = appendString(buf, it.ID)
	buf = appendString(buf, it.Title)
	buf = appendString(buf, it.Artist)
	buf = appendString(buf, it.Album)
	buf = binary.AppendVarint(buf, int64(it.Popularity))
	buf = binary.AppendVarint(buf, int64(it.Cluster))
	buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(it.EmbeddingX))
	buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(it.EmbeddingY))
	buf = appendFullVector(buf, it.Features)
	buf = appendHalfVector(buf, it.Normalized)
	return buf
}

func decodeItem(buf []byte) (*graph.Item, error) {
	it := &graph.Item{}
	var err error
	if it.ID, buf, err = readString(buf); err != nil {
		return nil, err
	}
	if it.Title, buf, err = readString(buf); err != nil {
		return nil, err
	}
	if it.Artist, buf, err = readString(buf); err != nil {
		return nil, err
	}
	if it.Album, buf, err = readString(buf); err != nil {
		return nil, err
	}
	pop, used := binary.Varint(buf)
	if used <= 0 {
		return nil, fmt.Errorf("snapshot: malformed item record")
	}
	buf = buf[used:]
	cluster, used := binary.Varint(buf)
	if used <= 0 {
		return nil, fmt.Errorf("snapshot: malformed item record")
	}
	buf = buf[used:]
	if len(buf) < 16 {
		return nil, fmt.Errorf("snapshot: malformed item record")
	}
	it.Popularity = int(pop)
	it.Cluster = int(cluster)
	it.EmbeddingX = math.Float64frombits(binary.LittleEndian.Uint64(buf[0:8]))
	it.EmbeddingY = math.Float64frombits(binary.LittleEndian.Uint64(buf[8:16]))
	buf = buf[16:]
	if it.Features, buf, err = readFullVector(buf); err != nil {
		return nil, err
	}
	if it.Normalized, _, err = readHalfVector(buf); err != nil {
		return nil, err
	}
	return it, nil
}

func encodeEdge(e graph.Edge) []byte {
	buf := make([]byte, 0, len(e.Source)+len(e.Target)+12)
	buf = appendString(buf, e.Source)
	buf = appendString(buf, e.Target)
	return binary.LittleEndian.AppendUint64(buf, math.Float64bits(e.Score))
}

func decodeEdge(buf []byte) (graph.Edge, error) {
	var e graph.Edge
	var err error
	if e.Source, buf, err = readString(buf); err != nil {
		return e, err
	}
	if e.Target, buf, err = readString(buf); err != nil {
		return e, err
	}
	if len(buf) < 8 {
		return e, fmt.Errorf("snapshot: malformed edge record")
	}
	e.Score = math.Float64frombits(binary.LittleEndian.Uint64(buf))
	return e, nil
}
