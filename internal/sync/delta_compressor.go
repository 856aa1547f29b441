package sync

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// DeltaCompressor кодирует/декодирует изменения (Change) в компактный вид.
type DeltaCompressor interface {
	Compress(changes []Change) ([]byte, error)
	Decompress(payload []byte) ([]Change, error)
}

type passthroughCompressor struct{}

func NewPassthroughCompressor() DeltaCompressor { return &passthroughCompressor{} }

// Compress формат: [len(uint32)] [json(Change)] ...
func (p *passthroughCompressor) Compress(changes []Change) ([]byte, error) {
	buf := make([]byte, 0)
	for _, c := range changes {
		frame, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("encode change: %w", err)
		}
		n := uint32(len(frame))
		buf = append(buf, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
		buf = append(buf, frame...)
	}
	return buf, nil
}

func (p *passthroughCompressor) Decompress(payload []byte) ([]Change, error) {
	var res []Change
	i := 0
	for i < len(payload) {
		if i+4 > len(payload) {
			break // corrupt, игнорируем хвост
		}
		n := uint32(payload[i])<<24 | uint32(payload[i+1])<<16 | uint32(payload[i+2])<<8 | uint32(payload[i+3])
		i += 4
		if i+int(n) > len(payload) {
			break
		}
		var c Change
		if err := json.Unmarshal(payload[i:i+int(n)], &c); err != nil {
			return res, fmt.Errorf("decode change: %w", err)
		}
		res = append(res, c)
		i += int(n)
	}
	return res, nil
}

// smartCompressor применяет gzip к serialized changes для лучшего сжатия
type smartCompressor struct{}

func NewSmartCompressor() DeltaCompressor { return &smartCompressor{} }

func (s *smartCompressor) Compress(changes []Change) ([]byte, error) {
	// Сначала сериализуем как passthrough
	passthrough := &passthroughCompressor{}
	raw, err := passthrough.Compress(changes)
	if err != nil {
		return nil, err
	}

	// Затем gzip
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(raw); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *smartCompressor) Decompress(payload []byte) ([]Change, error) {
	gz, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	raw, err := io.ReadAll(gz)
	if err != nil {
		return nil, err
	}

	// Затем passthrough decode
	passthrough := &passthroughCompressor{}
	return passthrough.Decompress(raw)
}
